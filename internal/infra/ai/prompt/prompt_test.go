package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/evidence-locker/internal/domain/evidence"
)

func TestGetUserPromptSingle(t *testing.T) {
	p := GetUserPrompt(evidence.AnalysisRequest{
		Assets: []evidence.AssetRef{{DisplayName: "video1.mp4", Kind: evidence.KindVideo}},
	})
	assert.Contains(t, p, "video evidence file")
	assert.Contains(t, p, "File: video1.mp4")
	assert.NotContains(t, p, "unified case")
}

func TestGetUserPromptUnified(t *testing.T) {
	p := GetUserPrompt(evidence.AnalysisRequest{
		Assets: []evidence.AssetRef{
			{DisplayName: "A.jpg", Kind: evidence.KindImage},
			{DisplayName: "B.jpg", Kind: evidence.KindImage},
		},
	})
	assert.Contains(t, p, "one unified case")
	assert.Contains(t, p, "- [1] A.jpg (image)")
	assert.Contains(t, p, "- [2] B.jpg (image)")
}

func TestGetUserPromptManualTags(t *testing.T) {
	withTags := GetUserPrompt(evidence.AnalysisRequest{
		Assets:     []evidence.AssetRef{{DisplayName: "a.mp3", Kind: evidence.KindAudio}},
		ManualTags: []string{"Alice", "Bob"},
	})
	assert.Contains(t, withTags, "manually identified these persons in the material: Alice, Bob")

	confirmedNone := GetUserPrompt(evidence.AnalysisRequest{
		Assets:     []evidence.AssetRef{{DisplayName: "a.mp3", Kind: evidence.KindAudio}},
		ManualTags: []string{},
	})
	assert.Contains(t, confirmedNone, "confirmed no known persons")

	notSupplied := GetUserPrompt(evidence.AnalysisRequest{
		Assets: []evidence.AssetRef{{DisplayName: "a.mp3", Kind: evidence.KindAudio}},
	})
	assert.NotContains(t, notSupplied, "manually identified")
	assert.NotContains(t, notSupplied, "confirmed no known persons")
}

func TestCleanJSON(t *testing.T) {
	cases := map[string]string{
		`{"a":1}`:                            `{"a":1}`,
		"```json\n{\"a\":1}\n```":            `{"a":1}`,
		"```\n{\"a\":1}\n```":                `{"a":1}`,
		"Here is the result:\n{\"a\":1}\nok": `{"a":1}`,
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanJSON(in), "input %q", in)
	}
}
