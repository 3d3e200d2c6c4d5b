package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bryanwahyu/evidence-locker/internal/domain/evidence"
)

func GetSystemPrompt() string {
	return `You are a forensic evidence analyst. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- severity_score is an integer 0-10; confidence_score is an integer 0-100.
- Every array field must be present; use an empty array when there is nothing to report. Empty findings are a valid result.
- key_observations, timeline_events and recognized_persons use timestamps from the material where available, "N/A" otherwise.
- Only list a recognized person when a provided profile plausibly matches; include a confidence percentage.
- For audio or video material include full_transcript; otherwise set it to "N/A".

Schema (example with empty values):
{
  "summary": "",
  "new_findings_summary": "",
  "severity_score": 0,
  "confidence_score": 0,
  "children_detected": false,
  "key_observations": [{"timestamp": "", "description": ""}],
  "timeline_events": [{"timestamp": "", "description": "", "subjects": [""]}],
  "cross_references": [{"file_name": "", "observation": ""}],
  "emotional_analysis": [{"emotion": "", "evidence": ""}],
  "recognized_persons": [{"name": "", "timestamp": "", "confidence": 0}],
  "potential_violations": [""],
  "full_transcript": ""
}`
}

// GetUserPrompt renders one analysis request: the material under review plus
// whatever context is on file.
func GetUserPrompt(req evidence.AnalysisRequest) string {
	var b strings.Builder

	if len(req.Assets) == 1 {
		a := req.Assets[0]
		fmt.Fprintf(&b, "Analyze this %s evidence file and respond with the JSON per schema.\nFile: %s\n", a.Kind, a.DisplayName)
	} else {
		b.WriteString("Analyze the following evidence files TOGETHER as one unified case. Cross-reference them and respond with one JSON object per schema covering all of them.\nFiles:\n")
		for i, a := range req.Assets {
			fmt.Fprintf(&b, "- [%d] %s (%s)\n", i+1, a.DisplayName, a.Kind)
		}
	}

	if len(req.KnownPersons) > 0 {
		b.WriteString("\nKnown persons to look for:\n")
		enc, err := json.Marshal(req.KnownPersons)
		if err == nil {
			b.Write(enc)
			b.WriteString("\n")
		}
	}
	if req.ManualTags != nil {
		if len(req.ManualTags) == 0 {
			b.WriteString("\nThe user reviewed this material and confirmed no known persons appear in it.\n")
		} else {
			fmt.Fprintf(&b, "\nThe user manually identified these persons in the material: %s. Treat them as present.\n", strings.Join(req.ManualTags, ", "))
		}
	}
	if req.PriorCaseSummary != "" {
		fmt.Fprintf(&b, "\nPrior case summary for context:\n%s\n", req.PriorCaseSummary)
	}
	if req.TestimonyContext != "" {
		fmt.Fprintf(&b, "\nTestimony on file:\n%s\n", req.TestimonyContext)
	}
	if req.Instructions != "" {
		fmt.Fprintf(&b, "\nAdditional instructions from the investigator:\n%s\n", req.Instructions)
	}
	return b.String()
}
