package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/evidence-locker/internal/domain/evidence"
)

func sampleResult() *evidence.AnalysisResult {
	r := &evidence.AnalysisResult{
		Summary:            "A short clip of the loading dock.",
		NewFindingsSummary: "Nothing new.",
		ConfidenceScore:    80,
		SeverityScore:      2,
	}
	r.Normalize()
	return r
}

func storeWithReport(t *testing.T, v *Vault, name string) (StoredFile, StoredFile) {
	t.Helper()
	asset, err := v.StoreAsset(name, []byte("payload"))
	require.NoError(t, err)
	report, err := v.SaveReport(ReportInput{
		DisplayNames: []string{name},
		StoredNames:  []string{asset.Name},
		Result:       sampleResult(),
	})
	require.NoError(t, err)
	return asset, report
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	return string(b)
}

func TestRenameAssetCascades(t *testing.T) {
	v := newTestVault(t)
	asset, report := storeWithReport(t, v, "video1.mp4")
	assert.Equal(t, "Analysis of video1.mp4.txt", report.Name)

	res, err := v.Rename(asset.Name, "clip.mp4", KindAsset)
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", res.NewPrimaryName)
	require.Len(t, res.Changes, 2)
	assert.Equal(t, "app/data/analyzed files/video1.mp4", res.Changes[0].Old)
	assert.Equal(t, "app/data/analyzed files/clip.mp4", res.Changes[0].New)
	assert.Equal(t, "app/data/analysis reports/Analysis of video1.mp4.txt", res.Changes[1].Old)
	assert.Equal(t, "app/data/analysis reports/Analysis of clip.mp4.txt", res.Changes[1].New)

	newReport := filepath.Join(v.Root(), "analysis reports", "Analysis of clip.mp4.txt")
	assert.Contains(t, readFile(t, newReport), "File Path: app/data/analyzed files/clip.mp4")
}

func TestRenameRoundTripRestoresEverything(t *testing.T) {
	v := newTestVault(t)
	asset, _ := storeWithReport(t, v, "video1.mp4")

	_, err := v.Rename(asset.Name, "clip.mp4", KindAsset)
	require.NoError(t, err)
	_, err = v.Rename("clip.mp4", "video1.mp4", KindAsset)
	require.NoError(t, err)

	assetPath := filepath.Join(v.Root(), "analyzed files", "video1.mp4")
	reportPath := filepath.Join(v.Root(), "analysis reports", "Analysis of video1.mp4.txt")
	assert.FileExists(t, assetPath)
	assert.FileExists(t, reportPath)
	assert.Contains(t, readFile(t, reportPath), "File Path: app/data/analyzed files/video1.mp4")
}

func TestRenameAssetPreservesReportSuffix(t *testing.T) {
	v := newTestVault(t)
	asset, first := storeWithReport(t, v, "a.jpg")
	assert.Equal(t, "Analysis of a.jpg.txt", first.Name)

	// A second report for the same asset picks up the numeric disambiguator.
	second, err := v.SaveReport(ReportInput{
		DisplayNames: []string{"a.jpg"},
		StoredNames:  []string{asset.Name},
		Result:       sampleResult(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Analysis of a.jpg (2).txt", second.Name)

	res, err := v.Rename(asset.Name, "b.jpg", KindAsset)
	require.NoError(t, err)

	var news []string
	for _, c := range res.Changes {
		news = append(news, c.New)
	}
	assert.Contains(t, news, "app/data/analysis reports/Analysis of b.jpg.txt")
	assert.Contains(t, news, "app/data/analysis reports/Analysis of b.jpg (2).txt")
}

func TestRenameReportCascadesBackToAsset(t *testing.T) {
	v := newTestVault(t)
	_, report := storeWithReport(t, v, "video1.mp4")

	res, err := v.Rename(report.Name, "Analysis of clip2.mp4", KindReport)
	require.NoError(t, err)
	assert.Equal(t, "Analysis of clip2.mp4.txt", res.NewPrimaryName)

	assert.FileExists(t, filepath.Join(v.Root(), "analyzed files", "clip2.mp4"))
	assert.NoFileExists(t, filepath.Join(v.Root(), "analyzed files", "video1.mp4"))

	body := readFile(t, filepath.Join(v.Root(), "analysis reports", "Analysis of clip2.mp4.txt"))
	assert.Contains(t, body, "File Path: app/data/analyzed files/clip2.mp4")
}

func TestRenameCollisionGetsNumericSuffix(t *testing.T) {
	v := newTestVault(t)
	a, _ := v.StoreAsset("a.txt", []byte("a"))
	_, err := v.StoreAsset("b.txt", []byte("b"))
	require.NoError(t, err)

	res, err := v.Rename(a.Name, "b.txt", KindAsset)
	require.NoError(t, err)
	assert.Equal(t, "b (2).txt", res.NewPrimaryName)
}

func TestRenameMissingIsNotFound(t *testing.T) {
	v := newTestVault(t)
	_, err := v.Rename("ghost.mp4", "clip.mp4", KindAuto)
	assert.ErrorIs(t, err, evidence.ErrNotFound)
}

func TestDeleteAssetCascades(t *testing.T) {
	v := newTestVault(t)
	asset, report := storeWithReport(t, v, "video1.mp4")

	deleted, err := v.Delete(asset.Name, KindAsset)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{asset.Rel, report.Rel}, deleted)
	assert.NoFileExists(t, asset.Path)
	assert.NoFileExists(t, report.Path)
}

func TestDeleteReportCascadesToAsset(t *testing.T) {
	v := newTestVault(t)
	asset, report := storeWithReport(t, v, "video1.mp4")

	deleted, err := v.Delete(report.Name, KindReport)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{report.Rel, asset.Rel}, deleted)
}

func TestDeleteTwiceIsNotFoundSecondTime(t *testing.T) {
	v := newTestVault(t)
	asset, _ := storeWithReport(t, v, "video1.mp4")

	_, err := v.Delete(asset.Name, KindAsset)
	require.NoError(t, err)
	_, err = v.Delete(asset.Name, KindAsset)
	assert.ErrorIs(t, err, evidence.ErrNotFound)
}

func TestDiscoveryContentScanFallback(t *testing.T) {
	v := newTestVault(t)
	asset, err := v.StoreAsset("video1.mp4", []byte("payload"))
	require.NoError(t, err)

	// A hand-renamed report: its name no longer matches the convention but
	// its body still references the asset's storage path.
	stray := filepath.Join(v.Root(), "analysis reports", "Notes.txt")
	body := "Some notes.\nFile Path: app/data/analyzed files/video1.mp4\n"
	require.NoError(t, os.WriteFile(stray, []byte(body), 0o644))

	deleted, err := v.Delete(asset.Name, KindAsset)
	require.NoError(t, err)
	assert.Contains(t, deleted, "app/data/analysis reports/Notes.txt")
	assert.NoFileExists(t, stray)
}
