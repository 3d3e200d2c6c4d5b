package evidence

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/evidence-locker/internal/domain/evidence"
	"github.com/bryanwahyu/evidence-locker/internal/infra/storage/vault"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeProvider struct {
	mu    sync.Mutex
	calls []domain.AnalysisRequest
	fn    func(req domain.AnalysisRequest) (*domain.AnalysisResult, error)
}

func (f *fakeProvider) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return &domain.AnalysisResult{Summary: "nothing notable", ConfidenceScore: 70}, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeProvider) lastCall() domain.AnalysisRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newTestService(t *testing.T, provider *fakeProvider) *Service {
	t.Helper()
	v, err := vault.New(t.TempDir())
	require.NoError(t, err)
	clock := fixedClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	return NewService(NewStore(), v, provider, clock)
}

func recognized(names ...string) *domain.AnalysisResult {
	r := &domain.AnalysisResult{Summary: "persons present", ConfidenceScore: 85, SeverityScore: 3}
	for _, n := range names {
		r.RecognizedPersons = append(r.RecognizedPersons, domain.RecognizedPerson{Name: n, Timestamp: "00:10", Confidence: 90})
	}
	return r
}

func TestIngestCreatesNewRecord(t *testing.T) {
	s := newTestService(t, &fakeProvider{})
	rec, err := s.Ingest(context.Background(), "video1.mp4", []byte("bytes"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusNew, rec.Status)
	assert.Equal(t, domain.KindVideo, rec.Kind)
	assert.Equal(t, "video1.mp4", rec.StoredAssetName)
	assert.Equal(t, "app/data/analyzed files/video1.mp4", rec.StoredAssetPath)
	assert.Len(t, rec.ContentHash, 64)
	assert.Empty(t, rec.ReportDocumentPaths)
}

func TestManualTaggingFlow(t *testing.T) {
	// Nobody is ever recognized; the flow must still settle via manual tags
	// and record exactly one report document.
	p := &fakeProvider{}
	s := newTestService(t, p)
	rec, err := s.Ingest(context.Background(), "video1.mp4", []byte("bytes"))
	require.NoError(t, err)

	rec, warn, err := s.Analyze(context.Background(), rec.ID, AnalyzeOptions{Location: "warehouse"})
	require.NoError(t, err)
	assert.Empty(t, warn)
	assert.Equal(t, domain.StatusNeedsManualTags, rec.Status)
	assert.Empty(t, rec.ReportDocumentPaths)
	assert.Nil(t, p.lastCall().ManualTags)

	rec, warn, err = s.SubmitManualTags(context.Background(), rec.ID, []string{"Alice"})
	require.NoError(t, err)
	assert.Empty(t, warn)
	assert.Equal(t, domain.StatusAnalyzed, rec.Status)
	assert.True(t, rec.RecognitionVerified)
	require.Len(t, rec.ReportDocumentPaths, 1)
	assert.Equal(t, []string{"Alice"}, p.lastCall().ManualTags)

	abs, err := s.Vault.ResolveRelative(rec.ReportDocumentPaths[0])
	require.NoError(t, err)
	assert.FileExists(t, abs)
}

func TestEmptyManualTagsStillCountAsSupplied(t *testing.T) {
	p := &fakeProvider{}
	s := newTestService(t, p)
	rec, err := s.Ingest(context.Background(), "clip.mov", []byte("bytes"))
	require.NoError(t, err)

	rec, _, err = s.Analyze(context.Background(), rec.ID, AnalyzeOptions{})
	require.NoError(t, err)
	require.Equal(t, domain.StatusNeedsManualTags, rec.Status)

	rec, _, err = s.SubmitManualTags(context.Background(), rec.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnalyzed, rec.Status)
	assert.NotNil(t, p.lastCall().ManualTags)
	assert.Empty(t, p.lastCall().ManualTags)
}

func TestRecognitionReviewFlow(t *testing.T) {
	p := &fakeProvider{fn: func(domain.AnalysisRequest) (*domain.AnalysisResult, error) {
		return recognized("Alice", "Bob"), nil
	}}
	s := newTestService(t, p)
	rec, err := s.Ingest(context.Background(), "scene.jpg", []byte("img"))
	require.NoError(t, err)

	rec, _, err = s.Analyze(context.Background(), rec.ID, AnalyzeOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingReview, rec.Status)
	require.Len(t, rec.ReportDocumentPaths, 1)

	rec, err = s.ConfirmRecognition(context.Background(), rec.ID, []string{"Bob"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnalyzed, rec.Status)
	assert.True(t, rec.RecognitionVerified)
	require.Len(t, rec.Analysis.RecognizedPersons, 1)
	assert.Equal(t, "Bob", rec.Analysis.RecognizedPersons[0].Name)
}

func TestProviderFailureLeavesErrorState(t *testing.T) {
	p := &fakeProvider{fn: func(domain.AnalysisRequest) (*domain.AnalysisResult, error) {
		return nil, domain.ErrProviderFailure
	}}
	s := newTestService(t, p)
	rec, err := s.Ingest(context.Background(), "a.mp3", []byte("audio"))
	require.NoError(t, err)

	rec, _, err = s.Analyze(context.Background(), rec.ID, AnalyzeOptions{})
	assert.ErrorIs(t, err, domain.ErrProviderFailure)
	assert.Equal(t, domain.StatusError, rec.Status)
	assert.Nil(t, rec.Analysis)
	assert.Empty(t, rec.ReportDocumentPaths)

	// Eligible for a fresh re-run without cleanup.
	p.mu.Lock()
	p.fn = nil
	p.mu.Unlock()
	rec, _, err = s.Rerun(context.Background(), rec.ID, "second try")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNeedsManualTags, rec.Status)
}

func TestDuplicateAnalyzeRejected(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	p := &fakeProvider{fn: func(domain.AnalysisRequest) (*domain.AnalysisResult, error) {
		close(started)
		<-unblock
		return recognized("Alice"), nil
	}}
	s := newTestService(t, p)
	rec, err := s.Ingest(context.Background(), "long.mp4", []byte("bytes"))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = s.Analyze(context.Background(), rec.ID, AnalyzeOptions{})
	}()
	<-started

	_, _, err = s.Analyze(context.Background(), rec.ID, AnalyzeOptions{})
	assert.ErrorIs(t, err, domain.ErrAnalysisInFlight)

	close(unblock)
	<-done

	got, err := s.Record(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingReview, got.Status)
}

func TestDestructiveOpsRejectedWhileAnalyzing(t *testing.T) {
	// A delete or rename landing mid-analysis must be rejected, not silently
	// undone when the provider returns and the run writes the record back.
	started := make(chan struct{})
	unblock := make(chan struct{})
	p := &fakeProvider{fn: func(domain.AnalysisRequest) (*domain.AnalysisResult, error) {
		close(started)
		<-unblock
		return recognized("Alice"), nil
	}}
	s := newTestService(t, p)
	rec, err := s.Ingest(context.Background(), "video1.mp4", []byte("bytes"))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = s.Analyze(context.Background(), rec.ID, AnalyzeOptions{})
	}()
	<-started

	err = s.DeleteRecord(context.Background(), rec.ID, "")
	assert.ErrorIs(t, err, domain.ErrAnalysisInFlight)
	_, err = s.RenameStored("video1.mp4", "clip.mp4", vault.KindAsset, "")
	assert.ErrorIs(t, err, domain.ErrAnalysisInFlight)
	_, err = s.DeleteStored("video1.mp4", vault.KindAsset, "")
	assert.ErrorIs(t, err, domain.ErrAnalysisInFlight)

	close(unblock)
	<-done

	// The run settles normally, then the delete goes through and sticks.
	got, err := s.Record(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingReview, got.Status)

	require.NoError(t, s.DeleteRecord(context.Background(), rec.ID, ""))
	_, err = s.Record(rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManualTagsRejectedWhileAnalyzing(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	p := &fakeProvider{fn: func(domain.AnalysisRequest) (*domain.AnalysisResult, error) {
		close(started)
		<-unblock
		return &domain.AnalysisResult{Summary: "quiet scene"}, nil
	}}
	s := newTestService(t, p)
	rec, err := s.Ingest(context.Background(), "clip.mp4", []byte("bytes"))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = s.Analyze(context.Background(), rec.ID, AnalyzeOptions{})
	}()
	<-started

	_, _, err = s.SubmitManualTags(context.Background(), rec.ID, []string{"Alice"})
	assert.ErrorIs(t, err, domain.ErrAnalysisInFlight)
	_, _, err = s.Rerun(context.Background(), rec.ID, "")
	assert.ErrorIs(t, err, domain.ErrAnalysisInFlight)

	close(unblock)
	<-done
}

func TestIngestUnifiedStoresUnderUnifiedDir(t *testing.T) {
	s := newTestService(t, &fakeProvider{})
	rec, err := s.IngestUnified(context.Background(), "merged.mp4", []byte("bytes"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusNew, rec.Status)
	assert.Equal(t, "merged.mp4", rec.StoredAssetName)
	assert.Equal(t, "app/data/Unified files/merged.mp4", rec.StoredAssetPath)
	assert.FileExists(t, filepath.Join(s.Vault.Root(), "Unified files", "merged.mp4"))

	// Same cascade applies as for single assets.
	_, err = s.DeleteStored("merged.mp4", vault.KindAsset, "")
	require.NoError(t, err)
	got, err := s.Record(rec.ID)
	require.NoError(t, err)
	assert.Empty(t, got.StoredAssetPath)
}

func TestDeleteRecordGate(t *testing.T) {
	s := newTestService(t, &fakeProvider{})
	s.Secret = "open-sesame"
	rec, err := s.Ingest(context.Background(), "doc.pdf", []byte("pdf"))
	require.NoError(t, err)

	err = s.DeleteRecord(context.Background(), rec.ID, "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = s.Record(rec.ID)
	assert.NoError(t, err)

	err = s.DeleteRecord(context.Background(), rec.ID, "open-sesame")
	require.NoError(t, err)
	_, err = s.Record(rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoFileExists(t, filepath.Join(s.Vault.Root(), "analyzed files", "doc.pdf"))
}

func TestRenameStoredPatchesReferences(t *testing.T) {
	p := &fakeProvider{fn: func(domain.AnalysisRequest) (*domain.AnalysisResult, error) {
		return recognized("Alice"), nil
	}}
	s := newTestService(t, p)
	rec, err := s.Ingest(context.Background(), "video1.mp4", []byte("bytes"))
	require.NoError(t, err)
	rec, _, err = s.Analyze(context.Background(), rec.ID, AnalyzeOptions{})
	require.NoError(t, err)
	require.Len(t, rec.ReportDocumentPaths, 1)

	res, err := s.RenameStored("video1.mp4", "clip.mp4", vault.KindAsset, "")
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", res.NewPrimaryName)

	got, err := s.Record(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", got.StoredAssetName)
	assert.Equal(t, "app/data/analyzed files/clip.mp4", got.StoredAssetPath)
	require.Len(t, got.ReportDocumentPaths, 1)
	assert.Equal(t, "app/data/analysis reports/Analysis of clip.mp4.txt", got.ReportDocumentPaths[0])
}

func TestDeleteStoredIdempotence(t *testing.T) {
	s := newTestService(t, &fakeProvider{})
	_, err := s.Ingest(context.Background(), "a.txt", []byte("x"))
	require.NoError(t, err)

	_, err = s.DeleteStored("a.txt", vault.KindAsset, "")
	require.NoError(t, err)
	_, err = s.DeleteStored("a.txt", vault.KindAsset, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPruneRemovedPath(t *testing.T) {
	p := &fakeProvider{fn: func(domain.AnalysisRequest) (*domain.AnalysisResult, error) {
		return recognized("Alice"), nil
	}}
	s := newTestService(t, p)
	rec, err := s.Ingest(context.Background(), "scene.png", []byte("img"))
	require.NoError(t, err)
	rec, _, err = s.Analyze(context.Background(), rec.ID, AnalyzeOptions{})
	require.NoError(t, err)
	require.Len(t, rec.ReportDocumentPaths, 1)
	reportRel := rec.ReportDocumentPaths[0]

	abs, err := s.Vault.ResolveRelative(reportRel)
	require.NoError(t, err)
	require.NoError(t, os.Remove(abs))
	s.PruneRemovedPath(reportRel)

	got, err := s.Record(rec.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ReportDocumentPaths)
	assert.Equal(t, "app/data/analyzed files/scene.png", got.StoredAssetPath)
}

func TestAnalyzeIncludesProfileContext(t *testing.T) {
	s := newTestService(t, &fakeProvider{})
	_, err := s.Vault.SaveProfile(domain.PersonProfile{Name: "Alice", Details: "investigator of interest"}, nil, "")
	require.NoError(t, err)
	rec, err := s.Ingest(context.Background(), "clip.mp4", []byte("bytes"))
	require.NoError(t, err)

	_, _, err = s.Analyze(context.Background(), rec.ID, AnalyzeOptions{})
	require.NoError(t, err)

	p := s.Provider.(*fakeProvider)
	require.Len(t, p.lastCall().KnownPersons, 1)
	assert.Equal(t, "Alice", p.lastCall().KnownPersons[0].Name)
}
