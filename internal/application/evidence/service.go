// Package evidence implements the lifecycle use-cases: ingest, analysis,
// review, case aggregation, and the gated destructive operations.
package evidence

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	app "github.com/bryanwahyu/evidence-locker/internal/application"
	domain "github.com/bryanwahyu/evidence-locker/internal/domain/evidence"
	"github.com/bryanwahyu/evidence-locker/internal/infra/storage/vault"
)

const testimonyContextMax = 8192

// Service implements use-cases untuk evidence records.
// Service is designed to be used concurrently and is thread-safe.
type Service struct {
	Store    *Store
	Vault    *vault.Vault
	Provider domain.Provider
	Audit    domain.AuditLog // nil disables the audit trail
	Mirror   domain.Mirror   // nil disables remote mirroring
	Clock    app.Clock

	// AnalysisTimeout bounds every provider call.
	AnalysisTimeout time.Duration
	// Secret gates destructive operations. Empty means the gate is open.
	Secret string

	inflightMu sync.Mutex
	inflight   map[domain.RecordID]bool
}

func NewService(store *Store, v *vault.Vault, provider domain.Provider, clock app.Clock) *Service {
	return &Service{
		Store:           store,
		Vault:           v,
		Provider:        provider,
		Clock:           clock,
		AnalysisTimeout: 120 * time.Second,
		inflight:        make(map[domain.RecordID]bool),
	}
}

// Authorize checks the destructive-operation secret in constant time.
// It mutates nothing.
func (s *Service) Authorize(secret string) error {
	if s.Secret == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.Secret)) != 1 {
		return fmt.Errorf("%w: invalid secret", domain.ErrUnauthorized)
	}
	return nil
}

// tryAcquire marks every id as in flight, or reports the one that already is.
func (s *Service) tryAcquire(ids ...domain.RecordID) (func(), error) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	for _, id := range ids {
		if s.inflight[id] {
			return nil, fmt.Errorf("%w: %s", domain.ErrAnalysisInFlight, id)
		}
	}
	for _, id := range ids {
		s.inflight[id] = true
	}
	acquired := append([]domain.RecordID(nil), ids...)
	return func() {
		s.inflightMu.Lock()
		defer s.inflightMu.Unlock()
		for _, id := range acquired {
			delete(s.inflight, id)
		}
	}, nil
}

func (s *Service) audit(ctx context.Context, t domain.Transition) {
	if s.Audit == nil {
		return
	}
	if t.OccurredAt.IsZero() {
		t.OccurredAt = s.Clock.Now()
	}
	if err := s.Audit.Append(ctx, t); err != nil {
		log.Printf("audit append failed: %v", err)
	}
}

// mirror replicates one stored file to remote storage. Best effort.
func (s *Service) mirror(ctx context.Context, localPath, rel string) {
	if s.Mirror == nil {
		return
	}
	key := strings.TrimPrefix(rel, "app/data/")
	if _, err := s.Mirror.Upload(ctx, localPath, key); err != nil {
		log.Printf("mirror upload %s failed: %v", key, err)
	}
}

// Ingest stores an uploaded file and creates its record in state new.
func (s *Service) Ingest(ctx context.Context, fileName string, data []byte) (*domain.Record, error) {
	return s.ingest(ctx, fileName, data, false)
}

// IngestUnified stores an upload that is already a combined artifact under
// the unified variant directory. The record behaves like any other.
func (s *Service) IngestUnified(ctx context.Context, fileName string, data []byte) (*domain.Record, error) {
	return s.ingest(ctx, fileName, data, true)
}

func (s *Service) ingest(ctx context.Context, fileName string, data []byte, unified bool) (*domain.Record, error) {
	store := s.Vault.StoreAsset
	if unified {
		store = s.Vault.StoreUnifiedAsset
	}
	stored, err := store(fileName, data)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)

	rec := &domain.Record{
		ID:              domain.RecordID(uuid.NewString()),
		DisplayName:     stored.Name,
		Kind:            domain.KindForName(stored.Name),
		Status:          domain.StatusNew,
		ContentHash:     hex.EncodeToString(sum[:]),
		StoredAssetName: stored.Name,
		StoredAssetPath: stored.Rel,
		UploadedAt:      s.Clock.Now(),
	}
	s.Store.PutRecord(rec)
	s.audit(ctx, domain.Transition{RecordID: string(rec.ID), ToStatus: domain.StatusNew, Note: "ingested " + stored.Name})
	s.mirror(ctx, stored.Path, stored.Rel)
	return rec, nil
}

// Records lists every record in upload order.
func (s *Service) Records() []*domain.Record { return s.Store.Records() }

// Record returns one record by id.
func (s *Service) Record(id domain.RecordID) (*domain.Record, error) {
	r, ok := s.Store.Record(id)
	if !ok {
		return nil, fmt.Errorf("%w: record %s", domain.ErrNotFound, id)
	}
	return r, nil
}

// AnalyzeOptions carries the per-run inputs of a single-record analysis.
type AnalyzeOptions struct {
	Location     string
	Instructions string
	// ManualTags non-nil means the user supplied tags this run, even when
	// the list is empty.
	ManualTags []string
}

// Analyze runs one record through the external provider and applies the
// resulting state transition. The returned warning is non-empty when the
// analysis succeeded but its report document could not be written.
func (s *Service) Analyze(ctx context.Context, id domain.RecordID, opts AnalyzeOptions) (*domain.Record, string, error) {
	release, err := s.tryAcquire(id)
	if err != nil {
		return nil, "", err
	}
	defer release()
	return s.analyzeLocked(ctx, id, opts)
}

// analyzeLocked does the provider round trip. The caller holds the record's
// in-flight slot.
func (s *Service) analyzeLocked(ctx context.Context, id domain.RecordID, opts AnalyzeOptions) (*domain.Record, string, error) {
	rec, ok := s.Store.Record(id)
	if !ok {
		return nil, "", fmt.Errorf("%w: record %s", domain.ErrNotFound, id)
	}

	from := rec.Status
	if opts.Location != "" {
		rec.Location = opts.Location
	}
	if opts.Instructions != "" {
		rec.Instructions = opts.Instructions
	}
	rec.Status = domain.StatusAnalyzing
	s.Store.PutRecord(rec)
	s.audit(ctx, domain.Transition{RecordID: string(id), FromStatus: from, ToStatus: domain.StatusAnalyzing})

	result, err := s.callProvider(ctx, domain.AnalysisRequest{
		Assets:           []domain.AssetRef{assetRef(rec)},
		KnownPersons:     s.knownPersons(),
		TestimonyContext: s.Vault.TestimonyContext(testimonyContextMax),
		Instructions:     rec.Instructions,
		ManualTags:       opts.ManualTags,
	})
	if err != nil {
		rec.Status = domain.StatusError
		s.Store.PutRecord(rec)
		s.audit(ctx, domain.Transition{RecordID: string(id), FromStatus: domain.StatusAnalyzing, ToStatus: domain.StatusError, Note: err.Error()})
		return rec, "", err
	}

	rec.Analysis = result
	switch {
	case len(result.RecognizedPersons) > 0:
		rec.Status = domain.StatusPendingReview
	case opts.ManualTags != nil:
		rec.Status = domain.StatusAnalyzed
		rec.RecognitionVerified = true
	default:
		rec.Status = domain.StatusNeedsManualTags
	}

	// No report while tags are still outstanding; the tagged re-run writes it.
	warning := ""
	if rec.Status != domain.StatusNeedsManualTags {
		saved, serr := s.Vault.SaveReport(vault.ReportInput{
			DisplayNames: []string{rec.DisplayName},
			StoredNames:  []string{rec.StoredAssetName},
			Result:       result,
			When:         s.Clock.Now(),
		})
		if serr != nil {
			warning = fmt.Sprintf("analysis succeeded but the report could not be saved: %v", serr)
			log.Printf("report save for %s failed: %v", rec.DisplayName, serr)
		} else {
			rec.ReportDocumentPaths = append(rec.ReportDocumentPaths, saved.Rel)
			s.mirror(ctx, saved.Path, saved.Rel)
		}
	}

	s.Store.PutRecord(rec)
	s.audit(ctx, domain.Transition{RecordID: string(id), FromStatus: domain.StatusAnalyzing, ToStatus: rec.Status})
	return rec, warning, nil
}

// SubmitManualTags re-runs analysis with user-supplied person tags. An empty
// list is a valid submission: it asserts nobody known appears.
func (s *Service) SubmitManualTags(ctx context.Context, id domain.RecordID, tags []string) (*domain.Record, string, error) {
	release, err := s.tryAcquire(id)
	if err != nil {
		return nil, "", err
	}
	defer release()

	rec, ok := s.Store.Record(id)
	if !ok {
		return nil, "", fmt.Errorf("%w: record %s", domain.ErrNotFound, id)
	}
	if rec.Status != domain.StatusNeedsManualTags {
		return nil, "", fmt.Errorf("%w: record %s is %s, not awaiting manual tags", domain.ErrInvalidArgument, id, rec.Status)
	}
	if tags == nil {
		tags = []string{}
	}
	return s.analyzeLocked(ctx, id, AnalyzeOptions{ManualTags: tags})
}

// ConfirmRecognition finalizes a pending review: the recognized-person list
// is replaced by the confirmed subset and the record becomes analyzed.
func (s *Service) ConfirmRecognition(ctx context.Context, id domain.RecordID, confirmed []string) (*domain.Record, error) {
	release, err := s.tryAcquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	rec, ok := s.Store.Record(id)
	if !ok {
		return nil, fmt.Errorf("%w: record %s", domain.ErrNotFound, id)
	}
	if rec.Status != domain.StatusPendingReview || rec.Analysis == nil {
		return nil, fmt.Errorf("%w: record %s has no recognition pending review", domain.ErrInvalidArgument, id)
	}

	keep := make(map[string]bool, len(confirmed))
	for _, name := range confirmed {
		keep[strings.ToLower(strings.TrimSpace(name))] = true
	}
	kept := rec.Analysis.RecognizedPersons[:0:0]
	for _, p := range rec.Analysis.RecognizedPersons {
		if keep[strings.ToLower(p.Name)] {
			kept = append(kept, p)
		}
	}
	rec.Analysis.RecognizedPersons = kept
	rec.Analysis.Normalize()
	rec.RecognitionVerified = true
	rec.Status = domain.StatusAnalyzed
	s.Store.PutRecord(rec)
	s.audit(ctx, domain.Transition{RecordID: string(id), FromStatus: domain.StatusPendingReview, ToStatus: domain.StatusAnalyzed, Note: "recognition reviewed"})
	return rec, nil
}

// Rerun re-enters analysis from a settled or failed state.
func (s *Service) Rerun(ctx context.Context, id domain.RecordID, instructions string) (*domain.Record, string, error) {
	release, err := s.tryAcquire(id)
	if err != nil {
		return nil, "", err
	}
	defer release()

	rec, ok := s.Store.Record(id)
	if !ok {
		return nil, "", fmt.Errorf("%w: record %s", domain.ErrNotFound, id)
	}
	switch rec.Status {
	case domain.StatusAnalyzed, domain.StatusPendingReview, domain.StatusNeedsManualTags, domain.StatusError, domain.StatusNew:
	default:
		return nil, "", fmt.Errorf("%w: record %s is %s", domain.ErrAnalysisInFlight, id, rec.Status)
	}
	return s.analyzeLocked(ctx, id, AnalyzeOptions{Instructions: instructions})
}

// DeleteRecord removes a record, its stored asset and every derived report.
// Cases the record belonged to lose the member; a case left under the minimum
// is discarded.
func (s *Service) DeleteRecord(ctx context.Context, id domain.RecordID, secret string) error {
	if err := s.Authorize(secret); err != nil {
		return err
	}
	// Hold the record's slot so a concurrent analysis cannot write the record
	// back after it has been destroyed.
	release, err := s.tryAcquire(id)
	if err != nil {
		return err
	}
	defer release()

	rec, ok := s.Store.Record(id)
	if !ok {
		return fmt.Errorf("%w: record %s", domain.ErrNotFound, id)
	}

	if rec.StoredAssetName != "" {
		deleted, err := s.Vault.Delete(rec.StoredAssetName, vault.KindAsset)
		if err != nil && !isNotFound(err) {
			return err
		}
		for _, rel := range deleted {
			s.PruneRemovedPath(rel)
		}
	}

	for _, c := range s.Store.CasesContaining(id) {
		var remaining []domain.RecordID
		for _, mid := range c.MemberIDs {
			if mid != id {
				remaining = append(remaining, mid)
			}
		}
		if len(remaining) < domain.MinCaseMembers {
			s.Store.DeleteCase(c.ID)
			s.audit(ctx, domain.Transition{CaseID: string(c.ID), FromStatus: c.Status, Note: "case discarded, too few members"})
			continue
		}
		c.MemberIDs = remaining
		s.Store.PutCase(c)
	}

	s.Store.DeleteRecord(id)
	s.audit(ctx, domain.Transition{RecordID: string(id), FromStatus: rec.Status, Note: "record deleted"})
	return nil
}

// RenameStored renames a stored file (asset or report), lets the cascade fix
// linked documents, and patches every record and case reference.
func (s *Service) RenameStored(oldName, newName string, kind vault.Kind, secret string) (*vault.RenameResult, error) {
	if err := s.Authorize(secret); err != nil {
		return nil, err
	}
	release, err := s.tryAcquire(s.idsLinkedTo(oldName)...)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := s.Vault.Rename(oldName, newName, kind)
	if err != nil {
		return nil, err
	}
	s.applyPathChanges(res.Changes)
	return res, nil
}

// DeleteStored deletes a stored file by name with the full cascade, then
// prunes every dangling reference.
func (s *Service) DeleteStored(name string, kind vault.Kind, secret string) ([]string, error) {
	if err := s.Authorize(secret); err != nil {
		return nil, err
	}
	release, err := s.tryAcquire(s.idsLinkedTo(name)...)
	if err != nil {
		return nil, err
	}
	defer release()

	deleted, err := s.Vault.Delete(name, kind)
	if err != nil {
		return nil, err
	}
	for _, rel := range deleted {
		s.PruneRemovedPath(rel)
	}
	return deleted, nil
}

// idsLinkedTo lists every record the cascade for a stored name could touch:
// the record owning the asset, records holding a matching report document,
// and all members of a case whose unified report carries the name.
func (s *Service) idsLinkedTo(name string) []domain.RecordID {
	safe := vault.SanitizeName(name)
	var ids []domain.RecordID
	for _, rec := range s.Store.Records() {
		if rec.StoredAssetName == safe {
			ids = append(ids, rec.ID)
			continue
		}
		for _, p := range rec.ReportDocumentPaths {
			if filepath.Base(p) == safe {
				ids = append(ids, rec.ID)
				break
			}
		}
	}
	for _, c := range s.Store.Cases() {
		if c.UnifiedReportName == safe {
			ids = append(ids, c.MemberIDs...)
		}
	}
	return ids
}

// PruneRemovedPath drops references to a file that no longer exists. The
// filesystem watcher calls this for out-of-band deletions.
func (s *Service) PruneRemovedPath(rel string) {
	for _, rec := range s.Store.Records() {
		changed := false
		if rec.StoredAssetPath == rel {
			rec.StoredAssetPath = ""
			rec.StoredAssetName = ""
			changed = true
		}
		paths := rec.ReportDocumentPaths[:0:0]
		for _, p := range rec.ReportDocumentPaths {
			if p == rel {
				changed = true
				continue
			}
			paths = append(paths, p)
		}
		if changed {
			rec.ReportDocumentPaths = paths
			s.Store.PutRecord(rec)
		}
	}
	for _, c := range s.Store.Cases() {
		if c.UnifiedReportPath == rel {
			c.UnifiedReportPath = ""
			c.UnifiedReportName = ""
			s.Store.PutCase(c)
		}
	}
}

func (s *Service) applyPathChanges(changes []vault.Change) {
	for _, ch := range changes {
		newName := filepath.Base(ch.New)
		for _, rec := range s.Store.Records() {
			changed := false
			if rec.StoredAssetPath == ch.Old {
				rec.StoredAssetPath = ch.New
				rec.StoredAssetName = newName
				rec.DisplayName = newName
				changed = true
			}
			for i, p := range rec.ReportDocumentPaths {
				if p == ch.Old {
					rec.ReportDocumentPaths[i] = ch.New
					changed = true
				}
			}
			if changed {
				s.Store.PutRecord(rec)
			}
		}
		for _, c := range s.Store.Cases() {
			if c.UnifiedReportPath == ch.Old {
				c.UnifiedReportPath = ch.New
				c.UnifiedReportName = newName
				s.Store.PutCase(c)
			}
		}
	}
}

func (s *Service) callProvider(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	timeout := s.AnalysisTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	ctx2, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := s.Provider.Analyze(ctx2, req)
	if err != nil {
		if ctx2.Err() != nil {
			return nil, fmt.Errorf("%w: analysis timed out: %v", domain.ErrProviderFailure, err)
		}
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%w: provider returned no result", domain.ErrProviderFailure)
	}
	result.Normalize()
	return result, nil
}

func (s *Service) knownPersons() []domain.PersonProfile {
	persons, err := s.Vault.ListProfiles()
	if err != nil {
		log.Printf("list profiles failed: %v", err)
		return nil
	}
	return persons
}

func assetRef(r *domain.Record) domain.AssetRef {
	return domain.AssetRef{
		DisplayName: r.DisplayName,
		StoredName:  r.StoredAssetName,
		StoredPath:  r.StoredAssetPath,
		Kind:        r.Kind,
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
