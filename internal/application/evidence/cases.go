package evidence

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/evidence-locker/internal/domain/evidence"
	"github.com/bryanwahyu/evidence-locker/internal/infra/storage/vault"
)

// CreateCase groups 2..7 records into one unified analysis. Members beyond
// the maximum are dropped; fewer than the minimum is an error. On success the
// case carries the full result and the unified report; every member gets a
// stub result pointing at the case and becomes analyzed.
func (s *Service) CreateCase(ctx context.Context, memberIDs []domain.RecordID, location, instructions string) (*domain.Case, string, error) {
	if len(memberIDs) < domain.MinCaseMembers {
		return nil, "", fmt.Errorf("%w: a case needs at least %d members", domain.ErrInvalidArgument, domain.MinCaseMembers)
	}
	if len(memberIDs) > domain.MaxCaseMembers {
		log.Printf("case limited to %d members, %d requested", domain.MaxCaseMembers, len(memberIDs))
		memberIDs = memberIDs[:domain.MaxCaseMembers]
	}

	release, err := s.tryAcquire(memberIDs...)
	if err != nil {
		return nil, "", err
	}
	defer release()

	members, err := s.resolveMembers(memberIDs)
	if err != nil {
		return nil, "", err
	}

	var names []string
	for _, m := range members {
		names = append(names, m.DisplayName)
	}
	c := &domain.Case{
		ID:          domain.CaseID(uuid.NewString()),
		DisplayName: strings.Join(names, " + "),
		MemberIDs:   append([]domain.RecordID(nil), memberIDs...),
		Status:      domain.StatusAnalyzing,
		CreatedAt:   s.Clock.Now(),
	}
	s.Store.PutCase(c)
	s.setMembersStatus(ctx, members, c, domain.StatusAnalyzing, location, instructions)

	warning, err := s.runCaseAnalysis(ctx, c, members, instructions)
	return c, warning, err
}

// UpdateCase replaces the unified result with an edited one, re-persists the
// report, and refreshes every member stub.
func (s *Service) UpdateCase(ctx context.Context, id domain.CaseID, edited *domain.AnalysisResult) (*domain.Case, string, error) {
	if edited == nil {
		return nil, "", fmt.Errorf("%w: missing result", domain.ErrInvalidArgument)
	}
	c, ok := s.Store.Case(id)
	if !ok {
		return nil, "", fmt.Errorf("%w: case %s", domain.ErrNotFound, id)
	}
	release, err := s.tryAcquire(c.MemberIDs...)
	if err != nil {
		return nil, "", err
	}
	defer release()

	members, err := s.resolveMembers(c.MemberIDs)
	if err != nil {
		return nil, "", err
	}

	edited.Normalize()
	c.Analysis = edited
	s.dropUnifiedReport(c)

	warning := s.persistUnifiedReport(ctx, c, members)
	c.Status = domain.StatusAnalyzed
	s.Store.PutCase(c)
	s.refreshStubs(ctx, c, members)
	return c, warning, nil
}

// RerunCase replaces the member set wholesale and re-analyzes. Members the
// new set no longer contains revert to new with their result cleared.
func (s *Service) RerunCase(ctx context.Context, id domain.CaseID, newMemberIDs []domain.RecordID, instructions string) (*domain.Case, string, error) {
	c, ok := s.Store.Case(id)
	if !ok {
		return nil, "", fmt.Errorf("%w: case %s", domain.ErrNotFound, id)
	}
	if len(newMemberIDs) == 0 {
		newMemberIDs = c.MemberIDs
	}
	if len(newMemberIDs) < domain.MinCaseMembers {
		return nil, "", fmt.Errorf("%w: a case needs at least %d members", domain.ErrInvalidArgument, domain.MinCaseMembers)
	}
	if len(newMemberIDs) > domain.MaxCaseMembers {
		newMemberIDs = newMemberIDs[:domain.MaxCaseMembers]
	}

	// Removed members get reverted, so the old set needs locking too.
	inNew := make(map[domain.RecordID]bool, len(newMemberIDs))
	for _, mid := range newMemberIDs {
		inNew[mid] = true
	}
	affected := append([]domain.RecordID(nil), newMemberIDs...)
	for _, mid := range c.MemberIDs {
		if !inNew[mid] {
			affected = append(affected, mid)
		}
	}
	release, err := s.tryAcquire(affected...)
	if err != nil {
		return nil, "", err
	}
	defer release()

	members, err := s.resolveMembers(newMemberIDs)
	if err != nil {
		return nil, "", err
	}
	for _, mid := range c.MemberIDs {
		if !inNew[mid] {
			s.revertMember(ctx, mid, "removed from case "+c.DisplayName)
		}
	}

	var names []string
	for _, m := range members {
		names = append(names, m.DisplayName)
	}
	c.MemberIDs = append([]domain.RecordID(nil), newMemberIDs...)
	c.DisplayName = strings.Join(names, " + ")
	c.Status = domain.StatusAnalyzing
	s.dropUnifiedReport(c)
	s.Store.PutCase(c)
	s.setMembersStatus(ctx, members, c, domain.StatusAnalyzing, "", instructions)

	warning, err := s.runCaseAnalysis(ctx, c, members, instructions)
	return c, warning, err
}

// DeleteCase removes the case and its unified report. Members revert to new.
func (s *Service) DeleteCase(ctx context.Context, id domain.CaseID, secret string) error {
	if err := s.Authorize(secret); err != nil {
		return err
	}
	c, ok := s.Store.Case(id)
	if !ok {
		return fmt.Errorf("%w: case %s", domain.ErrNotFound, id)
	}
	release, err := s.tryAcquire(c.MemberIDs...)
	if err != nil {
		return err
	}
	defer release()

	s.dropUnifiedReport(c)
	for _, mid := range c.MemberIDs {
		s.revertMember(ctx, mid, "case "+c.DisplayName+" deleted")
	}
	s.Store.DeleteCase(id)
	s.audit(ctx, domain.Transition{CaseID: string(id), FromStatus: c.Status, Note: "case deleted"})
	return nil
}

func (s *Service) resolveMembers(ids []domain.RecordID) ([]*domain.Record, error) {
	seen := make(map[domain.RecordID]bool, len(ids))
	out := make([]*domain.Record, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate member %s", domain.ErrInvalidArgument, id)
		}
		seen[id] = true
		r, ok := s.Store.Record(id)
		if !ok {
			return nil, fmt.Errorf("%w: member %s", domain.ErrNotFound, id)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) setMembersStatus(ctx context.Context, members []*domain.Record, c *domain.Case, status domain.Status, location, instructions string) {
	for _, m := range members {
		from := m.Status
		m.Status = status
		if location != "" {
			m.Location = location
		}
		if instructions != "" {
			m.Instructions = instructions
		}
		s.Store.PutRecord(m)
		s.audit(ctx, domain.Transition{RecordID: string(m.ID), CaseID: string(c.ID), FromStatus: from, ToStatus: status})
	}
}

// runCaseAnalysis drives the provider call and settles the case plus all its
// members. Returned warning follows the report-save rule.
func (s *Service) runCaseAnalysis(ctx context.Context, c *domain.Case, members []*domain.Record, instructions string) (string, error) {
	assets := make([]domain.AssetRef, 0, len(members))
	for _, m := range members {
		assets = append(assets, assetRef(m))
	}

	result, err := s.callProvider(ctx, domain.AnalysisRequest{
		Assets:           assets,
		KnownPersons:     s.knownPersons(),
		PriorCaseSummary: priorSummary(c),
		TestimonyContext: s.Vault.TestimonyContext(testimonyContextMax),
		Instructions:     instructions,
	})
	if err != nil {
		c.Status = domain.StatusError
		s.Store.PutCase(c)
		s.audit(ctx, domain.Transition{CaseID: string(c.ID), FromStatus: domain.StatusAnalyzing, ToStatus: domain.StatusError, Note: err.Error()})
		s.setMembersStatus(ctx, members, c, domain.StatusError, "", "")
		return "", err
	}

	c.Analysis = result
	warning := s.persistUnifiedReport(ctx, c, members)
	c.Status = domain.StatusAnalyzed
	s.Store.PutCase(c)
	s.audit(ctx, domain.Transition{CaseID: string(c.ID), FromStatus: domain.StatusAnalyzing, ToStatus: domain.StatusAnalyzed})
	s.refreshStubs(ctx, c, members)
	return warning, nil
}

func (s *Service) persistUnifiedReport(ctx context.Context, c *domain.Case, members []*domain.Record) string {
	var displayNames, storedNames []string
	for _, m := range members {
		displayNames = append(displayNames, m.DisplayName)
		storedNames = append(storedNames, m.StoredAssetName)
	}
	saved, err := s.Vault.SaveReport(vault.ReportInput{
		DisplayNames: displayNames,
		StoredNames:  storedNames,
		CombinedName: c.DisplayName,
		Result:       c.Analysis,
		When:         s.Clock.Now(),
	})
	if err != nil {
		log.Printf("unified report save for %s failed: %v", c.DisplayName, err)
		return fmt.Sprintf("analysis succeeded but the unified report could not be saved: %v", err)
	}
	c.UnifiedReportName = saved.Name
	c.UnifiedReportPath = saved.Rel
	s.mirror(ctx, saved.Path, saved.Rel)
	return ""
}

// refreshStubs gives every member the placeholder result that points readers
// at the unified report, and forces them analyzed.
func (s *Service) refreshStubs(ctx context.Context, c *domain.Case, members []*domain.Record) {
	for _, m := range members {
		from := m.Status
		m.Analysis = domain.StubResult(c.DisplayName, c.Analysis)
		m.Status = domain.StatusAnalyzed
		s.Store.PutRecord(m)
		if from != domain.StatusAnalyzed {
			s.audit(ctx, domain.Transition{RecordID: string(m.ID), CaseID: string(c.ID), FromStatus: from, ToStatus: domain.StatusAnalyzed, Note: "stubbed to case result"})
		}
	}
}

// revertMember puts a record back to new with its result cleared.
func (s *Service) revertMember(ctx context.Context, id domain.RecordID, note string) {
	m, ok := s.Store.Record(id)
	if !ok {
		return
	}
	from := m.Status
	m.Status = domain.StatusNew
	m.Analysis = nil
	m.RecognitionVerified = false
	s.Store.PutRecord(m)
	s.audit(ctx, domain.Transition{RecordID: string(id), FromStatus: from, ToStatus: domain.StatusNew, Note: note})
}

// dropUnifiedReport removes the case's report file if one exists. Best
// effort: a missing file is fine.
func (s *Service) dropUnifiedReport(c *domain.Case) {
	if c.UnifiedReportName == "" {
		return
	}
	if _, err := s.Vault.Delete(c.UnifiedReportName, vault.KindReport); err != nil && !isNotFound(err) {
		log.Printf("drop unified report %s failed: %v", c.UnifiedReportName, err)
	}
	c.UnifiedReportName = ""
	c.UnifiedReportPath = ""
}

func priorSummary(c *domain.Case) string {
	if c.Analysis == nil {
		return ""
	}
	return c.Analysis.Summary
}

// CasesList returns every case in creation order.
func (s *Service) CasesList() []*domain.Case { return s.Store.Cases() }

// CaseByID returns one case.
func (s *Service) CaseByID(id domain.CaseID) (*domain.Case, error) {
	c, ok := s.Store.Case(id)
	if !ok {
		return nil, fmt.Errorf("%w: case %s", domain.ErrNotFound, id)
	}
	return c, nil
}
