package evidence

import (
	"sync"

	domain "github.com/bryanwahyu/evidence-locker/internal/domain/evidence"
)

// Store holds every record and case in memory. All reads and writes go
// through deep copies so no caller ever shares a pointer with the store;
// mutations are whole-object replacements.
type Store struct {
	mu        sync.RWMutex
	records   map[domain.RecordID]*domain.Record
	cases     map[domain.CaseID]*domain.Case
	recOrder  []domain.RecordID
	caseOrder []domain.CaseID
}

func NewStore() *Store {
	return &Store{
		records: make(map[domain.RecordID]*domain.Record),
		cases:   make(map[domain.CaseID]*domain.Case),
	}
}

func (s *Store) PutRecord(r *domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ID]; !ok {
		s.recOrder = append(s.recOrder, r.ID)
	}
	s.records[r.ID] = r.Clone()
}

func (s *Store) Record(id domain.RecordID) (*domain.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	return r.Clone(), ok
}

// Records lists records in upload order.
func (s *Store) Records() []*domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Record, 0, len(s.recOrder))
	for _, id := range s.recOrder {
		if r, ok := s.records[id]; ok {
			out = append(out, r.Clone())
		}
	}
	return out
}

func (s *Store) DeleteRecord(id domain.RecordID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	for i, rid := range s.recOrder {
		if rid == id {
			s.recOrder = append(s.recOrder[:i], s.recOrder[i+1:]...)
			break
		}
	}
}

func (s *Store) PutCase(c *domain.Case) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[c.ID]; !ok {
		s.caseOrder = append(s.caseOrder, c.ID)
	}
	s.cases[c.ID] = c.Clone()
}

func (s *Store) Case(id domain.CaseID) (*domain.Case, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	return c.Clone(), ok
}

func (s *Store) Cases() []*domain.Case {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Case, 0, len(s.caseOrder))
	for _, id := range s.caseOrder {
		if c, ok := s.cases[id]; ok {
			out = append(out, c.Clone())
		}
	}
	return out
}

func (s *Store) DeleteCase(id domain.CaseID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cases, id)
	for i, cid := range s.caseOrder {
		if cid == id {
			s.caseOrder = append(s.caseOrder[:i], s.caseOrder[i+1:]...)
			break
		}
	}
}

// CasesContaining returns every case that lists the record as a member.
func (s *Store) CasesContaining(id domain.RecordID) []*domain.Case {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Case
	for _, cid := range s.caseOrder {
		c, ok := s.cases[cid]
		if !ok {
			continue
		}
		for _, mid := range c.MemberIDs {
			if mid == id {
				out = append(out, c.Clone())
				break
			}
		}
	}
	return out
}
