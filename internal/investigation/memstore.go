package investigation

import (
	"context"
	"sync"
)

// MemoryStore is a Store held in memory. It backs the CLI and tests.
type MemoryStore struct {
	mu       sync.Mutex
	evidence []EvidenceItem
	state    *CaseState
	messages int
	saves    int
}

func NewMemoryStore(items []EvidenceItem, messages int, state *CaseState) *MemoryStore {
	s := &MemoryStore{
		evidence: append([]EvidenceItem(nil), items...),
		messages: messages,
	}
	if state != nil {
		cp := *state
		s.state = &cp
	}
	return s
}

func (s *MemoryStore) Evidence(context.Context) ([]EvidenceItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EvidenceItem(nil), s.evidence...), nil
}

func (s *MemoryStore) Case(context.Context) (*CaseState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, nil
	}
	cp := *s.state
	return &cp, nil
}

func (s *MemoryStore) MessageCount(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages, nil
}

func (s *MemoryStore) CreateCase(context.Context) (*CaseState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := NewCaseState()
	s.state = &st
	cp := st
	return &cp, nil
}

func (s *MemoryStore) SaveCase(_ context.Context, st CaseState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = &st
	s.saves++
	return nil
}

// AddEvidence appends an item.
func (s *MemoryStore) AddEvidence(e EvidenceItem) {
	s.mu.Lock()
	s.evidence = append(s.evidence, e)
	s.mu.Unlock()
}

// SetMessageCount replaces the message count.
func (s *MemoryStore) SetMessageCount(n int) {
	s.mu.Lock()
	s.messages = n
	s.mu.Unlock()
}

// Saves reports how many times SaveCase was called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
