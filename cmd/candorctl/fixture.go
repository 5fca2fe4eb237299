package main

import (
	"bytes"
	"fmt"
	"os"

	"go-candor/internal/investigation"

	"gopkg.in/yaml.v3"
)

// fixture is a snapshot of one user's case read from YAML.
type fixture struct {
	Messages int                          `yaml:"messages"`
	Phase    investigation.Phase          `yaml:"phase"`
	Case     *investigation.CaseState     `yaml:"case"`
	Evidence []investigation.EvidenceItem `yaml:"evidence"`
}

func loadFixture(path string) (*fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var f fixture
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if f.Messages < 0 {
		return nil, fmt.Errorf("%w: messages %d", investigation.ErrInvalidInput, f.Messages)
	}
	for i, e := range f.Evidence {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("evidence[%d]: %w", i, err)
		}
	}
	if f.Phase == 0 {
		f.Phase = investigation.PhaseUnderstanding
	}
	if f.Case != nil && f.Case.Phase == 0 {
		f.Case.Phase = investigation.PhaseUnderstanding
	}
	return &f, nil
}
