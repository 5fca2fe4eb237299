package investigation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidInput marks a precondition violation: the caller passed a value
// the core does not define behavior for (negative counts, unknown enums).
var ErrInvalidInput = errors.New("investigation: invalid input")

// EvidenceType is the category of an observation.
type EvidenceType string

const (
	TypeDigital       EvidenceType = "digital"
	TypeSchedule      EvidenceType = "schedule"
	TypeFinancial     EvidenceType = "financial"
	TypeCommunication EvidenceType = "communication"
	TypeBehavioral    EvidenceType = "behavioral"
)

// EvidenceTypes lists the categories in scanner evaluation order.
var EvidenceTypes = []EvidenceType{
	TypeDigital,
	TypeSchedule,
	TypeFinancial,
	TypeCommunication,
	TypeBehavioral,
}

func (t EvidenceType) Valid() bool {
	switch t {
	case TypeDigital, TypeSchedule, TypeFinancial, TypeCommunication, TypeBehavioral:
		return true
	}
	return false
}

// Significance is ordinal: low < medium < high < critical.
type Significance string

const (
	SignificanceLow      Significance = "low"
	SignificanceMedium   Significance = "medium"
	SignificanceHigh     Significance = "high"
	SignificanceCritical Significance = "critical"
)

// Rank returns the ordinal position, or -1 for an unknown value.
func (s Significance) Rank() int {
	switch s {
	case SignificanceLow:
		return 0
	case SignificanceMedium:
		return 1
	case SignificanceHigh:
		return 2
	case SignificanceCritical:
		return 3
	}
	return -1
}

func (s Significance) Valid() bool { return s.Rank() >= 0 }

// SuspicionLevel is ordinal: unknown < low < moderate < high < confirmed.
type SuspicionLevel string

const (
	SuspicionUnknown   SuspicionLevel = "unknown"
	SuspicionLow       SuspicionLevel = "low"
	SuspicionModerate  SuspicionLevel = "moderate"
	SuspicionHigh      SuspicionLevel = "high"
	SuspicionConfirmed SuspicionLevel = "confirmed"
)

func (l SuspicionLevel) Rank() int {
	switch l {
	case SuspicionUnknown:
		return 0
	case SuspicionLow:
		return 1
	case SuspicionModerate:
		return 2
	case SuspicionHigh:
		return 3
	case SuspicionConfirmed:
		return 4
	}
	return -1
}

// Phase is an ordinal label 1..5 for how far the guided flow has progressed.
type Phase int

const (
	PhaseUnderstanding Phase = iota + 1
	PhaseGathering
	PhaseAnalysis
	PhaseConfirmation
	PhaseResolution
)

var phaseNames = map[Phase]string{
	PhaseUnderstanding: "understanding",
	PhaseGathering:     "gathering",
	PhaseAnalysis:      "analysis",
	PhaseConfirmation:  "confirmation",
	PhaseResolution:    "resolution",
}

func (p Phase) Name() string {
	if n, ok := phaseNames[p]; ok {
		return n
	}
	return fmt.Sprintf("phase-%d", int(p))
}

// Module tags an evidence item with one of the guided modules A through E.
type Module string

const (
	ModuleNone Module = ""
	ModuleA    Module = "A"
	ModuleB    Module = "B"
	ModuleC    Module = "C"
	ModuleD    Module = "D"
	ModuleE    Module = "E"
)

func (m Module) Valid() bool {
	switch m {
	case ModuleNone, ModuleA, ModuleB, ModuleC, ModuleD, ModuleE:
		return true
	}
	return false
}

// DefaultModule is the module a category belongs to when the user did not pick one.
func DefaultModule(t EvidenceType) Module {
	switch t {
	case TypeDigital:
		return ModuleA
	case TypeSchedule:
		return ModuleB
	case TypeFinancial:
		return ModuleC
	case TypeCommunication:
		return ModuleD
	case TypeBehavioral:
		return ModuleE
	}
	return ModuleNone
}

// EvidenceItem is a single logged observation. Items are immutable once
// created apart from an explicit edit or delete.
type EvidenceItem struct {
	ID           string       `json:"id" yaml:"id"`
	Type         EvidenceType `json:"type" yaml:"type"`
	Significance Significance `json:"significance" yaml:"significance"`
	Description  string       `json:"description" yaml:"description"`
	DateObserved time.Time    `json:"dateObserved" yaml:"dateObserved"`
	Module       Module       `json:"module,omitempty" yaml:"module,omitempty"`
	CreatedAt    time.Time    `json:"createdAt" yaml:"createdAt"`
}

// Validate reports whether the item can be fed to the classifier.
func (e EvidenceItem) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("%w: evidence type %q", ErrInvalidInput, e.Type)
	}
	if !e.Significance.Valid() {
		return fmt.Errorf("%w: significance %q", ErrInvalidInput, e.Significance)
	}
	if !e.Module.Valid() {
		return fmt.Errorf("%w: module %q", ErrInvalidInput, e.Module)
	}
	return nil
}

// CaseState is the aggregate investigation record for one user.
type CaseState struct {
	Phase          Phase          `json:"phase" yaml:"phase"`
	SuspicionLevel SuspicionLevel `json:"suspicionLevel" yaml:"suspicionLevel"`
	Progress       int            `json:"progress" yaml:"progress"`
}

// NewCaseState returns the state a freshly created case starts with.
func NewCaseState() CaseState {
	return CaseState{
		Phase:          PhaseUnderstanding,
		SuspicionLevel: SuspicionUnknown,
		Progress:       0,
	}
}

// Resolve marks the case as resolved. It is the only way to reach phase 5.
func Resolve(s CaseState) CaseState {
	s.Phase = PhaseResolution
	return s
}

// EvidenceDraft is a suggestion the scanner produced from free text. It
// becomes an EvidenceItem only after the user accepts it.
type EvidenceDraft struct {
	Type         EvidenceType `json:"type" yaml:"type"`
	Significance Significance `json:"significance" yaml:"significance"`
	Description  string       `json:"description" yaml:"description"`
}

// ToItem converts an accepted draft into a new evidence item.
func (d EvidenceDraft) ToItem(module Module, observed, now time.Time) EvidenceItem {
	if module == ModuleNone {
		module = DefaultModule(d.Type)
	}
	if observed.IsZero() {
		observed = now
	}
	return EvidenceItem{
		ID:           uuid.NewString(),
		Type:         d.Type,
		Significance: d.Significance,
		Description:  d.Description,
		DateObserved: observed,
		Module:       module,
		CreatedAt:    now,
	}
}
