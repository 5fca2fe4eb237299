package investigation

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Store is the persistence collaborator the updater reads from and writes to.
// Implementations are bound to a single user's case.
type Store interface {
	Evidence(ctx context.Context) ([]EvidenceItem, error)
	// Case returns nil with a nil error when the user has no case yet.
	Case(ctx context.Context) (*CaseState, error)
	MessageCount(ctx context.Context) (int, error)
	CreateCase(ctx context.Context) (*CaseState, error)
	SaveCase(ctx context.Context, s CaseState) error
}

const (
	// DefaultCreateAfter is the message count at which a case is opened.
	DefaultCreateAfter = 2

	maxProgress = 100
)

// Updater recomputes a case after a message or an evidence change.
type Updater struct {
	createAfter int
	log         *zap.Logger
}

// NewUpdater returns an updater that opens a case once the user has sent
// createAfter messages. Values below 1 fall back to DefaultCreateAfter.
func NewUpdater(createAfter int, log *zap.Logger) *Updater {
	if createAfter < 1 {
		createAfter = DefaultCreateAfter
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Updater{createAfter: createAfter, log: log.Named("case")}
}

// Progress is the raw progress score before the monotonic fold.
func Progress(evidenceCount, messageCount int) int {
	p := 5 + 5*evidenceCount + 2*messageCount
	if p > maxProgress {
		return maxProgress
	}
	return p
}

// Compute derives the next case state from a snapshot. Phase and progress
// never drop below prev.
func Compute(prev CaseState, items []EvidenceItem, messageCount int) CaseState {
	next := CaseState{
		SuspicionLevel: Classify(items),
		Phase:          AdvancePhase(items, messageCount, prev.Phase),
		Progress:       Progress(len(items), messageCount),
	}
	if prev.Progress > next.Progress {
		next.Progress = prev.Progress
	}
	if next.Progress > maxProgress {
		next.Progress = maxProgress
	}
	return next
}

// Update reads the store snapshot, recomputes the case and saves it. It
// returns nil without touching the store when no case exists and the user
// has not sent enough messages to open one.
func (u *Updater) Update(ctx context.Context, store Store) (*CaseState, error) {
	messageCount, err := store.MessageCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("load message count: %w", err)
	}
	if messageCount < 0 {
		return nil, fmt.Errorf("%w: message count %d", ErrInvalidInput, messageCount)
	}

	current, err := store.Case(ctx)
	if err != nil {
		return nil, fmt.Errorf("load case: %w", err)
	}
	if current == nil {
		if messageCount < u.createAfter {
			return nil, nil
		}
		current, err = store.CreateCase(ctx)
		if err != nil {
			return nil, fmt.Errorf("create case: %w", err)
		}
		u.log.Info("case opened", zap.Int("messages", messageCount))
	}

	items, err := store.Evidence(ctx)
	if err != nil {
		return nil, fmt.Errorf("load evidence: %w", err)
	}
	for _, e := range items {
		if err := e.Validate(); err != nil {
			return nil, err
		}
	}

	next := Compute(*current, items, messageCount)
	if err := store.SaveCase(ctx, next); err != nil {
		return nil, fmt.Errorf("save case: %w", err)
	}

	if next.Phase != current.Phase {
		u.log.Info("phase advanced",
			zap.String("from", current.Phase.Name()),
			zap.String("to", next.Phase.Name()))
	}
	u.log.Debug("case updated",
		zap.Int("phase", int(next.Phase)),
		zap.String("suspicion", string(next.SuspicionLevel)),
		zap.Int("progress", next.Progress),
		zap.Int("evidence", len(items)),
		zap.Int("messages", messageCount))
	return &next, nil
}
