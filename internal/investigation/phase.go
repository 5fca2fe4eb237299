package investigation

// Minimum conversation length before evidence can move a case past phase 1.
const minMessagesForAdvance = 5

// AdvancePhase computes the next phase from the evidence and message count.
// The result is never lower than current and never lower than 1.
func AdvancePhase(items []EvidenceItem, messageCount int, current Phase) Phase {
	floor := func(p Phase) Phase {
		if current > p {
			return current
		}
		return p
	}

	if messageCount < minMessagesForAdvance || len(items) == 0 {
		return floor(PhaseUnderstanding)
	}
	if len(items) < 3 {
		return floor(PhaseGathering)
	}

	suspicion := Classify(items)
	switch {
	case suspicion == SuspicionConfirmed:
		return floor(PhaseConfirmation)
	case suspicion == SuspicionHigh && len(items) >= 5:
		return floor(PhaseAnalysis)
	case len(items) >= 3:
		return floor(PhaseGathering)
	}
	return floor(PhaseUnderstanding)
}
