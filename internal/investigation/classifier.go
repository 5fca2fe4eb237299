package investigation

// Classify maps a collection of evidence items to a suspicion level.
// The result depends only on counts, so item order does not matter.
func Classify(items []EvidenceItem) SuspicionLevel {
	if len(items) == 0 {
		return SuspicionUnknown
	}

	criticalCount, highCount := 0, 0
	types := make(map[EvidenceType]struct{}, len(EvidenceTypes))
	for _, e := range items {
		switch e.Significance {
		case SignificanceCritical:
			criticalCount++
		case SignificanceHigh:
			highCount++
		}
		types[e.Type] = struct{}{}
	}
	uniqueTypes := len(types)

	switch {
	case criticalCount >= 2 || (criticalCount >= 1 && highCount >= 3):
		return SuspicionConfirmed
	case criticalCount >= 1 || highCount >= 3 || (highCount >= 2 && uniqueTypes >= 3):
		return SuspicionHigh
	case highCount >= 1 || len(items) >= 3:
		return SuspicionModerate
	case len(items) >= 1:
		return SuspicionLow
	}
	return SuspicionUnknown
}
