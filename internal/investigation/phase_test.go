package investigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func lows(n int) []EvidenceItem {
	out := make([]EvidenceItem, n)
	for i := range out {
		out[i] = ev(EvidenceTypes[i%len(EvidenceTypes)], SignificanceLow)
	}
	return out
}

func TestAdvancePhase(t *testing.T) {
	critical := ev(TypeFinancial, SignificanceCritical)

	tests := []struct {
		name     string
		items    []EvidenceItem
		messages int
		current  Phase
		want     Phase
	}{
		{"no evidence despite messages", nil, 10, 1, 1},
		{"too few messages", lows(3), 4, 1, 1},
		{"one or two items", lows(2), 5, 1, 2},
		{"floor keeps current", lows(2), 5, 3, 3},
		{"confirmed", []EvidenceItem{critical, critical, ev(TypeDigital, SignificanceLow)}, 5, 1, 4},
		{"high with five items", append(lows(4), critical), 6, 1, 3},
		{"high with fewer than five items", append(lows(2), critical), 6, 1, 2},
		{"three low items", lows(3), 8, 1, 2},
		{"resolved case stays resolved", lows(3), 8, PhaseResolution, PhaseResolution},
		{"zero current floors at one", nil, 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AdvancePhase(tt.items, tt.messages, tt.current))
		})
	}
}

func TestAdvancePhase_NeverDecreases(t *testing.T) {
	critical := ev(TypeFinancial, SignificanceCritical)
	sets := [][]EvidenceItem{
		nil,
		lows(1),
		lows(3),
		lows(6),
		{critical},
		{critical, critical},
		append(lows(4), critical),
	}
	for _, items := range sets {
		for _, mc := range []int{0, 4, 5, 20} {
			for cur := Phase(0); cur <= PhaseResolution; cur++ {
				got := AdvancePhase(items, mc, cur)
				assert.GreaterOrEqual(t, int(got), int(cur))
				assert.GreaterOrEqual(t, int(got), 1)
			}
		}
	}
}

func TestPhase_Name(t *testing.T) {
	assert.Equal(t, "understanding", PhaseUnderstanding.Name())
	assert.Equal(t, "resolution", PhaseResolution.Name())
	assert.Equal(t, "phase-9", Phase(9).Name())
}
