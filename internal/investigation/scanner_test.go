package investigation

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestScan_Crisis(t *testing.T) {
	tests := []struct {
		text string
		want CrisisKind
	}{
		{"I want to kill myself", CrisisSelfHarm},
		{"Honestly everyone would be better off dead without me", CrisisSelfHarm},
		{"He pushed me against the wall last night", CrisisDomesticViolence},
		{"I'm scared for my safety when she drinks", CrisisDomesticViolence},
		{"I am going to make him pay for this", CrisisHarmToOthers},
		{"I want to key his car tonight", CrisisHarmToOthers},
		// self-harm outranks the other families
		{"he hit me and now I want to kill myself", CrisisSelfHarm},
		// domestic violence outranks harm-to-others
		{"she slapped me and I want to make her pay", CrisisDomesticViolence},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			res := Scan(tt.text)
			require.NotNil(t, res.Crisis)
			assert.Equal(t, tt.want, *res.Crisis)
		})
	}
}

func TestScan_SelfHarmShortMessageHasNoSuggestion(t *testing.T) {
	res := Scan("I want to kill myself")
	require.NotNil(t, res.Crisis)
	assert.Equal(t, CrisisSelfHarm, *res.Crisis)
	assert.Nil(t, res.Suggestion)
}

func TestScan_DigitalHigh(t *testing.T) {
	text := "he changed his phone password and it's always face down now, out of nowhere"
	res := Scan(text)
	assert.Nil(t, res.Crisis)
	require.NotNil(t, res.Suggestion)
	assert.Equal(t, TypeDigital, res.Suggestion.Type)
	assert.Equal(t, SignificanceHigh, res.Suggestion.Significance)
	assert.Equal(t, text, res.Suggestion.Description)
}

func TestScan_Suggestions(t *testing.T) {
	tests := []struct {
		name string
		text string
		typ  EvidenceType
		sig  Significance
	}{
		{"financial critical", "I found hotel receipts in his jacket pocket from last weekend when he was away",
			TypeFinancial, SignificanceCritical},
		{"highest significance wins", "she has been working late every night and I found flirty messages from a coworker",
			TypeCommunication, SignificanceHigh},
		{"ties go to the first category", "he deleted texts from his phone and suddenly he is so distant with me",
			TypeDigital, SignificanceHigh},
		{"schedule medium", "lately he keeps coming home late and says it is because of the traffic",
			TypeSchedule, SignificanceMedium},
		{"behavioral medium", "she has become really secretive and moody over the last few weeks",
			TypeBehavioral, SignificanceMedium},
		{"uppercase input", "HE CHANGED HIS PHONE PASSWORD AND IT'S ALWAYS FACE DOWN NOW",
			TypeDigital, SignificanceHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Scan(tt.text)
			require.NotNil(t, res.Suggestion)
			assert.Equal(t, tt.typ, res.Suggestion.Type)
			assert.Equal(t, tt.sig, res.Suggestion.Significance)
			assert.Equal(t, tt.text, res.Suggestion.Description)
		})
	}
}

func TestScan_ShortInputSkipsEvidence(t *testing.T) {
	res := Scan("he changed his phone password")
	assert.Nil(t, res.Suggestion)
	assert.True(t, res.Empty())
}

func TestScan_NoMatch(t *testing.T) {
	res := Scan("we went to the park on sunday and had a lovely picnic together")
	assert.True(t, res.Empty())
}

func TestScan_DescriptionTruncated(t *testing.T) {
	text := "his phone is always face down on the table " + strings.Repeat("and I keep noticing it ", 20)
	res := Scan(text)
	require.NotNil(t, res.Suggestion)
	assert.Equal(t, maxDraftDescription, utf8.RuneCountInString(res.Suggestion.Description))
	assert.True(t, strings.HasPrefix(text, res.Suggestion.Description))

	multibyte := "her phone is face down again, " + strings.Repeat("ça recommence encore ", 20)
	res = Scan(multibyte)
	require.NotNil(t, res.Suggestion)
	assert.Equal(t, maxDraftDescription, utf8.RuneCountInString(res.Suggestion.Description))
	assert.True(t, utf8.ValidString(res.Suggestion.Description))
}

func TestScan_NeverPanics(t *testing.T) {
	inputs := []string{"", "   ", "\x00\xff\xfe", strings.Repeat("a ", 5000), "🙂 🙂 🙂 🙂 🙂 🙂 🙂 🙂"}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Scan(in) })
	}
}

func TestCrisisResources(t *testing.T) {
	for _, k := range []CrisisKind{CrisisSelfHarm, CrisisDomesticViolence, CrisisHarmToOthers} {
		assert.NotEmpty(t, CrisisResources(k), k)
	}
	assert.Empty(t, CrisisResources("other"))
}
