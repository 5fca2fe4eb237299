package investigation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// CrisisKind names the kind of crisis language detected in a message.
type CrisisKind string

const (
	CrisisSelfHarm         CrisisKind = "selfHarm"
	CrisisDomesticViolence CrisisKind = "domesticViolence"
	CrisisHarmToOthers     CrisisKind = "harmToOthers"
)

// ScanResult carries at most one crisis signal and at most one evidence
// suggestion for a single message.
type ScanResult struct {
	Crisis     *CrisisKind    `json:"crisisSignal,omitempty" yaml:"crisisSignal,omitempty"`
	Suggestion *EvidenceDraft `json:"evidenceSuggestion,omitempty" yaml:"evidenceSuggestion,omitempty"`
}

func (r ScanResult) Empty() bool { return r.Crisis == nil && r.Suggestion == nil }

const (
	// Messages shorter than this many words are not scanned for evidence.
	minEvidenceWords = 8
	// Suggested descriptions are cut to this many characters.
	maxDraftDescription = 200
)

type crisisRule struct {
	kind    CrisisKind
	pattern *regexp.Regexp
}

// Evaluated in order; the first match wins.
var crisisRules = []crisisRule{
	{CrisisSelfHarm, regexp.MustCompile(
		`\b(kill(ing)? myself|end(ing)? (it all|my life|things)|suicid(e|al)|want(ed)? to die|wanna die|` +
			`don'?t want to (live|be alive|be here anymore)|hurt(ing)? myself|self[- ]harm|cut(ting)? myself|` +
			`no reason to live|better off dead|take my (own )?life|overdose)\b`)},
	{CrisisDomesticViolence, regexp.MustCompile(
		`\b(he|she|they) (hit|hits|hurt|hurts|choked|chokes|pushed|shoved|slapped|punched|kicked|beat|beats|strangled) me\b|` +
			`\b(afraid|scared|terrified|fear(ful)?) (of|for) my (life|safety)\b|` +
			`\bthreaten(ed|s|ing)? to (hurt|kill) me\b|\b(abusive|abusing me|domestic violence)\b|` +
			`\bafraid (he|she|they)('ll| will| might) hurt me\b`)},
	{CrisisHarmToOthers, regexp.MustCompile(
		`\b(kill|hurt|murder|strangle) (him|her|them|the affair partner|that (man|woman|guy|girl))\b|` +
			`\bget (my )?revenge\b|\bmake (him|her|them) pay\b|\b(slash|key) (his|her|their) (tires|car)\b|` +
			`\bwant (him|her|them) dead\b|\bruin (his|her|their) life\b`)},
}

type tier struct {
	significance Significance
	pattern      *regexp.Regexp
}

type evidenceRule struct {
	kind  EvidenceType
	tiers []tier // tested in order, first match decides the category's draft
}

// Categories are evaluated in EvidenceTypes order; the order matters for
// tie-breaking between drafts of equal significance.
var evidenceRules = []evidenceRule{
	{TypeDigital, []tier{
		{SignificanceHigh, regexp.MustCompile(
			`\b(changed|new|added|set) (the |a |his |her |their )?(phone |device |laptop )?(password|passcode|pin|lock ?screen)\b|` +
				`\bface[- ]down\b|\bdelet(ed|es|ing) (messages|texts|history|chats|call logs?)\b|` +
				`\bhid(es|ing)? (his|her|their) phone\b|\b(second|secret|burner) phone\b|\bsecret (app|account)\b|` +
				`\bclear(s|ed|ing)? (the |his |her |their )?(browser |search |call )?history\b`)},
		{SignificanceMedium, regexp.MustCompile(
			`\b(always|constantly|never off) (on )?(his|her|their) phone\b|` +
				`\b(phone|texting|snapchat|instagram|whatsapp|telegram|social media|laptop)\b.*\b(more|all the time|late at night|secretive|private|suspicious|guarded)\b`)},
	}},
	{TypeSchedule, []tier{
		{SignificanceHigh, regexp.MustCompile(
			`\b(lied|lying|lies) about (where|being|working|the trip|his|her|their)\b|` +
				`\bcaught (him|her|them) (lying|somewhere)\b|\bwasn'?t (at work|where (he|she|they) said)\b|` +
				`\bunexplained (absences?|time|hours)\b|\bstay(ed|s|ing)? out all night\b|\bdidn'?t come home\b`)},
		{SignificanceMedium, regexp.MustCompile(
			`\b(working late|late nights?|business trips?|overtime|new schedule|extra shifts?|always busy|` +
				`(comes|coming|came) home late|gym (more|a lot|every night))\b`)},
	}},
	{TypeFinancial, []tier{
		{SignificanceCritical, regexp.MustCompile(
			`\b(hotel|motel|airbnb) (charges?|receipts?|bookings?|reservations?|room)\b|` +
				`\b(receipts?|charges?) (for|from) (a |the )?(hotel|motel|jewel(le)?ry|lingerie)\b|\bsecret (bank )?account\b`)},
		{SignificanceHigh, regexp.MustCompile(
			`\b(cash withdrawals?|withdr[ae]w (a lot of )?(cash|money)|unexplained (charges?|purchases?|spending|transactions?)|` +
				`hidden (money|spending|charges?)|separate (credit card|account)|gifts? (i|we) never (got|received))\b`)},
		{SignificanceMedium, regexp.MustCompile(
			`\b(spending (more|a lot)|bank statements?|credit card|venmo|paypal|cash ?app|money (is |went )?missing)\b`)},
	}},
	{TypeCommunication, []tier{
		{SignificanceHigh, regexp.MustCompile(
			`\b(texting|messaging|talking to|calling|sexting) (another|some|a|this) (woman|man|girl|guy|person)\b|` +
				`\b(found|saw|read) (the )?(messages|texts|emails|dms?) (from|to|with|between)\b|` +
				`\b(flirty|sexual|romantic) (messages|texts|emails|dms?)\b|\bsecret (conversations?|calls?|chats?)\b`)},
		{SignificanceMedium, regexp.MustCompile(
			`\bnew (friend|coworker|co-worker|colleague)\b|` +
				`\bmentions? (a|her|his|this|their) (coworker|co-worker|friend|colleague)\b|` +
				`\b(steps?|stepped|goes|went) out(side)? (to|for) (take )?(a )?calls?\b|` +
				`\btakes? calls? (outside|in private|in the other room)\b|\bwhisper(s|ing)? on the phone\b`)},
	}},
	{TypeBehavioral, []tier{
		{SignificanceHigh, regexp.MustCompile(
			`\b(out of nowhere|suddenly)\b.*\b(distant|cold|angry|defensive|working out|new clothes|cologne|perfume)\b|` +
				`\bgaslight(s|ed|ing)?\b|\baccus(es|ed|ing) me of cheating\b|` +
				`\b(no longer|stopped) (sleeping with me|having sex|being intimate|wearing (his|her|their) ring)\b`)},
		{SignificanceMedium, regexp.MustCompile(
			`\b(distant|defensive|secretive|moody|irritable|new clothes|working out|cologne|perfume|less affectionate|` +
				`picks fights|avoids me|changed (his|her|their) appearance)\b`)},
	}},
}

// Scan inspects a user message for crisis language and for an implied
// evidence item. It never fails; no match is an empty result.
func Scan(text string) ScanResult {
	lower := strings.ToLower(text)

	var res ScanResult
	if kind, ok := detectCrisis(lower); ok {
		res.Crisis = &kind
	}
	if draft, ok := suggestEvidence(text, lower); ok {
		res.Suggestion = &draft
	}
	return res
}

func detectCrisis(lower string) (CrisisKind, bool) {
	for _, r := range crisisRules {
		if r.pattern.MatchString(lower) {
			return r.kind, true
		}
	}
	return "", false
}

func suggestEvidence(original, lower string) (EvidenceDraft, bool) {
	if len(strings.Fields(lower)) < minEvidenceWords {
		return EvidenceDraft{}, false
	}

	var best *EvidenceDraft
	for _, rule := range evidenceRules {
		for _, t := range rule.tiers {
			if !t.pattern.MatchString(lower) {
				continue
			}
			if best == nil || t.significance.Rank() > best.Significance.Rank() {
				best = &EvidenceDraft{
					Type:         rule.kind,
					Significance: t.significance,
				}
			}
			break
		}
	}
	if best == nil {
		return EvidenceDraft{}, false
	}
	best.Description = truncate(strings.TrimSpace(original), maxDraftDescription)
	return *best, true
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
