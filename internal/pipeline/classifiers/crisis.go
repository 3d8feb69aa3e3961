package classifiers

import (
	"context"
	"regexp"
	"strings"

	"github.com/Damatnic/astral-safety/internal/pipeline"
)

// Pre-compiled crisis patterns — compiled once at startup, never during a
// request. Phrase structure and first-person present/future framing carry
// far more weight than bare keyword presence: "I'm going to kill myself"
// and "this movie is killing me" share vocabulary but must land many
// severity tiers apart.
var crisisIntentPatterns = []struct {
	re         *regexp.Regexp
	severity   int
	confidence float32
	keyword    string
}{
	// Severity 9: first-person stated intent, present/future framing
	{regexp.MustCompile(`(?i)\b(i'?m|i\s+am|i\s+will|i\s+(want|need|plan)\s+to|i'?m\s+about)\s+(going\s+to|gonna|about\s+to|planning\s+to|ready\s+to)?\s*(kill\s+myself|end\s+my\s+life|end\s+it\s+all|take\s+my\s+(own\s+)?life)\b`), 9, 0.95, "kill myself"},
	{regexp.MustCompile(`(?i)\bi\s+(am\s+going\s+to|will|want\s+to|'?m\s+gonna)\s+commit\s+suicide\b`), 9, 0.95, "suicide"},
	{regexp.MustCompile(`(?i)\bi\s+(just\s+)?want\s+to\s+die\b`), 9, 0.90, "want to die"},
	{regexp.MustCompile(`(?i)\bi\s+(don'?t|do\s+not)\s+want\s+to\s+(be\s+alive|live)\s*(anymore|any\s+longer)?\b`), 9, 0.90, "want to die"},

	// Severity 9: means at hand — a stated method is a direct threat even
	// without an explicit verb of intent
	{regexp.MustCompile(`(?i)\b(the\s+)?(pills?|gun|rope|blade|razor)s?\s+(are|is)\s+ready\b`), 9, 0.95, "means ready"},
	{regexp.MustCompile(`(?i)\bi\s+have\s+(the\s+)?(pills?|a\s+gun|a\s+rope|a\s+blade|a\s+plan)\s*(ready|with\s+me)?\b`), 9, 0.90, "means ready"},
	{regexp.MustCompile(`(?i)\bi\s+(wrote|have\s+written|left)\s+(a|my)\s+(suicide\s+)?note\b`), 9, 0.90, "suicide note"},

	// Severity 8: active ideation without a stated plan
	{regexp.MustCompile(`(?i)\b(thinking|been\s+thinking|i\s+think)\s+about\s+(suicide|killing\s+myself|ending\s+it(\s+all)?)\b`), 8, 0.85, "suicidal ideation"},
	{regexp.MustCompile(`(?i)\b(everyone|they|you('?d)?)\s+(would\s+be|'?d\s+be|are)\s+better\s+off\s+without\s+me\b`), 8, 0.85, "better off without me"},
	{regexp.MustCompile(`(?i)\bi\s+(can'?t|cannot)\s+(keep\s+)?(living|going\s+on)\s+like\s+this\b`), 8, 0.80, "can't go on"},

	// Severity 7: passive death wish or self-harm urges
	{regexp.MustCompile(`(?i)\bi\s+wish\s+i\s+(was|were)\s+dead\b`), 7, 0.85, "wish i was dead"},
	{regexp.MustCompile(`(?i)\bi\s+(want|wanted|need)\s+to\s+(hurt|cut)\s+myself\b`), 7, 0.85, "hurt myself"},
	{regexp.MustCompile(`(?i)\bi('?ve| have)\s+been\s+(hurting|cutting)\s+myself\b`), 7, 0.85, "self-harm"},

	// Severity 6: acute despair, first-person
	{regexp.MustCompile(`(?i)\bi\s+(can'?t|cannot)\s+(go\s+on|do\s+this\s+anymore|take\s+(this|it)\s+anymore)\b`), 6, 0.75, "can't go on"},
	{regexp.MustCompile(`(?i)\b(there('?s| is)\s+)?no\s+reason\s+to\s+(live|keep\s+going)\b`), 6, 0.75, "no reason to live"},
	{regexp.MustCompile(`(?i)\b(nothing|life)\s+(matters|is\s+pointless)\s*(anymore)?\b`), 6, 0.70, "despair"},

	// Severity 5: distress worth watching, not yet ideation
	{regexp.MustCompile(`(?i)\bi\s+feel\s+(so\s+)?(hopeless|trapped|empty|worthless|like\s+a\s+burden)\b`), 5, 0.70, "hopeless"},
	{regexp.MustCompile(`(?i)\bi\s+(hate|can'?t\s+stand)\s+(myself|my\s+life)\b`), 5, 0.65, "self-loathing"},
}

// Incidental-use patterns: idioms, games, and fatigue talk that share crisis
// vocabulary. A match here without a first-person intent match keeps
// severity low so recall on direct threats never costs idiom precision.
var crisisIdiomPatterns = []*regexp.Regexp{
	// "X is killing me" — harm done *to* the speaker by something else
	regexp.MustCompile(`(?i)\b(is|are)\s+killing\s+me\b`),
	regexp.MustCompile(`(?i)\b(kill(ed|ing)?|murder(ed)?)\s+(it|time|the\s+(game|boss|interview|lights|engine))\b`),
	regexp.MustCompile(`(?i)\bdying\s+(to|of)\s+(see|meet|go|know|try|laugh(ter)?|boredom|embarrassment)\b`),
	regexp.MustCompile(`(?i)\b(could|would)\s+murder\s+a\s+(pizza|burger|coffee|curry|sandwich|kebab)\b`),
	regexp.MustCompile(`(?i)\bdressed\s+to\s+kill\b`),
	regexp.MustCompile(`(?i)\b(he|she|they|you)\s+killed\s+(me|us)\s+in\s+(the\s+)?(game|match|round|chess)\b`),
	regexp.MustCompile(`(?i)\bdead\s+(tired|battery|phone|inside\s+joke|serious)\b`),
}

// Immediacy markers upgrade a severity-9 statement to 10.
var crisisImmediacyRe = regexp.MustCompile(`(?i)\b(tonight|right\s+now|now|today|in\s+a\s+few\s+(minutes|hours)|before\s+(morning|tomorrow))\b`)

// CrisisClassifier performs lexical crisis detection against the compiled
// pattern tables and the configured lexicon.
type CrisisClassifier struct {
	lexicon *Lexicon
}

func NewCrisisClassifier(lexicon *Lexicon) *CrisisClassifier {
	if lexicon == nil {
		lexicon = DefaultLexicon()
	}
	return &CrisisClassifier{lexicon: lexicon}
}

// Classify scans text for self-harm risk. It never errors: malformed or
// empty input yields a zero signal.
func (c *CrisisClassifier) Classify(ctx context.Context, text string) pipeline.CrisisSignal {
	lower := strings.ToLower(Sanitize(text))
	if lower == "" {
		return pipeline.CrisisSignal{Urgency: pipeline.UrgencyLow}
	}

	severity := 0
	var confidence float32
	keywords := make(map[string]struct{})

	for _, p := range crisisIntentPatterns {
		if ctx.Err() != nil {
			break
		}
		if p.re.MatchString(lower) {
			if p.severity > severity {
				severity = p.severity
			}
			if p.confidence > confidence {
				confidence = p.confidence
			}
			keywords[p.keyword] = struct{}{}
		}
	}

	// Bare keyword presence without phrase structure is a weak signal.
	lexHits := matchTerms(lower, c.lexicon.CrisisKeywords)
	for _, t := range lexHits {
		keywords[t] = struct{}{}
	}
	if severity == 0 && len(lexHits) > 0 {
		if idiomatic(lower) {
			severity = 1
			confidence = 0.3
		} else {
			severity = 3
			confidence = 0.4
		}
	}

	// Stated intent plus a time marker is the most urgent case we can see.
	if severity == 9 && crisisImmediacyRe.MatchString(lower) {
		severity = 10
	}

	matched := make([]string, 0, len(keywords))
	for k := range keywords {
		matched = append(matched, k)
	}

	return pipeline.CrisisSignal{
		Severity:        severity,
		Urgency:         urgencyForSeverity(severity),
		MatchedKeywords: matched,
		Confidence:      confidence,
		ImmediateAction: severity >= 9,
	}
}

// HasFirstPersonIdeation reports whether text contains first-person
// self-harm ideation (severity >= 5 phrase structure). The moderator uses
// this for the crisis-speech exemption.
func HasFirstPersonIdeation(text string) bool {
	lower := strings.ToLower(Sanitize(text))
	for _, p := range crisisIntentPatterns {
		if p.re.MatchString(lower) {
			return true
		}
	}
	return false
}

func idiomatic(lower string) bool {
	for _, re := range crisisIdiomPatterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

func urgencyForSeverity(severity int) pipeline.Urgency {
	switch {
	case severity >= 9:
		return pipeline.UrgencyCritical
	case severity >= 7:
		return pipeline.UrgencyHigh
	case severity >= 5:
		return pipeline.UrgencyModerate
	default:
		return pipeline.UrgencyLow
	}
}

// matchTerms returns the lexicon terms present in lower as substrings.
func matchTerms(lower string, terms []string) []string {
	var hits []string
	for _, t := range terms {
		if strings.Contains(lower, t) {
			hits = append(hits, t)
		}
	}
	return hits
}
