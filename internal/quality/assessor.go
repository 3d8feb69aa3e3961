// Package quality evaluates volunteer replies before they reach the person
// in crisis: a lexical score for empathy and helpfulness, and a separate
// ethics check for guideline violations. An unapproved reply is held back
// with concrete revision suggestions rather than delivered.
package quality

import (
	"context"
	"regexp"
	"strings"

	"github.com/Damatnic/astral-safety/internal/pipeline"
	"github.com/Damatnic/astral-safety/internal/pipeline/classifiers"
)

// approvalThreshold is the minimum quality score for delivery.
const approvalThreshold = 0.5

// Validating, feelings-first language.
var empathyTerms = []string{
	"that sounds",
	"that must be",
	"i hear you",
	"i'm here",
	"i am here",
	"i'm sorry you're",
	"i am sorry you",
	"thank you for sharing",
	"thank you for telling me",
	"it makes sense",
	"makes sense that you",
	"you're not alone",
	"you are not alone",
	"your feelings are valid",
	"it's okay to feel",
	"it is okay to feel",
	"i can only imagine",
	"that's a lot to carry",
}

// Non-directive, options-opening language.
var helpfulTerms = []string{
	"would you like",
	"would it help",
	"have you been able",
	"can you tell me more",
	"tell me more",
	"what would feel",
	"we can",
	"together",
	"take your time",
	"i'm listening",
	"i am listening",
	"support",
	"whenever you're ready",
}

// Dismissive phrases sink a reply regardless of anything else in it.
var dismissivePatterns = []struct {
	re         *regexp.Regexp
	suggestion string
}{
	{regexp.MustCompile(`(?i)\bjust\s+(get\s+over|move\s+on|forget\s+about|ignore)\b`), "Avoid minimizing language; acknowledge what the person is feeling before anything else."},
	{regexp.MustCompile(`(?i)\bget\s+over\s+it\b`), "Avoid minimizing language; acknowledge what the person is feeling before anything else."},
	{regexp.MustCompile(`(?i)\bcalm\s+down\b`), "Telling someone to calm down dismisses their distress; try reflecting what you heard instead."},
	{regexp.MustCompile(`(?i)\b(it'?s|it\s+is)\s+not\s+(a\s+big\s+deal|that\s+bad|that\s+serious)\b`), "Avoid ranking the person's pain; their experience is the measure, not yours."},
	{regexp.MustCompile(`(?i)\b(stop\s+being|you'?re\s+being)\s+(dramatic|so\s+sensitive|negative)\b`), "Avoid judging the person's reaction; validate it and ask an open question."},
	{regexp.MustCompile(`(?i)\beveryone\s+(has|goes\s+through)\s+(problems|that|hard\s+times)\b`), "Comparisons to others minimize; keep the focus on this person's experience."},
	{regexp.MustCompile(`(?i)\b(snap|pull\s+yourself)\s+(out\s+of\s+it|together)\b`), "Avoid minimizing language; acknowledge what the person is feeling before anything else."},
	{regexp.MustCompile(`(?i)\bjust\s+think\s+positive\b`), "Positivity demands can feel like blame; reflect feelings before offering perspective."},
	{regexp.MustCompile(`(?i)\bit\s+could\s+be\s+worse\b`), "Avoid ranking the person's pain; their experience is the measure, not yours."},
	{regexp.MustCompile(`(?i)\bman\s+up\b`), "Avoid judging the person's reaction; validate it and ask an open question."},
}

// Assessor scores volunteer replies. Stateless and safe for concurrent use.
type Assessor struct{}

func NewAssessor() *Assessor {
	return &Assessor{}
}

// Assess scores one volunteer reply. Approved=false means the reply must
// not be delivered as-is; Suggestions always explains why.
func (a *Assessor) Assess(ctx context.Context, text string) pipeline.QualityReport {
	lower := strings.ToLower(classifiers.Sanitize(text))
	if lower == "" {
		return pipeline.QualityReport{
			Approved:    false,
			Suggestions: []string{"The reply is empty; respond to what the person shared."},
		}
	}

	empathy := scoreTerms(lower, empathyTerms)
	helpfulness := scoreTerms(lower, helpfulTerms)
	if strings.Contains(lower, "?") {
		// An open question is itself a helpful move.
		helpfulness += 0.2
		if helpfulness > 1 {
			helpfulness = 1
		}
	}

	var suggestions []string
	dismissive := false
	for _, p := range dismissivePatterns {
		if ctx.Err() != nil {
			break
		}
		if p.re.MatchString(lower) {
			dismissive = true
			suggestions = appendUnique(suggestions, p.suggestion)
		}
	}

	length := adequacy(lower)
	score := 0.5*empathy + 0.3*helpfulness + 0.2*length
	if dismissive {
		if score > 0.2 {
			score = 0.2
		}
	}

	approved := !dismissive && score >= approvalThreshold
	if !approved && !dismissive {
		if empathy < 0.25 {
			suggestions = append(suggestions, "Open by acknowledging the person's feelings, e.g. \"that sounds really hard\".")
		}
		if helpfulness < 0.25 {
			suggestions = append(suggestions, "Ask an open question or offer to explore options together.")
		}
		if length < 0.5 {
			suggestions = append(suggestions, "A fuller reply shows the person they were heard.")
		}
	}

	return pipeline.QualityReport{
		QualityScore: clamp(score),
		Empathy:      clamp(empathy),
		Helpfulness:  clamp(helpfulness),
		Approved:     approved,
		Suggestions:  suggestions,
	}
}

// scoreTerms converts term hits to a 0–1 score, saturating at three hits.
func scoreTerms(lower string, terms []string) float32 {
	hits := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			hits++
		}
	}
	score := float32(hits) / 3
	if score > 1 {
		return 1
	}
	return score
}

// adequacy rewards replies long enough to carry substance. Ten words is
// scored as fully adequate.
func adequacy(lower string) float32 {
	words := len(strings.Fields(lower))
	if words >= 10 {
		return 1
	}
	return float32(words) / 10
}

func appendUnique(list []string, s string) []string {
	for _, got := range list {
		if got == s {
			return list
		}
	}
	return append(list, s)
}

func clamp(f float32) float32 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
