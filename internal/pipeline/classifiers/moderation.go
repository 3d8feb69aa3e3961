package classifiers

import (
	"context"
	"regexp"
	"strings"

	"github.com/Damatnic/astral-safety/internal/pipeline"
)

// Pre-compiled toxicity patterns with per-pattern risk and reason.
var moderationPatterns = []struct {
	re     *regexp.Regexp
	risk   float32
	reason string
}{
	// Incitement to self-harm — the worst thing one user can say to another
	{regexp.MustCompile(`(?i)\b(should|need\s+to|ought\s+to|go)\s+(kill|hang|hurt)\s+yourself\b`), 0.97, "incitement to self-harm"},
	{regexp.MustCompile(`(?i)\byou\s+deserve\s+to\s+(die|suffer|be\s+dead)\b`), 0.95, "incitement to self-harm"},
	{regexp.MustCompile(`(?i)\b(the\s+world|everyone)\s+(would\s+be|is)\s+better\s+(off\s+)?without\s+you\b`), 0.95, "incitement to self-harm"},

	// Threats of violence
	{regexp.MustCompile(`(?i)\bi('?ll|\s+will|'?m\s+going\s+to)\s+(kill|hurt|beat|strangle|find)\s+you\b`), 0.95, "threat of violence"},
	{regexp.MustCompile(`(?i)\bi\s+know\s+where\s+you\s+live\b`), 0.90, "threat of violence"},

	// Degrading harassment
	{regexp.MustCompile(`(?i)\byou('?re|\s+are)\s+(a\s+)?(worthless|pathetic|useless|disgusting)\b`), 0.85, "degrading harassment"},
	{regexp.MustCompile(`(?i)\b(piece\s+of\s+(garbage|trash|shit)|waste\s+of\s+(space|air|oxygen))\b`), 0.85, "degrading harassment"},
	{regexp.MustCompile(`(?i)\b(nobody|no\s+one)\s+(likes|loves|wants|cares\s+about)\s+you\b`), 0.70, "degrading harassment"},

	// Hostile profanity directed at a person
	{regexp.MustCompile(`(?i)\b(fuck|screw)\s+you\b`), 0.50, "hostile profanity"},
	{regexp.MustCompile(`(?i)\bshut\s+(the\s+fuck\s+)?up\b`), 0.45, "hostile profanity"},
}

// ContentModerator scans for abuse and toxicity. Risk at or above
// blockThreshold yields BLOCK, anything triggered below it yields FLAG.
type ContentModerator struct {
	lexicon        *Lexicon
	blockThreshold float32
}

func NewContentModerator(lexicon *Lexicon, blockThreshold float32) *ContentModerator {
	if lexicon == nil {
		lexicon = DefaultLexicon()
	}
	if blockThreshold <= 0 {
		blockThreshold = 0.8
	}
	return &ContentModerator{lexicon: lexicon, blockThreshold: blockThreshold}
}

// Moderate classifies text for the given sender role.
//
// Exemption rule: a crisis-role message carrying first-person self-harm
// ideation short-circuits to ALLOW before any toxicity scoring. A person
// disclosing suicidal ideation is never blocked from being heard, even
// though the same vocabulary scores as toxic in other mouths.
func (m *ContentModerator) Moderate(ctx context.Context, text string, role pipeline.MessageRole) pipeline.ModerationVerdict {
	sanitized := Sanitize(text)
	if sanitized == "" {
		return pipeline.ModerationVerdict{Safe: true, Action: pipeline.ModAllow}
	}

	if role == pipeline.RoleCrisis && HasFirstPersonIdeation(sanitized) {
		reason := "crisis disclosure protected"
		if m.seeksHelp(sanitized) {
			reason = "crisis disclosure with help-seeking protected"
		}
		return pipeline.ModerationVerdict{
			Safe:      true,
			Action:    pipeline.ModAllow,
			RiskScore: 0,
			Reason:    reason,
		}
	}

	var risk float32
	var reason string
	for _, p := range moderationPatterns {
		if ctx.Err() != nil {
			break
		}
		if p.re.MatchString(sanitized) && p.risk > risk {
			risk = p.risk
			reason = p.reason
		}
	}

	switch {
	case risk >= m.blockThreshold:
		return pipeline.ModerationVerdict{Safe: false, Action: pipeline.ModBlock, RiskScore: risk, Reason: reason}
	case risk > 0:
		return pipeline.ModerationVerdict{Safe: false, Action: pipeline.ModFlag, RiskScore: risk, Reason: reason}
	default:
		return pipeline.ModerationVerdict{Safe: true, Action: pipeline.ModAllow}
	}
}

func (m *ContentModerator) seeksHelp(text string) bool {
	lower := strings.ToLower(text)
	return len(matchTerms(lower, m.lexicon.HelpSeeking)) > 0
}
