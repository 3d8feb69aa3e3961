package quality

import (
	"context"
	"regexp"
	"strings"

	"github.com/Damatnic/astral-safety/internal/pipeline"
	"github.com/Damatnic/astral-safety/internal/pipeline/classifiers"
)

// Violation tags emitted in EthicsCheck.Violations.
const (
	ViolationDiagnosis = "UNLICENSED_DIAGNOSIS"
	ViolationDirective = "DIRECTIVE_LIFE_DECISION"
	ViolationCoercion  = "COERCIVE_INSTRUCTION"
)

// Guideline violation patterns with per-pattern severity tier.
var ethicsPatterns = []struct {
	re       *regexp.Regexp
	tag      string
	severity pipeline.Urgency
}{
	// Diagnostic claims a peer supporter is not licensed to make
	{regexp.MustCompile(`(?i)\byou\s+(have|definitely\s+have|are\s+suffering\s+from|sound\s+like\s+you\s+have|clearly\s+have)\s+(ptsd|depression|bipolar(\s+disorder)?|schizophrenia|an?\s+anxiety\s+disorder|adhd|ocd|an?\s+(eating|personality)\s+disorder)\b`), ViolationDiagnosis, pipeline.UrgencyHigh},
	{regexp.MustCompile(`(?i)\b(my|the)\s+diagnosis\s+(for\s+you\s+)?is\b`), ViolationDiagnosis, pipeline.UrgencyHigh},
	{regexp.MustCompile(`(?i)\byou\s+(need|should\s+be\s+on)\s+(medication|antidepressants|meds)\b`), ViolationDiagnosis, pipeline.UrgencyHigh},

	// Directive life decisions the person did not ask for
	{regexp.MustCompile(`(?i)\byou\s+(should|need\s+to|have\s+to|must)\s+(leave|divorce|break\s+up\s+with|dump)\s+(him|her|them|your\s+(partner|husband|wife|boyfriend|girlfriend|family))\b`), ViolationDirective, pipeline.UrgencyModerate},
	{regexp.MustCompile(`(?i)\byou\s+(should|need\s+to|have\s+to|must)\s+(quit|leave)\s+your\s+job\b`), ViolationDirective, pipeline.UrgencyModerate},
	{regexp.MustCompile(`(?i)\b(cut|kick)\s+(him|her|them)\s+out\s+of\s+your\s+life\b`), ViolationDirective, pipeline.UrgencyModerate},

	// Coercive instructions that strip the person's agency
	{regexp.MustCompile(`(?i)\bcall\s+the\s+police\s+right\s+now\b`), ViolationCoercion, pipeline.UrgencyHigh},
	{regexp.MustCompile(`(?i)\byou\s+(must|have\s+to)\s+(call|go\s+to|report)\s+.{0,40}\b(right\s+now|immediately|this\s+instant)\b`), ViolationCoercion, pipeline.UrgencyHigh},
	{regexp.MustCompile(`(?i)\b(do\s+it\s+now\s+or|if\s+you\s+don'?t\s+do\s+this)\b`), ViolationCoercion, pipeline.UrgencyHigh},
}

// CheckEthics scans a volunteer reply for guideline violations. A clean
// reply returns FollowsGuidelines=true with severity LOW.
func (a *Assessor) CheckEthics(ctx context.Context, text string) pipeline.EthicsCheck {
	lower := strings.ToLower(classifiers.Sanitize(text))

	var violations []string
	severity := pipeline.UrgencyLow
	for _, p := range ethicsPatterns {
		if ctx.Err() != nil {
			break
		}
		if p.re.MatchString(lower) {
			violations = appendUnique(violations, p.tag)
			if p.severity > severity {
				severity = p.severity
			}
		}
	}

	return pipeline.EthicsCheck{
		FollowsGuidelines: len(violations) == 0,
		Violations:        violations,
		Severity:          severity,
	}
}
