package quality

import (
	"context"
	"testing"
)

func TestAssessor_ApprovesSupportiveReplies(t *testing.T) {
	a := NewAssessor()
	ctx := context.Background()

	tests := []struct {
		name string
		text string
	}{
		{"validating and open", "That sounds incredibly hard. I hear you, and I'm here with you. Would you like to tell me more about what happened today?"},
		{"feelings first", "Thank you for sharing that with me. It makes sense that you feel this way, and your feelings are valid. Take your time, I'm listening."},
		{"options together", "I'm sorry you're going through this. Would it help to talk through what support might look like? We can explore it together."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := a.Assess(ctx, tt.text)
			if !r.Approved {
				t.Errorf("approved = false for supportive reply, suggestions: %v", r.Suggestions)
			}
			if r.QualityScore < 0.5 {
				t.Errorf("quality score %.2f below threshold", r.QualityScore)
			}
			if r.Empathy <= 0 {
				t.Error("empathy score is zero for validating reply")
			}
		})
	}
}

func TestAssessor_RejectsDismissiveReplies(t *testing.T) {
	a := NewAssessor()
	ctx := context.Background()

	tests := []struct {
		name string
		text string
	}{
		{"get over it", "Just get over it, everyone has problems"},
		{"calm down", "You need to calm down first"},
		{"could be worse", "Honestly it could be worse, think about that"},
		{"not a big deal", "It's not that bad, you're being dramatic"},
		{"man up", "Man up and deal with it"},
		{"think positive", "Just think positive and it will pass"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := a.Assess(ctx, tt.text)
			if r.Approved {
				t.Errorf("approved = true for dismissive reply: %s", tt.text)
			}
			if r.QualityScore > 0.2 {
				t.Errorf("quality score %.2f, want <= 0.2 for dismissive reply", r.QualityScore)
			}
			if len(r.Suggestions) == 0 {
				t.Error("no revision suggestions for dismissive reply")
			}
		})
	}
}

func TestAssessor_RejectsThinReplies(t *testing.T) {
	a := NewAssessor()
	ctx := context.Background()

	r := a.Assess(ctx, "ok")
	if r.Approved {
		t.Error("approved = true for a two-letter reply")
	}
	if len(r.Suggestions) == 0 {
		t.Error("no suggestions for a thin reply")
	}

	empty := a.Assess(ctx, "")
	if empty.Approved {
		t.Error("approved = true for empty reply")
	}
}

func TestAssessor_OpenQuestionBoostsHelpfulness(t *testing.T) {
	a := NewAssessor()
	ctx := context.Background()

	without := a.Assess(ctx, "I hear you and that sounds like a lot to deal with right now today.")
	with := a.Assess(ctx, "I hear you and that sounds like a lot. What has today been like for you?")
	if with.Helpfulness <= without.Helpfulness {
		t.Errorf("helpfulness %.2f with question not above %.2f without", with.Helpfulness, without.Helpfulness)
	}
}

func TestCheckEthics_Violations(t *testing.T) {
	a := NewAssessor()
	ctx := context.Background()

	tests := []struct {
		name string
		text string
		tag  string
	}{
		{"diagnosis", "You have PTSD, I can tell from what you wrote", ViolationDiagnosis},
		{"medication push", "you need medication for this", ViolationDiagnosis},
		{"directive breakup", "You should leave your partner immediately", ViolationDirective},
		{"directive job", "you have to quit your job", ViolationDirective},
		{"coercion", "Call the police right now", ViolationCoercion},
		{"ultimatum", "if you don't do this, things will get worse", ViolationCoercion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := a.CheckEthics(ctx, tt.text)
			if e.FollowsGuidelines {
				t.Fatalf("guidelines pass for: %s", tt.text)
			}
			if !containsTag(e.Violations, tt.tag) {
				t.Errorf("violations %v missing %s", e.Violations, tt.tag)
			}
		})
	}
}

func TestCheckEthics_CleanReplies(t *testing.T) {
	a := NewAssessor()
	ctx := context.Background()

	clean := []string{
		"That sounds really painful. Would you like to talk about it?",
		"Some people find it helps to talk to a doctor about how they're feeling. Is that something you'd consider?",
		"I'm here whenever you're ready.",
	}

	for _, text := range clean {
		e := a.CheckEthics(ctx, text)
		if !e.FollowsGuidelines {
			t.Errorf("violations %v for clean reply: %q", e.Violations, text)
		}
	}
}

func containsTag(tags []string, want string) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}
