package classifiers

import (
	"context"
	"testing"
	"time"

	"github.com/Damatnic/astral-safety/internal/pipeline"
)

func TestCrisisClassifier_DirectThreats(t *testing.T) {
	c := NewCrisisClassifier(nil)
	ctx := context.Background()

	tests := []struct {
		name        string
		text        string
		minSeverity int
		urgency     pipeline.Urgency
		immediate   bool
	}{
		{"stated intent with timing and means", "I'm going to kill myself tonight, I have the pills ready", 10, pipeline.UrgencyCritical, true},
		{"stated intent", "I am going to kill myself", 9, pipeline.UrgencyCritical, true},
		{"want to die", "I just want to die", 9, pipeline.UrgencyCritical, true},
		{"end my life", "I'm going to end my life", 9, pipeline.UrgencyCritical, true},
		{"means at hand", "the pills are ready", 9, pipeline.UrgencyCritical, true},
		{"wrote a note", "I wrote my suicide note last night", 9, pipeline.UrgencyCritical, true},
		{"active ideation", "I've been thinking about suicide a lot lately", 8, pipeline.UrgencyHigh, false},
		{"burden ideation", "everyone would be better off without me", 8, pipeline.UrgencyHigh, false},
		{"passive death wish", "I wish I was dead", 7, pipeline.UrgencyHigh, false},
		{"self-harm urge", "I want to hurt myself", 7, pipeline.UrgencyHigh, false},
		{"acute despair", "I can't go on", 6, pipeline.UrgencyModerate, false},
		{"no reason to live", "there's no reason to live", 6, pipeline.UrgencyModerate, false},
		{"hopelessness", "I feel so hopeless", 5, pipeline.UrgencyModerate, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := c.Classify(ctx, tt.text)
			if sig.Severity < tt.minSeverity {
				t.Errorf("severity %d below minimum %d for text: %s", sig.Severity, tt.minSeverity, tt.text)
			}
			if sig.Urgency < tt.urgency {
				t.Errorf("urgency %s below %s for text: %s", sig.Urgency, tt.urgency, tt.text)
			}
			if sig.ImmediateAction != tt.immediate {
				t.Errorf("immediate=%v, want %v for text: %s", sig.ImmediateAction, tt.immediate, tt.text)
			}
			if len(sig.MatchedKeywords) == 0 {
				t.Errorf("expected matched keywords for text: %s", tt.text)
			}
		})
	}
}

func TestCrisisClassifier_IdiomsStayLow(t *testing.T) {
	c := NewCrisisClassifier(nil)
	ctx := context.Background()

	tests := []struct {
		name string
		text string
	}{
		{"workload idiom", "this deadline is killing me"},
		{"plural idiom", "these stairs are killing me"},
		{"game talk", "I killed the boss on the first try"},
		{"killing time", "just killing time before my shift"},
		{"dying to idiom", "I'm dying to see the new movie"},
		{"food idiom", "I could murder a pizza right now"},
		{"dressed to kill", "she arrived dressed to kill"},
		{"dead tired", "I'm dead tired after work"},
		{"plain message", "the weather has been lovely this week"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := c.Classify(ctx, tt.text)
			if sig.Severity >= 6 {
				t.Errorf("severity %d too high for idiom: %s", sig.Severity, tt.text)
			}
			if sig.ImmediateAction {
				t.Errorf("immediate action flagged for idiom: %s", tt.text)
			}
		})
	}
}

func TestCrisisClassifier_EmptyAndObfuscatedInput(t *testing.T) {
	c := NewCrisisClassifier(nil)
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		sig := c.Classify(ctx, "")
		if sig.Severity != 0 {
			t.Errorf("severity = %d, want 0", sig.Severity)
		}
		if sig.Urgency != pipeline.UrgencyLow {
			t.Errorf("urgency = %s, want LOW", sig.Urgency)
		}
	})

	t.Run("control bytes only", func(t *testing.T) {
		sig := c.Classify(ctx, "\x00\x01\x02")
		if sig.Severity != 0 {
			t.Errorf("severity = %d, want 0", sig.Severity)
		}
	})

	t.Run("control bytes interleaved", func(t *testing.T) {
		sig := c.Classify(ctx, "I want\x00 to die")
		if sig.Severity < 9 {
			t.Errorf("severity = %d, want >= 9 after sanitization", sig.Severity)
		}
	})

	t.Run("fullwidth unicode", func(t *testing.T) {
		// NFKC folds fullwidth letters to ASCII before matching.
		sig := c.Classify(ctx, "ｉ ｗａｎｔ ｔｏ ｄｉｅ")
		if sig.Severity < 9 {
			t.Errorf("severity = %d, want >= 9 after normalization", sig.Severity)
		}
	})
}

func TestCrisisClassifier_WithinBudget(t *testing.T) {
	c := NewCrisisClassifier(nil)
	ctx := context.Background()

	long := ""
	for i := 0; i < 500; i++ {
		long += "I had an ordinary day at work and nothing unusual happened at all. "
	}

	start := time.Now()
	c.Classify(ctx, long)
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("classification took %v, budget is 50ms", elapsed)
	}
}

func TestHasFirstPersonIdeation(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"stated intent", "I'm going to kill myself", true},
		{"want to die", "I just want to die", true},
		{"self-harm", "I want to hurt myself", true},
		{"second person attack", "you should kill yourself", false},
		{"idiom", "this job is killing me", false},
		{"neutral", "how is your evening going", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasFirstPersonIdeation(tt.text); got != tt.want {
				t.Errorf("HasFirstPersonIdeation(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
