package pipeline

import "testing"

func TestAggregate_ActionLadder(t *testing.T) {
	tests := []struct {
		name string
		in   aggregationInput
		top  Action
		safe bool
	}{
		{
			"benign message",
			aggregationInput{Role: RoleGeneral, Moderation: &ModerationVerdict{Safe: true, Action: ModAllow}},
			ActionAllow, true,
		},
		{
			"crisis role with no signal gets support",
			aggregationInput{Role: RoleCrisis, Crisis: &CrisisSignal{}, Moderation: &ModerationVerdict{Safe: true, Action: ModAllow}},
			ActionStandardSupport, true,
		},
		{
			"immediate crisis outranks everything",
			aggregationInput{
				Role:       RoleCrisis,
				Crisis:     &CrisisSignal{Severity: 10, Urgency: UrgencyCritical, ImmediateAction: true},
				Moderation: &ModerationVerdict{Action: ModAllow, Safe: true},
			},
			ActionEmergencyServices, false,
		},
		{
			"severity eight escalates",
			aggregationInput{Role: RoleCrisis, Crisis: &CrisisSignal{Severity: 8, Urgency: UrgencyHigh}},
			ActionEmergencyEscalation, false,
		},
		{
			"severity five intervenes",
			aggregationInput{Role: RoleCrisis, Crisis: &CrisisSignal{Severity: 5, Urgency: UrgencyModerate}},
			ActionPriorityIntervention, false,
		},
		{
			"moderation block",
			aggregationInput{
				Role:       RoleGeneral,
				Crisis:     &CrisisSignal{},
				Moderation: &ModerationVerdict{Safe: false, Action: ModBlock, RiskScore: 0.97},
			},
			ActionBlockMessage, false,
		},
		{
			"escalating behavior intervenes",
			aggregationInput{
				Role:     RoleCrisis,
				Crisis:   &CrisisSignal{Severity: 3},
				Behavior: &BehaviorFinding{Patterns: []string{"ESCALATING_SEVERITY"}, RiskScore: 0.4},
			},
			ActionPriorityIntervention, false,
		},
		{
			"unapproved quality review",
			aggregationInput{Role: RoleVolunteer, Quality: &QualityReport{Approved: false}},
			ActionQualityReview, false,
		},
		{
			"ethics violation review",
			aggregationInput{
				Role:    RoleVolunteer,
				Quality: &QualityReport{Approved: true, QualityScore: 0.9},
				Ethics:  &EthicsCheck{FollowsGuidelines: false, Severity: UrgencyHigh},
			},
			ActionQualityReview, false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, safe, actions := aggregate(tt.in)
			if len(actions) == 0 {
				t.Fatal("no actions")
			}
			if actions[0] != tt.top {
				t.Errorf("top action = %s, want %s", actions[0], tt.top)
			}
			if safe != tt.safe {
				t.Errorf("safe = %v, want %v", safe, tt.safe)
			}
		})
	}
}

func TestAggregate_CrisisSpeechNeverBlocked(t *testing.T) {
	// A high-severity disclosure that moderation would block is escalated
	// instead; the block action must not appear.
	in := aggregationInput{
		Role:       RoleCrisis,
		Crisis:     &CrisisSignal{Severity: 9, Urgency: UrgencyCritical, ImmediateAction: true},
		Moderation: &ModerationVerdict{Safe: false, Action: ModBlock, RiskScore: 0.9},
	}
	_, safe, actions := aggregate(in)

	if actions[0] != ActionEmergencyServices {
		t.Errorf("top action = %s, want EMERGENCY_SERVICES_IMMEDIATELY", actions[0])
	}
	for _, a := range actions {
		if a == ActionBlockMessage {
			t.Error("crisis disclosure carries BLOCK_MESSAGE")
		}
	}
	if safe {
		t.Error("safe = true for immediate crisis")
	}
}

func TestAggregate_BlockStandsForNonCrisisRole(t *testing.T) {
	in := aggregationInput{
		Role:       RoleGeneral,
		Crisis:     &CrisisSignal{Severity: 9, ImmediateAction: true},
		Moderation: &ModerationVerdict{Safe: false, Action: ModBlock, RiskScore: 0.9},
	}
	_, _, actions := aggregate(in)

	blocked := false
	for _, a := range actions {
		if a == ActionBlockMessage {
			blocked = true
		}
	}
	if !blocked {
		t.Error("general-role block suppressed")
	}
}

func TestAggregate_RiskScore(t *testing.T) {
	t.Run("max of contributions", func(t *testing.T) {
		in := aggregationInput{
			Role:       RoleGeneral,
			Crisis:     &CrisisSignal{Severity: 9},
			Moderation: &ModerationVerdict{RiskScore: 0.3},
		}
		risk, _, _ := aggregate(in)
		if risk < 0.9 || risk > 1 {
			t.Errorf("risk = %.2f, want crisis-dominated [0.9,1]", risk)
		}
	})

	t.Run("pattern bump", func(t *testing.T) {
		base := aggregationInput{Role: RoleGeneral, Crisis: &CrisisSignal{Severity: 5}}
		withTags := aggregationInput{
			Role:     RoleGeneral,
			Crisis:   &CrisisSignal{Severity: 5},
			Behavior: &BehaviorFinding{Patterns: []string{"PERSISTENT_RISK"}, RiskScore: 0.2},
			Anomaly:  &AnomalyFinding{Anomalies: []string{"RAPID_MESSAGING"}, RiskScore: 0.2},
		}
		r1, _, _ := aggregate(base)
		r2, _, _ := aggregate(withTags)
		want := r1 + 2*patternBump
		if r2 < want-0.001 || r2 > want+0.001 {
			t.Errorf("risk = %.3f, want %.3f with two tag bumps", r2, want)
		}
	})

	t.Run("clamped at one", func(t *testing.T) {
		in := aggregationInput{
			Role:    RoleCrisis,
			Crisis:  &CrisisSignal{Severity: 10, ImmediateAction: true},
			Anomaly: &AnomalyFinding{Anomalies: []string{"RAPID_MESSAGING", "POTENTIAL_BOT"}, RiskScore: 0.7},
		}
		risk, _, _ := aggregate(in)
		if risk != 1 {
			t.Errorf("risk = %.2f, want clamp at 1", risk)
		}
	})

	t.Run("unapproved quality floors at half", func(t *testing.T) {
		in := aggregationInput{Role: RoleVolunteer, Quality: &QualityReport{Approved: false}}
		risk, _, _ := aggregate(in)
		if risk < 0.5 {
			t.Errorf("risk = %.2f, want >= 0.5", risk)
		}
	})
}
