package pipeline

import "sort"

// patternBump is added to the aggregate risk for each behavior pattern or
// anomaly tag. Risk is max-based so one high-confidence crisis signal is
// never diluted by benign sub-scores; the bump lets pattern flags matter
// at the margin without dominating.
const patternBump = 0.05

// aggregationInput collects every classifier contribution for one message.
// Nil fields mean the classifier did not apply to this role.
type aggregationInput struct {
	Role       MessageRole
	Crisis     *CrisisSignal
	Moderation *ModerationVerdict
	Behavior   *BehaviorFinding
	Anomaly    *AnomalyFinding
	Quality    *QualityReport
	Ethics     *EthicsCheck
}

// aggregate combines classifier outputs into the final risk score, safety
// flag, and priority-ordered action list.
func aggregate(in aggregationInput) (risk float32, safe bool, actions []Action) {
	risk = maxRisk(in)

	tags := 0
	if in.Behavior != nil {
		tags += len(in.Behavior.Patterns)
	}
	if in.Anomaly != nil {
		tags += len(in.Anomaly.Anomalies)
	}
	risk += patternBump * float32(tags)
	risk = clampRisk(risk)

	actions = selectActions(in)
	safe = len(actions) > 0 && actions[0] <= ActionStandardSupport
	return risk, safe, actions
}

func maxRisk(in aggregationInput) float32 {
	var risk float32
	if in.Crisis != nil && in.Crisis.Risk() > risk {
		risk = in.Crisis.Risk()
	}
	if in.Moderation != nil && in.Moderation.RiskScore > risk {
		risk = in.Moderation.RiskScore
	}
	if in.Behavior != nil && in.Behavior.RiskScore > risk {
		risk = in.Behavior.RiskScore
	}
	if in.Anomaly != nil && in.Anomaly.RiskScore > risk {
		risk = in.Anomaly.RiskScore
	}
	if in.Quality != nil && !in.Quality.Approved {
		if risk < 0.5 {
			risk = 0.5
		}
	}
	if in.Ethics != nil && !in.Ethics.FollowsGuidelines {
		if r := ethicsRisk(in.Ethics.Severity); r > risk {
			risk = r
		}
	}
	return risk
}

func ethicsRisk(severity Urgency) float32 {
	switch severity {
	case UrgencyCritical, UrgencyHigh:
		return 0.7
	case UrgencyModerate:
		return 0.5
	default:
		return 0.3
	}
}

// selectActions applies the priority ladder. Crisis escalation outranks
// blocking outranks review outranks support.
func selectActions(in aggregationInput) []Action {
	var actions []Action
	add := func(a Action) {
		for _, got := range actions {
			if got == a {
				return
			}
		}
		actions = append(actions, a)
	}

	if in.Crisis != nil {
		switch {
		case in.Crisis.Severity >= 9 && in.Crisis.ImmediateAction:
			add(ActionEmergencyServices)
		case in.Crisis.Severity >= 8:
			add(ActionEmergencyEscalation)
		case in.Crisis.Severity >= 5:
			add(ActionPriorityIntervention)
		}
	}
	if in.Behavior != nil && hasPattern(in.Behavior.Patterns, "ESCALATING_SEVERITY") {
		add(ActionPriorityIntervention)
	}

	if in.Moderation != nil {
		switch in.Moderation.Action {
		case ModBlock:
			// Crisis speech is protected: a disclosure that also carries a
			// high crisis signal is escalated, never silently dropped.
			if !(in.Role == RoleCrisis && in.Crisis != nil && in.Crisis.Severity >= 7) {
				add(ActionBlockMessage)
			}
		case ModEscalate:
			add(ActionPriorityIntervention)
		}
	}

	if in.Quality != nil && !in.Quality.Approved {
		add(ActionQualityReview)
	}
	if in.Ethics != nil && !in.Ethics.FollowsGuidelines {
		add(ActionQualityReview)
	}

	if len(actions) == 0 {
		if in.Role == RoleCrisis {
			add(ActionStandardSupport)
		} else {
			add(ActionAllow)
		}
	}

	sort.Slice(actions, func(i, j int) bool { return actions[i] > actions[j] })
	return actions
}

func hasPattern(patterns []string, want string) bool {
	for _, p := range patterns {
		if p == want {
			return true
		}
	}
	return false
}

func clampRisk(f float32) float32 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
