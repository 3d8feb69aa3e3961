package pipeline

// MessageRole identifies who authored the message being checked.
type MessageRole int

const (
	RoleGeneral MessageRole = iota + 1 // anonymous or logged-in chat user
	RoleCrisis                         // person flagged as potentially at risk
	RoleVolunteer                      // trained helper replying to someone in crisis
)

// String returns the lowercase role name.
func (r MessageRole) String() string {
	switch r {
	case RoleGeneral:
		return "general"
	case RoleCrisis:
		return "crisis"
	case RoleVolunteer:
		return "volunteer"
	default:
		return "unspecified"
	}
}

// ParseRole maps an API role string to a MessageRole.
// Unknown strings fall back to RoleGeneral.
func ParseRole(s string) MessageRole {
	switch s {
	case "crisis":
		return RoleCrisis
	case "volunteer":
		return RoleVolunteer
	default:
		return RoleGeneral
	}
}

// Urgency is a four-tier escalation scale shared by crisis and anomaly signals.
type Urgency int

const (
	UrgencyLow Urgency = iota + 1
	UrgencyModerate
	UrgencyHigh
	UrgencyCritical
)

func (u Urgency) String() string {
	switch u {
	case UrgencyLow:
		return "LOW"
	case UrgencyModerate:
		return "MODERATE"
	case UrgencyHigh:
		return "HIGH"
	case UrgencyCritical:
		return "CRITICAL"
	default:
		return "UNSPECIFIED"
	}
}

// ModAction is the content moderator's recommendation for a single message.
type ModAction int

const (
	ModAllow ModAction = iota + 1
	ModFlag
	ModBlock
	ModEscalate
)

func (a ModAction) String() string {
	switch a {
	case ModAllow:
		return "ALLOW"
	case ModFlag:
		return "FLAG"
	case ModBlock:
		return "BLOCK"
	case ModEscalate:
		return "ESCALATE"
	default:
		return "UNSPECIFIED"
	}
}

// Action is an orchestrator-level action tag. Values are ordered by
// priority: a higher constant always outranks a lower one when the
// aggregator sorts the action list for a verdict.
type Action int

const (
	ActionAllow Action = iota + 1
	ActionStandardSupport
	ActionQualityReview
	ActionBlockMessage
	ActionPriorityIntervention
	ActionEmergencyEscalation
	ActionEmergencyServices
)

func (a Action) String() string {
	switch a {
	case ActionAllow:
		return "ALLOW"
	case ActionStandardSupport:
		return "STANDARD_SUPPORT"
	case ActionQualityReview:
		return "QUALITY_REVIEW_REQUIRED"
	case ActionBlockMessage:
		return "BLOCK_MESSAGE"
	case ActionPriorityIntervention:
		return "PRIORITY_INTERVENTION"
	case ActionEmergencyEscalation:
		return "EMERGENCY_ESCALATION"
	case ActionEmergencyServices:
		return "EMERGENCY_SERVICES_IMMEDIATELY"
	default:
		return "UNSPECIFIED"
	}
}

// SystemHealth summarizes the pipeline's recent operating condition.
type SystemHealth int

const (
	HealthHealthy SystemHealth = iota + 1
	HealthDegraded
	HealthCritical
)

func (h SystemHealth) String() string {
	switch h {
	case HealthHealthy:
		return "HEALTHY"
	case HealthDegraded:
		return "DEGRADED"
	case HealthCritical:
		return "CRITICAL"
	default:
		return "UNSPECIFIED"
	}
}
