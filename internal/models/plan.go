package models

// Plan sources.
const (
	PlanSourceAI   = "ai"
	PlanSourceMock = "mock"
)

// Severity tiers reported by the form. SeverityCritical flips the plan
// safety flag locally regardless of what the AI backend returns.
const (
	SeverityLow      = "low"
	SeverityModerate = "moderate"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// ReplacementBehavior describes the skill taught in place of the target behavior.
type ReplacementBehavior struct {
	Skill    string `json:"skill"`
	Modality string `json:"modality"`
}

// DataCollection describes how plan progress is measured.
type DataCollection struct {
	Metric string `json:"metric"`
	Tool   string `json:"tool"`
}

// Plan is the normalized behavior-intervention plan embedded in a session
// record. Every field is always populated; downstream consumers never see a
// partial plan.
type Plan struct {
	BehaviorGoal          string              `json:"behavior_goal"`
	Antecedents           []string            `json:"antecedents"`
	Consequences          []string            `json:"consequences"`
	AntecedentStrategies  []string            `json:"antecedent_strategies"`
	ConsequenceStrategies []string            `json:"consequence_strategies"`
	ReplacementBehavior   ReplacementBehavior `json:"replacement_behavior"`
	DataCollection        DataCollection      `json:"data_collection"`
	ReviewAfterDays       int                 `json:"review_after_days"`
	SafetyFlag            bool                `json:"safety_flag"`
	Source                string              `json:"source,omitempty"`
}
