package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Decision enumerates eligibility outcomes of an intake assessment.
type Decision string

const (
	DecisionEligible    Decision = "eligible"
	DecisionNotEligible Decision = "not_eligible"
	DecisionBoundary    Decision = "boundary"
	DecisionExcluded    Decision = "excluded"
)

// Exclusion criterion answers as captured on the form.
const (
	ExclusionYes = "yes"
	ExclusionNo  = "no"
)

// ScaleA maps domain name -> skill name -> score in {0,1,2}.
type ScaleA map[string]map[string]int

// ScaleB maps behavior name -> score in {0,1,2,3}.
type ScaleB map[string]int

// ScaleL maps play-skill name -> score in {0,1,2}.
type ScaleL map[string]int

// Scores aggregates the three scale totals.
type Scores struct {
	ScaleATotal int `json:"scaleA_Total"`
	ScaleBTotal int `json:"scaleB_Total"`
	ScaleLTotal int `json:"scaleL_Total"`
}

// AssessmentData is the raw submitted evaluation, persisted as JSONB.
type AssessmentData struct {
	BasicInfo         map[string]string `json:"basicInfo"`
	ScaleA            ScaleA            `json:"scaleA"`
	ScaleB            ScaleB            `json:"scaleB"`
	ScaleL            ScaleL            `json:"scaleL"`
	ExclusionCriteria map[string]string `json:"exclusionCriteria"`
	TeamMembers       []string          `json:"teamMembers,omitempty"`
	Reinforcers       []string          `json:"reinforcers,omitempty"`
}

// ChildName returns the child name from basic info.
func (d AssessmentData) ChildName() string {
	return d.BasicInfo["childName"]
}

// Value marshals assessment data for JSONB persistence.
func (d AssessmentData) Value() (driver.Value, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal assessment data: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB payloads into the struct.
func (d *AssessmentData) Scan(value interface{}) error {
	return scanJSON(value, d, "AssessmentData")
}

// AssessmentMetadata captures client context, persisted as JSONB.
type AssessmentMetadata struct {
	AppVersion string `json:"appVersion,omitempty"`
	UserAgent  string `json:"userAgent,omitempty"`
	Locale     string `json:"locale,omitempty"`
}

// Value marshals metadata for persistence.
func (m AssessmentMetadata) Value() (driver.Value, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal assessment metadata: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB payloads into the struct.
func (m *AssessmentMetadata) Scan(value interface{}) error {
	return scanJSON(value, m, "AssessmentMetadata")
}

// Assessment is one immutable child evaluation. The decision and rationale
// columns are denormalised for filtering only; the serving path recomputes
// them from the raw scales so the stored copy can never drift from the data.
type Assessment struct {
	ID          string             `db:"id" json:"id"`
	Data        AssessmentData     `db:"data" json:"assessmentData"`
	Decision    Decision           `db:"decision" json:"decision"`
	Rationale   string             `db:"rationale" json:"rationale"`
	ScaleATotal int                `db:"scale_a_total" json:"scaleA_Total"`
	ScaleBTotal int                `db:"scale_b_total" json:"scaleB_Total"`
	ScaleLTotal int                `db:"scale_l_total" json:"scaleL_Total"`
	EvaluatorID string             `db:"evaluator_id" json:"evaluator_id"`
	SchoolID    string             `db:"school_id" json:"school_id"`
	Metadata    AssessmentMetadata `db:"metadata" json:"metadata"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
}

// Scores returns the stored totals as a triple.
func (a *Assessment) Scores() Scores {
	return Scores{
		ScaleATotal: a.ScaleATotal,
		ScaleBTotal: a.ScaleBTotal,
		ScaleLTotal: a.ScaleLTotal,
	}
}

// AssessmentFilter captures listing criteria.
type AssessmentFilter struct {
	Decision    *Decision
	SchoolID    string
	EvaluatorID string
	DateFrom    *time.Time
	DateTo      *time.Time
	Page        int
	PageSize    int
}

func scanJSON(value interface{}, dest interface{}, name string) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for %s", value, name)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return nil
}
