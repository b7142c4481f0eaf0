package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SessionStatus is the record state machine: pending -> applied | rejected.
// Applied and rejected are terminal from this service's perspective.
type SessionStatus string

const (
	SessionStatusPending  SessionStatus = "pending"
	SessionStatusApplied  SessionStatus = "applied"
	SessionStatusRejected SessionStatus = "rejected"
)

// SessionType distinguishes behavior-plan work from freeform notes. Behavior
// sessions carry a deterministic id derived from the (school, teacher, child,
// target behavior) tuple; note sessions get a store-assigned uuid.
type SessionType string

const (
	SessionTypeBehavior SessionType = "behavior"
	SessionTypeNote     SessionType = "note"
)

// Checklist is the fidelity checklist embedded in a session document.
type Checklist struct {
	CheckedItems   map[string]bool `json:"checkedItems"`
	FidelityScore  int             `json:"fidelityScore"`
	CompletedItems int             `json:"completedItems"`
	TotalItems     int             `json:"totalItems"`
	SavedBy        string          `json:"savedBy"`
	SavedAt        time.Time       `json:"savedAt"`
}

// SessionMeta records provenance for a saved session document.
type SessionMeta struct {
	Source       string `json:"source,omitempty"`
	SavedAtLocal string `json:"savedAtLocal,omitempty"`
}

// SessionDoc is the typed view of the JSONB session document.
type SessionDoc struct {
	Type           SessionType       `json:"type"`
	Child          string            `json:"child"`
	TargetBehavior string            `json:"targetBehavior,omitempty"`
	Text           string            `json:"text,omitempty"`
	GeneratedPlan  *Plan             `json:"generatedPlan,omitempty"`
	FormData       map[string]string `json:"formData,omitempty"`
	Meta           *SessionMeta      `json:"meta,omitempty"`
	Checklist      *Checklist        `json:"checklist,omitempty"`
}

// Value marshals the document for JSONB persistence.
func (d SessionDoc) Value() (driver.Value, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal session doc: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB payloads into the document.
func (d *SessionDoc) Scan(value interface{}) error {
	return scanJSON(value, d, "SessionDoc")
}

// SessionPatch is a partial session document. Upserts merge it into the
// stored document field by field; nested objects present in the patch fully
// replace the stored object at that key.
type SessionPatch map[string]interface{}

// Value marshals the patch for the JSONB merge upsert.
func (p SessionPatch) Value() (driver.Value, error) {
	if p == nil {
		p = SessionPatch{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal session patch: %w", err)
	}
	return data, nil
}

// SessionRecord is one canonical unit of behavior-plan work, or one freeform
// note. The id is the only shared mutable handle: concurrent writers to the
// same id race under last-write-wins field merge.
type SessionRecord struct {
	ID        string        `db:"id" json:"id"`
	Doc       SessionDoc    `db:"doc" json:"doc"`
	Status    SessionStatus `db:"status" json:"status"`
	SchoolID  string        `db:"school_id" json:"school_id"`
	TeacherID string        `db:"teacher_id" json:"teacher_id"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// ChecklistFor returns the embedded checklist only when it was saved by the
// acting user. Checklists saved by someone else are foreign data and are
// never merged into another user's editing state.
func (r *SessionRecord) ChecklistFor(actorID string) *Checklist {
	if r == nil || r.Doc.Checklist == nil {
		return nil
	}
	if actorID == "" || r.Doc.Checklist.SavedBy != actorID {
		return nil
	}
	return r.Doc.Checklist
}

// SessionFilter captures listing criteria.
type SessionFilter struct {
	SchoolID  string
	TeacherID string
	Status    *SessionStatus
	Type      *SessionType
	Page      int
	PageSize  int
}
