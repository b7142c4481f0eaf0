package models

// ChecklistItem is one entry of the canonical fidelity checklist.
type ChecklistItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// checklistTemplate is the fixed implementation-fidelity checklist applied to
// every behavior plan. Item ids are stable; labels are display hints only.
var checklistTemplate = []ChecklistItem{
	{ID: "env_prepared", Label: "Environment prepared before the session"},
	{ID: "antecedent_applied", Label: "Antecedent strategies applied as written"},
	{ID: "replacement_taught", Label: "Replacement behavior modelled and practised"},
	{ID: "reinforcement_delivered", Label: "Reinforcement delivered per plan"},
	{ID: "consequence_followed", Label: "Consequence strategies followed consistently"},
	{ID: "data_recorded", Label: "Behavior data recorded during the session"},
	{ID: "caregiver_briefed", Label: "Teacher or caregiver briefed on progress"},
	{ID: "safety_reviewed", Label: "Safety considerations reviewed"},
}

// ChecklistTemplate returns the canonical checklist items.
func ChecklistTemplate() []ChecklistItem {
	items := make([]ChecklistItem, len(checklistTemplate))
	copy(items, checklistTemplate)
	return items
}

// ChecklistTemplateSize returns the fixed item count used as the fidelity
// denominator.
func ChecklistTemplateSize() int {
	return len(checklistTemplate)
}
