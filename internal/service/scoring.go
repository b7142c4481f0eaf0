package service

import "github.com/nadacare/bip-api/internal/models"

// ScoreScales reduces the three raw scale mappings into their totals. It is
// total over any well-formed input: missing maps and empty maps score zero,
// and no upper bound is enforced here (the form schema fixes the maxima, they
// matter only for display).
func ScoreScales(a models.ScaleA, b models.ScaleB, l models.ScaleL) models.Scores {
	var scores models.Scores
	for _, skills := range a {
		for _, v := range skills {
			scores.ScaleATotal += v
		}
	}
	for _, v := range b {
		scores.ScaleBTotal += v
	}
	for _, v := range l {
		scores.ScaleLTotal += v
	}
	return scores
}

// ExclusionTriggered reports whether any exclusion criterion was answered yes.
// Unanswered ("") and "no" entries do not trigger.
func ExclusionTriggered(criteria map[string]string) bool {
	for _, answer := range criteria {
		if answer == models.ExclusionYes {
			return true
		}
	}
	return false
}
