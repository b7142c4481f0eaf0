package service

import "github.com/nadacare/bip-api/internal/models"

// Rationale texts returned alongside decisions. They are advisory only and
// never change the decision code.
const (
	rationaleExcluded    = "an exclusion criterion was answered yes; refer for specialist evaluation"
	rationaleEligible    = "skill profile and behavior load are within program thresholds"
	rationaleNotEligible = "skill profile or behavior load is outside program thresholds"
	rationaleSupportable = "borderline profile; strong play skills suggest the program is supportable"
	rationaleReassess    = "borderline profile; weak play skills suggest reassessment before placement"
	rationaleBoundary    = "borderline profile; team review recommended"
)

// Classify maps scale totals and the exclusion flag to a case decision.
// The rules are ordered and the first match wins; exclusion always overrides
// score-based outcomes. Comparison operators are part of the clinical
// business rules and must not be loosened or tightened:
//
//	1. exclusion              -> excluded
//	2. A >= 25 && B <= 8      -> eligible
//	3. A < 15  || B > 11      -> not_eligible
//	4. otherwise              -> boundary
//
// The function is total over any finite score triple.
func Classify(scores models.Scores, exclusionTriggered bool) (models.Decision, string) {
	if exclusionTriggered {
		return models.DecisionExcluded, rationaleExcluded
	}
	if scores.ScaleATotal >= 25 && scores.ScaleBTotal <= 8 {
		return models.DecisionEligible, rationaleEligible
	}
	if scores.ScaleATotal < 15 || scores.ScaleBTotal > 11 {
		return models.DecisionNotEligible, rationaleNotEligible
	}
	switch {
	case scores.ScaleLTotal >= 6:
		return models.DecisionBoundary, rationaleSupportable
	case scores.ScaleLTotal <= 3:
		return models.DecisionBoundary, rationaleReassess
	default:
		return models.DecisionBoundary, rationaleBoundary
	}
}
