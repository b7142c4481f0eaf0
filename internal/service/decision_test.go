package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nadacare/bip-api/internal/models"
)

func TestClassifyOrderedRules(t *testing.T) {
	cases := []struct {
		name      string
		scores    models.Scores
		exclusion bool
		want      models.Decision
	}{
		{"eligible at thresholds", models.Scores{ScaleATotal: 25, ScaleBTotal: 8}, false, models.DecisionEligible},
		{"eligible above thresholds", models.Scores{ScaleATotal: 40, ScaleBTotal: 0}, false, models.DecisionEligible},
		{"boundary just below A threshold", models.Scores{ScaleATotal: 24, ScaleBTotal: 8, ScaleLTotal: 5}, false, models.DecisionBoundary},
		{"not eligible low A", models.Scores{ScaleATotal: 14, ScaleBTotal: 0}, false, models.DecisionNotEligible},
		{"not eligible high B", models.Scores{ScaleATotal: 30, ScaleBTotal: 12}, false, models.DecisionNotEligible},
		{"boundary between thresholds", models.Scores{ScaleATotal: 20, ScaleBTotal: 10, ScaleLTotal: 4}, false, models.DecisionBoundary},
		{"exclusion wins over eligible scores", models.Scores{ScaleATotal: 40, ScaleBTotal: 0}, true, models.DecisionExcluded},
		{"exclusion wins over not eligible scores", models.Scores{ScaleATotal: 0, ScaleBTotal: 20}, true, models.DecisionExcluded},
		{"zero scores not eligible", models.Scores{}, false, models.DecisionNotEligible},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, rationale := Classify(tc.scores, tc.exclusion)
			assert.Equal(t, tc.want, got)
			assert.NotEmpty(t, rationale)
		})
	}
}

func TestClassifyBoundaryRationale(t *testing.T) {
	_, supportable := Classify(models.Scores{ScaleATotal: 20, ScaleBTotal: 9, ScaleLTotal: 6}, false)
	assert.Equal(t, rationaleSupportable, supportable)

	_, reassess := Classify(models.Scores{ScaleATotal: 20, ScaleBTotal: 9, ScaleLTotal: 3}, false)
	assert.Equal(t, rationaleReassess, reassess)

	_, neutral := Classify(models.Scores{ScaleATotal: 20, ScaleBTotal: 9, ScaleLTotal: 4}, false)
	assert.Equal(t, rationaleBoundary, neutral)
}

func TestClassifyHighAWithModerateB(t *testing.T) {
	// A >= 25 but B in (8, 11] falls through the eligible rule to boundary.
	decision, _ := Classify(models.Scores{ScaleATotal: 30, ScaleBTotal: 10, ScaleLTotal: 5}, false)
	assert.Equal(t, models.DecisionBoundary, decision)
}
