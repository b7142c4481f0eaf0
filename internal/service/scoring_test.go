package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nadacare/bip-api/internal/models"
)

func TestScoreScales(t *testing.T) {
	a := models.ScaleA{
		"communication": {"requests": 2, "labels": 1},
		"imitation":     {"motor": 2},
	}
	b := models.ScaleB{"aggression": 3, "stereotypy": 1}
	l := models.ScaleL{"parallel_play": 2, "turn_taking": 1}

	scores := ScoreScales(a, b, l)
	assert.Equal(t, 5, scores.ScaleATotal)
	assert.Equal(t, 4, scores.ScaleBTotal)
	assert.Equal(t, 3, scores.ScaleLTotal)
}

func TestScoreScalesEmptyAndNil(t *testing.T) {
	assert.Equal(t, models.Scores{}, ScoreScales(nil, nil, nil))
	assert.Equal(t, models.Scores{}, ScoreScales(models.ScaleA{}, models.ScaleB{}, models.ScaleL{}))

	// sparse domains count what is present
	scores := ScoreScales(models.ScaleA{"communication": {}}, nil, nil)
	assert.Equal(t, 0, scores.ScaleATotal)
}

func TestExclusionTriggered(t *testing.T) {
	assert.False(t, ExclusionTriggered(nil))
	assert.False(t, ExclusionTriggered(map[string]string{"seizures": "no", "psychosis": ""}))
	assert.True(t, ExclusionTriggered(map[string]string{"seizures": "no", "psychosis": "yes"}))
}
