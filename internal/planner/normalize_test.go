package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadacare/bip-api/internal/models"
)

func TestNormalizeEnvelopeShapes(t *testing.T) {
	inner := map[string]interface{}{
		"behavior_goal": "Reduce hand flapping",
		"antecedents":   []interface{}{"loud noise", "task demand"},
	}

	tests := []struct {
		name    string
		payload map[string]interface{}
	}{
		{
			name: "ai normalized envelope",
			payload: map[string]interface{}{
				"ai": map[string]interface{}{"normalized": inner},
			},
		},
		{
			name: "ai raw envelope",
			payload: map[string]interface{}{
				"ai": map[string]interface{}{"raw": inner},
			},
		},
		{
			name:    "ai object directly",
			payload: map[string]interface{}{"ai": inner},
		},
		{
			name:    "bare plan object",
			payload: inner,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Normalize(tt.payload)
			assert.Equal(t, "Reduce hand flapping", plan.BehaviorGoal)
			assert.Equal(t, []string{"loud noise", "task demand"}, plan.Antecedents)
			assert.Equal(t, models.PlanSourceAI, plan.Source)
		})
	}
}

func TestNormalizeAlternateFieldNames(t *testing.T) {
	plan := Normalize(map[string]interface{}{
		"behaviorGoal": "  Reduce shouting  ",
		"antecedent":   "teacher turns away",
		"consequence":  []interface{}{"peer laughter"},
		"antecedentStrategies": []interface{}{
			"seat near the teacher",
		},
		"replacementBehavior": map[string]interface{}{
			"skill":    "raising a hand",
			"modality": "gesture",
		},
		"dataCollection": map[string]interface{}{
			"metric": "rate per hour",
			"tool":   "counter app",
		},
		"reviewAfterDays": float64(21),
		"safetyFlag":      "TRUE",
	})

	assert.Equal(t, "Reduce shouting", plan.BehaviorGoal)
	assert.Equal(t, []string{"teacher turns away"}, plan.Antecedents)
	assert.Equal(t, []string{"peer laughter"}, plan.Consequences)
	assert.Equal(t, []string{"seat near the teacher"}, plan.AntecedentStrategies)
	assert.Equal(t, "raising a hand", plan.ReplacementBehavior.Skill)
	assert.Equal(t, "gesture", plan.ReplacementBehavior.Modality)
	assert.Equal(t, "rate per hour", plan.DataCollection.Metric)
	assert.Equal(t, "counter app", plan.DataCollection.Tool)
	assert.Equal(t, 21, plan.ReviewAfterDays)
	assert.True(t, plan.SafetyFlag)
}

func TestNormalizeEmptyPayloadGetsDefaults(t *testing.T) {
	plan := Normalize(map[string]interface{}{})

	assert.Empty(t, plan.BehaviorGoal)
	require.NotNil(t, plan.Antecedents)
	assert.Empty(t, plan.Antecedents)
	require.NotNil(t, plan.Consequences)
	assert.Equal(t, defaultReviewAfterDays, plan.ReviewAfterDays)
	assert.False(t, plan.SafetyFlag)
	assert.Equal(t, models.PlanSourceAI, plan.Source)
}

func TestStringListCoercions(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want []string
	}{
		{"nil becomes empty slice", nil, []string{}},
		{"newline-delimited string splits", "first step\nsecond step\n\n  ", []string{"first step", "second step"}},
		{"interface slice trims entries", []interface{}{" a ", "", "b", float64(3)}, []string{"a", "b", "3"}},
		{"string slice passes through", []string{"x", "y"}, []string{"x", "y"}},
		{"scalar wraps in single element", float64(7), []string{"7"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stringList(tt.in))
		})
	}
}

func TestIntValueGuardsNonPositive(t *testing.T) {
	assert.Equal(t, 14, intValue(float64(0), 14))
	assert.Equal(t, 14, intValue(float64(-3), 14))
	assert.Equal(t, 30, intValue(float64(30), 14))
	assert.Equal(t, 10, intValue(" 10 ", 14))
	assert.Equal(t, 14, intValue("soon", 14))
	assert.Equal(t, 14, intValue(nil, 14))
}
