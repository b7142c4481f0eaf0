package planner

import (
	"fmt"
	"strings"

	"github.com/nadacare/bip-api/internal/models"
)

const defaultReviewAfterDays = 14

// Normalize converts a backend payload of any known shape into the fixed
// plan schema. The three accepted shapes are handled explicitly:
// an envelope with ai.normalized, an envelope with only ai.raw, and a bare
// plan object. Anything unrecognised normalizes to a default-filled plan.
func Normalize(payload map[string]interface{}) models.Plan {
	base := payload
	if ai, ok := payload["ai"].(map[string]interface{}); ok {
		if normalized, ok := ai["normalized"].(map[string]interface{}); ok {
			base = normalized
		} else if raw, ok := ai["raw"].(map[string]interface{}); ok {
			base = raw
		} else {
			base = ai
		}
	}
	plan := planFromMap(base)
	plan.Source = models.PlanSourceAI
	return plan
}

// planFromMap fills the schema, accepting the alternate field names older
// backend versions emit.
func planFromMap(m map[string]interface{}) models.Plan {
	return models.Plan{
		BehaviorGoal:          firstString(m, "behavior_goal", "behaviorGoal", "goal"),
		Antecedents:           stringList(firstValue(m, "antecedents", "antecedent")),
		Consequences:          stringList(firstValue(m, "consequences", "consequence")),
		AntecedentStrategies:  stringList(firstValue(m, "antecedent_strategies", "antecedentStrategies")),
		ConsequenceStrategies: stringList(firstValue(m, "consequence_strategies", "consequenceStrategies")),
		ReplacementBehavior: models.ReplacementBehavior{
			Skill:    nestedString(m, []string{"replacement_behavior", "replacementBehavior"}, "skill"),
			Modality: nestedString(m, []string{"replacement_behavior", "replacementBehavior"}, "modality"),
		},
		DataCollection: models.DataCollection{
			Metric: nestedString(m, []string{"data_collection", "dataCollection"}, "metric"),
			Tool:   nestedString(m, []string{"data_collection", "dataCollection"}, "tool"),
		},
		ReviewAfterDays: intValue(firstValue(m, "review_after_days", "reviewAfterDays"), defaultReviewAfterDays),
		SafetyFlag:      boolValue(firstValue(m, "safety_flag", "safetyFlag")),
	}
}

func firstValue(m map[string]interface{}, keys ...string) interface{} {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(m map[string]interface{}, keys ...string) string {
	if s, ok := firstValue(m, keys...).(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func nestedString(m map[string]interface{}, objectKeys []string, field string) string {
	for _, key := range objectKeys {
		if sub, ok := m[key].(map[string]interface{}); ok {
			if s, ok := sub[field].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// stringList coerces scalar, array, and newline-delimited string inputs into
// a uniform slice. Nil coerces to an empty, non-nil slice so the schema never
// carries null arrays.
func stringList(v interface{}) []string {
	switch value := v.(type) {
	case nil:
		return []string{}
	case string:
		parts := strings.Split(value, "\n")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	case []interface{}:
		out := make([]string, 0, len(value))
		for _, item := range value {
			switch s := item.(type) {
			case string:
				if trimmed := strings.TrimSpace(s); trimmed != "" {
					out = append(out, trimmed)
				}
			default:
				out = append(out, fmt.Sprintf("%v", item))
			}
		}
		return out
	case []string:
		return value
	default:
		return []string{fmt.Sprintf("%v", value)}
	}
}

func intValue(v interface{}, fallback int) int {
	switch value := v.(type) {
	case float64:
		if value > 0 {
			return int(value)
		}
	case int:
		if value > 0 {
			return value
		}
	case string:
		var parsed int
		if _, err := fmt.Sscanf(strings.TrimSpace(value), "%d", &parsed); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func boolValue(v interface{}) bool {
	switch value := v.(type) {
	case bool:
		return value
	case string:
		return strings.EqualFold(strings.TrimSpace(value), "true")
	default:
		return false
	}
}
