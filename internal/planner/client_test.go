package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nadacare/bip-api/pkg/config"
)

func TestNewOpenAIBackendDefaultModel(t *testing.T) {
	backend := NewOpenAIBackend(config.PlannerConfig{APIKey: "k"}, nil)

	assert.Equal(t, "gpt-4o-mini", backend.model)
}

func TestNewOpenAIBackendModelOverride(t *testing.T) {
	backend := NewOpenAIBackend(config.PlannerConfig{APIKey: "k", Model: "llama3"}, nil)

	assert.Equal(t, "llama3", backend.model)
}
