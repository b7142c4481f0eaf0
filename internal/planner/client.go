// Package planner talks to the AI plan backend and normalizes whatever it
// returns into the fixed behavior-intervention plan schema. Callers always
// receive a fully populated plan: when the backend is unreachable the adapter
// substitutes a locally built fallback tagged as mock.
package planner

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/nadacare/bip-api/pkg/config"
)

// Request is the outbound body describing the case.
type Request struct {
	TextNote        string                 `json:"textNote"`
	CurrentActivity string                 `json:"currentActivity"`
	EnergyLevel     int                    `json:"energyLevel"`
	Tags            []string               `json:"tags"`
	SessionDuration int                    `json:"sessionDuration"`
	CurriculumQuery string                 `json:"curriculumQuery"`
	AnalysisType    string                 `json:"analysisType"`
	AssessmentData  map[string]interface{} `json:"assessmentData,omitempty"`
	Meta            RequestMeta            `json:"planRequestMeta"`
}

// RequestMeta identifies who asked and summarises the form context.
type RequestMeta struct {
	RequestedByTeacherID string `json:"requestedByTeacherId"`
	RequestedBySchoolID  string `json:"requestedBySchoolId"`
	LocalTimestamp       string `json:"localTimestamp"`
	FormDataSummary      string `json:"formDataSummary"`
}

// Backend produces a raw plan payload for a case. Payload shape varies by
// backend version; Normalize copes with all known variants.
type Backend interface {
	GeneratePlan(ctx context.Context, req Request) (map[string]interface{}, error)
}

const defaultModel = "gpt-4o-mini"

const systemPrompt = `You are a behavior analyst assistant. Given a case description in JSON,
respond with a JSON object {"ai": {"normalized": {...}}} where normalized contains:
behavior_goal, antecedents, consequences, antecedent_strategies,
consequence_strategies, replacement_behavior {skill, modality},
data_collection {metric, tool}, review_after_days, safety_flag.`

// OpenAIBackend implements Backend over an OpenAI-compatible chat endpoint.
type OpenAIBackend struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIBackend builds the backend from planner config. A custom BaseURL
// points the client at a self-hosted compatible endpoint.
func NewOpenAIBackend(cfg config.PlannerConfig, logger *zap.Logger) *OpenAIBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &OpenAIBackend{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: logger,
	}
}

// GeneratePlan sends the case to the chat endpoint and decodes the JSON body
// of the first choice.
func (b *OpenAIBackend) GeneratePlan(ctx context.Context, req Request) (map[string]interface{}, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal plan request: %w", err)
	}

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(body)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("plan backend call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("plan backend returned no choices")
	}

	payload := map[string]interface{}{}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &payload); err != nil {
		return nil, fmt.Errorf("decode plan payload: %w", err)
	}
	b.logger.Debug("plan payload received", zap.Int("keys", len(payload)))
	return payload, nil
}
