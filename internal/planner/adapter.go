package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nadacare/bip-api/internal/models"
)

// ErrCancelled reports that the caller abandoned the plan request before it
// finished. It is distinct from backend failure: no fallback plan is built
// and nothing should be persisted afterwards.
var ErrCancelled = errors.New("plan request cancelled")

// CaseInfo carries the local facts the adapter needs beyond the wire body:
// fallback construction and the local safety net.
type CaseInfo struct {
	ChildName      string
	TargetBehavior string
	Severity       string
}

// Adapter wraps the backend with a per-call timeout and guarantees that every
// non-cancelled outcome yields a complete plan object.
type Adapter struct {
	backend Backend
	timeout time.Duration
	logger  *zap.Logger
}

// NewAdapter constructs the adapter.
func NewAdapter(backend Backend, timeout time.Duration, logger *zap.Logger) *Adapter {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{backend: backend, timeout: timeout, logger: logger}
}

// Generate calls the backend and normalizes its payload. On backend failure
// or timeout it degrades to the local fallback plan and reports degraded=true
// so the caller can surface a warning. Caller cancellation returns
// ErrCancelled instead.
func (a *Adapter) Generate(ctx context.Context, req Request, info CaseInfo) (plan models.Plan, degraded bool, err error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	payload, backendErr := a.backend.GeneratePlan(callCtx, req)
	if backendErr != nil {
		if ctx.Err() != nil {
			return models.Plan{}, false, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		a.logger.Warn("plan backend degraded, using fallback",
			zap.String("child", info.ChildName),
			zap.Error(backendErr))
		return a.Fallback(req, info), true, nil
	}

	plan = Normalize(payload)
	applySafetyNet(&plan, info)
	return plan, false, nil
}

// Fallback builds a complete locally constructed plan of the same shape,
// tagged as mock so the UI can warn the user.
func (a *Adapter) Fallback(req Request, info CaseInfo) models.Plan {
	goal := info.TargetBehavior
	if goal == "" {
		goal = "reduce the reported behavior"
	}
	plan := models.Plan{
		BehaviorGoal: fmt.Sprintf("Reduce occurrences of %s during structured activities", goal),
		Antecedents:  []string{"transition between activities", "task demand presented"},
		Consequences: []string{"adult attention", "escape from task"},
		AntecedentStrategies: []string{
			"give a two-minute warning before transitions",
			"offer a choice between two activities",
		},
		ConsequenceStrategies: []string{
			"withhold attention for the target behavior",
			"praise the replacement behavior immediately",
		},
		ReplacementBehavior: models.ReplacementBehavior{
			Skill:    "requesting a break",
			Modality: "picture card or verbal request",
		},
		DataCollection: models.DataCollection{
			Metric: "frequency per session",
			Tool:   "tally sheet",
		},
		ReviewAfterDays: defaultReviewAfterDays,
		Source:          models.PlanSourceMock,
	}
	applySafetyNet(&plan, info)
	return plan
}

// applySafetyNet flips the safety flag when the local severity input is the
// highest tier, independent of what the backend decided.
func applySafetyNet(plan *models.Plan, info CaseInfo) {
	if info.Severity == models.SeverityCritical {
		plan.SafetyFlag = true
	}
}
