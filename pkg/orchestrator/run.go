package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/loomhq/loom/pkg/events"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/otelhelper"
)

// RunStage is one step of a run. All tasks in a stage execute concurrently;
// the next stage starts only after every member finished.
type RunStage struct {
	Order int            `json:"order"`
	Name  string         `json:"name,omitempty"`
	Tasks []*models.Task `json:"tasks"`
}

// RunPlan describes a workflow run as ordered stages of agent tasks.
type RunPlan struct {
	RunID   string     `json:"run_id,omitempty"`
	ModelID string     `json:"model_id,omitempty"`
	Stages  []RunStage `json:"stages"`
}

// Mode labels the plan for observability: sequential when every stage has a
// single member, parallel otherwise.
func (p RunPlan) Mode() string {
	for _, stage := range p.Stages {
		if len(stage.Tasks) > 1 {
			return "parallel"
		}
	}

	return "sequential"
}

// StageResult reports one completed stage. Duration is the longest member
// duration, not the sum.
type StageResult struct {
	Stage    int                  `json:"stage"`
	Name     string               `json:"name,omitempty"`
	Outputs  map[string]any       `json:"outputs,omitempty"`
	Duration time.Duration        `json:"duration"`
	Tasks    []*models.TaskResult `json:"tasks"`
}

// RunResult reports a finished or aborted run. FailedStage is zero when the
// run completed; Stages holds only the stages that completed.
type RunResult struct {
	RunID          string         `json:"run_id"`
	ModelID        string         `json:"model_id,omitempty"`
	StagesExecuted int            `json:"stages_executed"`
	FailedStage    int            `json:"failed_stage,omitempty"`
	Stages         []StageResult  `json:"stages"`
	Outputs        map[string]any `json:"outputs,omitempty"`
	Duration       time.Duration  `json:"duration"`
}

// ExecuteRun coordinates a workflow run. Stages execute strictly in
// ascending order; a failure at stage N aborts the run, stages after N
// never start, and the result reports the failed stage along with the
// outputs of the stages that completed.
func (c *Coordinator) ExecuteRun(ctx context.Context, plan RunPlan) (*RunResult, error) {
	if len(plan.Stages) == 0 {
		return nil, fmt.Errorf("run plan has no stages")
	}

	for _, stage := range plan.Stages {
		if len(stage.Tasks) == 0 {
			return nil, fmt.Errorf("stage %d has no tasks", stage.Order)
		}
	}

	runID := plan.RunID
	if runID == "" {
		runID = fmt.Sprintf("run-%s", uuid.New().String()[:8])
	}

	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "coordinator.execute_run",
		attribute.String(otelhelper.RunIDKey, runID),
		attribute.String(otelhelper.ModelIDKey, plan.ModelID),
	)
	defer span.End()

	stages := make([]RunStage, len(plan.Stages))
	copy(stages, plan.Stages)
	sort.SliceStable(stages, func(i, j int) bool { return stages[i].Order < stages[j].Order })

	logger := c.logger.With("run_id", runID, "model_id", plan.ModelID)
	logger.InfoContext(ctx, "Starting run", "stages", len(stages), "mode", plan.Mode())

	started := events.RunStarted{
		BaseEvent:  events.NewBaseEvent(events.RunStartedEvent, runID),
		RunID:      runID,
		ModelID:    plan.ModelID,
		Mode:       plan.Mode(),
		StageCount: len(stages),
	}

	c.publish(ctx, runID, started)

	result := &RunResult{
		RunID:   runID,
		ModelID: plan.ModelID,
		Stages:  make([]StageResult, 0, len(stages)),
		Outputs: make(map[string]any),
	}

	runStart := time.Now()

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			otelhelper.SetError(span, err)

			return result, err
		}

		stageResult, err := c.executeStage(ctx, stage)
		if err != nil {
			result.FailedStage = stage.Order
			result.Duration = time.Since(runStart)

			failure := fmt.Errorf("run %s failed at stage %d: %w", runID, stage.Order, err)
			otelhelper.SetError(span, failure, attribute.Int(otelhelper.StageKey, stage.Order))
			logger.ErrorContext(ctx, "Run aborted", "failed_stage", stage.Order, "error", err)

			failed := events.RunFailed{
				BaseEvent:      events.NewBaseEvent(events.RunFailedEvent, runID),
				RunID:          runID,
				FailedStage:    stage.Order,
				Error:          err.Error(),
				StagesExecuted: result.StagesExecuted,
				PartialResults: result.Outputs,
				DurationMs:     result.Duration.Milliseconds(),
			}

			c.publish(ctx, runID, failed)

			return result, failure
		}

		result.Stages = append(result.Stages, *stageResult)
		result.StagesExecuted++
		mergeOutputs(result.Outputs, stageResult.Outputs)

		completed := events.RunStageCompleted{
			BaseEvent:  events.NewBaseEvent(events.RunStageCompletedEvent, runID),
			RunID:      runID,
			Stage:      stage.Order,
			Outputs:    stageResult.Outputs,
			DurationMs: stageResult.Duration.Milliseconds(),
		}

		c.publish(ctx, runID, completed)
	}

	result.Duration = time.Since(runStart)

	finished := events.RunCompleted{
		BaseEvent:      events.NewBaseEvent(events.RunCompletedEvent, runID),
		RunID:          runID,
		StagesExecuted: result.StagesExecuted,
		Results:        result.Outputs,
		DurationMs:     result.Duration.Milliseconds(),
	}

	c.publish(ctx, runID, finished)
	logger.InfoContext(ctx, "Run completed", "stages", result.StagesExecuted, "duration_ms", result.Duration.Milliseconds())

	return result, nil
}

// executeStage runs every member task concurrently and waits for all of
// them before returning. The reported duration is the longest member
// duration. Member outputs merge at this synchronization point, summing
// numeric values that share a key.
func (c *Coordinator) executeStage(ctx context.Context, stage RunStage) (*StageResult, error) {
	results := make([]*models.TaskResult, len(stage.Tasks))
	errs := make([]error, len(stage.Tasks))

	var wg sync.WaitGroup

	for i, task := range stage.Tasks {
		wg.Add(1)

		go func(i int, task *models.Task) {
			defer wg.Done()

			results[i], errs[i] = c.ExecuteTask(ctx, task)
		}(i, task)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("task %s failed: %w", stage.Tasks[i].ID, err)
		}
	}

	stageResult := &StageResult{
		Stage:   stage.Order,
		Name:    stage.Name,
		Outputs: make(map[string]any),
		Tasks:   results,
	}

	for _, taskResult := range results {
		if taskResult.Duration > stageResult.Duration {
			stageResult.Duration = taskResult.Duration
		}

		mergeOutputs(stageResult.Outputs, taskResult.Output)
	}

	return stageResult, nil
}

// mergeOutputs folds src into dst. Numeric values sharing a key are summed
// so per-agent record counts accumulate; anything else overwrites.
func mergeOutputs(dst, src map[string]any) {
	for key, value := range src {
		existing, ok := dst[key]
		if !ok {
			dst[key] = value

			continue
		}

		existingNum, existingOK := asFloat(existing)
		valueNum, valueOK := asFloat(value)

		if existingOK && valueOK {
			dst[key] = existingNum + valueNum
		} else {
			dst[key] = value
		}
	}
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
