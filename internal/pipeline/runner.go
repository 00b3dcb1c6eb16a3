package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/events"
	"github.com/fyrsmithlabs/projectd/internal/logging"
	"github.com/fyrsmithlabs/projectd/internal/poll"
)

// maxErrorDetail bounds the failure message carried in a progress event.
const maxErrorDetail = 200

// Collaborators bundles the external tool surfaces the default stages use.
type Collaborators struct {
	Writer   ArtifactWriter
	Tokens   TokenResolver
	Advisory AdvisoryGenerator
	Checker  StaticChecker
}

// Runner executes the fixed stage sequence for one pipeline invocation.
type Runner struct {
	log      events.Log
	logger   *logging.Logger
	pollOpts poll.Options
	stages   []Stage
}

// NewRunner creates a runner over the given stages, in execution order.
func NewRunner(log events.Log, logger *logging.Logger, pollOpts poll.Options, stages ...Stage) *Runner {
	return &Runner{
		log:      log,
		logger:   logger.Named("pipeline"),
		pollOpts: pollOpts,
		stages:   stages,
	}
}

// DefaultStages returns the standard sequence wired to the collaborators.
func DefaultStages(c Collaborators, logger *logging.Logger) []Stage {
	return []Stage{
		NewInitStage(logger),
		NewDesignSystemStage(c.Tokens, c.Writer, logger),
		NewFeatureGenerationStage(c.Advisory, c.Writer, logger),
		NewQualityGateStage(c.Checker, logger),
		NewSummaryStage(logger),
	}
}

// Run waits for the external build tool's completion marker, then executes
// every stage in order. A marker timeout aborts before any stage runs and
// is the only condition that flips Success to false; stage failures are
// absorbed into progress events and diagnostics.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) *Result {
	ctx = logging.WithFlowID(ctx, cfg.FlowID)
	start := time.Now()
	recordRunStarted(ctx)

	found := poll.ForCompletion(ctx, cfg.MarkerPath, r.pollOpts, func(elapsed time.Duration) {
		r.logger.Info(ctx, "still waiting for completion marker",
			zap.String("marker", cfg.MarkerPath),
			zap.Duration("elapsed", elapsed),
		)
	})
	if !found {
		recordPollTimeout(ctx)
		r.logger.Error(ctx, "completion marker never appeared",
			zap.String("marker", cfg.MarkerPath),
			zap.Duration("max_wait", r.pollOpts.MaxWait),
		)
		return &Result{
			Success:     false,
			FailedStage: StagePolling,
			Diagnostics: []Diagnostic{},
			Duration:    time.Since(start),
		}
	}

	state := NewState(cfg)
	for _, stage := range r.stages {
		state.Outcomes[stage.ID()] = r.runStage(ctx, stage, state)
	}

	r.emitFinalComplete(ctx, cfg.FlowID, state)

	return &Result{
		Success:     true,
		Diagnostics: state.Doctor.Diagnostics,
		Duration:    time.Since(start),
		State:       state,
	}
}

// runStage executes one stage behind the uniform isolation wrapper:
// errors and panics become a progress(status=error) event and execution
// proceeds to the next stage.
func (r *Runner) runStage(ctx context.Context, stage Stage, state *State) StageStatus {
	id := stage.ID()
	stageStart := time.Now()
	r.emitProgress(ctx, state.Config.FlowID, id, "begin", StatusStarted, "")

	detail, err := r.invoke(ctx, stage, state)
	recordStageDuration(ctx, id, time.Since(stageStart))

	status := StatusDone
	switch {
	case err == nil:
	case isSkip(err):
		status = StatusSkipped
		r.logger.Info(ctx, "stage skipped", zap.String("stage", id))
	default:
		status = StatusError
		detail = truncate(err.Error(), maxErrorDetail)
		recordStageError(ctx, id)
		r.logger.Error(ctx, "stage failed", zap.String("stage", id), zap.Error(err))
	}

	r.emitProgress(ctx, state.Config.FlowID, id, "end", status, detail)
	return status
}

// invoke calls the stage body, converting panics into errors.
func (r *Runner) invoke(ctx context.Context, stage Stage, state *State) (detail string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("stage %s panicked: %v", stage.ID(), rec)
		}
	}()
	return stage.Run(ctx, state)
}

// emitProgress appends one progress event. Append failures are logged and
// dropped: losing a progress event must never fail the pipeline.
func (r *Runner) emitProgress(ctx context.Context, flowID, stage, phase string, status StageStatus, detail string) {
	payload := map[string]any{
		"stage":  stage,
		"phase":  phase,
		"status": string(status),
	}
	if detail != "" {
		payload["detail"] = detail
	}
	e := events.New(flowID, events.TypeProgress, payload)
	if err := r.log.Append(ctx, e); err != nil {
		r.logger.Warn(ctx, "failed to append progress event",
			zap.String("stage", stage), zap.Error(err))
	}
}

// emitFinalComplete appends the terminal event carrying the verification
// report.
func (r *Runner) emitFinalComplete(ctx context.Context, flowID string, state *State) {
	payload := map[string]any{}
	if v := state.Verification; v != nil {
		payload["success"] = v.Success
		payload["stagesRun"] = v.StagesRun
		payload["stageErrors"] = v.StageErrors
		payload["summary"] = v.Summary
	}
	e := events.New(flowID, events.TypeFinalComplete, payload)
	if err := r.log.Append(ctx, e); err != nil {
		r.logger.Warn(ctx, "failed to append final_complete event", zap.Error(err))
	}
}

func isSkip(err error) bool {
	return errors.Is(err, ErrSkipped)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
