package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/logging"
)

// SummaryStage aggregates the run's outcomes into the final verification
// report a presentation layer can render.
type SummaryStage struct {
	logger *logging.Logger
}

// NewSummaryStage creates the summary stage.
func NewSummaryStage(logger *logging.Logger) *SummaryStage {
	return &SummaryStage{logger: logger.Named("summary")}
}

func (s *SummaryStage) ID() string { return StageSummary }

func (s *SummaryStage) Run(ctx context.Context, state *State) (string, error) {
	stagesRun, stageErrors := 0, 0
	var degraded []string
	for id, status := range state.Outcomes {
		if id == StageSummary {
			continue
		}
		stagesRun++
		if status == StatusError {
			stageErrors++
			degraded = append(degraded, id)
		}
	}

	passed, failed := 0, 0
	for _, d := range state.Doctor.Diagnostics {
		if d.Passed {
			passed++
		} else {
			failed++
		}
	}

	success := stageErrors == 0 && state.Doctor.Passed
	summary := fmt.Sprintf(
		"%d stages run, %d errors, %d checks failed, feature applied: %t",
		stagesRun, stageErrors, failed, state.FeatureApplied,
	)
	if len(degraded) > 0 {
		summary += ", degraded: " + strings.Join(degraded, ",")
	}

	state.Verification = &VerificationResult{
		Success:        success,
		StagesRun:      stagesRun,
		StageErrors:    stageErrors,
		FeatureApplied: state.FeatureApplied,
		ChecksPassed:   passed,
		ChecksFailed:   failed,
		Summary:        summary,
	}

	s.logger.Info(ctx, "pipeline summarized",
		zap.Bool("verified", success),
		zap.String("summary", summary),
	)
	return summary, nil
}
