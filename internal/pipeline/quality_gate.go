package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/logging"
)

// QualityGateStage invokes the external static checks and records their
// pass/fail diagnostics. It never raises: a failing check, or a failing
// checker, ends up in the doctor status, not in an error.
type QualityGateStage struct {
	checker StaticChecker
	logger  *logging.Logger
}

// NewQualityGateStage creates the quality-gate stage. checker may be nil.
func NewQualityGateStage(checker StaticChecker, logger *logging.Logger) *QualityGateStage {
	return &QualityGateStage{checker: checker, logger: logger.Named("quality_gate")}
}

func (s *QualityGateStage) ID() string { return StageQualityGate }

func (s *QualityGateStage) Run(ctx context.Context, state *State) (string, error) {
	if s.checker == nil {
		state.Doctor = DoctorStatus{Ran: false, Passed: true}
		return "no static checker configured", ErrSkipped
	}

	diags, err := s.checker.Check(ctx, state.Config.TargetDir)
	if err != nil {
		// Checker breakage is itself a diagnostic, not a stage failure.
		state.Doctor = DoctorStatus{
			Ran:    true,
			Passed: false,
			Diagnostics: []Diagnostic{{
				Check:    "static-checks",
				Severity: "error",
				Message:  fmt.Sprintf("checker failed: %v", err),
			}},
		}
		s.logger.Warn(ctx, "static checker failed", zap.Error(err))
		return "checks=0 failed=1", nil
	}

	passed, failed := 0, 0
	for _, d := range diags {
		if d.Passed {
			passed++
		} else {
			failed++
		}
	}
	state.Doctor = DoctorStatus{
		Ran:         true,
		Passed:      failed == 0,
		Diagnostics: diags,
	}

	s.logger.Info(ctx, "quality gate recorded",
		zap.Int("passed", passed),
		zap.Int("failed", failed),
	)
	return fmt.Sprintf("checks=%d failed=%d", len(diags), failed), nil
}
