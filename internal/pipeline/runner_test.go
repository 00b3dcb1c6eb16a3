package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/projectd/internal/events"
	"github.com/fyrsmithlabs/projectd/internal/logging"
	"github.com/fyrsmithlabs/projectd/internal/poll"
)

// Fakes for the external collaborators.

type fakeWriter struct {
	err error
}

func (w *fakeWriter) ApplyComponentSet(_ context.Context, name, _ string) (*ApplyResult, error) {
	if w.err != nil {
		return nil, w.err
	}
	return &ApplyResult{Changed: []string{name + "/index"}}, nil
}

func (w *fakeWriter) ApplyTokens(_ context.Context, _ string, tokens map[string]string) (*ApplyResult, error) {
	if w.err != nil {
		return nil, w.err
	}
	return &ApplyResult{Changed: []string{"design-tokens.css"}}, nil
}

type fakeResolver struct {
	err error
}

func (r *fakeResolver) Resolve(_ context.Context, style string, set TokenSet) (map[string]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	return map[string]string{string(set) + ".main": style}, nil
}

type fakeGenerator struct {
	err error
}

func (g *fakeGenerator) Generate(_ context.Context, _ string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return "generated feature", nil
}

type fakeChecker struct {
	diags     []Diagnostic
	err       error
	panicWith string
}

func (c *fakeChecker) Check(_ context.Context, _ string) ([]Diagnostic, error) {
	if c.panicWith != "" {
		panic(c.panicWith)
	}
	return c.diags, c.err
}

func passingChecker() *fakeChecker {
	return &fakeChecker{diags: []Diagnostic{
		{Check: "lint", Severity: "info", Message: "ok", Passed: true},
	}}
}

// Helpers.

func writeMarker(t *testing.T) (dir, marker string) {
	t.Helper()
	dir = t.TempDir()
	marker = filepath.Join(dir, ".done")
	require.NoError(t, os.WriteFile(marker, []byte("abc123\n"), 0o644))
	return dir, marker
}

func newTestRunner(t *testing.T, c Collaborators) (*Runner, *events.MemoryLog) {
	t.Helper()
	log := events.NewMemoryLog()
	logger := logging.NewTestLogger().Logger
	runner := NewRunner(log, logger, poll.Options{
		MaxWait:  2 * time.Second,
		Interval: 5 * time.Millisecond,
	}, DefaultStages(c, logger)...)
	return runner, log
}

func progressByStatus(t *testing.T, log *events.MemoryLog, flowID string, status StageStatus) []events.Event {
	t.Helper()
	evs, err := log.Events(context.Background(), flowID)
	require.NoError(t, err)
	var out []events.Event
	for _, e := range evs {
		if e.Type != events.TypeProgress {
			continue
		}
		if s, _ := e.StringPayload("status"); s == string(status) {
			out = append(out, e)
		}
	}
	return out
}

// Tests.

func TestRunHappyPath(t *testing.T) {
	dir, marker := writeMarker(t)
	runner, log := newTestRunner(t, Collaborators{
		Writer:   &fakeWriter{},
		Tokens:   &fakeResolver{},
		Advisory: &fakeGenerator{},
		Checker:  passingChecker(),
	})

	result := runner.Run(context.Background(), RunConfig{
		FlowID:     "flow-1",
		TargetDir:  dir,
		MarkerPath: marker,
		Style:      "warm",
	})

	require.True(t, result.Success)
	assert.Empty(t, result.FailedStage)

	state := result.State
	require.NotNil(t, state)
	assert.True(t, state.FeatureApplied)
	assert.Equal(t, "abc123", state.LastCommit)
	assert.Equal(t, "flat", state.Env.SourceLayout)
	assert.Equal(t, "warm", state.Tokens["palette.main"])
	assert.True(t, state.Doctor.Passed)

	for _, id := range []string{StageInit, StageDesignSystem, StageFeatureGeneration, StageQualityGate, StageSummary} {
		assert.Equal(t, StatusDone, state.Outcomes[id], id)
	}

	require.NotNil(t, state.Verification)
	assert.True(t, state.Verification.Success)
	assert.Zero(t, state.Verification.StageErrors)

	// Begin and end progress per stage, plus the terminal event.
	evs, err := log.Events(context.Background(), "flow-1")
	require.NoError(t, err)
	assert.Equal(t, events.TypeFinalComplete, evs[len(evs)-1].Type)
	assert.Len(t, progressByStatus(t, log, "flow-1", StatusStarted), 5)
	assert.Len(t, progressByStatus(t, log, "flow-1", StatusDone), 5)
	assert.Empty(t, progressByStatus(t, log, "flow-1", StatusError))
}

func TestPollTimeoutIsFatal(t *testing.T) {
	log := events.NewMemoryLog()
	logger := logging.NewTestLogger().Logger
	runner := NewRunner(log, logger, poll.Options{
		MaxWait:  50 * time.Millisecond,
		Interval: 10 * time.Millisecond,
	}, DefaultStages(Collaborators{Writer: &fakeWriter{}, Tokens: &fakeResolver{}}, logger)...)

	result := runner.Run(context.Background(), RunConfig{
		FlowID:     "flow-1",
		TargetDir:  t.TempDir(),
		MarkerPath: filepath.Join(t.TempDir(), "never-appears"),
	})

	assert.False(t, result.Success)
	assert.Equal(t, StagePolling, result.FailedStage)
	// No stage ran, so no events exist at all.
	assert.Zero(t, log.Len())
}

func TestStageFailureIsIsolated(t *testing.T) {
	tests := []struct {
		name         string
		collabs      Collaborators
		failingStage string
	}{
		{
			name: "design system",
			collabs: Collaborators{
				Writer:   &fakeWriter{},
				Tokens:   &fakeResolver{err: errors.New("palette solver offline")},
				Advisory: &fakeGenerator{},
				Checker:  passingChecker(),
			},
			failingStage: StageDesignSystem,
		},
		{
			name: "feature generation",
			collabs: Collaborators{
				Writer:   &fakeWriter{},
				Tokens:   &fakeResolver{},
				Advisory: &fakeGenerator{err: errors.New("generator unavailable")},
				Checker:  passingChecker(),
			},
			failingStage: StageFeatureGeneration,
		},
		{
			name: "quality gate",
			collabs: Collaborators{
				Writer:   &fakeWriter{},
				Tokens:   &fakeResolver{},
				Advisory: &fakeGenerator{},
				Checker:  &fakeChecker{panicWith: "checker crashed"},
			},
			failingStage: StageQualityGate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, marker := writeMarker(t)
			runner, log := newTestRunner(t, tt.collabs)

			result := runner.Run(context.Background(), RunConfig{
				FlowID:     "flow-1",
				TargetDir:  dir,
				MarkerPath: marker,
			})

			// One stage degrading never fails the pipeline.
			assert.True(t, result.Success)

			errEvents := progressByStatus(t, log, "flow-1", StatusError)
			require.Len(t, errEvents, 1)
			stage, _ := errEvents[0].StringPayload("stage")
			assert.Equal(t, tt.failingStage, stage)

			assert.Equal(t, StatusError, result.State.Outcomes[tt.failingStage])
			assert.Equal(t, StatusDone, result.State.Outcomes[StageSummary])
			require.NotNil(t, result.State.Verification)
			assert.Equal(t, 1, result.State.Verification.StageErrors)
			assert.False(t, result.State.Verification.Success)
		})
	}
}

func TestDesignSystemFailureLeavesUsableDefaults(t *testing.T) {
	dir, marker := writeMarker(t)
	runner, _ := newTestRunner(t, Collaborators{
		Writer:   &fakeWriter{},
		Tokens:   &fakeResolver{err: errors.New("resolver down")},
		Advisory: &fakeGenerator{},
		Checker:  passingChecker(),
	})

	result := runner.Run(context.Background(), RunConfig{
		FlowID:     "flow-1",
		TargetDir:  dir,
		MarkerPath: marker,
	})

	// Later stages must be able to read tokens even though resolution
	// failed.
	assert.NotEmpty(t, result.State.Tokens)
	assert.Equal(t, StatusDone, result.State.Outcomes[StageQualityGate])
}

func TestFeatureGenerationSkippedWithoutGenerator(t *testing.T) {
	dir, marker := writeMarker(t)
	runner, log := newTestRunner(t, Collaborators{
		Writer:  &fakeWriter{},
		Tokens:  &fakeResolver{},
		Checker: passingChecker(),
	})

	result := runner.Run(context.Background(), RunConfig{
		FlowID:     "flow-1",
		TargetDir:  dir,
		MarkerPath: marker,
	})

	require.True(t, result.Success)
	assert.False(t, result.State.FeatureApplied)
	assert.Equal(t, StatusSkipped, result.State.Outcomes[StageFeatureGeneration])

	skipped := progressByStatus(t, log, "flow-1", StatusSkipped)
	require.Len(t, skipped, 1)
	stage, _ := skipped[0].StringPayload("stage")
	assert.Equal(t, StageFeatureGeneration, stage)
	assert.Empty(t, progressByStatus(t, log, "flow-1", StatusError))
}

func TestQualityGateAbsorbsCheckerError(t *testing.T) {
	dir, marker := writeMarker(t)
	runner, log := newTestRunner(t, Collaborators{
		Writer:   &fakeWriter{},
		Tokens:   &fakeResolver{},
		Advisory: &fakeGenerator{},
		Checker:  &fakeChecker{err: errors.New("eslint exploded")},
	})

	result := runner.Run(context.Background(), RunConfig{
		FlowID:     "flow-1",
		TargetDir:  dir,
		MarkerPath: marker,
	})

	// A failing checker is a diagnostic, not a stage failure.
	require.True(t, result.Success)
	assert.Empty(t, progressByStatus(t, log, "flow-1", StatusError))
	assert.Equal(t, StatusDone, result.State.Outcomes[StageQualityGate])

	require.True(t, result.State.Doctor.Ran)
	assert.False(t, result.State.Doctor.Passed)
	require.Len(t, result.Diagnostics, 1)
	assert.Contains(t, result.Diagnostics[0].Message, "eslint exploded")
}

func TestErrorDetailIsTruncated(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	dir, marker := writeMarker(t)
	runner, log := newTestRunner(t, Collaborators{
		Writer:   &fakeWriter{},
		Tokens:   &fakeResolver{err: errors.New(string(long))},
		Advisory: &fakeGenerator{},
		Checker:  passingChecker(),
	})

	runner.Run(context.Background(), RunConfig{
		FlowID:     "flow-1",
		TargetDir:  dir,
		MarkerPath: marker,
	})

	errEvents := progressByStatus(t, log, "flow-1", StatusError)
	require.Len(t, errEvents, 1)
	detail, _ := errEvents[0].StringPayload("detail")
	assert.LessOrEqual(t, len(detail), maxErrorDetail)
}
