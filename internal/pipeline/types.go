// Package pipeline executes the fixed scaffolding sequence against an
// external build target: init, design system, feature generation, quality
// gate, summary. Stages run strictly sequentially over one mutable
// accumulator; the runner wraps every stage body so a failure in one never
// aborts the others. The only fatal condition is the completion wait
// before any stage runs.
package pipeline

import (
	"context"
	"errors"
	"time"
)

// Stage identifiers, used to tag progress events.
const (
	StageInit              = "init"
	StageDesignSystem      = "design_system"
	StageFeatureGeneration = "feature_generation"
	StageQualityGate       = "quality_gate"
	StageSummary           = "summary"

	// StagePolling names the pre-stage completion wait in results.
	StagePolling = "polling"
)

// StageStatus is the outcome reported in a stage's end progress event.
type StageStatus string

const (
	StatusStarted StageStatus = "started"
	StatusDone    StageStatus = "done"
	StatusSkipped StageStatus = "skipped"
	StatusError   StageStatus = "error"
)

// ErrSkipped signals that a stage deliberately did no work. The runner
// reports it as status=skipped rather than an error.
var ErrSkipped = errors.New("stage skipped")

// Stage is one failure-isolated phase of the pipeline. Run mutates the
// shared state and returns an optional detail string summarizing counts.
// Returned errors (and panics) are absorbed by the runner.
type Stage interface {
	// ID returns the fixed stage identifier.
	ID() string

	// Run executes the stage work against the accumulator.
	Run(ctx context.Context, state *State) (string, error)
}

// RunConfig describes one pipeline invocation.
type RunConfig struct {
	// FlowID correlates the run's events with its decision flow.
	FlowID string

	// TargetDir is the root of the external artifact tree.
	TargetDir string

	// MarkerPath is the completion marker the external build tool writes.
	MarkerPath string

	// Style is the resolved style intent from the decision flow, if any.
	Style string

	// FrameworkVersion is the detected target framework version.
	FrameworkVersion string
}

// EnvFlags captures what init learned about the build target.
type EnvFlags struct {
	// SourceLayout is "src" when the target keeps sources under src/,
	// "flat" otherwise.
	SourceLayout string `json:"sourceLayout"`

	FrameworkVersion string `json:"frameworkVersion,omitempty"`
}

// Diagnostic is one structured finding from the quality gate.
type Diagnostic struct {
	Check    string `json:"check"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Passed   bool   `json:"passed"`
}

// DoctorStatus aggregates quality-gate findings.
type DoctorStatus struct {
	Ran         bool         `json:"ran"`
	Passed      bool         `json:"passed"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// VerificationResult is the summary stage's final report.
type VerificationResult struct {
	Success        bool   `json:"success"`
	StagesRun      int    `json:"stagesRun"`
	StageErrors    int    `json:"stageErrors"`
	FeatureApplied bool   `json:"featureApplied"`
	ChecksPassed   int    `json:"checksPassed"`
	ChecksFailed   int    `json:"checksFailed"`
	Summary        string `json:"summary"`
}

// State is the mutable accumulator threaded through one pipeline run. It
// is created at run start, discarded at run end, and written by exactly
// one stage at a time; the runner records stage outcomes between stages.
type State struct {
	Config RunConfig

	// Tokens are the resolved design tokens (palette, typography,
	// spacing merged).
	Tokens map[string]string

	// StyleVars are auxiliary style variables applied alongside tokens.
	StyleVars map[string]string

	// FeatureApplied records whether generated feature content landed.
	FeatureApplied bool

	// Doctor holds the quality-gate outcome.
	Doctor DoctorStatus

	// Env holds detected environment flags.
	Env EnvFlags

	// LastCommit is the external tool's last commit reference, if known.
	LastCommit string

	// Outcomes maps stage id to its reported end status. Written by the
	// runner between stages.
	Outcomes map[string]StageStatus

	// Verification is the summary stage's aggregate report.
	Verification *VerificationResult
}

// NewState creates the accumulator for one run.
func NewState(cfg RunConfig) *State {
	return &State{
		Config:    cfg,
		Tokens:    map[string]string{},
		StyleVars: map[string]string{},
		Outcomes:  map[string]StageStatus{},
	}
}

// Result is what a pipeline run hands back to its caller. Success is
// false only when the completion wait timed out; stage failures are
// reported through Diagnostics and progress events instead.
type Result struct {
	Success     bool          `json:"success"`
	FailedStage string        `json:"failedStage,omitempty"`
	Diagnostics []Diagnostic  `json:"diagnostics"`
	Duration    time.Duration `json:"duration"`
	State       *State        `json:"-"`
}

// ApplyResult reports what an artifact-writer operation changed.
type ApplyResult struct {
	Changed []string `json:"changed"`
}

// ArtifactWriter is the external scaffolding tool surface the pipeline
// depends on. Implementations live outside this module.
type ArtifactWriter interface {
	// ApplyComponentSet installs the named shared UI component set under
	// dir, returning the changed items.
	ApplyComponentSet(ctx context.Context, name, dir string) (*ApplyResult, error)

	// ApplyTokens writes resolved design tokens into the artifact tree,
	// returning the changed items.
	ApplyTokens(ctx context.Context, dir string, tokens map[string]string) (*ApplyResult, error)
}

// TokenSet names one independently resolvable group of design tokens.
type TokenSet string

const (
	TokenSetPalette    TokenSet = "palette"
	TokenSetTypography TokenSet = "typography"
	TokenSetSpacing    TokenSet = "spacing"
)

// TokenResolver turns a style intent into concrete design tokens. The
// generation math is out of process; this is the narrow contract.
type TokenResolver interface {
	Resolve(ctx context.Context, style string, set TokenSet) (map[string]string, error)
}

// AdvisoryGenerator produces generated feature content. It is optional:
// a nil generator degrades feature generation to a skipped stage.
type AdvisoryGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// StaticChecker runs external static checks against the target.
type StaticChecker interface {
	Check(ctx context.Context, dir string) ([]Diagnostic, error)
}
