package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/logging"
)

// FeatureGenerationStage asks the advisory text generator for an optional
// starter feature and applies it to the target. Without a configured
// generator the stage skips instead of failing.
type FeatureGenerationStage struct {
	generator AdvisoryGenerator
	writer    ArtifactWriter
	logger    *logging.Logger
}

// NewFeatureGenerationStage creates the feature-generation stage.
// generator may be nil.
func NewFeatureGenerationStage(generator AdvisoryGenerator, writer ArtifactWriter, logger *logging.Logger) *FeatureGenerationStage {
	return &FeatureGenerationStage{
		generator: generator,
		writer:    writer,
		logger:    logger.Named("feature_generation"),
	}
}

func (s *FeatureGenerationStage) ID() string { return StageFeatureGeneration }

func (s *FeatureGenerationStage) Run(ctx context.Context, state *State) (string, error) {
	if s.generator == nil {
		return "no advisory generator configured", ErrSkipped
	}

	prompt := fmt.Sprintf(
		"Generate a starter feature for a %s project with style %q.",
		state.Env.FrameworkVersion, state.StyleVars["style"],
	)
	advisory, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate feature content: %w", err)
	}

	res, err := s.writer.ApplyComponentSet(ctx, "generated-feature", state.Config.TargetDir)
	if err != nil {
		return "", fmt.Errorf("failed to apply generated feature: %w", err)
	}

	state.FeatureApplied = true
	s.logger.Info(ctx, "generated feature applied",
		zap.Int("advisory_len", len(advisory)),
		zap.Int("changed", len(res.Changed)),
	)
	return fmt.Sprintf("changed=%d", len(res.Changed)), nil
}
