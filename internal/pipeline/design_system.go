package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/projectd/internal/logging"
)

// componentSetName is the shared UI component set installed into every
// scaffolded project.
const componentSetName = "shared-ui"

// DesignSystemStage resolves the flow's style intent into concrete design
// tokens, applies them to the artifact tree, and installs the shared UI
// component set.
//
// Later stages depend on the resolved tokens, so this stage installs
// usable defaults before any fallible work: its own failure degrades the
// pipeline, it never starves it.
type DesignSystemStage struct {
	resolver TokenResolver
	writer   ArtifactWriter
	logger   *logging.Logger
}

// NewDesignSystemStage creates the design-system stage.
func NewDesignSystemStage(resolver TokenResolver, writer ArtifactWriter, logger *logging.Logger) *DesignSystemStage {
	return &DesignSystemStage{
		resolver: resolver,
		writer:   writer,
		logger:   logger.Named("design_system"),
	}
}

func (s *DesignSystemStage) ID() string { return StageDesignSystem }

// Run resolves the palette, typography, and spacing token sets
// concurrently, joins, then applies tokens and the component set.
func (s *DesignSystemStage) Run(ctx context.Context, state *State) (string, error) {
	state.Tokens = defaultTokens()
	state.StyleVars = defaultStyleVars()

	style := state.Config.Style
	if style == "" {
		style = "default"
	}

	resolved, err := s.resolveTokenSets(ctx, style)
	if err != nil {
		return "", fmt.Errorf("failed to resolve tokens for style %q: %w", style, err)
	}
	state.Tokens = resolved
	state.StyleVars["style"] = style

	tokRes, err := s.writer.ApplyTokens(ctx, state.Config.TargetDir, state.Tokens)
	if err != nil {
		return "", fmt.Errorf("failed to apply tokens: %w", err)
	}
	changed := len(tokRes.Changed)

	res, err := s.writer.ApplyComponentSet(ctx, componentSetName, state.Config.TargetDir)
	if err != nil {
		return "", fmt.Errorf("failed to apply component set %s: %w", componentSetName, err)
	}
	changed += len(res.Changed)

	s.logger.Info(ctx, "design system applied",
		zap.String("style", style),
		zap.Int("tokens", len(state.Tokens)),
		zap.Int("changed", changed),
	)
	return fmt.Sprintf("tokens=%d changed=%d", len(state.Tokens), changed), nil
}

// resolveTokenSets fans out across the independent token sets and joins
// before anything touches the shared state.
func (s *DesignSystemStage) resolveTokenSets(ctx context.Context, style string) (map[string]string, error) {
	sets := []TokenSet{TokenSetPalette, TokenSetTypography, TokenSetSpacing}

	var mu sync.Mutex
	merged := map[string]string{}

	g, gctx := errgroup.WithContext(ctx)
	for _, set := range sets {
		set := set
		g.Go(func() error {
			tokens, err := s.resolver.Resolve(gctx, style, set)
			if err != nil {
				return fmt.Errorf("%s: %w", set, err)
			}
			mu.Lock()
			defer mu.Unlock()
			for k, v := range tokens {
				merged[k] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return merged, nil
}

// defaultTokens are the fallback design tokens later stages can rely on
// when resolution or application fails.
func defaultTokens() map[string]string {
	return map[string]string{
		"color.primary":    "#18181b",
		"color.background": "#ffffff",
		"color.accent":     "#2563eb",
		"font.sans":        "Inter, sans-serif",
		"spacing.unit":     "4px",
	}
}

func defaultStyleVars() map[string]string {
	return map[string]string{"style": "default"}
}
