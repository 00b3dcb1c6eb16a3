package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fyrsmithlabs/projectd/internal/pipeline"
)

// localWriter is the CLI's artifact writer: it writes tokens and component
// markers straight into the target tree. Real deployments supply the
// scaffolding tool's own writer instead.
type localWriter struct{}

func (w *localWriter) ApplyTokens(_ context.Context, dir string, tokens map[string]string) (*pipeline.ApplyResult, error) {
	path := filepath.Join(dir, "design-tokens.css")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to write tokens: %w", err)
	}
	defer f.Close()

	keys := make([]string, 0, len(tokens))
	for k := range tokens {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(f, ":root {")
	for _, k := range keys {
		fmt.Fprintf(f, "  --%s: %s;\n", k, tokens[k])
	}
	fmt.Fprintln(f, "}")
	return &pipeline.ApplyResult{Changed: []string{path}}, nil
}

func (w *localWriter) ApplyComponentSet(_ context.Context, name, dir string) (*pipeline.ApplyResult, error) {
	path := filepath.Join(dir, "."+name)
	if err := os.WriteFile(path, []byte(name+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("failed to apply component set %s: %w", name, err)
	}
	return &pipeline.ApplyResult{Changed: []string{path}}, nil
}

// staticTokens resolves every style to a fixed token set. The real
// generation math runs out of process.
type staticTokens struct{}

func (r *staticTokens) Resolve(_ context.Context, style string, set pipeline.TokenSet) (map[string]string, error) {
	switch set {
	case pipeline.TokenSetPalette:
		return map[string]string{
			"color.primary":    "#18181b",
			"color.background": "#ffffff",
			"color.accent":     accentFor(style),
		}, nil
	case pipeline.TokenSetTypography:
		return map[string]string{"font.sans": "Inter, sans-serif"}, nil
	case pipeline.TokenSetSpacing:
		return map[string]string{"spacing.unit": "4px"}, nil
	default:
		return nil, fmt.Errorf("unknown token set %q", set)
	}
}

func accentFor(style string) string {
	switch style {
	case "warm":
		return "#ea580c"
	case "cool":
		return "#0891b2"
	default:
		return "#2563eb"
	}
}
