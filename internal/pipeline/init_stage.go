package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/logging"
)

// InitStage performs tracking and bookkeeping side effects: it inspects
// the freshly scaffolded target and records environment flags the later
// stages read.
type InitStage struct {
	logger *logging.Logger
}

// NewInitStage creates the init stage.
func NewInitStage(logger *logging.Logger) *InitStage {
	return &InitStage{logger: logger.Named("init")}
}

func (s *InitStage) ID() string { return StageInit }

// Run detects the source layout shape, records the framework version, and
// captures the external tool's last commit reference when the marker
// carries one.
func (s *InitStage) Run(ctx context.Context, state *State) (string, error) {
	dir := state.Config.TargetDir
	if dir == "" {
		return "", fmt.Errorf("no target directory configured")
	}

	layout := "flat"
	if info, err := os.Stat(filepath.Join(dir, "src")); err == nil && info.IsDir() {
		layout = "src"
	}
	state.Env = EnvFlags{
		SourceLayout:     layout,
		FrameworkVersion: state.Config.FrameworkVersion,
	}

	// Scaffolding tools commonly write their last commit ref into the
	// completion marker.
	if data, err := os.ReadFile(state.Config.MarkerPath); err == nil {
		if ref := strings.TrimSpace(string(data)); ref != "" {
			state.LastCommit = ref
		}
	}

	s.logger.Debug(ctx, "target inspected",
		zap.String("layout", layout),
		zap.String("last_commit", state.LastCommit),
	)
	return fmt.Sprintf("layout=%s", layout), nil
}
