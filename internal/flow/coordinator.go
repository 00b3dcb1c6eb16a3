package flow

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/events"
	"github.com/fyrsmithlabs/projectd/internal/logging"
)

// UserAction resolves a pending decision.
type UserAction string

const (
	ActionProceed UserAction = "proceed"
	ActionCancel  UserAction = "cancel"
)

// Context describes the project request a flow is deciding about.
type Context struct {
	ProjectName      string `json:"projectName"`
	Framework        string `json:"framework"`
	FrameworkVersion string `json:"frameworkVersion,omitempty"`
	TargetDir        string `json:"targetDir,omitempty"`
}

// Coordinator is the stateful facade over one flow's decision lifecycle.
// It never holds authoritative state: every operation validates against
// the state re-derived from the log, appends its documented events, and
// returns the fresh derivation. The cached state is an optimization and
// must always equal a re-derivation.
type Coordinator struct {
	mu     sync.Mutex
	log    events.Log
	logger *logging.Logger

	flowID string
	cached *State
}

// NewCoordinator creates a coordinator over the given event log.
func NewCoordinator(log events.Log, logger *logging.Logger) *Coordinator {
	return &Coordinator{log: log, logger: logger.Named("flow")}
}

// FlowID returns the id of the active flow, or "" before Start.
func (c *Coordinator) FlowID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flowID
}

// State re-derives and returns the current flow state, or nil before Start.
func (c *Coordinator) State(ctx context.Context) (*State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.derive(ctx)
}

// Start begins a new flow. Valid only when no flow is active. It appends
// the started event, a proposal summarizing the request, and a decision
// request enumerating the three options, then returns the derived state
// (always awaiting_decision).
func (c *Coordinator) Start(ctx context.Context, fc Context, request string) (*State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.flowID != "" {
		cur, err := c.derive(ctx)
		if err != nil {
			return nil, err
		}
		if cur != nil {
			return nil, &GuardViolation{
				Action: "start",
				State:  string(cur.Status),
				Reason: fmt.Sprintf("Cannot start: flow %s already active", c.flowID),
			}
		}
	}

	flowID := uuid.NewString()

	started := events.New(flowID, events.TypeStarted, map[string]any{
		"request": request,
		"context": map[string]any{
			"projectName": fc.ProjectName,
			"framework":   fc.Framework,
			"targetDir":   fc.TargetDir,
		},
	})
	proposal := events.New(flowID, events.TypeProposalCreated, map[string]any{
		"summary": proposalSummary(fc, request),
	})
	proposal.ParentEventID = &started.ID
	decision := events.New(flowID, events.TypeDecisionRequested, map[string]any{
		"point":  "new_project",
		"prompt": "Review the proposal and choose how to continue.",
		"options": []any{
			map[string]any{"id": "proceed", "label": "Proceed", "primary": true},
			map[string]any{"id": "cancel", "label": "Cancel"},
			map[string]any{"id": "change_style", "label": "Change style"},
		},
	})
	decision.ParentEventID = &proposal.ID

	for _, e := range []events.Event{started, proposal, decision} {
		if err := c.log.Append(ctx, e); err != nil {
			return nil, fmt.Errorf("failed to append %s event: %w", e.Type, err)
		}
	}

	c.flowID = flowID
	c.logger.Info(ctx, "flow started",
		zap.String("flow_id", flowID),
		zap.String("framework", fc.Framework),
	)
	return c.refresh(ctx)
}

// HandleUserAction resolves the pending decision. Valid only while the
// flow is awaiting a decision; resolving twice fails on the second call.
// On success it appends a completed event whose status maps from the
// action (proceed→ready, cancel→cancelled).
func (c *Coordinator) HandleUserAction(ctx context.Context, action UserAction) (*State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, err := c.requireAwaitingDecision(ctx, string(action))
	if err != nil {
		return nil, err
	}

	var completion CompletionStatus
	switch action {
	case ActionProceed:
		completion = CompletionReady
	case ActionCancel:
		completion = CompletionCancelled
	default:
		return nil, &GuardViolation{
			Action: string(action),
			State:  string(cur.Status),
			Reason: fmt.Sprintf("Unknown action %q", action),
		}
	}

	completed := events.New(c.flowID, events.TypeCompleted, map[string]any{
		"status": string(completion),
	})
	if err := c.log.Append(ctx, completed); err != nil {
		return nil, fmt.Errorf("failed to append completed event: %w", err)
	}

	c.logger.Info(ctx, "flow decision resolved",
		zap.String("flow_id", c.flowID),
		zap.String("action", string(action)),
		zap.String("completion_status", string(completion)),
	)
	return c.refresh(ctx)
}

// HandleStyleChange opens the style picker. Valid only while awaiting a
// decision. Appends one style_selection_requested event; status is
// unchanged.
func (c *Coordinator) HandleStyleChange(ctx context.Context) (*State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.requireAwaitingDecision(ctx, "change_style"); err != nil {
		return nil, err
	}

	e := events.New(c.flowID, events.TypeStyleSelectionRequested, nil)
	if err := c.log.Append(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to append style_selection_requested event: %w", err)
	}

	c.logger.Info(ctx, "style picker opened", zap.String("flow_id", c.flowID))
	return c.refresh(ctx)
}

// HandleStyleSelected records the style chosen through the picker and
// closes it. Valid only while awaiting a decision with the picker open.
func (c *Coordinator) HandleStyleSelected(ctx context.Context, style string) (*State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, err := c.requireAwaitingDecision(ctx, "select_style")
	if err != nil {
		return nil, err
	}
	if !cur.StylePickerActive {
		return nil, &GuardViolation{
			Action: "select_style",
			State:  string(cur.Status),
			Reason: "Style picker is not active",
		}
	}

	e := events.New(c.flowID, events.TypeStyleSelected, map[string]any{
		"style": style,
	})
	if err := c.log.Append(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to append style_selected event: %w", err)
	}

	c.logger.Info(ctx, "style selected",
		zap.String("flow_id", c.flowID),
		zap.String("style", style),
	)
	return c.refresh(ctx)
}

// requireAwaitingDecision enforces the shared guard for decision-phase
// operations. Caller must hold c.mu.
func (c *Coordinator) requireAwaitingDecision(ctx context.Context, action string) (*State, error) {
	if c.flowID == "" {
		return nil, noActiveFlow(action)
	}
	cur, err := c.derive(ctx)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, noActiveFlow(action)
	}
	if cur.Status != StatusAwaitingDecision {
		return nil, wrongStatus(action, cur.Status)
	}
	return cur, nil
}

// derive recomputes the state from the log. Caller must hold c.mu.
func (c *Coordinator) derive(ctx context.Context) (*State, error) {
	if c.flowID == "" {
		return nil, nil
	}
	evs, err := c.log.Events(ctx, c.flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	return Derive(c.flowID, evs), nil
}

// refresh re-derives, updates the cache, and returns the state. Caller
// must hold c.mu.
func (c *Coordinator) refresh(ctx context.Context) (*State, error) {
	st, err := c.derive(ctx)
	if err != nil {
		return nil, err
	}
	c.cached = st
	return st, nil
}

// Cached returns the last state the coordinator computed, without
// re-deriving. Exposed so tests can assert the cache is reproducible.
func (c *Coordinator) Cached() *State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cached
}

func proposalSummary(fc Context, request string) string {
	framework := fc.Framework
	if framework == "" {
		framework = "default"
	}
	name := fc.ProjectName
	if name == "" {
		name = "new project"
	}
	return fmt.Sprintf("Create %s using the %s framework (request: %s)", name, framework, request)
}
