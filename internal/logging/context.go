package logging

import (
	"context"

	"go.uber.org/zap"
)

type flowCtxKey struct{}
type runCtxKey struct{}

// WithFlowID attaches a flow identifier to the context.
func WithFlowID(ctx context.Context, flowID string) context.Context {
	return context.WithValue(ctx, flowCtxKey{}, flowID)
}

// FlowIDFromContext returns the flow id, or "" when absent.
func FlowIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(flowCtxKey{}).(string)
	return id
}

// WithRunID attaches a pipeline run identifier to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runCtxKey{}, runID)
}

// RunIDFromContext returns the run id, or "" when absent.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runCtxKey{}).(string)
	return id
}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 2)
	if flowID := FlowIDFromContext(ctx); flowID != "" {
		fields = append(fields, zap.String("flow.id", flowID))
	}
	if runID := RunIDFromContext(ctx); runID != "" {
		fields = append(fields, zap.String("run.id", runID))
	}
	return fields
}
