package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fyrsmithlabs/projectd/internal/pipeline"

// Metrics for pipeline execution
var (
	runCounter         metric.Int64Counter
	stageDurationHist  metric.Float64Histogram
	stageErrorCounter  metric.Int64Counter
	pollTimeoutCounter metric.Int64Counter
)

func init() {
	initMetrics()
}

// initMetrics initializes OpenTelemetry metrics for the pipeline. Without
// a configured meter provider these are no-ops.
func initMetrics() {
	meter := otel.Meter(instrumentationName)

	var err error

	runCounter, err = meter.Int64Counter(
		"projectd.pipeline.runs",
		metric.WithDescription("Total number of pipeline runs started"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create run counter: %v", err))
	}

	stageDurationHist, err = meter.Float64Histogram(
		"projectd.pipeline.stage.duration",
		metric.WithDescription("Duration of pipeline stage executions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create stage duration histogram: %v", err))
	}

	stageErrorCounter, err = meter.Int64Counter(
		"projectd.pipeline.stage.errors",
		metric.WithDescription("Number of absorbed stage failures"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create stage error counter: %v", err))
	}

	pollTimeoutCounter, err = meter.Int64Counter(
		"projectd.pipeline.poll.timeouts",
		metric.WithDescription("Number of fatal completion-marker timeouts"),
		metric.WithUnit("{timeout}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create poll timeout counter: %v", err))
	}
}

func recordRunStarted(ctx context.Context) {
	runCounter.Add(ctx, 1)
}

func recordStageDuration(ctx context.Context, stage string, d time.Duration) {
	stageDurationHist.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)))
}

func recordStageError(ctx context.Context, stage string) {
	stageErrorCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", stage)))
}

func recordPollTimeout(ctx context.Context) {
	pollTimeoutCounter.Add(ctx, 1)
}
