package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "clipforge"

// Metrics holds the feedback pipeline's metric instruments.
type Metrics struct {
	ItemsApplied       metric.Int64Counter
	ItemsFailed        metric.Int64Counter
	PatchesApplied     metric.Int64Counter
	RefinementsRun     metric.Int64Counter
	VerificationFailed metric.Int64Counter
	StageDuration      metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ItemsApplied, err = meter.Int64Counter("clipforge.feedback.applied",
		metric.WithDescription("Feedback items reaching the applied state"))
	if err != nil {
		return nil, err
	}

	m.ItemsFailed, err = meter.Int64Counter("clipforge.feedback.failed",
		metric.WithDescription("Feedback items reaching the failed state"))
	if err != nil {
		return nil, err
	}

	m.PatchesApplied, err = meter.Int64Counter("clipforge.patches.applied",
		metric.WithDescription("Patches applied to the project documents"))
	if err != nil {
		return nil, err
	}

	m.RefinementsRun, err = meter.Int64Counter("clipforge.refinements.run",
		metric.WithDescription("Scene refinement passes invoked"))
	if err != nil {
		return nil, err
	}

	m.VerificationFailed, err = meter.Int64Counter("clipforge.verification.failed",
		metric.WithDescription("Applied items whose post-apply verification failed"))
	if err != nil {
		return nil, err
	}

	m.StageDuration, err = meter.Float64Histogram("clipforge.stage.duration_seconds",
		metric.WithDescription("Pipeline stage duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
