package engine

import (
	"context"

	"github.com/feedwatch/metrics-alerting/common"
	"github.com/feedwatch/metrics-alerting/detector"
)

// DataSource defines the interface for fetching the aggregated metrics snapshot
type DataSource interface {
	// FetchSnapshot returns the trailing window of pre-aggregated time buckets,
	// ordered by timestamp. An empty snapshot is an error: without data there is
	// nothing to evaluate
	FetchSnapshot(ctx context.Context) (common.Snapshot, error)

	IsInterfaceNil() bool
}

// Notifier defines the interface for pushing alert messages to the channel.
// Implementations must be safe for concurrent use; callers should still send a
// metric's text and chart back to back so the pair is not interleaved with
// another metric's
type Notifier interface {
	SendText(ctx context.Context, text string) error
	SendImage(ctx context.Context, name string, image []byte) error

	IsInterfaceNil() bool
}

// ChartRenderer defines the interface for producing the alert chart artifact
type ChartRenderer interface {
	// RenderLineChart draws the metric values together with the envelope bounds
	// on a time axis and returns the encoded image bytes
	RenderLineChart(series common.MetricSeries, envelope detector.Envelope, title string) ([]byte, error)

	IsInterfaceNil() bool
}
