package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/feedwatch/metrics-alerting/common"
	"github.com/feedwatch/metrics-alerting/config"
	"github.com/feedwatch/metrics-alerting/detector"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("engine")

// alertEngine evaluates every configured metric against one fresh snapshot and
// dispatches an alert message plus chart for each broken envelope
type alertEngine struct {
	config   config.Config
	source   DataSource
	notifier Notifier
	renderer ChartRenderer
}

// NewAlertEngine creates a new engine instance
func NewAlertEngine(cfg config.Config, source DataSource, notifier Notifier, renderer ChartRenderer) (*alertEngine, error) {
	if check.IfNil(source) {
		return nil, errors.New("nil data source")
	}
	if check.IfNil(notifier) {
		return nil, errors.New("nil notifier")
	}
	if check.IfNil(renderer) {
		return nil, errors.New("nil chart renderer")
	}

	return &alertEngine{
		config:   cfg,
		source:   source,
		notifier: notifier,
		renderer: renderer,
	}, nil
}

// Process fetches a fresh snapshot and evaluates all configured metrics in list
// order. A fetch failure aborts the run, per-metric failures only bump the
// report counters and the loop moves on
func (e *alertEngine) Process(ctx context.Context) (common.RunReport, error) {
	log.Debug("waking up to evaluate metrics", "count", len(e.config.Metrics))

	snapshot, err := e.source.FetchSnapshot(ctx)
	if err != nil {
		return common.RunReport{}, fmt.Errorf("failed to fetch metrics snapshot: %w", err)
	}

	report := common.RunReport{}
	for _, mc := range e.config.Metrics {
		report.Evaluated++
		e.evaluateMetric(ctx, &snapshot, mc, &report)
	}

	log.Debug("finished evaluating metrics", "evaluated", report.Evaluated,
		"alerted", report.Alerted, "skipped", report.Skipped, "failed", report.Failed)

	return report, nil
}

func (e *alertEngine) evaluateMetric(ctx context.Context, snapshot *common.Snapshot, mc config.MetricConfig, report *common.RunReport) {
	series := snapshot.SeriesFor(mc.Name)

	envelope, isAlert, err := e.estimate(series, mc)
	if errors.Is(err, detector.ErrInsufficientHistory) {
		log.Warn("not enough history for metric, skipping", "metric", mc.Name, "error", err)
		report.Skipped++
		return
	}
	if err != nil {
		log.Warn("failed to estimate boundaries for metric", "metric", mc.Name, "error", err)
		report.Failed++
		return
	}

	if !isAlert {
		log.Debug("metric within bounds", "metric", mc.Name,
			"value", series.Points[len(series.Points)-1].Value)
		return
	}

	report.Alerted++
	log.Info("anomaly detected", "metric", mc.Name,
		"value", series.Points[len(series.Points)-1].Value)

	text := e.composeMessage(mc, series)

	image, err := e.renderer.RenderLineChart(series, envelope, mc.Display())
	if err != nil {
		log.Warn("failed to render chart for metric", "metric", mc.Name, "error", err)
		report.Failed++
		image = nil
	}

	err = e.notifier.SendText(ctx, text)
	if err != nil {
		log.Warn("failed to send alert message", "metric", mc.Name, "error", err)
		report.Failed++
		return
	}

	if image == nil {
		return
	}

	err = e.notifier.SendImage(ctx, mc.Name+".png", image)
	if err != nil {
		log.Warn("failed to send alert chart", "metric", mc.Name, "error", err)
		report.Failed++
	}
}

func (e *alertEngine) estimate(series common.MetricSeries, mc config.MetricConfig) (detector.Envelope, bool, error) {
	switch mc.Strategy {
	case config.StrategyAdaptive:
		return detector.EstimateAdaptive(series.Values(), mc.SpreadFactor, mc.WindowSize)
	case config.StrategyFixed:
		return detector.EstimateFixed(series.Values(), mc.LowerBound, mc.UpperBound)
	default:
		return nil, false, fmt.Errorf("unknown strategy '%s'", mc.Strategy)
	}
}

// composeMessage formats the alert text: display name, latest value, deviation
// versus the previous bucket and the dashboard link. A zero or missing previous
// value makes the deviation undefined and it is rendered as "n/a"
func (e *alertEngine) composeMessage(mc config.MetricConfig, series common.MetricSeries) string {
	points := series.Points
	current := points[len(points)-1].Value

	deviation := "n/a"
	if len(points) > 1 && points[len(points)-2].Value != 0 {
		previous := points[len(points)-2].Value
		deviation = fmt.Sprintf("%.2f%%", (1-current/previous)*100)
	}

	return fmt.Sprintf("Metric %s:\nCurrent value %.2f\nDeviation from previous value %s\nMetrics dashboard: %s\n",
		mc.Display(), current, deviation, e.config.General.DashboardURL)
}

// IsInterfaceNil returns true if the value under the interface is nil
func (e *alertEngine) IsInterfaceNil() bool {
	return e == nil
}
