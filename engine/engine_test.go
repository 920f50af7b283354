package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/feedwatch/metrics-alerting/common"
	"github.com/feedwatch/metrics-alerting/config"
	"github.com/feedwatch/metrics-alerting/detector"
	"github.com/feedwatch/metrics-alerting/testsCommon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestSnapshot(values map[string][]float64) common.Snapshot {
	numBuckets := 0
	for _, series := range values {
		if len(series) > numBuckets {
			numBuckets = len(series)
		}
	}

	start := time.Date(2024, 5, 28, 10, 0, 0, 0, time.UTC)
	snapshot := common.Snapshot{}
	for i := 0; i < numBuckets; i++ {
		ts := start.Add(time.Duration(i) * 15 * time.Minute)
		bucket := common.Bucket{
			Timestamp: ts,
			Date:      ts.Format("2006-01-02"),
			TimeLabel: ts.Format("15:04"),
			Values:    make(map[string]float64),
		}
		for name, series := range values {
			offset := numBuckets - len(series)
			if i >= offset {
				bucket.Values[name] = series[i-offset]
			}
		}
		snapshot.Buckets = append(snapshot.Buckets, bucket)
	}

	return snapshot
}

func createTestConfig() config.Config {
	return config.Config{
		General: config.GeneralConfig{
			DashboardURL: "https://dashboards.example.com/product-metrics",
		},
		Metrics: []config.MetricConfig{
			{Name: "views", Strategy: config.StrategyAdaptive, SpreadFactor: 3, WindowSize: 5},
			{Name: "likes", Strategy: config.StrategyAdaptive, SpreadFactor: 3, WindowSize: 5},
			{Name: "ctr", Strategy: config.StrategyFixed, LowerBound: 0.19, UpperBound: 0.23},
		},
	}
}

func TestNewAlertEngine(t *testing.T) {
	t.Parallel()

	t.Run("nil data source should error", func(t *testing.T) {
		engine, err := NewAlertEngine(config.Config{}, nil, &testsCommon.NotifierStub{}, &testsCommon.RendererStub{})

		assert.Nil(t, engine)
		assert.True(t, engine.IsInterfaceNil())
		assert.ErrorContains(t, err, "nil data source")
	})
	t.Run("nil notifier should error", func(t *testing.T) {
		engine, err := NewAlertEngine(config.Config{}, &testsCommon.DataSourceStub{}, nil, &testsCommon.RendererStub{})

		assert.Nil(t, engine)
		assert.ErrorContains(t, err, "nil notifier")
	})
	t.Run("nil chart renderer should error", func(t *testing.T) {
		engine, err := NewAlertEngine(config.Config{}, &testsCommon.DataSourceStub{}, &testsCommon.NotifierStub{}, nil)

		assert.Nil(t, engine)
		assert.ErrorContains(t, err, "nil chart renderer")
	})
	t.Run("should work", func(t *testing.T) {
		engine, err := NewAlertEngine(config.Config{}, &testsCommon.DataSourceStub{}, &testsCommon.NotifierStub{}, &testsCommon.RendererStub{})

		assert.NotNil(t, engine)
		assert.False(t, engine.IsInterfaceNil())
		assert.Nil(t, err)
	})
}

func TestAlertEngine_Process(t *testing.T) {
	t.Parallel()

	stableSeries := []float64{100, 102, 101, 103, 102, 101}

	t.Run("fetch failure aborts the run", func(t *testing.T) {
		expectedErr := errors.New("connection refused")
		source := &testsCommon.DataSourceStub{
			FetchSnapshotHandler: func(ctx context.Context) (common.Snapshot, error) {
				return common.Snapshot{}, expectedErr
			},
		}

		sentTexts := 0
		notifier := &testsCommon.NotifierStub{
			SendTextHandler: func(ctx context.Context, text string) error {
				sentTexts++
				return nil
			},
		}

		engine, _ := NewAlertEngine(createTestConfig(), source, notifier, &testsCommon.RendererStub{})

		report, err := engine.Process(context.Background())
		assert.ErrorIs(t, err, expectedErr)
		assert.Equal(t, common.RunReport{}, report)
		assert.Zero(t, sentTexts)
	})
	t.Run("one alerting metric out of three emits exactly one text+chart pair", func(t *testing.T) {
		snapshot := createTestSnapshot(map[string][]float64{
			"views": {100, 102, 101, 103, 102, 700}, // spike
			"likes": stableSeries,
			"ctr":   {0.21, 0.20, 0.21},
		})
		source := &testsCommon.DataSourceStub{
			FetchSnapshotHandler: func(ctx context.Context) (common.Snapshot, error) {
				return snapshot, nil
			},
		}

		var sentTexts []string
		var sentImages []string
		notifier := &testsCommon.NotifierStub{
			SendTextHandler: func(ctx context.Context, text string) error {
				sentTexts = append(sentTexts, text)
				return nil
			},
			SendImageHandler: func(ctx context.Context, name string, image []byte) error {
				sentImages = append(sentImages, name)
				return nil
			},
		}

		engine, _ := NewAlertEngine(createTestConfig(), source, notifier, &testsCommon.RendererStub{})

		report, err := engine.Process(context.Background())
		require.NoError(t, err)
		assert.Equal(t, common.RunReport{Evaluated: 3, Alerted: 1}, report)

		require.Len(t, sentTexts, 1)
		require.Len(t, sentImages, 1)
		assert.Contains(t, sentTexts[0], "Metric Views:")
		assert.Contains(t, sentTexts[0], "Current value 700.00")
		assert.Contains(t, sentTexts[0], "https://dashboards.example.com/product-metrics")
		assert.Equal(t, "views.png", sentImages[0])
	})
	t.Run("fixed strategy alert on CTR", func(t *testing.T) {
		snapshot := createTestSnapshot(map[string][]float64{
			"views": stableSeries,
			"likes": stableSeries,
			"ctr":   {0.21, 0.20, 0.25},
		})
		source := &testsCommon.DataSourceStub{
			FetchSnapshotHandler: func(ctx context.Context) (common.Snapshot, error) {
				return snapshot, nil
			},
		}

		var sentTexts []string
		notifier := &testsCommon.NotifierStub{
			SendTextHandler: func(ctx context.Context, text string) error {
				sentTexts = append(sentTexts, text)
				return nil
			},
		}

		engine, _ := NewAlertEngine(createTestConfig(), source, notifier, &testsCommon.RendererStub{})

		report, err := engine.Process(context.Background())
		require.NoError(t, err)
		assert.Equal(t, common.RunReport{Evaluated: 3, Alerted: 1}, report)
		require.Len(t, sentTexts, 1)
		assert.Contains(t, sentTexts[0], "Metric Ctr:")
		assert.Contains(t, sentTexts[0], "Current value 0.25")
	})
	t.Run("short series is skipped, remaining metrics still evaluated", func(t *testing.T) {
		snapshot := createTestSnapshot(map[string][]float64{
			"views": {100, 102}, // shorter than window+1
			"likes": stableSeries,
			"ctr":   {0.25},
		})
		source := &testsCommon.DataSourceStub{
			FetchSnapshotHandler: func(ctx context.Context) (common.Snapshot, error) {
				return snapshot, nil
			},
		}

		var sentTexts []string
		notifier := &testsCommon.NotifierStub{
			SendTextHandler: func(ctx context.Context, text string) error {
				sentTexts = append(sentTexts, text)
				return nil
			},
		}

		engine, _ := NewAlertEngine(createTestConfig(), source, notifier, &testsCommon.RendererStub{})

		report, err := engine.Process(context.Background())
		require.NoError(t, err)
		assert.Equal(t, common.RunReport{Evaluated: 3, Alerted: 1, Skipped: 1}, report)
		require.Len(t, sentTexts, 1) // the CTR alert still goes out
	})
	t.Run("notify failure is isolated to its metric", func(t *testing.T) {
		snapshot := createTestSnapshot(map[string][]float64{
			"views": {100, 102, 101, 103, 102, 700},
			"likes": stableSeries,
			"ctr":   {0.21, 0.20, 0.25},
		})
		source := &testsCommon.DataSourceStub{
			FetchSnapshotHandler: func(ctx context.Context) (common.Snapshot, error) {
				return snapshot, nil
			},
		}

		var sentTexts []string
		notifier := &testsCommon.NotifierStub{
			SendTextHandler: func(ctx context.Context, text string) error {
				if len(sentTexts) == 0 {
					sentTexts = append(sentTexts, text)
					return errors.New("telegram unreachable")
				}
				sentTexts = append(sentTexts, text)
				return nil
			},
		}

		engine, _ := NewAlertEngine(createTestConfig(), source, notifier, &testsCommon.RendererStub{})

		report, err := engine.Process(context.Background())
		require.NoError(t, err)
		assert.Equal(t, common.RunReport{Evaluated: 3, Alerted: 2, Failed: 1}, report)
		require.Len(t, sentTexts, 2) // first send failed but CTR alert was still attempted
	})
	t.Run("render failure still sends the alert text", func(t *testing.T) {
		snapshot := createTestSnapshot(map[string][]float64{
			"views": stableSeries,
			"likes": stableSeries,
			"ctr":   {0.21, 0.20, 0.25},
		})
		source := &testsCommon.DataSourceStub{
			FetchSnapshotHandler: func(ctx context.Context) (common.Snapshot, error) {
				return snapshot, nil
			},
		}

		renderer := &testsCommon.RendererStub{
			RenderLineChartHandler: func(series common.MetricSeries, envelope detector.Envelope, title string) ([]byte, error) {
				return nil, errors.New("render failed")
			},
		}

		sentTexts := 0
		sentImages := 0
		notifier := &testsCommon.NotifierStub{
			SendTextHandler: func(ctx context.Context, text string) error {
				sentTexts++
				return nil
			},
			SendImageHandler: func(ctx context.Context, name string, image []byte) error {
				sentImages++
				return nil
			},
		}

		engine, _ := NewAlertEngine(createTestConfig(), source, notifier, renderer)

		report, err := engine.Process(context.Background())
		require.NoError(t, err)
		assert.Equal(t, common.RunReport{Evaluated: 3, Alerted: 1, Failed: 1}, report)
		assert.Equal(t, 1, sentTexts)
		assert.Zero(t, sentImages)
	})
}

func TestAlertEngine_composeMessage(t *testing.T) {
	t.Parallel()

	cfg := createTestConfig()
	engine, err := NewAlertEngine(cfg, &testsCommon.DataSourceStub{}, &testsCommon.NotifierStub{}, &testsCommon.RendererStub{})
	require.NoError(t, err)

	t.Run("deviation versus previous value", func(t *testing.T) {
		snapshot := createTestSnapshot(map[string][]float64{"views": {100, 80}})
		text := engine.composeMessage(cfg.Metrics[0], snapshot.SeriesFor("views"))

		expected := "Metric Views:\nCurrent value 80.00\nDeviation from previous value 20.00%\nMetrics dashboard: https://dashboards.example.com/product-metrics\n"
		assert.Equal(t, expected, text)
	})
	t.Run("negative deviation on growth", func(t *testing.T) {
		snapshot := createTestSnapshot(map[string][]float64{"views": {100, 125}})
		text := engine.composeMessage(cfg.Metrics[0], snapshot.SeriesFor("views"))

		assert.Contains(t, text, "Deviation from previous value -25.00%")
	})
	t.Run("zero previous value yields n/a", func(t *testing.T) {
		snapshot := createTestSnapshot(map[string][]float64{"views": {0, 80}})
		text := engine.composeMessage(cfg.Metrics[0], snapshot.SeriesFor("views"))

		assert.Contains(t, text, "Deviation from previous value n/a")
	})
	t.Run("single observation yields n/a", func(t *testing.T) {
		snapshot := createTestSnapshot(map[string][]float64{"views": {80}})
		text := engine.composeMessage(cfg.Metrics[0], snapshot.SeriesFor("views"))

		assert.Contains(t, text, "Deviation from previous value n/a")
	})
}

func TestAlertEngine_estimateUnknownStrategy(t *testing.T) {
	t.Parallel()

	engine, err := NewAlertEngine(config.Config{}, &testsCommon.DataSourceStub{}, &testsCommon.NotifierStub{}, &testsCommon.RendererStub{})
	require.NoError(t, err)

	_, _, err = engine.estimate(common.MetricSeries{}, config.MetricConfig{Name: "views", Strategy: "seasonal"})
	assert.Error(t, err)
	assert.Equal(t, "unknown strategy 'seasonal'", fmt.Sprintf("%v", err))
}
