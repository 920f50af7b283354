package chart

import (
	"bytes"
	"fmt"
	"time"

	"github.com/feedwatch/metrics-alerting/common"
	"github.com/feedwatch/metrics-alerting/detector"
	gochart "github.com/wcharczuk/go-chart/v2"
)

const (
	defaultWidth  = 1280
	defaultHeight = 800
	headroom      = 1.05
)

// lineRenderer draws a metric together with its boundary envelope as a PNG
// line chart: one line for the values, one per bound, y-axis clamped at zero
type lineRenderer struct {
	width  int
	height int
}

// NewLineRenderer creates a new renderer with the default canvas size
func NewLineRenderer() *lineRenderer {
	return &lineRenderer{
		width:  defaultWidth,
		height: defaultHeight,
	}
}

// RenderLineChart renders the series and envelope and returns the PNG bytes
func (r *lineRenderer) RenderLineChart(series common.MetricSeries, envelope detector.Envelope, title string) ([]byte, error) {
	if len(series.Points) < 2 {
		return nil, fmt.Errorf("not enough points to render a line chart: %d", len(series.Points))
	}
	if len(envelope) != len(series.Points) {
		return nil, fmt.Errorf("envelope length %d does not match series length %d", len(envelope), len(series.Points))
	}

	timestamps := series.Timestamps()
	values := series.Values()

	chartSeries := []gochart.Series{
		gochart.TimeSeries{
			Name:    "metric",
			XValues: timestamps,
			YValues: values,
		},
	}

	upTimes, upValues, lowValues := boundSeries(timestamps, envelope)
	if len(upTimes) >= 2 {
		chartSeries = append(chartSeries,
			gochart.TimeSeries{
				Name:    "up",
				XValues: upTimes,
				YValues: upValues,
			},
			gochart.TimeSeries{
				Name:    "low",
				XValues: upTimes,
				YValues: lowValues,
			},
		)
	}

	graph := gochart.Chart{
		Title:  title,
		Width:  r.width,
		Height: r.height,
		XAxis: gochart.XAxis{
			Name: "time",
		},
		YAxis: gochart.YAxis{
			Range: &gochart.ContinuousRange{
				Min: 0,
				Max: maxY(values, envelope),
			},
		},
		Series: chartSeries,
	}
	graph.Elements = []gochart.Renderable{gochart.Legend(&graph)}

	buffer := &bytes.Buffer{}
	err := graph.Render(gochart.PNG, buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	return buffer.Bytes(), nil
}

// boundSeries extracts the defined portion of the envelope as plottable lines
func boundSeries(timestamps []time.Time, envelope detector.Envelope) ([]time.Time, []float64, []float64) {
	times := make([]time.Time, 0, len(envelope))
	ups := make([]float64, 0, len(envelope))
	lows := make([]float64, 0, len(envelope))

	for i, bound := range envelope {
		if !bound.Defined {
			continue
		}

		times = append(times, timestamps[i])
		ups = append(ups, bound.Up)
		lows = append(lows, bound.Low)
	}

	return times, ups, lows
}

func maxY(values []float64, envelope detector.Envelope) float64 {
	max := 0.0
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	for _, bound := range envelope {
		if bound.Defined && bound.Up > max {
			max = bound.Up
		}
	}

	if max <= 0 {
		return 1
	}

	return max * headroom
}

// IsInterfaceNil returns true if the value under the interface is nil
func (r *lineRenderer) IsInterfaceNil() bool {
	return r == nil
}
