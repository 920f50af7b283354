package common

import "time"

// Bucket holds one aggregated time bucket with the values of all tracked metrics
type Bucket struct {
	Timestamp time.Time
	Date      string
	TimeLabel string
	Values    map[string]float64
}

// Snapshot is the full dataset fetched from the warehouse for one run. Buckets
// are ordered by strictly non-decreasing timestamp, the warehouse query
// guarantees this
type Snapshot struct {
	Buckets []Bucket
}

// SeriesFor slices the snapshot down to one metric's series, keeping only the
// buckets that actually carry a value for that metric
func (s *Snapshot) SeriesFor(metric string) MetricSeries {
	series := MetricSeries{
		Metric: metric,
		Points: make([]MetricPoint, 0, len(s.Buckets)),
	}

	for _, bucket := range s.Buckets {
		value, found := bucket.Values[metric]
		if !found {
			continue
		}

		series.Points = append(series.Points, MetricPoint{
			Timestamp: bucket.Timestamp,
			Date:      bucket.Date,
			TimeLabel: bucket.TimeLabel,
			Value:     value,
		})
	}

	return series
}

// MetricPoint is a single observation of one metric
type MetricPoint struct {
	Timestamp time.Time
	Date      string
	TimeLabel string
	Value     float64
}

// MetricSeries is the time-ordered sequence of observations for one metric
type MetricSeries struct {
	Metric string
	Points []MetricPoint
}

// Values returns the raw value column of the series
func (ms MetricSeries) Values() []float64 {
	values := make([]float64, len(ms.Points))
	for i, p := range ms.Points {
		values[i] = p.Value
	}

	return values
}

// Timestamps returns the time column of the series
func (ms MetricSeries) Timestamps() []time.Time {
	timestamps := make([]time.Time, len(ms.Points))
	for i, p := range ms.Points {
		timestamps[i] = p.Timestamp
	}

	return timestamps
}

// RunReport holds the per-metric outcome counters of a single evaluation run
type RunReport struct {
	Evaluated int
	Alerted   int
	Skipped   int
	Failed    int
}

// RunRecord is the persisted outcome of one scheduled run
type RunRecord struct {
	StartedAt  int64  `json:"startedAt"`
	DurationMs int64  `json:"durationMs"`
	Evaluated  int    `json:"evaluated"`
	Alerted    int    `json:"alerted"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Error      string `json:"error"`
}
