package detector

import (
	"fmt"
	"math"
	"sort"
)

// Default parameters for the adaptive strategy, tuned for 15-minute buckets
const (
	DefaultSpreadFactor = 3.0
	DefaultWindowSize   = 5
)

// Bound is the acceptable value range at one position of a series. Undefined
// bounds occur at the start of an adaptive envelope where there is not enough
// prior history for a rolling statistic
type Bound struct {
	Low     float64
	Up      float64
	Defined bool
}

// Envelope is the sequence of bounds aligned one to one with the input series
type Envelope []Bound

// Contains returns true if the value lies inside the bound, boundary values
// included. The alert contract is strict: only values strictly outside trigger
func (b Bound) Contains(value float64) bool {
	return !b.Defined || (value >= b.Low && value <= b.Up)
}

// EstimateAdaptive computes an interquartile-range envelope over the series and
// flags whether the latest observation falls strictly outside of it.
//
// Per position the 25th and 75th percentiles of the windowSize values strictly
// before it are taken (lagged by one so the current value never feeds its own
// bound), the raw bounds are q75 + spreadFactor*iqr and q25 - spreadFactor*iqr,
// and both bound sequences are then smoothed with a centered moving average of
// the same width, clipped at the series edges.
//
// Series shorter than windowSize+1 observations cannot produce a bound for the
// latest position and yield ErrInsufficientHistory
func EstimateAdaptive(values []float64, spreadFactor float64, windowSize int) (Envelope, bool, error) {
	if windowSize < 1 {
		return nil, false, fmt.Errorf("%w: %d", ErrInvalidWindowSize, windowSize)
	}
	if spreadFactor <= 0 {
		return nil, false, fmt.Errorf("%w: %f", ErrInvalidSpreadFactor, spreadFactor)
	}
	if len(values) < windowSize+1 {
		return nil, false, fmt.Errorf("%w: need at least %d observations, got %d",
			ErrInsufficientHistory, windowSize+1, len(values))
	}

	raw := make(Envelope, len(values))
	window := make([]float64, windowSize)
	for i := windowSize; i < len(values); i++ {
		copy(window, values[i-windowSize:i])
		sort.Float64s(window)

		q25 := quantileSorted(window, 0.25)
		q75 := quantileSorted(window, 0.75)
		iqr := q75 - q25

		raw[i] = Bound{
			Low:     q25 - spreadFactor*iqr,
			Up:      q75 + spreadFactor*iqr,
			Defined: true,
		}
	}

	envelope := smooth(raw, windowSize)

	last := len(values) - 1
	isAlert := !envelope[last].Contains(values[last])

	return envelope, isAlert, nil
}

// EstimateFixed applies the same constant bounds to every position of the
// series. Used for ratio metrics whose healthy range is domain-known rather
// than statistically derived. History plays no role: only the latest value is
// compared against [low, up], strictly
func EstimateFixed(values []float64, low float64, up float64) (Envelope, bool, error) {
	if low > up {
		return nil, false, fmt.Errorf("%w: [%f, %f]", ErrInvalidBounds, low, up)
	}
	if len(values) == 0 {
		return nil, false, fmt.Errorf("%w: empty series", ErrInsufficientHistory)
	}

	envelope := make(Envelope, len(values))
	for i := range envelope {
		envelope[i] = Bound{Low: low, Up: up, Defined: true}
	}

	isAlert := !envelope[len(values)-1].Contains(values[len(values)-1])

	return envelope, isAlert, nil
}

// smooth averages each bound with its neighbours over a centered window of the
// given width, skipping undefined positions. A position stays undefined only
// when no defined raw bound falls inside its window
func smooth(raw Envelope, window int) Envelope {
	half := window / 2
	out := make(Envelope, len(raw))

	for i := range raw {
		from := i - half
		if from < 0 {
			from = 0
		}
		to := i + half
		if to > len(raw)-1 {
			to = len(raw) - 1
		}

		sumLow, sumUp := 0.0, 0.0
		count := 0
		for j := from; j <= to; j++ {
			if !raw[j].Defined {
				continue
			}

			sumLow += raw[j].Low
			sumUp += raw[j].Up
			count++
		}

		if count == 0 {
			continue
		}

		out[i] = Bound{
			Low:     sumLow / float64(count),
			Up:      sumUp / float64(count),
			Defined: true,
		}
	}

	return out
}

// quantileSorted computes the q-th quantile of an ascending-sorted slice using
// linear interpolation between the two closest ranks
func quantileSorted(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	idx := int(math.Floor(pos))
	frac := pos - float64(idx)

	if frac == 0 || idx+1 >= len(sorted) {
		return sorted[idx]
	}

	return sorted[idx] + frac*(sorted[idx+1]-sorted[idx])
}
