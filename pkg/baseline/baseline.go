package baseline

import (
	"math"

	"github.com/lucid-vigil/hostwatch/pkg/sample"
)

// MinSamples is the number of samples required before baselines are learned
// and detection leaves the cold-start state.
const MinSamples = 20

// Stats is the learned normal range of one signal or monitored host.
type Stats struct {
	Mean        float64 `json:"mean"`
	Std         float64 `json:"std"`
	SampleCount int     `json:"sample_count"`
}

// Set maps a signal name or monitored host address to its baseline.
type Set map[string]Stats

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Compute returns population statistics (divide by N) for values.
func Compute(values []float64) (Stats, bool) {
	if len(values) == 0 {
		return Stats{}, false
	}

	mean := calculateAverage(values)
	return Stats{
		Mean:        mean,
		Std:         calculateStdDev(values, mean),
		SampleCount: len(values),
	}, true
}

// Learn recomputes baselines from every sample currently in the window, for
// each fixed signal and each monitored host. It returns nil while the window
// holds fewer than MinSamples samples.
func Learn(w *sample.Window, hosts []string) Set {
	if w.Len() < MinSamples {
		return nil
	}

	learned := make(Set, len(sample.Signals)+len(hosts))
	for _, sig := range sample.Signals {
		sig := sig
		values := w.Series(func(s sample.Sample) (float64, bool) {
			return s.Value(sig)
		})
		if stats, ok := Compute(values); ok {
			learned[string(sig)] = stats
		}
	}

	for _, host := range hosts {
		host := host
		values := w.Series(func(s sample.Sample) (float64, bool) {
			v, ok := s.HostStatus[host]
			return v, ok
		})
		if stats, ok := Compute(values); ok {
			learned[host] = stats
		}
	}

	return learned
}

func calculateAverage(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func calculateStdDev(values []float64, mean float64) float64 {
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))

	return math.Sqrt(variance)
}
