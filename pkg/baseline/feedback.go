package baseline

import (
	"fmt"
	"math"
)

// Feedback records dismissed anomalies. A true entry suppresses any future
// anomaly for the same signal at the same rounded value. Entries never expire.
type Feedback map[string]bool

// FeedbackKey builds the "<signal>-<rounded value>" key used by Feedback.
// Ties round to even, so 2.5 keys as "x-2" and 3.5 as "x-4".
func FeedbackKey(signal string, value float64) string {
	rounded := math.RoundToEven(value)
	if rounded == 0 {
		rounded = 0 // drop negative zero
	}
	return fmt.Sprintf("%s-%.0f", signal, rounded)
}

// Dismissed reports whether signal at value has been dismissed.
func (f Feedback) Dismissed(signal string, value float64) bool {
	return f[FeedbackKey(signal, value)]
}

// Dismiss marks signal at value as acknowledged.
func (f Feedback) Dismiss(signal string, value float64) string {
	key := FeedbackKey(signal, value)
	f[key] = true
	return key
}

// Clone returns an independent copy of the feedback set.
func (f Feedback) Clone() Feedback {
	out := make(Feedback, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
