package sample

// DefaultWindowSize is the number of samples kept when no size is configured.
const DefaultWindowSize = 60

// Window is a size-bounded, time-ordered sequence of samples. Appending past
// capacity evicts the oldest sample.
//
// Window is not safe for concurrent use; the engine owns it exclusively.
type Window struct {
	buffer   []Sample
	capacity int
}

// NewWindow creates a window holding at most capacity samples.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &Window{
		buffer:   make([]Sample, 0, capacity),
		capacity: capacity,
	}
}

// Append adds a sample, evicting the oldest one when the window is full.
func (w *Window) Append(s Sample) {
	if len(w.buffer) >= w.capacity {
		copy(w.buffer, w.buffer[1:])
		w.buffer = w.buffer[:len(w.buffer)-1]
	}
	w.buffer = append(w.buffer, s)
}

// Len returns the number of samples currently held.
func (w *Window) Len() int {
	return len(w.buffer)
}

// Cap returns the configured capacity.
func (w *Window) Cap() int {
	return w.capacity
}

// Latest returns the newest sample.
func (w *Window) Latest() (Sample, bool) {
	if len(w.buffer) == 0 {
		return Sample{}, false
	}
	return w.buffer[len(w.buffer)-1], true
}

// Samples returns a copy of the window, oldest first.
func (w *Window) Samples() []Sample {
	out := make([]Sample, len(w.buffer))
	copy(out, w.buffer)
	return out
}

// Recent returns up to limit samples, most recent first. A non-positive limit
// returns the whole window.
func (w *Window) Recent(limit int) []Sample {
	if limit <= 0 || limit > len(w.buffer) {
		limit = len(w.buffer)
	}
	out := make([]Sample, 0, limit)
	for i := len(w.buffer) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, w.buffer[i])
	}
	return out
}

// Series extracts one value per sample, oldest first. Samples for which fn
// reports false are skipped.
func (w *Window) Series(fn func(Sample) (float64, bool)) []float64 {
	values := make([]float64, 0, len(w.buffer))
	for _, s := range w.buffer {
		if v, ok := fn(s); ok {
			values = append(values, v)
		}
	}
	return values
}
