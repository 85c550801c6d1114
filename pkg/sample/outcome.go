package sample

import (
	"fmt"
)

// Outcome records how a probe arrived at a reading.
type Outcome int

const (
	// OutcomeMeasured is a reading taken from the primary source.
	OutcomeMeasured Outcome = iota
	// OutcomeFallback is a real reading from a secondary strategy
	// (thermal zone instead of vendor tool, TCP connect instead of ICMP).
	OutcomeFallback
	// OutcomeSimulated is a synthetic value produced when no source exists.
	OutcomeSimulated
	// OutcomeUnavailable is a safe default used when every strategy failed.
	OutcomeUnavailable
)

var outcomeNames = []string{"measured", "fallback", "simulated", "unavailable"}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return fmt.Sprintf("outcome(%d)", int(o))
	}
	return outcomeNames[o]
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText decodes an outcome name.
func (o *Outcome) UnmarshalText(text []byte) error {
	for i, name := range outcomeNames {
		if name == string(text) {
			*o = Outcome(i)
			return nil
		}
	}
	return fmt.Errorf("unknown probe outcome %q", string(text))
}

// Reading is a single probed value together with how it was obtained.
type Reading struct {
	Value   float64
	Outcome Outcome
	Source  string
}

// Degraded reports whether the reading did not come from the primary source.
func (r Reading) Degraded() bool {
	return r.Outcome != OutcomeMeasured
}
