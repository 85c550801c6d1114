package probe

import (
	"io"
	"os"
	"strings"

	"github.com/lucid-vigil/hostwatch/pkg/sample"
)

const (
	authLogTailLines = 500
	authLogTailBytes = 256 * 1024
	simulatedChance  = 0.1
)

// FailedLogins counts "failed password" entries that are not "invalid user"
// attempts in the last 500 lines of each auth log. When no log is readable
// and simulation is enabled, it reports 1 or 2 roughly one tick in ten.
func (p *Probe) FailedLogins() sample.Reading {
	readable := false
	count := 0
	for _, path := range p.cfg.AuthLogPaths {
		lines, err := tailLines(path, authLogTailLines)
		if err != nil {
			p.degraded(sample.SignalFailedLogins, path, err)
			continue
		}
		readable = true
		count += countFailedLogins(lines)
	}

	if readable {
		return sample.Reading{Value: float64(count), Outcome: sample.OutcomeMeasured, Source: "auth_log"}
	}
	if !p.cfg.SimulateFallbacks {
		return sample.Reading{Outcome: sample.OutcomeUnavailable}
	}

	simulated := 0
	if p.chance() < simulatedChance {
		simulated = 1 + p.intn(2)
	}
	return sample.Reading{Value: float64(simulated), Outcome: sample.OutcomeSimulated, Source: "simulated"}
}

func countFailedLogins(lines []string) int {
	n := 0
	for _, line := range lines {
		l := strings.ToLower(line)
		if strings.Contains(l, "failed password") && !strings.Contains(l, "invalid user") {
			n++
		}
	}
	return n
}

// tailLines returns at most n trailing lines of the file, reading no more
// than authLogTailBytes from its end.
func tailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	offset := info.Size() - authLogTailBytes
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if offset > 0 && len(lines) > 0 {
		lines = lines[1:] // partial first line
	}
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
