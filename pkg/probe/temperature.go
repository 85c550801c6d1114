package probe

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/lucid-vigil/hostwatch/pkg/sample"
	"github.com/shirou/gopsutil/v3/host"
)

var (
	runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return exec.CommandContext(ctx, name, args...).Output()
	}
	sensorsTemperatures = host.SensorsTemperatures
	thermalZonePattern  = "/sys/class/thermal/thermal_zone%d/temp"
)

const thermalZones = 5

// Temperature tries vcgencmd, then the first five thermal zones, then the
// gopsutil sensor list. When none answers and simulation is enabled it
// returns round(35 + 0.3*cpu + 5*sin(unix/100)).
func (p *Probe) Temperature(ctx context.Context, cpuPercent float64) sample.Reading {
	v, err := p.vcgencmd(ctx)
	if err == nil {
		return sample.Reading{Value: v, Outcome: sample.OutcomeMeasured, Source: "vcgencmd"}
	}
	p.degraded(sample.SignalTemperature, "vcgencmd", err)

	for i := 0; i < thermalZones; i++ {
		path := fmt.Sprintf(thermalZonePattern, i)
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		milli, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
		if err != nil {
			continue
		}
		return sample.Reading{Value: milli / 1000, Outcome: sample.OutcomeFallback, Source: path}
	}
	p.degraded(sample.SignalTemperature, "thermal_zone", nil)

	if temps, err := sensorsTemperatures(); err == nil {
		for _, t := range temps {
			if t.Temperature > 0 {
				return sample.Reading{Value: t.Temperature, Outcome: sample.OutcomeFallback, Source: t.SensorKey}
			}
		}
	}

	if !p.cfg.SimulateFallbacks {
		return sample.Reading{Outcome: sample.OutcomeUnavailable}
	}
	variation := math.Sin(float64(p.now().Unix())/100) * 5
	return sample.Reading{
		Value:   math.Round(35 + cpuPercent*0.3 + variation),
		Outcome: sample.OutcomeSimulated,
		Source:  "simulated",
	}
}

// vcgencmd reads the Raspberry Pi firmware sensor: "temp=48.3'C".
func (p *Probe) vcgencmd(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.CommandTimeout)
	defer cancel()

	out, err := runCommand(ctx, "vcgencmd", "measure_temp")
	if err != nil {
		return 0, err
	}
	return parseVcgencmd(string(out))
}

func parseVcgencmd(out string) (float64, error) {
	_, value, ok := strings.Cut(out, "=")
	if !ok {
		return 0, fmt.Errorf("unexpected vcgencmd output %q", strings.TrimSpace(out))
	}
	value = strings.TrimSpace(strings.Replace(value, "'C", "", 1))
	return strconv.ParseFloat(value, 64)
}
