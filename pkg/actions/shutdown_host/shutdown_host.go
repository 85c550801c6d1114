package shutdown_host

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/rs/zerolog/log"
)

var (
	goos        = runtime.GOOS
	execCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return exec.CommandContext(ctx, name, args...).CombinedOutput()
	}
)

// ShutdownHostAction implements the actions.Action interface. It powers the
// machine off immediately, used when the board is overheating.
type ShutdownHostAction struct{}

// Name returns the unique name of the action.
func (sha *ShutdownHostAction) Name() string {
	return "shutdown_host"
}

// Execute issues `sudo shutdown now`. The optional "temperature" entry is
// only used for logging.
func (sha *ShutdownHostAction) Execute(ctx context.Context, data map[string]interface{}) error {
	temp, _ := data["temperature"].(float64)

	if goos != "linux" {
		log.Debug().Str("os", goos).Msg("shutdown unavailable on this platform, skipping.")
		return nil
	}

	log.Warn().Float64("temperature", temp).Msg("High temperature detected, initiating shutdown.")

	out, err := execCommand(ctx, "sudo", "shutdown", "now")
	if err != nil {
		return fmt.Errorf("failed to request shutdown: %w\nOutput: %s", err, string(out))
	}
	return nil
}
