package notify_users

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

// DefaultMessage is broadcast when the action data carries no message.
const DefaultMessage = "Device Down Detected!"

// NotifyUsersAction broadcasts a message to every logged-in terminal with wall(1).
type NotifyUsersAction struct{}

func (nua *NotifyUsersAction) Name() string {
	return "notify_users"
}

// Execute sends data["message"] (or DefaultMessage) through wall. It is a
// no-op where wall does not exist.
func (nua *NotifyUsersAction) Execute(ctx context.Context, data map[string]interface{}) error {
	msg, _ := data["message"].(string)
	if msg == "" {
		msg = DefaultMessage
	}

	if goos != "linux" {
		log.Debug().Str("os", goos).Msg("wall unavailable on this platform, not notifying.")
		return nil
	}

	out, err := execCommand(ctx, "wall", msg)
	if err != nil {
		return fmt.Errorf("failed to broadcast notification: %w\nOutput: %s", err, string(out))
	}

	log.Info().Str("message", msg).Msg("Broadcast notification sent.")
	return nil
}
