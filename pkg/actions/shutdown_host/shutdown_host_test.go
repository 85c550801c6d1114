package shutdown_host

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShutdownHostAction_Execute(t *testing.T) {
	origExec, origOS := execCommand, goos
	defer func() { execCommand, goos = origExec, origOS }()

	calls := 0
	var got []string
	execCommand = func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls++
		got = append([]string{name}, args...)
		return nil, nil
	}

	goos = "darwin"
	assert.NoError(t, (&ShutdownHostAction{}).Execute(context.Background(), map[string]interface{}{"temperature": 91.0}))
	assert.Equal(t, 0, calls)

	goos = "linux"
	assert.NoError(t, (&ShutdownHostAction{}).Execute(context.Background(), map[string]interface{}{"temperature": 91.0}))
	assert.Equal(t, []string{"sudo", "shutdown", "now"}, got)
}
