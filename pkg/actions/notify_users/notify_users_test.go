package notify_users

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifyUsersAction_Execute(t *testing.T) {
	origExec, origOS := execCommand, goos
	defer func() { execCommand, goos = origExec, origOS }()

	var got []string
	goos = "linux"
	execCommand = func(_ context.Context, name string, args ...string) ([]byte, error) {
		got = append([]string{name}, args...)
		return nil, nil
	}

	action := &NotifyUsersAction{}
	assert.Equal(t, "notify_users", action.Name())

	assert.NoError(t, action.Execute(context.Background(), nil))
	assert.Equal(t, []string{"wall", DefaultMessage}, got)

	assert.NoError(t, action.Execute(context.Background(), map[string]interface{}{"message": "router down"}))
	assert.Equal(t, []string{"wall", "router down"}, got)

	execCommand = func(context.Context, string, ...string) ([]byte, error) {
		return []byte("wall: cannot get tty name"), errors.New("exit status 1")
	}
	assert.ErrorContains(t, action.Execute(context.Background(), nil), "cannot get tty name")

	goos = "windows"
	assert.NoError(t, action.Execute(context.Background(), nil))
}
