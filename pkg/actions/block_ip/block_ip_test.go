package block_ip

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubExec(t *testing.T, os string) *[]string {
	t.Helper()
	origExec, origOS := execCommand, goos
	t.Cleanup(func() { execCommand, goos = origExec, origOS })

	var got []string
	goos = os
	execCommand = func(_ context.Context, name string, args ...string) ([]byte, error) {
		got = append([]string{name}, args...)
		return nil, nil
	}
	return &got
}

func TestIsIPv4(t *testing.T) {
	valid := []string{"192.0.2.1", "0.0.0.0", "255.255.255.255", "10.0.0.01"}
	invalid := []string{"256.1.1.1", "1.2.3", "2001:db8::1", "192.0.2.1/32", " 192.0.2.1", "a.b.c.d", ""}

	for _, ip := range valid {
		assert.True(t, IsIPv4(ip), ip)
	}
	for _, ip := range invalid {
		assert.False(t, IsIPv4(ip), ip)
	}
}

func TestBlockIPAction_Execute(t *testing.T) {
	got := stubExec(t, "linux")

	action := &BlockIPAction{}
	require.NoError(t, action.Execute(context.Background(), map[string]interface{}{"ip": "203.0.113.9"}))
	assert.Equal(t, []string{"sudo", "iptables", "-A", "INPUT", "-s", "203.0.113.9", "-j", "DROP"}, *got)
}

func TestBlockIPAction_RejectsInvalidInput(t *testing.T) {
	got := stubExec(t, "linux")
	action := &BlockIPAction{}

	assert.Error(t, action.Execute(context.Background(), map[string]interface{}{}))
	assert.Error(t, action.Execute(context.Background(), map[string]interface{}{"ip": "2001:db8::1"}))
	assert.Error(t, action.Execute(context.Background(), map[string]interface{}{"ip": 42}))
	assert.Empty(t, *got)
}

func TestBlockIPAction_NoopOffLinux(t *testing.T) {
	got := stubExec(t, "darwin")

	require.NoError(t, (&BlockIPAction{}).Execute(context.Background(), map[string]interface{}{"ip": "203.0.113.9"}))
	assert.Empty(t, *got)
}
