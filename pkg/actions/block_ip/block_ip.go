package block_ip

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"

	"github.com/rs/zerolog/log"
)

// Implements Action interface

var (
	goos        = runtime.GOOS
	execCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return exec.CommandContext(ctx, name, args...).CombinedOutput()
	}
	ipv4Pattern = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)
)

// BlockIPAction implements the actions.Action interface. It is responsible for
// blocking a given IPv4 address using the system's firewall (iptables).
type BlockIPAction struct{}

// Name returns the unique name of the action.
func (bia *BlockIPAction) Name() string {
	return "block_ip"
}

// IsIPv4 reports whether s is a dotted-quad IPv4 address.
func IsIPv4(s string) bool {
	return ipv4Pattern.MatchString(s)
}

// Execute runs the logic to block an IP address. It expects the data map to
// contain an "ip" key with the IPv4 address to be blocked. It uses `sudo iptables`
// to add a DROP rule to the INPUT chain.
func (bia *BlockIPAction) Execute(ctx context.Context, data map[string]interface{}) error {
	ip, ok := data["ip"].(string)
	if !ok || ip == "" {
		return fmt.Errorf("missing or invalid 'ip' in action data for block_ip action")
	}

	if !IsIPv4(ip) {
		return fmt.Errorf("invalid IPv4 address format: %s", ip)
	}

	if goos != "linux" {
		log.Debug().Str("ip", ip).Str("os", goos).Msg("iptables unavailable on this platform, not blocking.")
		return nil
	}

	log.Info().Str("ip", ip).Msg("Attempting to block IP using iptables...")

	// Command to add a rule to block the IP in the INPUT chain
	out, err := execCommand(ctx, "sudo", "iptables", "-A", "INPUT", "-s", ip, "-j", "DROP")
	if err != nil {
		return fmt.Errorf("failed to block IP %s: %w\nOutput: %s", ip, err, string(out))
	}

	log.Info().Str("ip", ip).Msg("Successfully blocked IP using iptables.")
	return nil
}
