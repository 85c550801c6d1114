package probe

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/lucid-vigil/hostwatch/pkg/sample"
	"github.com/miekg/dns"
)

// dnsPlaceholderMs is reported when a host only answers to name resolution.
const dnsPlaceholderMs = 50.0

var (
	goos       = runtime.GOOS
	dialTCP    = dialTimeout
	lookupHost = resolveA

	resolvConf = "/etc/resolv.conf"
	pingTimeRe = regexp.MustCompile(`time[=<]\s*([0-9]+(?:\.[0-9]+)?)`)
)

// Gateway returns the default route's next hop, or the configured fallback
// address when the routing table cannot be read.
func (p *Probe) Gateway(ctx context.Context) string {
	if goos == "linux" {
		ctx, cancel := context.WithTimeout(ctx, p.cfg.CommandTimeout)
		defer cancel()

		out, err := runCommand(ctx, "ip", "route", "show", "default")
		if err == nil {
			if gw, ok := parseDefaultRoute(string(out)); ok {
				return gw
			}
		}
		p.degraded(sample.SignalPing, "ip route", err)
	}
	return p.cfg.FallbackGateway
}

// parseDefaultRoute extracts the next hop from "default via 10.0.0.1 dev eth0".
func parseDefaultRoute(out string) (string, bool) {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 3 && fields[1] == "via" && net.ParseIP(fields[2]) != nil {
			return fields[2], true
		}
	}
	return "", false
}

// Ping measures round-trip latency to host in milliseconds. The chain is a
// single ICMP echo, then a TCP connect to port 80, then (for names only) a DNS
// lookup reported as a fixed 50ms. Unreachable hosts yield sample.Unreachable.
func (p *Probe) Ping(ctx context.Context, host string) sample.Reading {
	ms, err := p.icmp(ctx, host)
	if err == nil {
		return sample.Reading{Value: ms, Outcome: sample.OutcomeMeasured, Source: "icmp"}
	}
	p.degraded(sample.SignalPing, "icmp", err)

	start := time.Now()
	err = dialTCP(ctx, net.JoinHostPort(host, "80"), p.cfg.TCPTimeout)
	if err == nil {
		elapsed := float64(time.Since(start).Microseconds()) / 1000
		return sample.Reading{Value: elapsed, Outcome: sample.OutcomeFallback, Source: "tcp:80"}
	}
	p.degraded(sample.SignalPing, "tcp", err)

	// An IP literal has nothing to resolve.
	if net.ParseIP(host) == nil {
		dnsCtx, cancel := context.WithTimeout(ctx, p.cfg.DNSTimeout)
		err = lookupHost(dnsCtx, host, p.cfg.DNSTimeout)
		cancel()
		if err == nil {
			return sample.Reading{Value: dnsPlaceholderMs, Outcome: sample.OutcomeFallback, Source: "dns"}
		}
		p.degraded(sample.SignalPing, "dns", err)
	}

	return sample.Reading{Value: sample.Unreachable, Outcome: sample.OutcomeUnavailable}
}

func (p *Probe) icmp(ctx context.Context, host string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.CommandTimeout)
	defer cancel()

	var args []string
	if goos == "windows" {
		args = []string{"-n", "1", "-w", strconv.Itoa(int(p.cfg.ICMPTimeout.Milliseconds())), host}
	} else {
		secs := int(p.cfg.ICMPTimeout.Seconds())
		if secs < 1 {
			secs = 1
		}
		args = []string{"-c", "1", "-W", strconv.Itoa(secs), host}
	}

	out, err := runCommand(ctx, "ping", args...)
	if err != nil {
		return 0, err
	}
	return parsePingTime(string(out))
}

// parsePingTime reads "time=12.3 ms" (or "time<1ms" on Windows).
func parsePingTime(out string) (float64, error) {
	m := pingTimeRe.FindStringSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("no round-trip time in ping output")
	}
	return strconv.ParseFloat(m[1], 64)
}

func dialTimeout(ctx context.Context, addr string, timeout time.Duration) error {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

// resolveA asks the system nameservers for an A record of host.
func resolveA(ctx context.Context, host string, timeout time.Duration) error {
	conf, err := dns.ClientConfigFromFile(resolvConf)
	if err != nil {
		return err
	}
	if len(conf.Servers) == 0 {
		return fmt.Errorf("no nameservers in %s", resolvConf)
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	client := &dns.Client{Timeout: timeout}
	var lastErr error
	for _, server := range conf.Servers {
		resp, _, err := client.ExchangeContext(ctx, msg, net.JoinHostPort(server, conf.Port))
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("%s: %s", host, dns.RcodeToString[resp.Rcode])
			continue
		}
		for _, rr := range resp.Answer {
			if _, ok := rr.(*dns.A); ok {
				return nil
			}
		}
		lastErr = fmt.Errorf("%s: no A record", host)
	}
	return lastErr
}
