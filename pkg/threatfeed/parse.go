package threatfeed

import (
	"bufio"
	"io"
	"net"
	"strings"
)

// Parse reads a plain-text blocklist: one address per line, with "#" and ";"
// starting a comment. Host CIDRs (/32, /128) are accepted as their address;
// wider networks and unparsable tokens are skipped. The result is
// de-duplicated in first-seen order.
func Parse(r io.Reader) ([]string, error) {
	var addrs []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexAny(line, "#;"); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		addr, ok := normalize(fields[0])
		if !ok || seen[addr] {
			continue
		}
		seen[addr] = true
		addrs = append(addrs, addr)
	}
	return addrs, scanner.Err()
}

func normalize(token string) (string, bool) {
	if strings.Contains(token, "/") {
		ip, network, err := net.ParseCIDR(token)
		if err != nil {
			return "", false
		}
		ones, bits := network.Mask.Size()
		if ones != bits {
			return "", false
		}
		return ip.String(), true
	}

	ip := net.ParseIP(token)
	if ip == nil {
		return "", false
	}
	return ip.String(), true
}
