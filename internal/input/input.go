// Package input loads the source and destination lists that define a sweep's
// work set. Any malformed line is a fatal error: a partially parsed work set
// would corrupt completion accounting.
package input

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/smohades/reachcheck/internal/domain"
)

// Sources reads one source host per line, trimming whitespace and skipping
// blank lines and # comments. Duplicates are dropped (first occurrence wins)
// so no work item is ever enumerated twice.
func Sources(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sources file: %w", err)
	}
	defer f.Close()

	seen := make(map[string]struct{})
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return out, nil
}

// Destinations reads one destination per line, either "ip,port" or "ip:port".
// For the colon form the port is taken after the last colon so bracketless
// IPv6 addresses still parse.
func Destinations(path string) ([]domain.Destination, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open destinations file: %w", err)
	}
	defer f.Close()

	var out []domain.Destination
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d, err := parseDestination(line)
		if err != nil {
			return nil, fmt.Errorf("destinations file line %d: %w", lineNo, err)
		}
		out = append(out, d)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read destinations file: %w", err)
	}
	return out, nil
}

func parseDestination(line string) (domain.Destination, error) {
	var ip, portStr string
	if i := strings.Index(line, ","); i >= 0 {
		ip, portStr = line[:i], line[i+1:]
	} else if i := strings.LastIndex(line, ":"); i >= 0 {
		ip, portStr = line[:i], line[i+1:]
	} else {
		return domain.Destination{}, fmt.Errorf("%q is not <ip>,<port> or <ip>:<port>", line)
	}

	ip = strings.TrimSpace(ip)
	if ip == "" {
		return domain.Destination{}, fmt.Errorf("%q has an empty address", line)
	}
	// Link-scope addresses need an interface qualifier the remote probe
	// command cannot supply.
	if strings.HasPrefix(strings.ToLower(ip), "fe80:") {
		return domain.Destination{}, fmt.Errorf("link-local IPv6 address %q is not testable", ip)
	}

	port, err := strconv.Atoi(strings.TrimSpace(portStr))
	if err != nil || port < 1 || port > 65535 {
		return domain.Destination{}, fmt.Errorf("%q has an invalid port", line)
	}
	return domain.Destination{IP: ip, Port: port}, nil
}
