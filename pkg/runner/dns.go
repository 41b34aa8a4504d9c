package runner

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/cyberedu/rangectl/pkg/connector"
)

const DefaultDNSTimeout = 15 * time.Second

// DigResolve resolves A records for host using dig.
// Corresponds to `dig +short [@server] HOST A`.
func (r *defaultRunner) DigResolve(ctx context.Context, conn connector.Connector, host string, opts DNSLookupOptions) ([]string, error) {
	if conn == nil {
		return nil, errors.New("connector cannot be nil")
	}
	if host == "" {
		return nil, errors.New("host is required for DigResolve")
	}

	var cmdArgs []string
	cmdArgs = append(cmdArgs, "dig", "+short")
	if opts.Server != "" {
		cmdArgs = append(cmdArgs, "@"+shellEscape(opts.Server))
	}
	cmdArgs = append(cmdArgs, shellEscape(host), "A")

	cmd := strings.Join(cmdArgs, " ")
	execTimeout := DefaultDNSTimeout
	if opts.Timeout > 0 {
		execTimeout = opts.Timeout
	}
	stdout, stderr, err := conn.Exec(ctx, cmd, &connector.ExecOptions{Timeout: execTimeout})
	if err != nil {
		return nil, errors.Wrapf(err, "dig lookup for '%s' failed. Stderr: %s", host, string(stderr))
	}
	return parseIPLines(string(stdout)), nil
}

// NslookupResolve resolves A records for host using nslookup, the fallback
// when dig is not installed.
func (r *defaultRunner) NslookupResolve(ctx context.Context, conn connector.Connector, host string, opts DNSLookupOptions) ([]string, error) {
	if conn == nil {
		return nil, errors.New("connector cannot be nil")
	}
	if host == "" {
		return nil, errors.New("host is required for NslookupResolve")
	}

	var cmdArgs []string
	cmdArgs = append(cmdArgs, "nslookup", shellEscape(host))
	if opts.Server != "" {
		cmdArgs = append(cmdArgs, shellEscape(opts.Server))
	}

	cmd := strings.Join(cmdArgs, " ")
	execTimeout := DefaultDNSTimeout
	if opts.Timeout > 0 {
		execTimeout = opts.Timeout
	}
	stdout, stderr, err := conn.Exec(ctx, cmd, &connector.ExecOptions{Timeout: execTimeout})
	if err != nil {
		return nil, errors.Wrapf(err, "nslookup for '%s' failed. Stderr: %s", host, string(stderr))
	}
	return parseNslookupOutput(string(stdout)), nil
}

// parseIPLines keeps only lines that are valid IPv4/IPv6 addresses. dig
// +short may interleave CNAME targets, which end with a dot.
func parseIPLines(out string) []string {
	var ips []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if net.ParseIP(line) != nil {
			ips = append(ips, line)
		}
	}
	return ips
}

// parseNslookupOutput extracts answer addresses, skipping the resolver's own
// "Server:"/"Address:" header block.
func parseNslookupOutput(out string) []string {
	var ips []string
	inAnswer := false
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Name:") {
			inAnswer = true
			continue
		}
		if !inAnswer {
			continue
		}
		if strings.HasPrefix(line, "Address:") {
			addr := strings.TrimSpace(strings.TrimPrefix(line, "Address:"))
			// Strip a possible "#53" port suffix.
			if i := strings.Index(addr, "#"); i >= 0 {
				addr = addr[:i]
			}
			if net.ParseIP(addr) != nil {
				ips = append(ips, addr)
			}
		}
	}
	return ips
}
