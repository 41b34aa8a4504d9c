// Package dnscheck watches external DNS propagation for the platform
// domain. Certificates and ingress routing only work once both the root
// domain and the wildcard resolve to the ingress address, which is outside
// the cluster's control and can take a long time to converge.
package dnscheck

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/cyberedu/rangectl/pkg/common"
	"github.com/cyberedu/rangectl/pkg/connector"
	"github.com/cyberedu/rangectl/pkg/logger"
	"github.com/cyberedu/rangectl/pkg/runner"
)

// Status classifies one propagation check.
type Status string

const (
	// StatusSuccess means both the root and the wildcard resolve to the
	// expected address.
	StatusSuccess Status = "success"
	// StatusPending means propagation has not completed yet.
	StatusPending Status = "pending"
	// StatusWarning means propagation is still incomplete after enough
	// attempts that operator attention is warranted.
	StatusWarning Status = "warning"
	// StatusError means the check could not run at all.
	StatusError Status = "error"
)

// wildcardProbeHost is the synthetic label used to test the wildcard
// record; any label not explicitly delegated works.
const wildcardProbeHost = "propagation-probe"

// Result holds the addresses observed for one check.
type Result struct {
	RootIPs     []string
	WildcardIPs []string
	RootOK      bool
	WildcardOK  bool
}

// Monitor runs DNS propagation checks against the system resolvers using
// dig, falling back to nslookup where dig is not installed.
type Monitor struct {
	rnr  runner.Runner
	conn connector.Connector
	log  *logger.Logger

	Domain     string
	ExpectedIP string
	Interval   time.Duration

	attempts atomic.Int64
	inFlight atomic.Bool
}

func NewMonitor(rnr runner.Runner, conn connector.Connector, log *logger.Logger, domain, expectedIP string) *Monitor {
	return &Monitor{
		rnr: rnr, conn: conn, log: log,
		Domain: domain, ExpectedIP: expectedIP,
		Interval: 30 * time.Second,
	}
}

// Attempts returns how many checks have run.
func (m *Monitor) Attempts() int { return int(m.attempts.Load()) }

// Check resolves the root domain and a wildcard probe host in parallel and
// reports whether each points at the expected address.
func (m *Monitor) Check(ctx context.Context) (Result, error) {
	if m.Domain == "" || m.ExpectedIP == "" {
		return Result{}, errors.New("dns check requires both a domain and an expected address")
	}
	m.attempts.Add(1)

	var res Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ips, err := m.resolve(gctx, m.Domain)
		if err != nil {
			return err
		}
		res.RootIPs = ips
		res.RootOK = contains(ips, m.ExpectedIP)
		return nil
	})
	g.Go(func() error {
		ips, err := m.resolve(gctx, wildcardProbeHost+"."+m.Domain)
		if err != nil {
			return err
		}
		res.WildcardIPs = ips
		res.WildcardOK = contains(ips, m.ExpectedIP)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	return res, nil
}

// resolve prefers dig and falls back to nslookup when dig is absent. A
// resolution that returns no addresses is not an error here; it simply
// means the record has not propagated.
func (m *Monitor) resolve(ctx context.Context, host string) ([]string, error) {
	if _, err := m.conn.LookPath(ctx, common.ToolDig); err == nil {
		ips, err := m.rnr.DigResolve(ctx, m.conn, host, runner.DNSLookupOptions{})
		return ips, ignoreLookupFailure(err)
	}
	if _, err := m.conn.LookPath(ctx, common.ToolNslookup); err != nil {
		return nil, errors.New("neither dig nor nslookup is available")
	}
	ips, err := m.rnr.NslookupResolve(ctx, m.conn, host, runner.DNSLookupOptions{})
	return ips, ignoreLookupFailure(err)
}

// ignoreLookupFailure turns a resolver that ran but exited non-zero into an
// empty answer. nslookup exits 1 on NXDOMAIN, and an un-propagated record is
// exactly the condition the attempt counter is tracking, not a check error.
func ignoreLookupFailure(err error) error {
	var cmdErr *connector.CommandError
	if errors.As(err, &cmdErr) {
		return nil
	}
	return err
}

// Classify maps a check outcome onto a propagation status. Success requires
// BOTH records; a warning is raised once the attempt count reaches the
// threshold without convergence.
func (m *Monitor) Classify(res Result, err error) Status {
	switch {
	case err != nil:
		return StatusError
	case res.RootOK && res.WildcardOK:
		return StatusSuccess
	case m.Attempts() >= common.DNSWarningThreshold:
		return StatusWarning
	default:
		return StatusPending
	}
}

// RunLoop checks propagation on a ticker until it succeeds or the context
// ends, reporting each classification through onStatus. An in-flight guard
// drops ticks that land while a slow resolver call is still running, so
// checks never pile up.
func (m *Monitor) RunLoop(ctx context.Context, onStatus func(Status, Result)) {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	runOnce := func() Status {
		if !m.inFlight.CompareAndSwap(false, true) {
			return StatusPending
		}
		defer m.inFlight.Store(false)

		res, err := m.Check(ctx)
		status := m.Classify(res, err)
		switch status {
		case StatusSuccess:
			m.log.Successf("dns propagation complete for %s", m.Domain)
		case StatusWarning:
			m.log.Warnf("dns for %s still not propagated after %d attempts", m.Domain, m.Attempts())
		case StatusError:
			m.log.Errorf("dns check failed: %v", err)
		}
		if onStatus != nil {
			onStatus(status, res)
		}
		return status
	}

	if runOnce() == StatusSuccess {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if runOnce() == StatusSuccess {
				return
			}
		}
	}
}

func contains(ips []string, want string) bool {
	for _, ip := range ips {
		if ip == want {
			return true
		}
	}
	return false
}
