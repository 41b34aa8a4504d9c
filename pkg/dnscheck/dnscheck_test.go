package dnscheck

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberedu/rangectl/pkg/connector"
	"github.com/cyberedu/rangectl/pkg/logger"
	"github.com/cyberedu/rangectl/pkg/runner"
)

func newTestMonitor(conn *connector.MockConnector, domain, ip string) *Monitor {
	log, _ := logger.NewLogger(logger.Options{ConsoleLevel: logger.ErrorLevel})
	return NewMonitor(runner.NewDefaultRunner(), conn, log, domain, ip)
}

func TestCheck_MissingInputs(t *testing.T) {
	conn := connector.NewMockConnector()

	m := newTestMonitor(conn, "", "203.0.113.10")
	_, err := m.Check(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusError, m.Classify(Result{}, err))

	m = newTestMonitor(conn, "labs.example.edu", "")
	_, err = m.Check(context.Background())
	require.Error(t, err)
}

func TestCheck_BothRecordsResolve(t *testing.T) {
	conn := connector.NewMockConnector()
	m := newTestMonitor(conn, "labs.example.edu", "203.0.113.10")

	conn.StubCommand("dig +short 'propagation-probe.labs.example.edu'", "203.0.113.10\n")
	conn.StubCommand("dig +short 'labs.example.edu'", "203.0.113.10\n")

	res, err := m.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, res.RootOK)
	assert.True(t, res.WildcardOK)
	assert.Equal(t, StatusSuccess, m.Classify(res, nil))
}

func TestCheck_WildcardLagsBehindRoot(t *testing.T) {
	conn := connector.NewMockConnector()
	m := newTestMonitor(conn, "labs.example.edu", "203.0.113.10")

	// Wildcard still serves the old address while the root has converged.
	conn.StubCommand("dig +short 'propagation-probe.labs.example.edu'", "198.51.100.7\n")
	conn.StubCommand("dig +short 'labs.example.edu'", "203.0.113.10\n")

	res, err := m.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, res.RootOK)
	assert.False(t, res.WildcardOK)
	assert.Equal(t, StatusPending, m.Classify(res, nil))
}

func TestClassify_WarningAfterThreshold(t *testing.T) {
	conn := connector.NewMockConnector()
	m := newTestMonitor(conn, "labs.example.edu", "203.0.113.10")

	m.attempts.Store(10)
	assert.Equal(t, StatusWarning, m.Classify(Result{RootOK: true}, nil))

	m.attempts.Store(9)
	assert.Equal(t, StatusPending, m.Classify(Result{RootOK: true}, nil))
}

func TestResolve_FallsBackToNslookup(t *testing.T) {
	conn := connector.NewMockConnector()
	conn.LookPathFunc = func(ctx context.Context, file string) (string, error) {
		if file == "dig" {
			return "", errors.New("not found")
		}
		return "/usr/bin/" + file, nil
	}
	m := newTestMonitor(conn, "labs.example.edu", "203.0.113.10")

	answer := "Server:\t\t10.96.0.10\nAddress:\t10.96.0.10#53\n\nName:\tlabs.example.edu\nAddress: 203.0.113.10\n"
	conn.StubCommand("nslookup", answer)

	res, err := m.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, res.RootOK)
	assert.Equal(t, 0, conn.CommandCount("dig"))
	assert.Equal(t, 2, conn.CommandCount("nslookup"))
}

func TestCheck_NxdomainIsPendingNotError(t *testing.T) {
	conn := connector.NewMockConnector()
	conn.LookPathFunc = func(ctx context.Context, file string) (string, error) {
		if file == "dig" {
			return "", errors.New("not found")
		}
		return "/usr/bin/" + file, nil
	}
	m := newTestMonitor(conn, "labs.example.edu", "203.0.113.10")

	// nslookup exits non-zero when the record does not exist yet; that is
	// still just un-propagated DNS, not a failed check.
	conn.FailCommand("nslookup", "** server can't find labs.example.edu: NXDOMAIN", 1)

	res, err := m.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, res.RootOK)
	assert.False(t, res.WildcardOK)
	assert.Equal(t, StatusPending, m.Classify(res, err))
}

func TestRunLoop_StopsOnSuccess(t *testing.T) {
	conn := connector.NewMockConnector()
	m := newTestMonitor(conn, "labs.example.edu", "203.0.113.10")
	m.Interval = 10 * time.Millisecond

	// First pass sees no records, the second converges.
	conn.StubCommandOnce("dig +short 'propagation-probe.labs.example.edu'", "")
	conn.StubCommandOnce("dig +short 'labs.example.edu'", "")
	conn.StubCommand("dig +short", "203.0.113.10\n")

	var calls atomic.Int32
	var last atomic.Value
	done := make(chan struct{})
	go func() {
		m.RunLoop(context.Background(), func(s Status, _ Result) {
			calls.Add(1)
			last.Store(s)
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunLoop did not stop after propagation succeeded")
	}
	assert.Equal(t, StatusSuccess, last.Load())
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}
