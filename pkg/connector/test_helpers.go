package connector

import (
	"context"
	"strings"
	"sync"
)

// MockConnector is a scripted Connector used by tests across the installer
// packages. Commands are matched against registered rules by substring, in
// registration order; unmatched commands succeed with empty output.
type MockConnector struct {
	mu sync.Mutex

	// ExecFunc, when set, intercepts every Exec call before rule matching.
	ExecFunc func(ctx context.Context, cmd string, opts *ExecOptions) (stdout, stderr []byte, err error)
	// LookPathFunc can be set to simulate missing tools.
	LookPathFunc func(ctx context.Context, file string) (string, error)

	rules []mockRule

	// LastExecCmd stores the last command passed to Exec.
	LastExecCmd     string
	LastExecOptions *ExecOptions
	ExecHistory     []string
}

type mockRule struct {
	substr string
	stdout string
	stderr string
	err    error
	// once-rules are consumed on first match, so later identical commands
	// fall through to subsequent rules (polling sequences).
	once bool
	used bool
}

func NewMockConnector() *MockConnector {
	return &MockConnector{}
}

// StubCommand makes commands containing substr return stdout.
func (m *MockConnector) StubCommand(substr, stdout string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{substr: substr, stdout: stdout})
}

// StubCommandOnce behaves like StubCommand but the rule is consumed after
// one match, allowing different answers for successive identical commands.
func (m *MockConnector) StubCommandOnce(substr, stdout string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{substr: substr, stdout: stdout, once: true})
}

// FailCommand makes commands containing substr fail with the given exit code
// and stderr, wrapped in a *CommandError like the real connector.
func (m *MockConnector) FailCommand(substr, stderr string, exitCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{substr: substr, stderr: stderr, err: &CommandError{Cmd: substr, ExitCode: exitCode, Stderr: stderr}})
}

// FailCommandOnce is the consumable variant of FailCommand.
func (m *MockConnector) FailCommandOnce(substr, stderr string, exitCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{substr: substr, stderr: stderr, err: &CommandError{Cmd: substr, ExitCode: exitCode, Stderr: stderr}, once: true})
}

func (m *MockConnector) Exec(ctx context.Context, cmd string, opts *ExecOptions) ([]byte, []byte, error) {
	m.mu.Lock()
	m.LastExecCmd = cmd
	m.LastExecOptions = opts
	m.ExecHistory = append(m.ExecHistory, cmd)

	if m.ExecFunc != nil {
		fn := m.ExecFunc
		m.mu.Unlock()
		return fn(ctx, cmd, opts)
	}

	for i := range m.rules {
		r := &m.rules[i]
		if r.used {
			continue
		}
		if strings.Contains(cmd, r.substr) {
			if r.once {
				r.used = true
			}
			m.mu.Unlock()
			return []byte(r.stdout), []byte(r.stderr), r.err
		}
	}
	m.mu.Unlock()
	return []byte(""), []byte(""), nil
}

func (m *MockConnector) LookPath(ctx context.Context, file string) (string, error) {
	if m.LookPathFunc != nil {
		return m.LookPathFunc(ctx, file)
	}
	return "/usr/bin/" + file, nil
}

func (m *MockConnector) Close() error { return nil }

// CommandCount returns how many executed commands contained substr.
func (m *MockConnector) CommandCount(substr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.ExecHistory {
		if strings.Contains(c, substr) {
			n++
		}
	}
	return n
}
