package connector

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

func shellEscape(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}

// LocalConnector executes commands as local child processes. It is the only
// Connector implementation the orchestrator needs, since kubectl, helm and
// the DNS tools all run on the host the installer runs on.
type LocalConnector struct{}

func NewLocalConnector() *LocalConnector {
	return &LocalConnector{}
}

func (l *LocalConnector) Close() error {
	return nil
}

func (l *LocalConnector) Exec(ctx context.Context, cmd string, options *ExecOptions) (stdout, stderr []byte, err error) {
	effectiveOptions := ExecOptions{}
	if options != nil {
		effectiveOptions = *options
	}

	runOnce := func(runCtx context.Context) ([]byte, []byte, error) {
		actualCmd := exec.CommandContext(runCtx, "/bin/sh", "-c", cmd)

		// The shell's own children inherit the output pipes, so killing only
		// the shell leaves Run blocked on the pipe readers until every
		// grandchild exits. Kill the whole process group on cancellation, and
		// let WaitDelay force Run to return even if something survives it.
		actualCmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		actualCmd.Cancel = func() error {
			err := syscall.Kill(-actualCmd.Process.Pid, syscall.SIGKILL)
			if err == syscall.ESRCH {
				return os.ErrProcessDone
			}
			return err
		}
		actualCmd.WaitDelay = 2 * time.Second

		if len(effectiveOptions.Env) > 0 {
			actualCmd.Env = append(os.Environ(), effectiveOptions.Env...)
		}
		if len(effectiveOptions.Stdin) > 0 {
			actualCmd.Stdin = bytes.NewReader(effectiveOptions.Stdin)
		}

		var stdoutBuf, stderrBuf bytes.Buffer
		if effectiveOptions.Stream != nil {
			actualCmd.Stdout = io.MultiWriter(&stdoutBuf, effectiveOptions.Stream)
			actualCmd.Stderr = io.MultiWriter(&stderrBuf, effectiveOptions.Stream)
		} else {
			actualCmd.Stdout = &stdoutBuf
			actualCmd.Stderr = &stderrBuf
		}

		err := actualCmd.Run()
		return stdoutBuf.Bytes(), stderrBuf.Bytes(), err
	}

	var finalErr error
	for i := 0; i <= effectiveOptions.Retries; i++ {
		attemptCtx := ctx
		var attemptCancel context.CancelFunc

		if effectiveOptions.Timeout > 0 {
			attemptCtx, attemptCancel = context.WithTimeout(ctx, effectiveOptions.Timeout)
		}

		stdout, stderr, err = runOnce(attemptCtx)

		if attemptCancel != nil {
			attemptCancel()
		}

		if err == nil {
			return stdout, stderr, nil
		}

		finalErr = err
		if attemptCtx.Err() != nil || ctx.Err() != nil {
			break
		}

		if i < effectiveOptions.Retries {
			if effectiveOptions.RetryDelay > 0 {
				time.Sleep(effectiveOptions.RetryDelay)
			}
		} else {
			break
		}
	}

	if ctx.Err() != nil {
		return stdout, stderr, &CommandError{Cmd: cmd, ExitCode: -1, Stdout: string(stdout), Stderr: string(stderr), Underlying: ctx.Err()}
	}

	exitCode := -1
	if exitErr, ok := finalErr.(*exec.ExitError); ok {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			exitCode = status.ExitStatus()
		}
	}
	return stdout, stderr, &CommandError{Cmd: cmd, ExitCode: exitCode, Stdout: string(stdout), Stderr: string(stderr), Underlying: finalErr}
}

func (l *LocalConnector) LookPath(ctx context.Context, file string) (string, error) {
	return exec.LookPath(file)
}
