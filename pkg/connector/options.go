package connector

import (
	"io"
	"time"
)

type ExecOptions struct {
	Timeout    time.Duration
	Env        []string
	Retries    int
	RetryDelay time.Duration
	Stream     io.Writer
	Stdin      []byte
}
