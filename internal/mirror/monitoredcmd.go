package mirror

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/amscompose/ams-compose/internal/errs"
)

// monitoredCmd wraps a git subprocess and kills it if it shows no stdout or
// stderr activity for timeout, or if ctx is canceled — whichever comes
// first. Adapted from golang-dep's cmd.go, generalized to take a caller
// context instead of always running under context.TODO().
type monitoredCmd struct {
	cmd     *exec.Cmd
	op      string
	timeout time.Duration
	ctx     context.Context
	stdout  *activityBuffer
	stderr  *activityBuffer
}

func newMonitoredCmd(ctx context.Context, op string, cmd *exec.Cmd, timeout time.Duration) *monitoredCmd {
	stdout, stderr := newActivityBuffer(), newActivityBuffer()
	cmd.Stdout, cmd.Stderr = stdout, stderr
	return &monitoredCmd{cmd: cmd, op: op, timeout: timeout, ctx: ctx, stdout: stdout, stderr: stderr}
}

func (c *monitoredCmd) run() error {
	ticker := time.NewTicker(c.timeout)
	defer ticker.Stop()

	done := make(chan error, 1)
	go func() { done <- c.cmd.Run() }()

	for {
		select {
		case <-ticker.C:
			if c.hasTimedOut() {
				_ = c.cmd.Process.Kill()
				return &errs.OperationTimeoutError{Op: c.op, Timeout: c.timeout.String()}
			}
		case <-c.ctx.Done():
			_ = c.cmd.Process.Kill()
			return c.ctx.Err()
		case err := <-done:
			return err
		}
	}
}

func (c *monitoredCmd) hasTimedOut() bool {
	cutoff := time.Now().Add(-c.timeout)
	return c.stderr.lastActivity().Before(cutoff) && c.stdout.lastActivity().Before(cutoff)
}

func (c *monitoredCmd) combinedOutput() ([]byte, error) {
	if err := c.run(); err != nil {
		out := c.stderr.buf.Bytes()
		if len(out) == 0 {
			out = c.stdout.buf.Bytes()
		}
		return out, fmt.Errorf("%s: %w", bytes.TrimSpace(out), err)
	}
	return c.stdout.buf.Bytes(), nil
}

// activityBuffer tracks the last time it was written to, so a stalled
// subprocess (network hang, prompt waiting on stdin) can be detected and
// killed even though it hasn't exited.
type activityBuffer struct {
	sync.Mutex
	buf      *bytes.Buffer
	lastSeen time.Time
}

func newActivityBuffer() *activityBuffer {
	return &activityBuffer{buf: bytes.NewBuffer(nil)}
}

func (b *activityBuffer) Write(p []byte) (int, error) {
	b.Lock()
	defer b.Unlock()
	b.lastSeen = time.Now()
	return b.buf.Write(p)
}

func (b *activityBuffer) lastActivity() time.Time {
	b.Lock()
	defer b.Unlock()
	return b.lastSeen
}
