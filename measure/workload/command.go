package workload

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"sync"
	"time"
)

const defaultTailBytes = 4096

var pytestPassed = regexp.MustCompile(`(\d+) passed`)

// Command runs a shell command line, e.g. "cd repo && python -m pytest -q".
// Exit status zero is success. The whole process group is killed when the
// timeout fires.
type Command struct {
	Line string
	Dir  string
	Env  []string
	// TailBytes bounds the diagnostic kept from combined output.
	TailBytes int
}

func (c *Command) Run(ctx context.Context, timeout time.Duration) Result {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	tail := c.TailBytes
	if tail <= 0 {
		tail = defaultTailBytes
	}

	cmd := exec.Command("bash", "-c", c.Line)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = c.Env
	}
	out := &tailBuffer{limit: tail}
	cmd.Stdout = out
	cmd.Stderr = out
	setProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{Elapsed: time.Since(start), Diagnostic: fmt.Sprintf("start: %v", err)}
	}
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		killProcessGroup(cmd)
		err = <-done
	}
	elapsed := time.Since(start)

	output := out.String()
	res := Result{Elapsed: elapsed, Diagnostic: output, UsefulWork: PassedTests(output)}
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		res.Diagnostic = fmt.Sprintf("timeout after %v\n%s", timeout, output)
	case ctx.Err() != nil:
		res.Diagnostic = fmt.Sprintf("cancelled: %v\n%s", ctx.Err(), output)
	case err != nil:
		res.Diagnostic = fmt.Sprintf("%v\n%s", err, output)
	default:
		res.Success = true
	}
	return res
}

// PassedTests extracts N from a pytest summary such as "12 passed in 3.1s".
// It returns 0 when no summary is present.
func PassedTests(output string) float64 {
	m := pytestPassed.FindAllStringSubmatch(output, -1)
	if len(m) == 0 {
		return 0
	}
	n, err := strconv.Atoi(m[len(m)-1][1])
	if err != nil {
		return 0
	}
	return float64(n)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
