package loader

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Invocation is a fully resolved processor run.
type Invocation struct {
	Java      string
	Classpath []string
	MainClass string
	Args      []string
	Dir       string
}

// Argv returns the full command line.
func (inv Invocation) Argv() []string {
	argv := []string{inv.Java, "-cp", strings.Join(inv.Classpath, string(os.PathListSeparator)), inv.MainClass}
	return append(argv, inv.Args...)
}

// ProcessRunner runs one processor invocation to completion.
type ProcessRunner interface {
	Run(ctx context.Context, inv Invocation) (output string, err error)
}

// ExitError reports a non-zero exit status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return "exit status " + strconv.Itoa(e.Code)
}

// MaxOutputSize bounds the captured output of one processor.
const MaxOutputSize = 64 * 1024

// ExecRunner runs invocations as child processes. A started process is
// never killed: cancellation is only honoured before it starts.
type ExecRunner struct{}

// Run implements ProcessRunner.
func (ExecRunner) Run(ctx context.Context, inv Invocation) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	argv := inv.Argv()
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = inv.Dir

	var out bytes.Buffer
	w := &limitedWriter{buf: &out, limit: MaxOutputSize}
	cmd.Stdout = w
	cmd.Stderr = w

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out.String(), &ExitError{Code: exitErr.ExitCode()}
	}
	return out.String(), err
}

// limitedWriter keeps the first limit bytes and discards the rest.
type limitedWriter struct {
	buf     *bytes.Buffer
	limit   int
	written int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if w.written < w.limit {
		chunk := p
		if len(chunk) > w.limit-w.written {
			chunk = chunk[:w.limit-w.written]
		}
		n, err := w.buf.Write(chunk)
		w.written += n
		if err != nil {
			return n, err
		}
	}
	return len(p), nil
}
