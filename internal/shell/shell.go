package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Command is an external tool invocation.
type Command struct {
	Name string
	Args []string
	// Output is the file the command creates, if any. It is removed when the
	// command fails so that no partial file is left behind.
	Output string
}

func NewCommand(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// Writes returns a copy of c declaring path as its output file.
func (c Command) Writes(path string) Command {
	c.Output = path
	return c
}

func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Name))
	for _, a := range c.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`|&;<>()*?[]{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Executor performs the side effects of the pipeline: external commands and
// local filesystem mutations. Swapping the implementation switches between a
// real run and a dry run.
type Executor interface {
	Run(ctx context.Context, cmd Command) error
	Do(ctx context.Context, description string, fn func(ctx context.Context) error) error
}

// ToolError reports an external tool that could not be started or exited
// with a non-zero status.
type ToolError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("external tool failed (exit %d): %s", e.ExitCode, e.Command)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

const outputTail = 2048

// Local runs commands on the host.
type Local struct {
	log logrus.FieldLogger
}

func NewLocal(log logrus.FieldLogger) *Local {
	return &Local{log: log}
}

func (l *Local) Run(ctx context.Context, cmd Command) error {
	l.log.Debugf("running %s", cmd)
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	out, err := c.CombinedOutput()
	if err == nil {
		return nil
	}

	if cmd.Output != "" {
		os.Remove(cmd.Output)
	}

	toolErr := &ToolError{Command: cmd.String(), ExitCode: -1, Output: tail(out), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		toolErr.ExitCode = exitErr.ExitCode()
	}
	return toolErr
}

func (l *Local) Do(ctx context.Context, description string, fn func(ctx context.Context) error) error {
	l.log.Debug(description)
	return fn(ctx)
}

func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > outputTail {
		s = "..." + s[len(s)-outputTail:]
	}
	return s
}

// DryRun prints every action instead of performing it.
type DryRun struct {
	mu sync.Mutex
	w  io.Writer
}

func NewDryRun(w io.Writer) *DryRun {
	return &DryRun{w: w}
}

func (d *DryRun) Run(_ context.Context, cmd Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := fmt.Fprintln(d.w, cmd.String())
	return err
}

func (d *DryRun) Do(_ context.Context, description string, _ func(ctx context.Context) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := fmt.Fprintln(d.w, description)
	return err
}
