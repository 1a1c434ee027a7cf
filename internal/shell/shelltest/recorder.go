// Package shelltest provides a recording shell.Executor for tests.
package shelltest

import (
	"context"
	"os"
	"sync"

	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/shell"
)

// Recorder records every command instead of running it. Declared command
// outputs are created as small files so follow-up renames succeed. Do
// actions are executed.
type Recorder struct {
	mu       sync.Mutex
	commands []shell.Command
	actions  []string

	// FailOn makes Run return a *shell.ToolError for matching commands.
	FailOn func(cmd shell.Command) bool
}

func (r *Recorder) Run(_ context.Context, cmd shell.Command) error {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.actions = append(r.actions, cmd.String())
	r.mu.Unlock()

	if r.FailOn != nil && r.FailOn(cmd) {
		return &shell.ToolError{Command: cmd.String(), ExitCode: 1, Output: "simulated failure"}
	}
	if cmd.Output != "" {
		return os.WriteFile(cmd.Output, []byte(cmd.String()), 0644)
	}
	return nil
}

func (r *Recorder) Do(ctx context.Context, description string, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	r.actions = append(r.actions, description)
	r.mu.Unlock()
	return fn(ctx)
}

func (r *Recorder) Commands() []shell.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shell.Command, len(r.commands))
	copy(out, r.commands)
	return out
}

// Lines returns the rendered commands in invocation order.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.commands))
	for _, c := range r.commands {
		out = append(out, c.String())
	}
	return out
}

// Actions returns commands and Do descriptions in invocation order.
func (r *Recorder) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.actions))
	copy(out, r.actions)
	return out
}
