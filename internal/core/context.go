package core

import (
	"context"
	"io"
	"os"

	"github.com/google/uuid"
)

// RunContext carries the state shared by one reconciliation run. It wraps a
// standard context and adds the run identity, mode flags and the logger.
// A RunContext is built fresh per run and discarded afterwards.
type RunContext struct {
	context.Context

	RunID  string
	DryRun bool

	// Vars from the config file's vars: block, available to templates
	// and when: conditions.
	Vars map[string]string

	Logger Logger
	Stdout io.Writer
	Stderr io.Writer
}

// NewRunContext builds a run context with a fresh run id. The id is attached
// to the logger so every line of a run carries it.
func NewRunContext(ctx context.Context, dryRun bool) *RunContext {
	runID := uuid.New().String()
	return &RunContext{
		Context: ctx,
		RunID:   runID,
		DryRun:  dryRun,
		Vars:    map[string]string{},
		Logger:  NewDefaultLogger(os.Stderr, LevelInfo).With("run_id", runID),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}
