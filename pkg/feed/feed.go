// Package feed pushes derived fields to the search index after metadata
// mutations. Feeding is one-way and best-effort: a failure is logged by the
// caller and never blocks the mutation that triggered it.
package feed

import (
	"context"
	"log/slog"
)

// Fields are the denormalized values the index needs per object.
type Fields struct {
	Model string `json:"model"`
	Label string `json:"label"`
	State string `json:"state"`
	Owner string `json:"owner"`
}

// Feeder accepts index updates.
type Feeder interface {
	Feed(ctx context.Context, pid string, f Fields) error
}

// LogFeeder records feeds in the log only. It stands in when no index is
// configured and in tests.
type LogFeeder struct{}

func (LogFeeder) Feed(ctx context.Context, pid string, f Fields) error {
	slog.Debug("Index feed", "pid", pid, "model", f.Model, "label", f.Label)
	return nil
}
