// Package supervisor wires the Historical and Live Tasks together, owns the
// fan-in error channel, and terminates the process on the first
// unrecoverable failure.
package supervisor

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/blobscan/blob-indexer/log"
)

// TaskName identifies a task for error reporting.
type TaskName string

const (
	TaskHistorical TaskName = "historical"
	TaskLive       TaskName = "live"
)

// taskResult is the message fanned into the supervisor's error channel.
type taskResult struct {
	task TaskName
	err  error
}

// CrashReporter captures a fatal error to an external telemetry sink;
// satisfied by sentry-go's package funcs via a thin adapter, nil-safe when
// telemetry is disabled.
type CrashReporter interface {
	CaptureError(err error)
}

// Supervisor runs the historical and live tasks, propagating the first
// error and exiting.
type Supervisor struct {
	crashReporter CrashReporter
	logger        *log.Logger
}

// New constructs a Supervisor. crashReporter may be nil.
func New(crashReporter CrashReporter) *Supervisor {
	return &Supervisor{crashReporter: crashReporter, logger: log.Default().Module("supervisor")}
}

// Run spawns historical (optional, may be nil to honor
// --disable-sync-historical) and live as independent tasks sharing a
// bounded error channel, and blocks until the first error arrives or ctx is
// cancelled. A clean completion of historical is a normal event that
// leaves live running.
func (s *Supervisor) Run(ctx context.Context, historical func(ctx context.Context) error, live func(ctx context.Context) error) error {
	results := make(chan taskResult, 2)
	expected := 0

	if historical != nil {
		expected++
		go func() {
			results <- taskResult{task: TaskHistorical, err: historical(ctx)}
		}()
	}
	if live != nil {
		expected++
		go func() {
			results <- taskResult{task: TaskLive, err: live(ctx)}
		}()
	}

	completed := 0
	for completed < expected {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-results:
			completed++
			if res.err == nil {
				s.logger.Info("task completed cleanly", "task_name", res.task)
				continue
			}
			wrapped := errors.Wrapf(res.err, "supervisor: task %q failed", res.task)
			s.logger.Error("fatal task error", "task_name", res.task, "error", wrapped)
			if s.crashReporter != nil {
				s.crashReporter.CaptureError(wrapped)
			}
			return wrapped
		}
	}
	return nil
}
