// Package historical implements the Historical Task: a one-shot sync
// downward from the last-known-lower slot to the Dencun fork slot.
package historical

import (
	"context"

	"github.com/blobscan/blob-indexer/log"
	"github.com/blobscan/blob-indexer/types"
)

// Synchronizer is the narrow synchronizer capability this task drives,
// fixed to the downward direction by its construction.
type Synchronizer interface {
	Run(ctx context.Context, from, to types.BlockId) error
}

// Task runs once at startup over [dencun_fork_slot, last_known_lower) in
// the descending direction.
type Task struct {
	synchronizer Synchronizer
	forkSlot     types.Slot
	logger       *log.Logger
}

// New constructs a Historical Task bottoming out at forkSlot.
func New(synchronizer Synchronizer, forkSlot types.Slot) *Task {
	return &Task{synchronizer: synchronizer, forkSlot: forkSlot, logger: log.Default().Module("historical-task")}
}

// Run syncs [forkSlot, lastKnownLower) downward. If lastKnownLower is
// already at or below forkSlot, the task exits immediately without error.
func (t *Task) Run(ctx context.Context, lastKnownLower types.Slot) error {
	if lastKnownLower <= t.forkSlot {
		t.logger.Info("historical backfill already complete", "last_known_lower", lastKnownLower, "fork_slot", t.forkSlot)
		return nil
	}

	t.logger.Info("starting historical backfill", "from", lastKnownLower, "to", t.forkSlot)
	return t.synchronizer.Run(ctx, types.SlotBlockId(lastKnownLower), types.SlotBlockId(t.forkSlot))
}
