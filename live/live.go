// Package live implements the Live Task: subscribe to the beacon SSE event
// stream, drive the Synchronizer to catch each new head, and detect and
// replay reorgs.
package live

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/blobscan/blob-indexer/beacon"
	"github.com/blobscan/blob-indexer/log"
	"github.com/blobscan/blob-indexer/types"
)

// ReconnectBackoff is the delay between a graceful stream end and
// resubscription.
const ReconnectBackoff = 2 * time.Second

// EventSource subscribes to the beacon SSE stream via GET v1/events.
type EventSource interface {
	SubscribeEvents(ctx context.Context, topics []string) (<-chan beacon.Event, <-chan error)
}

// HeaderResolver fetches beacon headers by BlockId, used to detect reorgs
// and resolve chain_reorg ancestry.
type HeaderResolver interface {
	GetHeader(ctx context.Context, id types.BlockId) (*types.BeaconBlockHeader, error)
}

// BlockFetcher fetches full beacon blocks, used to resolve
// finalized_checkpoint payloads.
type BlockFetcher interface {
	GetBlock(ctx context.Context, id types.BlockId) (*types.BeaconBlock, error)
}

// Checkpointer is the narrow downstream-indexer capability this task uses
// to mark reorgs and persist finalized-block progress.
type Checkpointer interface {
	PutReorgedSlots(ctx context.Context, slots []uint32) error
	PutSyncState(ctx context.Context, state types.SyncState) error
}

// RangeRunner is the narrow range-runner capability used to index a range
// without advancing the upper checkpoint, for use while a catch-up sub-task
// is in flight.
type RangeRunner interface {
	Run(ctx context.Context, from, to types.Slot) error
}

// Synchronizer is the narrow synchronizer capability used for normal
// indexing and for the catch-up sub-task itself; both checkpoint the upper
// bound.
type Synchronizer interface {
	Run(ctx context.Context, from, to types.BlockId) error
}

// ErrFatalStream marks any SSE stream error other than a graceful close as
// fatal.
var ErrFatalStream = errors.New("live: fatal stream error")

// Task implements the Live Task state machine.
type Task struct {
	events      EventSource
	headers     HeaderResolver
	blocks      BlockFetcher
	checkpoints Checkpointer
	rangeRunner RangeRunner
	sync        Synchronizer

	startSlot           types.Slot
	lastUpperSyncedSlot *types.Slot

	firstHeadSeen bool
	lastHeadSlot  types.Slot
	lastHeadRoot  types.Hash

	mu              sync.Mutex
	catchUpInFlight bool
	catchUpErrCh    chan error

	logger *log.Logger
}

// New constructs a Live Task. startSlot and lastUpperSyncedSlot together
// determine the first-head sync range.
func New(events EventSource, headers HeaderResolver, blocks BlockFetcher, checkpoints Checkpointer, rangeRunner RangeRunner, sync Synchronizer, startSlot types.Slot, lastUpperSyncedSlot *types.Slot) *Task {
	return &Task{
		events:              events,
		headers:             headers,
		blocks:              blocks,
		checkpoints:         checkpoints,
		rangeRunner:         rangeRunner,
		sync:                sync,
		startSlot:           startSlot,
		lastUpperSyncedSlot: lastUpperSyncedSlot,
		catchUpErrCh:        make(chan error, 1),
		logger:              log.Default().Module("live-task"),
	}
}

// Run subscribes to the beacon event stream and processes events until ctx
// is cancelled or a fatal error occurs. A graceful stream end reconnects
// after ReconnectBackoff and resets the first-head latch.
func (t *Task) Run(ctx context.Context) error {
	topics := []string{string(beacon.EventHead), string(beacon.EventFinalizedCheckpoint), string(beacon.EventChainReorg)}

	for {
		t.firstHeadSeen = false
		if err := t.runOneConnection(ctx, topics); err != nil {
			if errors.Is(err, beacon.ErrStreamEnded) {
				t.logger.Warn("stream ended, reconnecting", "backoff", ReconnectBackoff)
				select {
				case <-time.After(ReconnectBackoff):
					continue
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (t *Task) runOneConnection(ctx context.Context, topics []string) error {
	events, errc := t.events.SubscribeEvents(ctx, topics)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-t.catchUpErrCh:
			return errors.Wrap(err, "live: catch-up sub-task failed")

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if err := t.handleEvent(ctx, ev); err != nil {
				return err
			}

		case err, ok := <-errc:
			if !ok {
				errc = nil
				continue
			}
			if errors.Is(err, beacon.ErrStreamEnded) {
				return err
			}
			return errors.Mark(err, ErrFatalStream)
		}

		if events == nil && errc == nil {
			return nil
		}
	}
}

func (t *Task) handleEvent(ctx context.Context, ev beacon.Event) error {
	switch ev.Kind {
	case beacon.EventHead:
		return t.handleHead(ctx, *ev.Head)
	case beacon.EventChainReorg:
		return t.handleChainReorg(ctx, *ev.ChainReorg)
	case beacon.EventFinalizedCheckpoint:
		return t.handleFinalized(ctx, *ev.Finalized)
	default:
		t.logger.Warn("ignoring unrecognized event", "kind", ev.Kind)
		return nil
	}
}

func (t *Task) handleHead(ctx context.Context, ev beacon.HeadEvent) error {
	if !t.firstHeadSeen {
		return t.handleFirstHead(ctx, ev)
	}

	header, err := t.headers.GetHeader(ctx, types.SlotBlockId(ev.Slot))
	if err != nil {
		return err
	}
	if header == nil {
		return errors.Newf("live: no header found for head slot %d", ev.Slot)
	}

	if header.ParentRoot != t.lastHeadRoot {
		if err := t.handleSilentReorg(ctx, *header, ev); err != nil {
			return err
		}
	} else if err := t.indexRange(ctx, t.lastHeadSlot+1, ev.Slot+1); err != nil {
		return err
	}

	t.lastHeadSlot = ev.Slot
	t.lastHeadRoot = ev.Block
	return nil
}

func (t *Task) handleFirstHead(ctx context.Context, ev beacon.HeadEvent) error {
	t.firstHeadSeen = true

	from := t.startSlot
	if t.lastUpperSyncedSlot != nil && types.Slot(*t.lastUpperSyncedSlot)+1 > from {
		from = types.Slot(*t.lastUpperSyncedSlot) + 1
	}

	if ev.Slot > from+1 {
		t.beginCatchUp(ctx, from, ev.Slot)
		if err := t.rangeRunner.Run(ctx, ev.Slot, ev.Slot+1); err != nil {
			return err
		}
	} else if err := t.sync.Run(ctx, types.SlotBlockId(from), types.SlotBlockId(ev.Slot+1)); err != nil {
		return err
	}

	t.lastHeadSlot = ev.Slot
	t.lastHeadRoot = ev.Block
	return nil
}

func (t *Task) handleSilentReorg(ctx context.Context, newHeader types.BeaconBlockHeader, ev beacon.HeadEvent) error {
	parentSlot, err := t.findCommonAncestorSlot(ctx, newHeader.ParentRoot)
	if err != nil {
		return err
	}

	if reorged := slotRange(parentSlot+1, newHeader.Slot); len(reorged) > 0 {
		if err := t.checkpoints.PutReorgedSlots(ctx, reorged); err != nil {
			return err
		}
	}

	// Re-index from parent_slot forward through slot+1. parent_slot itself
	// is never marked reorged.
	return t.indexRange(ctx, parentSlot, ev.Slot+1)
}

func (t *Task) findCommonAncestorSlot(ctx context.Context, root types.Hash) (types.Slot, error) {
	for {
		header, err := t.headers.GetHeader(ctx, types.HashBlockId(root))
		if err != nil {
			return 0, err
		}
		if header == nil {
			return 0, errors.Newf("live: no header found walking back to ancestor at root %s", root)
		}
		if header.Slot == t.lastHeadSlot && header.Root == t.lastHeadRoot {
			return header.Slot, nil
		}
		root = header.ParentRoot
	}
}

func (t *Task) handleChainReorg(ctx context.Context, ev beacon.ChainReorgEvent) error {
	var reorged []uint32
	cur := ev.OldHead

	for i := uint64(0); i < ev.Depth; i++ {
		header, err := t.headers.GetHeader(ctx, types.HashBlockId(cur))
		if err != nil {
			return err
		}
		if header == nil {
			return errors.Newf("live: no header found walking chain_reorg ancestry from %s", cur)
		}
		reorged = append(reorged, uint32(header.Slot))
		cur = header.ParentRoot
	}

	if len(reorged) == 0 {
		return nil
	}
	return t.checkpoints.PutReorgedSlots(ctx, reorged)
}

func (t *Task) handleFinalized(ctx context.Context, ev beacon.FinalizedCheckpointEvent) error {
	block, err := t.blocks.GetBlock(ctx, types.HashBlockId(ev.Block))
	if err != nil {
		return err
	}
	if block == nil || block.ExecutionPayload == nil {
		return errors.Newf("live: finalized_checkpoint block %s missing or has no execution payload", ev.Block)
	}

	number := uint32(block.ExecutionPayload.BlockNumber)
	return t.checkpoints.PutSyncState(ctx, types.SyncState{LastFinalizedBlock: &number})
}

// indexRange indexes [from, to) via the raw range runner while a catch-up
// sub-task is in flight (no checkpoint advance), or via the checkpointing
// synchronizer otherwise.
func (t *Task) indexRange(ctx context.Context, from, to types.Slot) error {
	if t.catchUpInFlightNow() {
		return t.rangeRunner.Run(ctx, from, to)
	}
	return t.sync.Run(ctx, types.SlotBlockId(from), types.SlotBlockId(to))
}

func (t *Task) beginCatchUp(ctx context.Context, from, to types.Slot) {
	t.mu.Lock()
	t.catchUpInFlight = true
	t.mu.Unlock()

	go func() {
		err := t.sync.Run(ctx, types.SlotBlockId(from), types.SlotBlockId(to))

		t.mu.Lock()
		t.catchUpInFlight = false
		t.mu.Unlock()

		if err != nil {
			select {
			case t.catchUpErrCh <- err:
			default:
			}
		}
	}()
}

func (t *Task) catchUpInFlightNow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.catchUpInFlight
}

func slotRange(from, to types.Slot) []uint32 {
	if to <= from {
		return nil
	}
	out := make([]uint32, 0, to-from)
	for s := from; s < to; s++ {
		out = append(out, uint32(s))
	}
	return out
}
