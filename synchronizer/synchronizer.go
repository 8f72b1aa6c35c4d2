// Package synchronizer drives the Parallel Range Runner in checkpoint-sized
// chunks, persists a checkpoint after each chunk, and refuses inverted
// ranges.
package synchronizer

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/blobscan/blob-indexer/log"
	"github.com/blobscan/blob-indexer/types"
)

// DefaultChunkSize is slots_per_checkpoint's default.
const DefaultChunkSize = 1000

// Direction fixes which end of a chunk's checkpoint a Synchronizer writes.
type Direction int

const (
	// Up syncs ascending and writes last_upper_synced_slot.
	Up Direction = iota
	// Down syncs descending and writes last_lower_synced_slot.
	Down
)

// HeaderResolver resolves symbolic BlockIds to slots via the beacon header
// endpoint.
type HeaderResolver interface {
	GetHeader(ctx context.Context, id types.BlockId) (*types.BeaconBlockHeader, error)
}

// RangeRunner is the narrow range-runner capability this synchronizer
// drives.
type RangeRunner interface {
	Run(ctx context.Context, from, to types.Slot) error
}

// Checkpointer is the narrow downstream-indexer capability this
// synchronizer uses to persist progress. Which method a chunk calls depends
// on Direction.
type Checkpointer interface {
	PutSlot(ctx context.Context, slot uint32) error
	PutSyncState(ctx context.Context, state types.SyncState) error
}

// ErrCheckpointFailed marks a checkpoint write failure fatal to the run.
var ErrCheckpointFailed = errors.New("synchronizer: checkpoint write failed")

// ErrInvertedRange is returned when from > to.
var ErrInvertedRange = errors.New("synchronizer: inverted range")

// Synchronizer drives the range runner over checkpoint-sized chunks in a
// fixed direction.
type Synchronizer struct {
	headers     HeaderResolver
	runner      RangeRunner
	checkpoints Checkpointer
	direction   Direction
	chunkSize   uint32
	saveEnabled bool
	logger      *log.Logger
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithChunkSize overrides DefaultChunkSize.
func WithChunkSize(n uint32) Option {
	return func(s *Synchronizer) { s.chunkSize = n }
}

// WithCheckpointSaveDisabled implements --disable-sync-checkpoint-save: the
// synchronizer still runs the range runner per chunk but skips the
// checkpoint write, useful for dry runs.
func WithCheckpointSaveDisabled() Option {
	return func(s *Synchronizer) { s.saveEnabled = false }
}

// New builds a Synchronizer for the given fixed direction.
func New(headers HeaderResolver, runner RangeRunner, checkpoints Checkpointer, direction Direction, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		headers:     headers,
		runner:      runner,
		checkpoints: checkpoints,
		direction:   direction,
		chunkSize:   DefaultChunkSize,
		saveEnabled: true,
		logger:      log.Default().Module("synchronizer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run resolves from/to to slots and drives the range runner in
// chunkSize-sized chunks, checkpointing after each. from == to is a no-op;
// a range inverted for the direction (from > to for Up, from < to for Down)
// is a hard error naming both endpoints.
func (s *Synchronizer) Run(ctx context.Context, from, to types.BlockId) error {
	fromSlot, err := s.resolveSlot(ctx, from)
	if err != nil {
		return errors.Wrap(err, "synchronizer: resolve from")
	}
	toSlot, err := s.resolveSlot(ctx, to)
	if err != nil {
		return errors.Wrap(err, "synchronizer: resolve to")
	}

	if fromSlot == toSlot {
		return nil
	}

	switch s.direction {
	case Up:
		return s.runUp(ctx, fromSlot, toSlot)
	default:
		return s.runDown(ctx, fromSlot, toSlot)
	}
}

func (s *Synchronizer) runUp(ctx context.Context, from, to types.Slot) error {
	if from > to {
		return errors.Wrapf(ErrInvertedRange, "from=%d to=%d", from, to)
	}
	for c := from; c < to; {
		end := c + types.Slot(s.chunkSize)
		if end > to {
			end = to
		}
		if err := s.runner.Run(ctx, c, end); err != nil {
			return err
		}
		if s.saveEnabled {
			if err := s.checkpoints.PutSlot(ctx, uint32(end-1)); err != nil {
				return errors.Wrap(errors.Mark(err, ErrCheckpointFailed), "synchronizer: write upper checkpoint")
			}
		}
		s.logger.Info("chunk complete", "from", c, "to", end)
		c = end
	}
	return nil
}

func (s *Synchronizer) runDown(ctx context.Context, from, to types.Slot) error {
	// Historical sync walks downward: "from" is the higher bound
	// (last_known_lower_synced_slot) and "to" is the lower bound
	// (dencun_fork_slot). Refuse the same inversion a caller could make in
	// either direction.
	if to > from {
		return errors.Wrapf(ErrInvertedRange, "from=%d to=%d", from, to)
	}
	for c := from; c > to; {
		start := to
		if c-to > types.Slot(s.chunkSize) {
			start = c - types.Slot(s.chunkSize)
		}
		if err := s.runner.Run(ctx, start, c); err != nil {
			return err
		}
		if s.saveEnabled {
			lower := uint32(start)
			if err := s.checkpoints.PutSyncState(ctx, types.SyncState{LastLowerSyncedSlot: &lower}); err != nil {
				return errors.Wrap(errors.Mark(err, ErrCheckpointFailed), "synchronizer: write lower checkpoint")
			}
		}
		s.logger.Info("chunk complete", "from", start, "to", c)
		c = start
	}
	return nil
}

func (s *Synchronizer) resolveSlot(ctx context.Context, id types.BlockId) (types.Slot, error) {
	if id.Kind == types.BlockIdSlot {
		return id.Slot, nil
	}
	header, err := s.headers.GetHeader(ctx, id)
	if err != nil {
		return 0, err
	}
	if header == nil {
		return 0, errors.Newf("synchronizer: no header found for block id %s", id)
	}
	return header.Slot, nil
}
