// Package rangerunner implements the Parallel Range Runner: split a
// [from, to) slot range across N workers, run the Slot Processor per slot,
// and aggregate errors. It deliberately does not use
// golang.org/x/sync/errgroup: errgroup cancels sibling goroutines on the
// first error, but a failure in one shard must not stop the others from
// running to their natural completion.
package rangerunner

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/blobscan/blob-indexer/types"
)

// SlotProcessor is the narrow slot-processor capability this runner drives.
type SlotProcessor interface {
	ProcessSlot(ctx context.Context, slot types.Slot) error
}

// ShardFailure names one failed shard's bounds, the slot that failed within
// it, and the cause.
type ShardFailure struct {
	Initial types.Slot
	Final   types.Slot
	Slot    types.Slot
	Cause   error
}

func (f ShardFailure) Error() string {
	return fmt.Sprintf("shard [%d,%d) failed at slot %d: %v", f.Initial, f.Final, f.Slot, f.Cause)
}

// AggregateError collects every ShardFailure from one Run call.
type AggregateError struct {
	Failures []ShardFailure
}

func (e *AggregateError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("rangerunner: %d shard(s) failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Runner runs the slot processor over a slot range split into at most
// numThreads shards.
type Runner struct {
	processor  SlotProcessor
	numThreads int
}

// New constructs a Runner with the given number of worker shards.
func New(processor SlotProcessor, numThreads int) *Runner {
	if numThreads < 1 {
		numThreads = 1
	}
	return &Runner{processor: processor, numThreads: numThreads}
}

// Run splits [from, to) into min(numThreads, to-from) shards, runs each
// shard sequentially ascending, and returns nil iff every shard succeeded.
// to == from is a no-op success.
func (r *Runner) Run(ctx context.Context, from, to types.Slot) error {
	if to == from {
		return nil
	}
	if to < from {
		return errors.Newf("rangerunner: inverted range [%d, %d)", from, to)
	}

	total := uint32(to - from)
	shardCount := uint32(r.numThreads)
	if shardCount > total {
		shardCount = total
	}
	shardSize := total / shardCount

	type shardBounds struct{ initial, final types.Slot }
	bounds := make([]shardBounds, 0, shardCount)
	cursor := from
	for i := uint32(0); i < shardCount; i++ {
		size := shardSize
		if i == shardCount-1 {
			// Last shard absorbs the remainder.
			size = total - shardSize*(shardCount-1)
		}
		bounds = append(bounds, shardBounds{initial: cursor, final: cursor + types.Slot(size)})
		cursor += types.Slot(size)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []ShardFailure
	)

	for _, b := range bounds {
		wg.Add(1)
		go func(initial, final types.Slot) {
			defer wg.Done()
			for slot := initial; slot < final; slot++ {
				if err := r.processor.ProcessSlot(ctx, slot); err != nil {
					mu.Lock()
					failures = append(failures, ShardFailure{Initial: initial, Final: final, Slot: slot, Cause: err})
					mu.Unlock()
					return // this shard stops; siblings continue.
				}
			}
		}(b.initial, b.final)
	}
	wg.Wait()

	if len(failures) > 0 {
		return &AggregateError{Failures: failures}
	}
	return nil
}
