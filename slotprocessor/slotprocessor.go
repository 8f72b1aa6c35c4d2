// Package slotprocessor implements the Slot Processor: for one slot, fetch
// the beacon block, execution block, and blob sidecars, cross-link them,
// and emit an index request.
package slotprocessor

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/blobscan/blob-indexer/blob"
	"github.com/blobscan/blob-indexer/log"
	"github.com/blobscan/blob-indexer/retry"
	"github.com/blobscan/blob-indexer/types"
)

// BeaconClient is the narrow beacon capability this processor needs.
type BeaconClient interface {
	GetBlock(ctx context.Context, id types.BlockId) (*types.BeaconBlock, error)
	GetBlobSidecars(ctx context.Context, id types.BlockId) ([]types.BlobSidecar, error)
}

// ExecutionClient is the narrow execution-layer capability this processor
// needs.
type ExecutionClient interface {
	GetBlockByHash(ctx context.Context, hash types.Hash) (*types.ExecutionBlock, error)
}

// IndexerClient is the narrow downstream-indexer capability this processor
// needs.
type IndexerClient interface {
	PutIndexRequest(ctx context.Context, req types.IndexRequest) error
}

// ErrExecutionBlockMissing is a permanent error: the beacon layer
// referenced an execution block the execution layer does not have.
var ErrExecutionBlockMissing = errors.New("slotprocessor: execution block missing though beacon referenced it")

// Processor implements process_slot: the per-slot fetch/cross-link/emit
// pipeline.
type Processor struct {
	beacon    BeaconClient
	execution ExecutionClient
	indexer   IndexerClient
	policy    retry.Policy
	logger    *log.Logger
}

// New constructs a Processor with the given collaborators and retry policy.
func New(beacon BeaconClient, execution ExecutionClient, indexer IndexerClient, policy retry.Policy) *Processor {
	return &Processor{
		beacon:    beacon,
		execution: execution,
		indexer:   indexer,
		policy:    policy,
		logger:    log.Default().Module("slot-processor"),
	}
}

// ProcessSlot runs the full process_slot algorithm for slot, wrapped in an
// exponential-backoff retry loop.
func (p *Processor) ProcessSlot(ctx context.Context, slot types.Slot) error {
	return retry.Do(ctx, p.policy, func(ctx context.Context) error {
		return p.processSlotOnce(ctx, slot)
	}, func(err error, delay time.Duration) {
		p.logger.Warn("retrying slot after transient error", "slot", slot, "delay", delay, "error", err)
	})
}

func (p *Processor) processSlotOnce(ctx context.Context, slot types.Slot) error {
	id := types.SlotBlockId(slot)

	// Step 1: fetch beacon block. Absent => success, no downstream write.
	beaconBlock, err := p.beacon.GetBlock(ctx, id)
	if err != nil {
		return err
	}
	if beaconBlock == nil {
		return nil
	}

	// Step 2: execution_payload absent => success.
	if beaconBlock.ExecutionPayload == nil {
		return nil
	}

	// Step 3: blob_kzg_commitments absent => success.
	if len(beaconBlock.BlobKZGCommitments) == 0 {
		return nil
	}

	// Step 4: fetch execution block. Absent => permanent error.
	execBlock, err := p.execution.GetBlockByHash(ctx, beaconBlock.ExecutionPayload.BlockHash)
	if err != nil {
		return err
	}
	if execBlock == nil {
		return retry.Permanent(errors.Wrapf(ErrExecutionBlockMissing, "slot %d, block hash %s", slot, beaconBlock.ExecutionPayload.BlockHash))
	}

	// Step 5: build blob-bearing tx set. Empty => success.
	blobBearing := blob.BlobBearingTxs(execBlock.Transactions)
	if len(blobBearing) == 0 {
		return nil
	}

	// Step 6: fetch blob sidecars. Absent or empty => success.
	sidecars, err := p.beacon.GetBlobSidecars(ctx, id)
	if err != nil {
		return err
	}
	if len(sidecars) == 0 {
		return nil
	}

	// Step 7: build versioned_hash -> sidecar map.
	sidecarsByHash := blob.BuildSidecarMap(sidecars)

	// Step 8: assemble the IndexRequest.
	req, err := blob.Assemble(*execBlock, slot, blobBearing, sidecarsByHash)
	if err != nil {
		if errors.Is(err, blob.ErrSidecarNotFound) || errors.Is(err, blob.ErrMissingGasFields) {
			return retry.Permanent(err)
		}
		return err
	}

	// Step 9: submit to the downstream API.
	if err := p.indexer.PutIndexRequest(ctx, req); err != nil {
		return err
	}
	return nil
}
