package slotprocessor

import (
	"context"
	"strings"
	"testing"

	"github.com/holiman/uint256"

	"github.com/blobscan/blob-indexer/blob"
	"github.com/blobscan/blob-indexer/retry"
	"github.com/blobscan/blob-indexer/types"
)

func computeVersionedHashForTest(commitment []byte) types.Hash {
	return blob.ComputeVersionedHash(commitment)
}

type fakeBeacon struct {
	blocks   map[types.Slot]*types.BeaconBlock
	sidecars map[types.Slot][]types.BlobSidecar
}

func (f *fakeBeacon) GetBlock(ctx context.Context, id types.BlockId) (*types.BeaconBlock, error) {
	return f.blocks[id.Slot], nil
}

func (f *fakeBeacon) GetBlobSidecars(ctx context.Context, id types.BlockId) ([]types.BlobSidecar, error) {
	return f.sidecars[id.Slot], nil
}

type fakeExecution struct {
	blocks map[types.Hash]*types.ExecutionBlock
}

func (f *fakeExecution) GetBlockByHash(ctx context.Context, hash types.Hash) (*types.ExecutionBlock, error) {
	return f.blocks[hash], nil
}

type fakeIndexer struct {
	requests []types.IndexRequest
}

func (f *fakeIndexer) PutIndexRequest(ctx context.Context, req types.IndexRequest) error {
	f.requests = append(f.requests, req)
	return nil
}

func newProcessor(beacon *fakeBeacon, execution *fakeExecution, indexer *fakeIndexer) *Processor {
	return New(beacon, execution, indexer, retry.DefaultPolicy())
}

func hash(b byte) types.Hash {
	var h types.Hash
	h[0] = b
	return h
}

func TestProcessSlot_EmptySlot(t *testing.T) {
	beacon := &fakeBeacon{blocks: map[types.Slot]*types.BeaconBlock{}}
	indexer := &fakeIndexer{}
	p := newProcessor(beacon, &fakeExecution{}, indexer)

	if err := p.ProcessSlot(context.Background(), 1); err != nil {
		t.Fatalf("ProcessSlot: %v", err)
	}
	if len(indexer.requests) != 0 {
		t.Fatal("expected no downstream call for an empty slot")
	}
}

func TestProcessSlot_NoExecutionPayload(t *testing.T) {
	beacon := &fakeBeacon{blocks: map[types.Slot]*types.BeaconBlock{
		1: {Slot: 1},
	}}
	indexer := &fakeIndexer{}
	p := newProcessor(beacon, &fakeExecution{}, indexer)

	if err := p.ProcessSlot(context.Background(), 1); err != nil {
		t.Fatalf("ProcessSlot: %v", err)
	}
	if len(indexer.requests) != 0 {
		t.Fatal("expected no downstream call when execution payload absent")
	}
}

func TestProcessSlot_BlobTxSingleBlob(t *testing.T) {
	execHash := hash(0xaa)
	commitment := make([]byte, 48)
	txHash := types.HexToHash("0x" + strings.Repeat("22", 32))

	beacon := &fakeBeacon{
		blocks: map[types.Slot]*types.BeaconBlock{
			1: {
				Slot:               1,
				ExecutionPayload:   &types.ExecutionPayloadHeader{BlockHash: execHash},
				BlobKZGCommitments: []string{"0x" + strings.Repeat("00", 48)},
			},
		},
		sidecars: map[types.Slot][]types.BlobSidecar{
			1: {{Index: 0, KZGCommitment: commitment}},
		},
	}

	// Compute the real versioned hash the way the blob package does, so the
	// fake transaction declares the hash the sidecar will actually produce.
	realVH := computeVersionedHashForTest(commitment)

	execution := &fakeExecution{
		blocks: map[types.Hash]*types.ExecutionBlock{
			execHash: {
				Hash:          execHash,
				BlobGasUsed:   uint256.NewInt(1),
				ExcessBlobGas: uint256.NewInt(0),
				Transactions: []types.Tx{{
					Hash:                txHash,
					GasPrice:            uint256.NewInt(1),
					BlobVersionedHashes: []types.Hash{realVH},
				}},
			},
		},
	}

	indexer := &fakeIndexer{}
	p := newProcessor(beacon, execution, indexer)

	if err := p.ProcessSlot(context.Background(), 1); err != nil {
		t.Fatalf("ProcessSlot: %v", err)
	}
	if len(indexer.requests) != 1 {
		t.Fatalf("expected exactly 1 IndexRequest, got %d", len(indexer.requests))
	}
	req := indexer.requests[0]
	if len(req.Transactions) != 1 || len(req.Blobs) != 1 {
		t.Fatalf("expected 1 tx and 1 blob, got %d tx, %d blobs", len(req.Transactions), len(req.Blobs))
	}
	if req.Blobs[0].VersionedHash != realVH {
		t.Fatalf("versioned hash mismatch: got %s, want %s", req.Blobs[0].VersionedHash, realVH)
	}
}

func TestProcessSlot_MissingSidecar(t *testing.T) {
	execHash := hash(0xbb)
	txHash := types.HexToHash("0x" + strings.Repeat("33", 32))
	vh := types.HexToHash("0x01" + strings.Repeat("ff", 31))

	beacon := &fakeBeacon{
		blocks: map[types.Slot]*types.BeaconBlock{
			1: {
				Slot:               1,
				ExecutionPayload:   &types.ExecutionPayloadHeader{BlockHash: execHash},
				BlobKZGCommitments: []string{"0x" + strings.Repeat("00", 48)},
			},
		},
		// A sidecar is present but its commitment does not hash to the
		// versioned hash declared by the transaction.
		sidecars: map[types.Slot][]types.BlobSidecar{
			1: {{Index: 0, KZGCommitment: make([]byte, 48)}},
		},
	}
	execution := &fakeExecution{
		blocks: map[types.Hash]*types.ExecutionBlock{
			execHash: {
				Hash:          execHash,
				BlobGasUsed:   uint256.NewInt(1),
				ExcessBlobGas: uint256.NewInt(0),
				Transactions: []types.Tx{{
					Hash:                txHash,
					GasPrice:            uint256.NewInt(1),
					BlobVersionedHashes: []types.Hash{vh},
				}},
			},
		},
	}
	indexer := &fakeIndexer{}
	p := newProcessor(beacon, execution, indexer)

	err := p.ProcessSlot(context.Background(), 1)
	if err == nil {
		t.Fatal("expected permanent error for missing sidecar")
	}
	if len(indexer.requests) != 0 {
		t.Fatal("expected no downstream call when a sidecar is missing")
	}
}
