package blob

import (
	"bytes"
	"strings"
	"testing"

	"github.com/holiman/uint256"

	"github.com/blobscan/blob-indexer/types"
)

func commitmentBytes() []byte {
	return make([]byte, 48)
}

func TestComputeVersionedHash_AssemblesSingleBlobTx(t *testing.T) {
	commitment := commitmentBytes()
	vh := ComputeVersionedHash(commitment)

	if vh[0] != VersionedHashVersion {
		t.Fatalf("versioned hash version byte = %x, want %x", vh[0], VersionedHashVersion)
	}

	tx := types.Tx{
		Hash:                types.HexToHash("0x" + strings.Repeat("22", 32)),
		BlobVersionedHashes: []types.Hash{vh},
		GasPrice:            uint256.NewInt(1),
	}
	execBlock := types.ExecutionBlock{
		Hash:          types.HexToHash("0x" + strings.Repeat("aa", 32)),
		BlobGasUsed:   uint256.NewInt(131072),
		ExcessBlobGas: uint256.NewInt(0),
		Transactions:  []types.Tx{tx},
	}
	sidecars := []types.BlobSidecar{{Index: 0, KZGCommitment: commitment}}

	blobBearing := BlobBearingTxs(execBlock.Transactions)
	if len(blobBearing) != 1 {
		t.Fatalf("expected 1 blob-bearing tx, got %d", len(blobBearing))
	}

	sidecarMap := BuildSidecarMap(sidecars)
	req, err := Assemble(execBlock, types.Slot(1), blobBearing, sidecarMap)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if len(req.Transactions) != 1 || len(req.Blobs) != 1 {
		t.Fatalf("expected 1 tx and 1 blob, got %d tx, %d blobs", len(req.Transactions), len(req.Blobs))
	}
	if req.Blobs[0].VersionedHash != vh {
		t.Fatalf("blob versioned hash = %s, want %s", req.Blobs[0].VersionedHash, vh)
	}
	if !bytes.Equal(req.Blobs[0].Commitment, commitment) {
		t.Fatal("blob commitment mismatch")
	}
}

func TestAssemble_MissingSidecar(t *testing.T) {
	vh := ComputeVersionedHash(commitmentBytes())
	tx := types.Tx{
		Hash:                types.HexToHash("0x" + strings.Repeat("33", 32)),
		BlobVersionedHashes: []types.Hash{vh},
	}
	execBlock := types.ExecutionBlock{
		BlobGasUsed:   uint256.NewInt(0),
		ExcessBlobGas: uint256.NewInt(0),
		Transactions:  []types.Tx{tx},
	}

	_, err := Assemble(execBlock, types.Slot(1), []types.Tx{tx}, map[types.Hash]types.BlobSidecar{})
	if err == nil {
		t.Fatal("expected permanent error for missing sidecar")
	}
}

func TestAssemble_MissingGasFields(t *testing.T) {
	_, err := Assemble(types.ExecutionBlock{}, types.Slot(1), nil, nil)
	if err == nil {
		t.Fatal("expected error for missing blob gas fields")
	}
}

func TestBlobBearingTxs_Empty(t *testing.T) {
	txs := []types.Tx{{Hash: types.HexToHash("0x" + strings.Repeat("44", 32))}}
	if got := BlobBearingTxs(txs); len(got) != 0 {
		t.Fatalf("expected no blob-bearing txs, got %d", len(got))
	}
}
