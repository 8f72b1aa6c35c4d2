package blob

import (
	"github.com/cockroachdb/errors"

	"github.com/blobscan/blob-indexer/types"
)

// ErrMissingGasFields is returned when the execution block lacks the
// blob_gas_used/excess_blob_gas fields required to assemble a BlockEntity.
var ErrMissingGasFields = errors.New("blob: execution block missing blob_gas_used/excess_blob_gas")

// ErrSidecarNotFound is returned when a transaction declares a versioned
// hash with no matching sidecar.
var ErrSidecarNotFound = errors.New("blob: sidecar not found")

// BuildSidecarMap computes each sidecar's versioned hash and indexes the
// sidecars by it. Multiple sidecars never collide in practice, but a later
// entry wins if they do.
func BuildSidecarMap(sidecars []types.BlobSidecar) map[types.Hash]types.BlobSidecar {
	m := make(map[types.Hash]types.BlobSidecar, len(sidecars))
	for _, s := range sidecars {
		m[ComputeVersionedHash(s.KZGCommitment)] = s
	}
	return m
}

// BlobBearingTxs filters txs down to those with a non-empty
// BlobVersionedHashes list.
func BlobBearingTxs(txs []types.Tx) []types.Tx {
	var out []types.Tx
	for _, tx := range txs {
		if tx.IsBlobBearing() {
			out = append(out, tx)
		}
	}
	return out
}

// Assemble joins an execution block's blob-bearing transactions against the
// sidecar map into one IndexRequest. The caller has already established
// that execBlock and sidecars belong to slot and that blobBearing is
// non-empty.
//
// For each transaction, for each of its declared versioned hashes in
// order, the sidecar found by that versioned hash becomes one BlobEntity
// carrying that (tx_hash, index) pair. A missing sidecar is a permanent
// error.
func Assemble(execBlock types.ExecutionBlock, slot types.Slot, blobBearing []types.Tx, sidecarsByHash map[types.Hash]types.BlobSidecar) (types.IndexRequest, error) {
	if execBlock.BlobGasUsed == nil || execBlock.ExcessBlobGas == nil {
		return types.IndexRequest{}, errors.Wrapf(ErrMissingGasFields, "execution block %s", execBlock.Hash)
	}

	req := types.IndexRequest{
		Block: types.BlockEntity{
			Number:        execBlock.Number,
			Hash:          execBlock.Hash,
			Timestamp:     execBlock.Timestamp,
			Slot:          slot,
			BlobGasUsed:   execBlock.BlobGasUsed,
			ExcessBlobGas: execBlock.ExcessBlobGas,
		},
		Transactions: make([]types.TransactionEntity, 0, len(blobBearing)),
	}

	for _, tx := range blobBearing {
		req.Transactions = append(req.Transactions, types.TransactionEntity{
			Hash:             tx.Hash,
			From:             tx.From,
			To:               tx.To,
			BlockNumber:      execBlock.Number,
			GasPrice:         tx.GasPrice,
			MaxFeePerBlobGas: tx.MaxFeePerBlobGas,
		})

		for i, vh := range tx.BlobVersionedHashes {
			sidecar, ok := sidecarsByHash[vh]
			if !ok {
				return types.IndexRequest{}, errors.Wrapf(ErrSidecarNotFound,
					"blob %d with versioned hash %s from tx %s", i, vh, tx.Hash)
			}
			req.Blobs = append(req.Blobs, types.BlobEntity{
				VersionedHash: vh,
				Commitment:    sidecar.KZGCommitment,
				Proof:         sidecar.KZGProof,
				TxHash:        tx.Hash,
				Index:         i,
			})
		}
	}

	return req, nil
}
