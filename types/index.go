package types

import "github.com/holiman/uint256"

// BlockEntity is the block-level payload of an IndexRequest.
type BlockEntity struct {
	Number        uint64
	Hash          Hash
	Timestamp     *uint256.Int
	Slot          Slot
	BlobGasUsed   *uint256.Int
	ExcessBlobGas *uint256.Int
}

// TransactionEntity is one blob-bearing transaction within an IndexRequest.
type TransactionEntity struct {
	Hash             Hash
	From             Address
	To               *Address
	BlockNumber      uint64
	GasPrice         *uint256.Int
	MaxFeePerBlobGas *uint256.Int
}

// BlobEntity is one blob within an IndexRequest, bound to its owning
// transaction by (TxHash, Index) and carrying the versioned hash that links
// it to that transaction's declared BlobVersionedHashes.
type BlobEntity struct {
	VersionedHash Hash
	Commitment    []byte
	Proof         []byte
	TxHash        Hash
	Index         int
}

// IndexRequest is the atomic unit delivered to the downstream indexer API
// via PUT block-txs-blobs.
type IndexRequest struct {
	Block        BlockEntity
	Transactions []TransactionEntity
	Blobs        []BlobEntity
}
