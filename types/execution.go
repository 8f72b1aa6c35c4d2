package types

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/holiman/uint256"
)

// Tx is an execution-layer transaction, trimmed to the fields this system
// needs to join against blob sidecars. Only transactions with a non-empty
// BlobVersionedHashes list are blob-bearing.
type Tx struct {
	Hash               Hash
	From               Address
	To                 *Address
	GasPrice           *uint256.Int
	MaxFeePerBlobGas   *uint256.Int
	BlobVersionedHashes []Hash
}

// IsBlobBearing reports whether the transaction carries at least one blob
// versioned hash.
func (t Tx) IsBlobBearing() bool { return len(t.BlobVersionedHashes) > 0 }

// ExecutionBlock is the eth_getBlockByHash(hash, true) response, trimmed to
// the fields this system needs.
type ExecutionBlock struct {
	Number         uint64
	Hash           Hash
	Timestamp      *uint256.Int
	BlobGasUsed    *uint256.Int
	ExcessBlobGas  *uint256.Int
	Transactions   []Tx
}

type txWire struct {
	Hash                string   `json:"hash"`
	From                string   `json:"from"`
	To                  *string  `json:"to"`
	GasPrice            string   `json:"gasPrice"`
	MaxFeePerBlobGas    string   `json:"maxFeePerBlobGas"`
	BlobVersionedHashes []string `json:"blobVersionedHashes"`
}

type executionBlockWire struct {
	Number        string   `json:"number"`
	Hash          string   `json:"hash"`
	Timestamp     string   `json:"timestamp"`
	BlobGasUsed   *string  `json:"blobGasUsed"`
	ExcessBlobGas *string  `json:"excessBlobGas"`
	Transactions  []txWire `json:"transactions"`
}

// UnmarshalJSON decodes the JSON-RPC hex-encoded block shape into
// ExecutionBlock, leaving BlobGasUsed/ExcessBlobGas nil when the node omits
// them (pre-Deneb blocks) so callers can detect the missing-field case.
func (b *ExecutionBlock) UnmarshalJSON(data []byte) error {
	var wire executionBlockWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return errors.Wrap(err, "types: decode execution block")
	}

	number, err := hexToUint64(wire.Number)
	if err != nil {
		return errors.Wrapf(err, "types: invalid block number %q", wire.Number)
	}
	timestamp, err := hexToUint256(wire.Timestamp)
	if err != nil {
		return errors.Wrapf(err, "types: invalid timestamp %q", wire.Timestamp)
	}

	b.Number = number
	b.Hash = HexToHash(wire.Hash)
	b.Timestamp = timestamp

	if wire.BlobGasUsed != nil {
		v, err := hexToUint256(*wire.BlobGasUsed)
		if err != nil {
			return errors.Wrapf(err, "types: invalid blobGasUsed %q", *wire.BlobGasUsed)
		}
		b.BlobGasUsed = v
	}
	if wire.ExcessBlobGas != nil {
		v, err := hexToUint256(*wire.ExcessBlobGas)
		if err != nil {
			return errors.Wrapf(err, "types: invalid excessBlobGas %q", *wire.ExcessBlobGas)
		}
		b.ExcessBlobGas = v
	}

	b.Transactions = make([]Tx, len(wire.Transactions))
	for i, tw := range wire.Transactions {
		tx, err := tw.toTx()
		if err != nil {
			return errors.Wrapf(err, "types: transaction %d", i)
		}
		b.Transactions[i] = tx
	}
	return nil
}

func (tw txWire) toTx() (Tx, error) {
	gasPrice, err := hexToUint256(tw.GasPrice)
	if err != nil {
		return Tx{}, errors.Wrapf(err, "invalid gasPrice %q", tw.GasPrice)
	}

	tx := Tx{
		Hash:     HexToHash(tw.Hash),
		From:     HexToAddress(tw.From),
		GasPrice: gasPrice,
	}
	if tw.To != nil {
		addr := HexToAddress(*tw.To)
		tx.To = &addr
	}
	if tw.MaxFeePerBlobGas != "" {
		v, err := hexToUint256(tw.MaxFeePerBlobGas)
		if err != nil {
			return Tx{}, errors.Wrapf(err, "invalid maxFeePerBlobGas %q", tw.MaxFeePerBlobGas)
		}
		tx.MaxFeePerBlobGas = v
	}
	for _, h := range tw.BlobVersionedHashes {
		tx.BlobVersionedHashes = append(tx.BlobVersionedHashes, HexToHash(h))
	}
	return tx, nil
}

func hexToUint256(s string) (*uint256.Int, error) {
	if s == "" {
		return uint256.NewInt(0), nil
	}
	v, err := uint256.FromHex(s)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func hexToUint64(s string) (uint64, error) {
	v, err := hexToUint256(s)
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}
