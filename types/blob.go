package types

import (
	"encoding/hex"
	"encoding/json"
	"strconv"

	"github.com/cockroachdb/errors"
)

// BlobSidecar is one entry of the beacon API's
// v1/beacon/blob_sidecars/{id} response. Blob is the raw blob payload;
// Index is delivered as a decimal string by the beacon API.
type BlobSidecar struct {
	Index         uint64
	KZGCommitment []byte // 48 bytes
	KZGProof      []byte // 48 bytes
	Blob          []byte
}

type blobSidecarWire struct {
	Index         string `json:"index"`
	KZGCommitment string `json:"kzg_commitment"`
	KZGProof      string `json:"kzg_proof"`
	Blob          string `json:"blob"`
}

// UnmarshalJSON decodes one blob sidecar entry.
func (s *BlobSidecar) UnmarshalJSON(data []byte) error {
	var wire blobSidecarWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return errors.Wrap(err, "types: decode blob sidecar")
	}

	index, err := strconv.ParseUint(wire.Index, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "types: invalid blob sidecar index %q", wire.Index)
	}
	s.Index = index

	commitment, err := decodeHexField("kzg_commitment", wire.KZGCommitment)
	if err != nil {
		return err
	}
	proof, err := decodeHexField("kzg_proof", wire.KZGProof)
	if err != nil {
		return err
	}
	blob, err := decodeHexField("blob", wire.Blob)
	if err != nil {
		return err
	}
	s.KZGCommitment = commitment
	s.KZGProof = proof
	s.Blob = blob
	return nil
}

func decodeHexField(name, value string) ([]byte, error) {
	b, err := hex.DecodeString(trimHexPrefix(value))
	if err != nil {
		return nil, errors.Wrapf(err, "types: invalid %s %q", name, value)
	}
	return b, nil
}

func trimHexPrefix(s string) string {
	if has0xPrefix(s) {
		return s[2:]
	}
	return s
}
