package types

import (
	"encoding/json"
	"strconv"

	"github.com/cockroachdb/errors"
)

// ExecutionPayloadHeader is the subset of a beacon block's execution
// payload this system needs to bridge to the execution layer.
type ExecutionPayloadHeader struct {
	BlockHash   Hash
	BlockNumber uint64
}

// BeaconBlock is the beacon API's v2/beacon/blocks/{id} response, trimmed to
// the fields this system reads. ExecutionPayload and BlobKZGCommitments are
// absent for pre-Bellatrix / pre-Deneb slots.
type BeaconBlock struct {
	Slot              Slot
	ParentRoot        Hash
	ExecutionPayload  *ExecutionPayloadHeader
	BlobKZGCommitments []string
}

// BeaconBlockHeader is the beacon API's v1/beacon/headers/{id} response.
type BeaconBlockHeader struct {
	Slot       Slot
	Root       Hash
	ParentRoot Hash
}

// beaconBlockWire mirrors the nested shape the beacon API actually returns
// (data.message.{slot,parent_root,body.execution_payload{...}}), with slot
// delivered as a JSON string.
type beaconBlockWire struct {
	Data struct {
		Message struct {
			Slot       string `json:"slot"`
			ParentRoot string `json:"parent_root"`
			Body       struct {
				ExecutionPayload *struct {
					BlockHash   string `json:"block_hash"`
					BlockNumber string `json:"block_number"`
				} `json:"execution_payload"`
				BlobKZGCommitments []string `json:"blob_kzg_commitments"`
			} `json:"body"`
		} `json:"message"`
	} `json:"data"`
}

// UnmarshalJSON parses the beacon API's nested envelope into a flat
// BeaconBlock, parsing the string-typed slot as a decimal u32.
func (b *BeaconBlock) UnmarshalJSON(data []byte) error {
	var wire beaconBlockWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return errors.Wrap(err, "types: decode beacon block")
	}

	slot, err := strconv.ParseUint(wire.Data.Message.Slot, 10, 32)
	if err != nil {
		return errors.Wrapf(err, "types: invalid beacon block slot %q", wire.Data.Message.Slot)
	}
	b.Slot = Slot(slot)
	b.ParentRoot = HexToHash(wire.Data.Message.ParentRoot)
	b.BlobKZGCommitments = wire.Data.Message.Body.BlobKZGCommitments

	if ep := wire.Data.Message.Body.ExecutionPayload; ep != nil {
		number, err := strconv.ParseUint(ep.BlockNumber, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "types: invalid execution payload block_number %q", ep.BlockNumber)
		}
		b.ExecutionPayload = &ExecutionPayloadHeader{
			BlockHash:   HexToHash(ep.BlockHash),
			BlockNumber: number,
		}
	}
	return nil
}

type beaconHeaderWire struct {
	Data struct {
		Root   string `json:"root"`
		Header struct {
			Message struct {
				Slot       string `json:"slot"`
				ParentRoot string `json:"parent_root"`
			} `json:"message"`
		} `json:"header"`
	} `json:"data"`
}

// UnmarshalJSON parses the beacon API's header envelope.
func (h *BeaconBlockHeader) UnmarshalJSON(data []byte) error {
	var wire beaconHeaderWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return errors.Wrap(err, "types: decode beacon header")
	}
	slot, err := strconv.ParseUint(wire.Data.Header.Message.Slot, 10, 32)
	if err != nil {
		return errors.Wrapf(err, "types: invalid beacon header slot %q", wire.Data.Header.Message.Slot)
	}
	h.Slot = Slot(slot)
	h.Root = HexToHash(wire.Data.Root)
	h.ParentRoot = HexToHash(wire.Data.Header.Message.ParentRoot)
	return nil
}
