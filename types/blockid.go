package types

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Slot is a monotonic beacon-chain tick.
type Slot uint32

// BlockIdKind tags the variant held by a BlockId.
type BlockIdKind uint8

const (
	BlockIdHead BlockIdKind = iota
	BlockIdFinalized
	BlockIdSlot
	BlockIdHash
)

// BlockId is the tagged union the beacon API accepts as a path segment:
// Head, Finalized, a specific Slot, or a block root Hash.
type BlockId struct {
	Kind BlockIdKind
	Slot Slot
	Hash Hash
}

// HeadBlockId returns the "head" sentinel BlockId.
func HeadBlockId() BlockId { return BlockId{Kind: BlockIdHead} }

// FinalizedBlockId returns the "finalized" sentinel BlockId.
func FinalizedBlockId() BlockId { return BlockId{Kind: BlockIdFinalized} }

// SlotBlockId wraps a concrete slot.
func SlotBlockId(s Slot) BlockId { return BlockId{Kind: BlockIdSlot, Slot: s} }

// HashBlockId wraps a block root.
func HashBlockId(h Hash) BlockId { return BlockId{Kind: BlockIdHash, Hash: h} }

// String renders the canonical path-segment form used by the beacon API:
// "head", "finalized", a decimal slot, or "0x"+hex(hash).
func (id BlockId) String() string {
	switch id.Kind {
	case BlockIdHead:
		return "head"
	case BlockIdFinalized:
		return "finalized"
	case BlockIdSlot:
		return strconv.FormatUint(uint64(id.Slot), 10)
	case BlockIdHash:
		return id.Hash.Hex()
	default:
		return "unknown"
	}
}

// ParseBlockId is the inverse of String: parse(render(id)) == id for every
// variant.
func ParseBlockId(s string) (BlockId, error) {
	switch {
	case s == "head":
		return HeadBlockId(), nil
	case s == "finalized":
		return FinalizedBlockId(), nil
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		if len(s) != 2+2*HashLength {
			return BlockId{}, errors.Newf("types: invalid block hash length in %q", s)
		}
		return HashBlockId(HexToHash(s)), nil
	default:
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return BlockId{}, errors.Wrapf(err, "types: invalid block id %q", s)
		}
		return SlotBlockId(Slot(n)), nil
	}
}
