package types

import (
	"strings"
	"testing"
)

func TestBlockIdRoundTrip(t *testing.T) {
	cases := []BlockId{
		HeadBlockId(),
		FinalizedBlockId(),
		SlotBlockId(0),
		SlotBlockId(123456),
		HashBlockId(HexToHash("0x" + "ab" + strings.Repeat("00", 31))),
	}

	for _, id := range cases {
		t.Run(id.String(), func(t *testing.T) {
			got, err := ParseBlockId(id.String())
			if err != nil {
				t.Fatalf("ParseBlockId(%q): %v", id.String(), err)
			}
			if got != id {
				t.Fatalf("round-trip mismatch: got %+v, want %+v", got, id)
			}
		})
	}
}

func TestParseBlockIdInvalid(t *testing.T) {
	cases := []string{"0xdeadbeef", "not-a-slot", "-1"}
	for _, s := range cases {
		if _, err := ParseBlockId(s); err == nil {
			t.Fatalf("ParseBlockId(%q): expected error, got nil", s)
		}
	}
}

func TestHashHexRoundTrip(t *testing.T) {
	h := HexToHash("0x" + strings.Repeat("11", 32))
	if got := HexToHash(h.Hex()); got != h {
		t.Fatalf("hash hex round-trip mismatch: got %s, want %s", got, h)
	}
	if !(Hash{}).IsZero() {
		t.Fatal("zero Hash should report IsZero")
	}
}
