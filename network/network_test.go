package network

import "testing"

func TestForkSlotPresets(t *testing.T) {
	cases := map[string]uint32{
		"mainnet": MainnetDencunForkSlot,
		"sepolia": SepoliaDencunForkSlot,
		"holesky": HoleskyDencunForkSlot,
	}
	for name, want := range cases {
		got, err := ForkSlot(name, nil)
		if err != nil {
			t.Fatalf("ForkSlot(%q): %v", name, err)
		}
		if got != want {
			t.Fatalf("ForkSlot(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestForkSlotOverride(t *testing.T) {
	override := uint32(42)
	got, err := ForkSlot("mainnet", &override)
	if err != nil {
		t.Fatalf("ForkSlot: %v", err)
	}
	if got != 42 {
		t.Fatalf("ForkSlot override = %d, want 42", got)
	}
}

func TestForkSlotUnknown(t *testing.T) {
	if _, err := ForkSlot("not-a-network", nil); err == nil {
		t.Fatal("expected error for unknown network")
	}
}
