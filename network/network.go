// Package network holds the hard-fork slot constants the core indexing
// engine treats as an external collaborator. It resolves a NETWORK_NAME
// into a Dencun activation slot, honoring the DENCUN_FORK_SLOT override.
package network

import "github.com/cockroachdb/errors"

// The <Network>DencunForkSlot constants are the first slot at which EIP-4844
// blob transactions can exist on each built-in network.
const (
	MainnetDencunForkSlot = 8626176
	SepoliaDencunForkSlot = 4506624
	HoleskyDencunForkSlot = 950272
)

// ErrUnknownNetwork is returned by ForkSlot for a NETWORK_NAME with no
// built-in preset and no explicit override.
var ErrUnknownNetwork = errors.New("network: unknown network name")

// ForkSlot resolves the Dencun fork slot for name, preferring override when
// it is non-nil (the DENCUN_FORK_SLOT env var).
func ForkSlot(name string, override *uint32) (uint32, error) {
	if override != nil {
		return *override, nil
	}
	switch name {
	case "mainnet":
		return MainnetDencunForkSlot, nil
	case "sepolia":
		return SepoliaDencunForkSlot, nil
	case "holesky":
		return HoleskyDencunForkSlot, nil
	default:
		return 0, errors.Wrapf(ErrUnknownNetwork, "network name %q has no built-in preset; set DENCUN_FORK_SLOT", name)
	}
}
