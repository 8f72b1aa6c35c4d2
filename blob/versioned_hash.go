// Package blob implements the versioned-hash invariant and the per-slot
// join of execution transactions against beacon blob sidecars. Versioned
// hashes are derived with SHA-256, not Keccak256, per EIP-4844.
package blob

import (
	"crypto/sha256"

	"github.com/blobscan/blob-indexer/types"
)

// VersionedHashVersion is the commitment-version tag that replaces the
// first byte of the digest (0x01 = KZG).
const VersionedHashVersion = 0x01

// ComputeVersionedHash derives a blob's versioned hash from its KZG
// commitment: 0x01 || SHA256(commitment)[1:].
func ComputeVersionedHash(commitment []byte) types.Hash {
	digest := sha256.Sum256(commitment)
	digest[0] = VersionedHashVersion
	return types.Hash(digest)
}
