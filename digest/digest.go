// Package digest provides the Digest collaborator the core consumes to turn
// encoded bytes into a multihash (spec §6.2). Hashing itself is out of the
// core's scope; this package only supplies the two concrete digests the
// rest of the module wires up by default.
package digest

import (
	"github.com/multiformats/go-multihash"
	"lukechampine.com/blake3"
)

// Digest computes a multihash over encoded bytes.
type Digest interface {
	// Name identifies the digest for logging/catalog purposes.
	Name() string
	// Code is the multihash function code (e.g. multihash.SHA2_256).
	Code() uint64
	// Hash returns the multihash-framed digest of data.
	Hash(data []byte) (multihash.Multihash, error)
}

type sha2_256 struct{}

// SHA2_256 is the default digest: multihash.SHA2_256 via the standard
// library's crypto/sha256 (through multihash.Sum).
var SHA2_256 Digest = sha2_256{}

func (sha2_256) Name() string { return "sha2-256" }
func (sha2_256) Code() uint64 { return multihash.SHA2_256 }

func (sha2_256) Hash(data []byte) (multihash.Multihash, error) {
	return multihash.Sum(data, multihash.SHA2_256, -1)
}

type blake3Digest struct{}

// Blake3 uses lukechampine.com/blake3, the digest entitystore.go reaches
// for when it needs speed over FIPS-approved algorithms.
var Blake3 Digest = blake3Digest{}

func (blake3Digest) Name() string { return "blake3" }
func (blake3Digest) Code() uint64 { return multihash.BLAKE3 }

func (blake3Digest) Hash(data []byte) (multihash.Multihash, error) {
	h := blake3.New(32, nil)
	h.Write(data)
	sum := h.Sum(nil)
	return multihash.Encode(sum, multihash.BLAKE3)
}
