// Package blockid implements the IdService (spec §4.2): the deterministic
// mapping from a Node, under a chosen Codec and Digest, to its content
// address (BlockId / CID).
package blockid

import (
	"fmt"

	"github.com/expede/ipld-inline/codec"
	"github.com/expede/ipld-inline/digest"
	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/multiformats/go-multihash"
)

// DefaultVersion is the CID version this module produces when the caller
// doesn't care (spec §4.2 leaves the version a parameter of IdService, not
// a global constant).
const DefaultVersion = 1

// Compute is the IdService: it encodes n under c, hashes the result with d,
// and frames the multihash into a CID of the given version. Encoding is
// assumed total (the caller is expected to have gone through
// codec.Encodable first); a failure here means n contains something its
// chosen codec genuinely cannot represent and is reported, not panicked.
func Compute(n datamodel.Node, c codec.Codec, d digest.Digest, version int) (cid.Cid, error) {
	bs, err := c.Encode(n)
	if err != nil {
		return cid.Undef, fmt.Errorf("blockid: encode failed: %w", err)
	}

	mh, err := d.Hash(bs)
	if err != nil {
		return cid.Undef, fmt.Errorf("blockid: hash failed: %w", err)
	}

	switch version {
	case 0:
		// cid.NewCidV0 hardcodes dag-pb as the codec regardless of c; the
		// only real constraint on our side is the digest, since a CIDv0
		// multihash must be sha2-256.
		if d.Code() != multihash.SHA2_256 {
			return cid.Undef, fmt.Errorf("blockid: CIDv0 requires sha2-256, got digest=%s", d.Name())
		}
		return cid.NewCidV0(mh), nil
	case 1:
		return cid.NewCidV1(c.Tag(), mh), nil
	default:
		return cid.Undef, fmt.Errorf("blockid: unsupported CID version %d", version)
	}
}

// ComputeDefault computes a CIDv1 under codec c with the SHA2-256 digest,
// the configuration every caller reaches for unless it has a specific
// reason not to (spec §4.2's "usual" instantiation).
func ComputeDefault(n datamodel.Node, c codec.Codec) (cid.Cid, error) {
	return Compute(n, c, digest.SHA2_256, DefaultVersion)
}
