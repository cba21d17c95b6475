// Package codec provides the Codec collaborator (spec §6.2) and the
// Encodable gate (spec §4.3): a witness that a given Codec is total over
// datamodel.Node so that IdService and the Extractor can treat encoding as
// infallible for the codecs they actually support.
package codec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/ipld/go-ipld-prime/codec/dagjson"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/multicodec"
)

// Multicodec tags for the two canonical codecs this module ships witnesses
// for (spec §6.2).
const (
	TagDagCBOR = 0x71
	TagDagJSON = 0x0129
)

// ErrUnsupportedCodec is returned when a codec tag has no registered
// encoder (spec §7).
var ErrUnsupportedCodec = errors.New("codec: unsupported codec tag")

// Codec is a total encoder from datamodel.Node to bytes, tagged with its
// multicodec code.
type Codec interface {
	Tag() uint64
	Encode(n datamodel.Node) ([]byte, error)
}

type dagCBOR struct{}

// DagCBOR is the DAG-CBOR codec (tag 0x71).
var DagCBOR Codec = dagCBOR{}

func (dagCBOR) Tag() uint64 { return TagDagCBOR }

func (dagCBOR) Encode(n datamodel.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := dagcbor.Encode(n, &buf); err != nil {
		return nil, fmt.Errorf("codec: dag-cbor encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

type dagJSON struct{}

// DagJSON is the DAG-JSON codec (tag 0x0129). Per spec §6.3, integers
// outside [-(2^53-1), 2^53-1] still encode (or error per the codec's own
// rule) -- callers that need round-trip-safe JSON must restrict their
// input to that range themselves.
var DagJSON Codec = dagJSON{}

func (dagJSON) Tag() uint64 { return TagDagJSON }

func (dagJSON) Encode(n datamodel.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := dagjson.Encode(n, &buf); err != nil {
		return nil, fmt.Errorf("codec: dag-json encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Encodable is the Encodable gate (spec §4.3): a witness that tag is
// supported, i.e. encoding under it is total over datamodel.Node. Only the
// two canonical codecs above have witnesses; a raw or protobuf codec, whose
// domain is a proper subset of Node, is deliberately not registered here --
// attempting to extract/inline under such a tag is a construction-time
// configuration error (spec §7's UnsupportedCodec), not a runtime one.
func Encodable(tag uint64) (Codec, bool) {
	switch tag {
	case TagDagCBOR:
		return DagCBOR, true
	case TagDagJSON:
		return DagJSON, true
	default:
		return nil, false
	}
}

// ByTag resolves a Codec by multicodec tag, failing with ErrUnsupportedCodec
// for anything without an Encodable witness (spec §7).
func ByTag(tag uint64) (Codec, error) {
	c, ok := Encodable(tag)
	if !ok {
		return nil, fmt.Errorf("%w: 0x%x", ErrUnsupportedCodec, tag)
	}
	return c, nil
}

// RegisterDefaults registers the DAG-CBOR and DAG-JSON encoders/decoders
// with go-ipld-prime's global multicodec registry, the way every teacher
// cmd/* entrypoint does in main() before touching a LinkSystem or CAR file.
func RegisterDefaults() {
	multicodec.RegisterEncoder(TagDagCBOR, dagcbor.Encode)
	multicodec.RegisterDecoder(TagDagCBOR, dagcbor.Decode)
	multicodec.RegisterEncoder(TagDagJSON, dagjson.Encode)
	multicodec.RegisterDecoder(TagDagJSON, dagjson.Decode)
}
