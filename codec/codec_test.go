package codec

import (
	"bytes"
	"testing"

	"github.com/expede/ipld-inline/internal/testnode"
	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDagCBOREncodeDecodeRoundTrips(t *testing.T) {
	n := testnode.Map(
		testnode.KV{Key: "a", Value: testnode.Int(1)},
		testnode.KV{Key: "b", Value: testnode.String("two")},
	)

	bs, err := DagCBOR.Encode(n)
	require.NoError(t, err)
	assert.NotEmpty(t, bs)
	assert.Equal(t, uint64(TagDagCBOR), DagCBOR.Tag())

	nb := basicnode.Prototype.Any.NewBuilder()
	require.NoError(t, dagcbor.Decode(nb, bytes.NewReader(bs)))
	assert.True(t, datamodel.DeepEqual(n, nb.Build()))
}

func TestDagJSONEncode(t *testing.T) {
	n := testnode.List(testnode.Int(1), testnode.Int(2), testnode.Int(3))

	bs, err := DagJSON.Encode(n)
	require.NoError(t, err)
	assert.Equal(t, "[1,2,3]", string(bs))
	assert.Equal(t, uint64(TagDagJSON), DagJSON.Tag())
}

func TestEncodableGate(t *testing.T) {
	c, ok := Encodable(TagDagCBOR)
	require.True(t, ok)
	assert.Equal(t, DagCBOR, c)

	_, ok = Encodable(0x55) // raw codec has no witness here
	assert.False(t, ok)
}

func TestByTagUnsupported(t *testing.T) {
	_, err := ByTag(0x55)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedCodec)
}
