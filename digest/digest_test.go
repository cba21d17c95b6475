package digest

import (
	"testing"

	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSHA2_256(t *testing.T) {
	mh, err := SHA2_256.Hash([]byte("hello"))
	require.NoError(t, err)

	decoded, err := multihash.Decode(mh)
	require.NoError(t, err)
	assert.Equal(t, uint64(multihash.SHA2_256), decoded.Code)
}

func TestBlake3Deterministic(t *testing.T) {
	a, err := Blake3.Hash([]byte("hello"))
	require.NoError(t, err)
	b, err := Blake3.Hash([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Blake3.Hash([]byte("world"))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
