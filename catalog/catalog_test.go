package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRecordExtractAndList(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	id, err := c.RecordExtract(ctx, "bafyreickxqyrg7hhhdm2z24kduovd4k4vvbmfmenzn7nc6pxg6qzjm2v44", 3)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	runs, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "extract", runs[0].Operation)
	assert.Equal(t, 3, runs[0].BlockCount)
}

func TestRecordInlineWithPolicy(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	_, err := c.RecordInline(ctx, "bafyreickxqyrg7hhhdm2z24kduovd4k4vvbmfmenzn7nc6pxg6qzjm2v44", "at-most-once")
	require.NoError(t, err)

	runs, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "inline", runs[0].Operation)
	assert.Equal(t, "at-most-once", runs[0].Policy)
}

func TestListOrdersMostRecentFirst(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	_, err := c.RecordExtract(ctx, "cid-a", 1)
	require.NoError(t, err)
	_, err = c.RecordExtract(ctx, "cid-b", 2)
	require.NoError(t, err)

	runs, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "cid-b", runs[0].RootCID)
	assert.Equal(t, "cid-a", runs[1].RootCID)
}
