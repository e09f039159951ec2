package inventory_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/chemtrackhq/chemtrack/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSBlobStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := inventory.NewFSBlobStore(t.TempDir())
	require.NoError(t, err)

	err = store.Put(ctx, "sds/abc/v1.pdf", strings.NewReader("document body"))
	require.NoError(t, err)

	body, err := store.Get(ctx, "sds/abc/v1.pdf")
	require.NoError(t, err)
	defer body.Close()

	content, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "document body", string(content))
}

func TestFSBlobStorePutOverwrites(t *testing.T) {
	ctx := context.Background()
	store, err := inventory.NewFSBlobStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "sds/abc/v1.pdf", strings.NewReader("first")))
	require.NoError(t, store.Put(ctx, "sds/abc/v1.pdf", strings.NewReader("second")))

	body, err := store.Get(ctx, "sds/abc/v1.pdf")
	require.NoError(t, err)
	defer body.Close()

	content, _ := io.ReadAll(body)
	assert.Equal(t, "second", string(content))
}

func TestFSBlobStoreGetMissing(t *testing.T) {
	store, err := inventory.NewFSBlobStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "sds/nope/v1.pdf")
	assert.Error(t, err)
}

func TestFSBlobStoreRejectsTraversal(t *testing.T) {
	store, err := inventory.NewFSBlobStore(t.TempDir())
	require.NoError(t, err)

	err = store.Put(context.Background(), "../outside.txt", strings.NewReader("nope"))
	assert.Error(t, err)

	_, err = store.Get(context.Background(), "")
	assert.Error(t, err)
}

func TestFSBlobStoreDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, err := inventory.NewFSBlobStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "sds/abc/v1.pdf", strings.NewReader("doc")))
	require.NoError(t, store.Delete(ctx, "sds/abc/v1.pdf"))
	require.NoError(t, store.Delete(ctx, "sds/abc/v1.pdf"))

	_, err = store.Get(ctx, "sds/abc/v1.pdf")
	assert.Error(t, err)
}
