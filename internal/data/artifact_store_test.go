package data

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/quantsignal/forecast-api/internal/errors"
)

func TestFileArtifactStore(t *testing.T) {
	ctx := context.Background()
	store := NewFileArtifactStore(filepath.Join(t.TempDir(), "models"))

	versions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, versions)

	_, err = store.Load(ctx, "")
	assert.True(t, apperrors.IsNotFound(err))

	p1, err := store.Save(ctx, "AAPL-20240101T010000Z", []byte("one"))
	require.NoError(t, err)
	p2, err := store.Save(ctx, "MSFT-20240102T010000Z", []byte("two"))
	require.NoError(t, err)

	older := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(p1, older, older))
	_ = p2

	versions, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"MSFT-20240102T010000Z", "AAPL-20240101T010000Z"}, versions)

	latest, err := store.Load(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "two", string(latest))

	b, err := store.Load(ctx, "AAPL-20240101T010000Z")
	require.NoError(t, err)
	assert.Equal(t, "one", string(b))

	_, err = store.Load(ctx, "NOPE-1")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestFileArtifactStore_RejectsTraversal(t *testing.T) {
	store := NewFileArtifactStore(t.TempDir())

	for _, v := range []string{"../etc/passwd", "a/b", "", ".hidden", "x..y"} {
		_, err := store.Save(context.Background(), v, []byte("x"))
		assert.True(t, apperrors.IsValidation(err), v)
	}
}

func TestFileArtifactStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewFileArtifactStore(t.TempDir())

	_, err := store.Save(ctx, "AAPL-20240101T010000Z", []byte("one"))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "AAPL-20240101T010000Z"))

	versions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, versions)
	_, err = store.Load(ctx, "")
	assert.True(t, apperrors.IsNotFound(err), "a deleted artifact is no longer the newest model")

	require.NoError(t, store.Delete(ctx, "AAPL-20240101T010000Z"), "deleting twice succeeds")
	assert.True(t, apperrors.IsValidation(store.Delete(ctx, "../etc/passwd")))
}
