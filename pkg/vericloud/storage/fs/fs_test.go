package fs_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vericloud/vericloud/pkg/vericloud"
	"github.com/vericloud/vericloud/pkg/vericloud/storage/fs"
)

func newBackend(t *testing.T, compress bool) vericloud.BlobStore {
	t.Helper()
	backend, err := fs.New(fs.Config{BaseDir: t.TempDir(), Compress: compress})
	require.NoError(t, err)
	return backend
}

func TestNewRequiresBaseDir(t *testing.T) {
	_, err := fs.New(fs.Config{})
	assert.Error(t, err)
}

func TestNewCreatesBaseDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")
	_, err := fs.New(fs.Config{BaseDir: dir})
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestUploadDownloadDelete(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "compressed"
		}
		t.Run(name, func(t *testing.T) {
			backend := newBackend(t, compress)
			ctx := context.Background()
			payload := []byte("some blob content with repetition repetition repetition")

			require.NoError(t, backend.Upload(ctx, "key.txt", bytes.NewReader(payload)))

			exists, err := backend.Exists(ctx, "key.txt")
			require.NoError(t, err)
			assert.True(t, exists)

			rc, err := backend.Download(ctx, "key.txt")
			require.NoError(t, err)
			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			assert.Equal(t, payload, got)

			require.NoError(t, backend.Delete(ctx, "key.txt"))

			exists, err = backend.Exists(ctx, "key.txt")
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestUploadOverwrites(t *testing.T) {
	backend := newBackend(t, false)
	ctx := context.Background()

	require.NoError(t, backend.Upload(ctx, "k", bytes.NewReader([]byte("old"))))
	require.NoError(t, backend.Upload(ctx, "k", bytes.NewReader([]byte("new"))))

	rc, err := backend.Download(ctx, "k")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestMissingKeyErrors(t *testing.T) {
	backend := newBackend(t, false)
	ctx := context.Background()

	_, err := backend.Download(ctx, "nope")
	assert.ErrorIs(t, err, vericloud.ErrBlobNotFound)

	err = backend.Delete(ctx, "nope")
	assert.ErrorIs(t, err, vericloud.ErrBlobNotFound)
}

func TestRejectsUnsafeKeys(t *testing.T) {
	backend := newBackend(t, false)
	ctx := context.Background()

	for _, key := range []string{
		"",
		"../escape",
		"/etc/passwd",
		"nested/key",
		"null\x00byte",
	} {
		t.Run("key "+key, func(t *testing.T) {
			err := backend.Upload(ctx, key, bytes.NewReader([]byte("x")))
			require.Error(t, err)

			var storageErr *vericloud.StorageError
			assert.ErrorAs(t, err, &storageErr)
		})
	}
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	backend, err := fs.New(fs.Config{BaseDir: dir})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, backend.Upload(ctx, "a", bytes.NewReader([]byte("1"))))
	require.NoError(t, backend.Upload(ctx, "b", bytes.NewReader([]byte("2"))))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
