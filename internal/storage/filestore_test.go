package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_SaveAndRemove(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "books"), 0)
	require.NoError(t, err)

	key, err := store.Save("../../etc/My Book (1).pdf", strings.NewReader("payload"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(key, "_My_Book_1_.pdf"), key)
	assert.NotContains(t, key, "/")

	path, err := store.Path(key)
	require.NoError(t, err)
	assert.Equal(t, store.Root(), filepath.Dir(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	other, err := store.Save("../../etc/My Book (1).pdf", strings.NewReader("again"))
	require.NoError(t, err)
	assert.NotEqual(t, key, other)

	require.NoError(t, store.Remove(key))
	require.NoError(t, store.Remove(key), "removing twice is fine")
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_Limits(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), 4)
	require.NoError(t, err)

	_, err = store.Save("a.pdf", strings.NewReader("12345"))
	assert.ErrorIs(t, err, ErrTooLarge)

	key, err := store.Save("a.pdf", strings.NewReader("1234"))
	require.NoError(t, err)
	assert.NotEmpty(t, key)

	entries, err := os.ReadDir(store.Root())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStore_PathRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), 0)
	require.NoError(t, err)

	for _, key := range []string{"", "../secret", "a/b.pdf", ".."} {
		_, err := store.Path(key)
		assert.ErrorIs(t, err, ErrInvalidPath, key)
	}
}

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"report.pdf":        "report.pdf",
		"C:\\docs\\a b.pdf": "a_b.pdf",
		"...":               "book.pdf",
		"ünïcode.pdf":       "n_code.pdf",
		"":                  "book.pdf",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitize(in), in)
	}
	assert.Len(t, sanitize(strings.Repeat("x", 300)+".pdf"), 100)
}
