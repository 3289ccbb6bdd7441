package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStore_Put(t *testing.T) {
	base := t.TempDir()
	s, err := NewFSStore(base)
	require.NoError(t, err)

	u, err := s.Put(context.Background(), "photos/7.jpg", strings.NewReader("jpeg"), 4, "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "file://"))

	got, err := os.ReadFile(filepath.Join(base, "photos", "7.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(got))
}

func TestFSStore_RejectsBadKeys(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Put(context.Background(), "", strings.NewReader("x"), 1, "")
	assert.Error(t, err)

	// Traversal is folded back under the base directory.
	u, err := s.Put(context.Background(), "../../escape.jpg", strings.NewReader("x"), 1, "")
	require.NoError(t, err)
	assert.NotContains(t, u, "..")
}
