package attach

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	h, err := NewHandler(t.TempDir())
	require.NoError(t, err)
	return h
}

func TestStoreAndDiscard(t *testing.T) {
	h := newTestHandler(t)

	payload := base64.StdEncoding.EncodeToString([]byte("fake image bytes"))
	path, err := h.Store(payload)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "temp_"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fake image bytes", string(data))

	require.NoError(t, h.Discard(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Discard is idempotent.
	assert.NoError(t, h.Discard(path))
	assert.NoError(t, h.Discard(""))
}

func TestStoreStripsDataURIPrefix(t *testing.T) {
	h := newTestHandler(t)

	raw := base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8, 0xff})
	path, err := h.Store("data:image/jpeg;base64," + raw)
	require.NoError(t, err)
	defer h.Discard(path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data)
}

func TestStoreRejectsBadBase64(t *testing.T) {
	h := newTestHandler(t)

	_, err := h.Store("not base64 at all!!!")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestPersistKeepsFile(t *testing.T) {
	h := newTestHandler(t)

	name, err := h.Persist(base64.StdEncoding.EncodeToString([]byte("kept")))
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(name, "temp_"))

	_, err = os.Stat(filepath.Join(h.Dir(), name))
	assert.NoError(t, err)
}
