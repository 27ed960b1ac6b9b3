package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistedIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "identity")

	first, err := Resolve(Persisted, path)
	require.NoError(t, err)
	_, err = uuid.Parse(first)
	require.NoError(t, err)

	second, err := Resolve(Persisted, path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPersistedReplacesGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity")
	require.NoError(t, os.WriteFile(path, []byte("not-a-uuid"), 0o600))

	id, err := Resolve(Persisted, path)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
}

func TestEphemeralIsFresh(t *testing.T) {
	a, err := Resolve(Ephemeral, "")
	require.NoError(t, err)
	b, err := Resolve(Ephemeral, "")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, Persisted, s)

	s, err = ParseStrategy("Ephemeral")
	require.NoError(t, err)
	assert.Equal(t, Ephemeral, s)

	_, err = ParseStrategy("rotating")
	assert.Error(t, err)
}
