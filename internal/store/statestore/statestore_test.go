package statestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestFileStore_SaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s := NewFileStore(path)

	res := s.Save(snapshot{Name: "probe", Count: 3})
	require.True(t, res.OK(), res.Reason())
	assert.Equal(t, path, res.Path)

	var out snapshot
	require.NoError(t, s.Load(&out))
	assert.Equal(t, snapshot{Name: "probe", Count: 3}, out)
}

func TestFileStore_MissingFileIsNotAnError(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))

	out := snapshot{Name: "untouched"}
	require.NoError(t, s.Load(&out))
	assert.Equal(t, "untouched", out.Name)
}

func TestFileStore_CorruptFileReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var out snapshot
	err := NewFileStore(path).Load(&out)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not valid json")
}

func TestFileStore_EmptyFileIsZeroState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	var out snapshot
	assert.NoError(t, NewFileStore(path).Load(&out))
}

func TestFileStore_SaveOverwritesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewFileStore(path)

	require.True(t, s.Save(snapshot{Count: 1}).OK())
	require.True(t, s.Save(snapshot{Count: 2}).OK())

	var out snapshot
	require.NoError(t, s.Load(&out))
	assert.Equal(t, 2, out.Count)

	// no temp files left behind
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
