package wal_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vzdtic/movieticket-raft/pkg/wal"
)

func TestLoadOnEmptyFileReturnsZeroState(t *testing.T) {
	w, err := wal.Open(t.TempDir())
	require.NoError(t, err)
	defer w.Close()

	state, err := w.Load()
	require.NoError(t, err)
	require.Equal(t, uint64(0), state.CurrentTerm)
	require.Equal(t, "", state.VotedFor)
	require.Empty(t, state.Entries)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := wal.Open(dir)
	require.NoError(t, err)
	defer w.Close()

	state := &wal.PersistentState{
		CurrentTerm: 7,
		VotedFor:    "n2",
		Entries: []wal.Entry{
			{Index: 1, Term: 1, CommandBuf: []byte("cmd-1")},
			{Index: 2, Term: 3, CommandBuf: []byte("cmd-2")},
		},
	}
	require.NoError(t, w.Save(state))

	loaded, err := w.Load()
	require.NoError(t, err)
	require.Equal(t, state, loaded)
}

func TestReopenRecoversPersistedState(t *testing.T) {
	dir := t.TempDir()

	w1, err := wal.Open(dir)
	require.NoError(t, err)
	state := &wal.PersistentState{
		CurrentTerm: 4,
		VotedFor:    "n1",
		Entries:     []wal.Entry{{Index: 1, Term: 4, CommandBuf: []byte("x")}},
	}
	require.NoError(t, w1.Save(state))
	require.NoError(t, w1.Close())

	w2, err := wal.Open(dir)
	require.NoError(t, err)
	defer w2.Close()

	loaded, err := w2.Load()
	require.NoError(t, err)
	require.Equal(t, state, loaded)
}

func TestSaveOverwritesPreviousState(t *testing.T) {
	w, err := wal.Open(t.TempDir())
	require.NoError(t, err)
	defer w.Close()

	first := &wal.PersistentState{CurrentTerm: 1, VotedFor: "n1"}
	require.NoError(t, w.Save(first))

	second := &wal.PersistentState{CurrentTerm: 2, VotedFor: "n2", Entries: []wal.Entry{{Index: 1, Term: 2}}}
	require.NoError(t, w.Save(second))

	loaded, err := w.Load()
	require.NoError(t, err)
	require.Equal(t, second, loaded)

	size, err := w.Size()
	require.NoError(t, err)
	require.Greater(t, size, int64(0))
}

func TestLoadDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	w, err := wal.Open(dir)
	require.NoError(t, err)

	state := &wal.PersistentState{CurrentTerm: 1, VotedFor: "n1"}
	require.NoError(t, w.Save(state))
	require.NoError(t, w.Close())

	path := filepath.Join(dir, "raft.wal")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	// Flip a byte in the payload region (past the 8-byte CRC+length header)
	// so the stored checksum no longer matches.
	corrupted := append([]byte(nil), data...)
	corrupted[len(corrupted)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, corrupted, 0o644))

	w2, err := wal.Open(dir)
	require.NoError(t, err)
	defer w2.Close()

	_, err = w2.Load()
	require.Error(t, err)
}
