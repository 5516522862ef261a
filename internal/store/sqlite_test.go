package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rollcall.db")

	backend, err := OpenSQLite(path)
	require.NoError(t, err)

	s, err := Open(ctx, backend, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())

	_, err = s.Append(ctx, "alice", descriptor(0.1))
	require.NoError(t, err)
	_, err = s.Append(ctx, "bob", descriptor(0.2))
	require.NoError(t, err)
	_, err = s.Append(ctx, "alice", descriptor(0.3))
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close(ctx)

	entries, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"alice", "bob", "alice"}, []string{entries[0].Label, entries[1].Label, entries[2].Label})
	assert.InDelta(t, 0.3, entries[2].Descriptors[0][5], 1e-6)

	require.NoError(t, reopened.Reset(ctx))
	entries, err = reopened.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	_, err := OpenSQLite(" ")
	assert.Error(t, err)
}
