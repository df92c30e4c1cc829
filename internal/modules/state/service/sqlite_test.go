package service

import (
	"context"
	"path/filepath"
	"testing"

	"spot_bot/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "state.db"), "PURR")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, models.ErrStateCorrupt, "no row yet")

	created, err := s.Init(ctx)
	require.NoError(t, err)
	assert.True(t, created)

	v, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	want := decimal.RequireFromString("0.18432")
	require.NoError(t, s.Save(ctx, want))

	created, err = s.Init(ctx)
	require.NoError(t, err)
	assert.False(t, created)

	v, err = s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, want.Equal(v), "got %s", v)

	assert.ErrorIs(t, s.Save(ctx, decimal.NewFromInt(-2)), models.ErrStateWrite)
}

func TestSQLiteKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	a, err := NewSQLite(path, "a")
	require.NoError(t, err)
	require.NoError(t, a.Save(ctx, decimal.NewFromInt(3)))
	require.NoError(t, a.Close())

	b, err := NewSQLite(path, "b")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	_, err = b.Load(ctx)
	assert.ErrorIs(t, err, models.ErrStateCorrupt)
}
