package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage"
	"fintrack/internal/storage/storagetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "fintrack.db"))
	require.NoError(t, err)
	return s
}

func TestStoreSuite(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.RecordStore {
		return newTestStore(t)
	})
}

func TestMigrationsSeedCategories(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	cats, err := s.ListCategories(context.Background(), "u1")
	require.NoError(t, err)
	require.NotEmpty(t, cats)

	byID := map[string]core.Category{}
	for _, c := range cats {
		byID[c.ID] = c
	}
	require.Contains(t, byID, "groceries")
	assert.Equal(t, "Spesa", byID["groceries"].Label("it"))
	assert.Equal(t, core.Income, byID["salary"].Kind)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fintrack.db")
	s, err := New(path)
	require.NoError(t, err)

	d, err := core.NewDebt(core.Debt{OwnerID: "u1", Type: core.Loan, Original: core.Cents(250000)}, s.now())
	require.NoError(t, err)
	_, err = s.InsertDebt(context.Background(), d)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Migrations must be a no-op on an up-to-date database.
	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetDebt(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, core.PriorityHigh, got.Priority)
	assert.Equal(t, int64(250000), got.Remaining.Cents)
}
