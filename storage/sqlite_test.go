package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSQLiteStore(t *testing.T) *SQLiteRuleStore {
	t.Helper()
	store, err := NewSQLiteRuleStore(filepath.Join(t.TempDir(), "rules.db"), zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteRuleStore_RoundTrip(t *testing.T) {
	store := newSQLiteStore(t)

	def := bruteForceDefinition("seq-001")
	require.NoError(t, store.CreateRule(def))

	got, err := store.GetRule("seq-001")
	require.NoError(t, err)
	assert.Equal(t, def.ID, got.ID)
	assert.Equal(t, def.Name, got.Name)
	assert.Equal(t, def.By, got.By)
	assert.Equal(t, def.WithinSeconds, got.WithinSeconds)
	assert.Equal(t, def.Sequence, got.Sequence)
	assert.Equal(t, def.Output, got.Output)
}

func TestSQLiteRuleStore_ListOrdersByID(t *testing.T) {
	store := newSQLiteStore(t)

	require.NoError(t, store.CreateRule(bruteForceDefinition("seq-b")))
	require.NoError(t, store.CreateRule(bruteForceDefinition("seq-a")))

	defs, err := store.ListRules()
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "seq-a", defs[0].ID)
	assert.Equal(t, "seq-b", defs[1].ID)
}

func TestSQLiteRuleStore_CreateDuplicate(t *testing.T) {
	store := newSQLiteStore(t)

	require.NoError(t, store.CreateRule(bruteForceDefinition("seq-001")))
	assert.ErrorIs(t, store.CreateRule(bruteForceDefinition("seq-001")), ErrDuplicateRule)
}

func TestSQLiteRuleStore_GetMissing(t *testing.T) {
	store := newSQLiteStore(t)

	_, err := store.GetRule("nope")
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestSQLiteRuleStore_Update(t *testing.T) {
	store := newSQLiteStore(t)
	require.NoError(t, store.CreateRule(bruteForceDefinition("seq-001")))

	def := bruteForceDefinition("seq-001")
	def.WithinSeconds = 600
	require.NoError(t, store.UpdateRule("seq-001", def))

	got, err := store.GetRule("seq-001")
	require.NoError(t, err)
	assert.Equal(t, 600.0, got.WithinSeconds)
}

func TestSQLiteRuleStore_UpdateRekeysOnIDChange(t *testing.T) {
	store := newSQLiteStore(t)
	require.NoError(t, store.CreateRule(bruteForceDefinition("seq-001")))

	require.NoError(t, store.UpdateRule("seq-001", bruteForceDefinition("seq-renamed")))

	_, err := store.GetRule("seq-001")
	assert.ErrorIs(t, err, ErrRuleNotFound)
	got, err := store.GetRule("seq-renamed")
	require.NoError(t, err)
	assert.Equal(t, "seq-renamed", got.ID)
}

func TestSQLiteRuleStore_UpdateIDChangeConflictRollsBack(t *testing.T) {
	store := newSQLiteStore(t)
	require.NoError(t, store.CreateRule(bruteForceDefinition("seq-001")))
	require.NoError(t, store.CreateRule(bruteForceDefinition("seq-002")))

	err := store.UpdateRule("seq-001", bruteForceDefinition("seq-002"))
	assert.ErrorIs(t, err, ErrDuplicateRule)

	_, err = store.GetRule("seq-001")
	assert.NoError(t, err)
}

func TestSQLiteRuleStore_UpdateMissing(t *testing.T) {
	store := newSQLiteStore(t)
	assert.ErrorIs(t, store.UpdateRule("nope", bruteForceDefinition("nope")), ErrRuleNotFound)
}

func TestSQLiteRuleStore_Delete(t *testing.T) {
	store := newSQLiteStore(t)
	require.NoError(t, store.CreateRule(bruteForceDefinition("seq-001")))

	require.NoError(t, store.DeleteRule("seq-001"))
	assert.ErrorIs(t, store.DeleteRule("seq-001"), ErrRuleNotFound)
}

func TestSQLiteRuleStore_EmptyGroupByRoundTrips(t *testing.T) {
	store := newSQLiteStore(t)

	def := bruteForceDefinition("seq-001")
	def.By = nil
	require.NoError(t, store.CreateRule(def))

	got, err := store.GetRule("seq-001")
	require.NoError(t, err)
	assert.Empty(t, got.By)
}

func TestSQLiteRuleStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "rules.db")
	logger := zap.NewNop().Sugar()

	store, err := NewSQLiteRuleStore(dbPath, logger)
	require.NoError(t, err)
	require.NoError(t, store.CreateRule(bruteForceDefinition("seq-001")))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteRuleStore(dbPath, logger)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetRule("seq-001")
	require.NoError(t, err)
	assert.Equal(t, "seq-001", got.ID)
}
