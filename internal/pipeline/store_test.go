package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) (*RowStore, *DBSentStore) {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "yuutai.db"))
	require.NoError(t, err)
	return NewRowStore(db), NewSentStore(db)
}

func TestRowStoreApplyDiffAndLoad(t *testing.T) {
	rows, _ := openTestDB(t)

	empty, err := rows.LoadRows()
	require.NoError(t, err)
	assert.Empty(t, empty)

	first := DetectChanges([]SheetRow{
		sheetRow("7203", "2025-02-15", "aaaa000000000000"),
		sheetRow("9984", "2025-02-15", "bbbb000000000000"),
	}, empty, "2025-01-07 08:00:00")
	require.NoError(t, rows.ApplyDiff(first))

	loaded, err := rows.LoadRows()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "aaaa000000000000", loaded["7203_2025-02-15"].RowHash)
	assert.Equal(t, "2025-01-07 08:00:00", loaded["7203_2025-02-15"].CreatedAt)
}

func TestRowStoreApplyDiffUpserts(t *testing.T) {
	rows, _ := openTestDB(t)

	first := DetectChanges([]SheetRow{
		sheetRow("7203", "2025-02-15", "aaaa000000000000"),
	}, map[string]SheetRow{}, "2025-01-01 09:00:00")
	require.NoError(t, rows.ApplyDiff(first))

	existing, err := rows.LoadRows()
	require.NoError(t, err)

	// 同じ主キーで内容が変わった行は上書きされ、作成日時は残る
	second := DetectChanges([]SheetRow{
		sheetRow("7203", "2025-02-15", "ffff000000000000"),
	}, existing, "2025-01-07 08:00:00")
	require.Len(t, second.ToUpdate, 1)
	require.NoError(t, rows.ApplyDiff(second))

	loaded, err := rows.LoadRows()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "ffff000000000000", loaded["7203_2025-02-15"].RowHash)
	assert.Equal(t, "2025-01-01 09:00:00", loaded["7203_2025-02-15"].CreatedAt)
	assert.Equal(t, "2025-01-07 08:00:00", loaded["7203_2025-02-15"].UpdatedAt)
}

func TestRowStoreApplyDiffEmpty(t *testing.T) {
	rows, _ := openTestDB(t)
	diff := DetectChanges(nil, map[string]SheetRow{}, "2025-01-07 08:00:00")
	assert.NoError(t, rows.ApplyDiff(diff))
}

func TestSentStoreMarkAndLoad(t *testing.T) {
	_, sent := openTestDB(t)

	empty, err := sent.Load()
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, sent.MarkSent([]string{"2025-02-15", "2025-02-16"}, "2025-01-07 08:00:00"))

	loaded, err := sent.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"2025-02-15": "2025-01-07 08:00:00",
		"2025-02-16": "2025-01-07 08:00:00",
	}, loaded)
}

func TestSentStoreMarkSentIsIdempotent(t *testing.T) {
	_, sent := openTestDB(t)

	require.NoError(t, sent.MarkSent([]string{"2025-02-15"}, "2025-01-07 08:00:00"))
	// 再確認は無害で、最初の送信日時が残る
	require.NoError(t, sent.MarkSent([]string{"2025-02-15"}, "2025-01-08 08:00:00"))

	loaded, err := sent.Load()
	require.NoError(t, err)
	assert.Equal(t, "2025-01-07 08:00:00", loaded["2025-02-15"])
}

func TestSentStoreSkipsEmptyDates(t *testing.T) {
	_, sent := openTestDB(t)

	require.NoError(t, sent.MarkSent(nil, "2025-01-07 08:00:00"))
	require.NoError(t, sent.MarkSent([]string{""}, "2025-01-07 08:00:00"))

	loaded, err := sent.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestSentStoreReset(t *testing.T) {
	_, sent := openTestDB(t)

	require.NoError(t, sent.MarkSent([]string{"2025-02-15", "2025-02-16"}, "2025-01-07 08:00:00"))
	require.NoError(t, sent.Reset())

	loaded, err := sent.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
