package pipeline

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func termPageFor(term, rightsDate string, codes ...string) *TermPage {
	rows := make([]StockRow, 0, len(codes))
	for _, code := range codes {
		rows = append(rows, StockRow{
			RightsDate: rightsDate,
			Code:       code,
			Name:       "銘柄" + code,
			SourceURL:  "https://example.com/list.php?term=" + term,
		})
	}
	return &TermPage{
		Term:       term,
		RightsDate: rightsDate,
		Rows:       rows,
		RowCount:   len(rows),
		SourceURL:  "https://example.com/list.php?term=" + term,
		FetchedAt:  "2025-01-07 08:00:00",
	}
}

func TestSelectTargetsWindow(t *testing.T) {
	// 今日が2025-01-07なら、40日後±1日 = 2025-02-15〜2025-02-17
	results := []*TermPage{
		termPageFor("a", "2025-02-14", "1111"), // 38日後: 範囲外
		termPageFor("b", "2025-02-15", "7203"), // 39日後
		termPageFor("c", "2025-02-16", "9984", "8306"),
		termPageFor("d", "2025-02-17", "4452"),
		termPageFor("e", "2025-02-18", "2222"), // 42日後: 範囲外
		termPageFor("f", "2025-03-31", "3333"),
	}

	snap, err := SelectTargets("2025-01-07", DefaultTargetDaysBefore, DefaultWindowDays, results)
	require.NoError(t, err)

	assert.Equal(t, "2025-01-07", snap.TodayJST)
	assert.Equal(t, []string{"2025-02-15", "2025-02-16", "2025-02-17"}, snap.TargetDates)
	assert.Equal(t, 4, snap.TotalCount)
	assert.True(t, snap.HasTargets)
	assert.Equal(t, "39〜41日後", snap.TargetWindow.Range)

	require.Contains(t, snap.ByDate, "2025-02-16")
	assert.Equal(t, 2, snap.ByDate["2025-02-16"].Count)
	assert.Equal(t, []string{"https://example.com/list.php?term=c"}, snap.ByDate["2025-02-16"].SourceURLs)

	// ウィンドウ外のURLはall_source_urlsに入らない
	assert.NotContains(t, snap.AllSourceURLs, "https://example.com/list.php?term=a")
	assert.Len(t, snap.AllSourceURLs, 3)
}

func TestSelectTargetsNoMatches(t *testing.T) {
	results := []*TermPage{termPageFor("a", "2025-06-30", "7203")}

	snap, err := SelectTargets("2025-01-07", DefaultTargetDaysBefore, DefaultWindowDays, results)
	require.NoError(t, err)

	assert.False(t, snap.HasTargets)
	assert.Empty(t, snap.TargetDates)
	assert.Zero(t, snap.TotalCount)
}

func TestSelectTargetsMonthBoundary(t *testing.T) {
	// 月末・年またぎでも整数日演算でズレない
	snap, err := SelectTargets("2024-12-25", 40, 0, []*TermPage{
		termPageFor("a", "2025-02-03", "7203"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-02-03"}, snap.TargetDates)
}

func TestSelectTargetsSkipsFailedTerms(t *testing.T) {
	results := []*TermPage{
		nil, // 取得失敗したterm
		termPageFor("b", "2025-02-16", "9984"),
	}

	snap, err := SelectTargets("2025-01-07", 40, 1, results)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-02-16"}, snap.TargetDates)
	assert.Equal(t, 1, snap.TotalCount)
}

func TestSelectTargetsInvalidToday(t *testing.T) {
	tests := []string{"", "2025/01/07", "Jan 7 2025", "2025-1-7"}
	for _, today := range tests {
		snap, err := SelectTargets(today, 40, 1, nil)
		assert.Nil(t, snap, "today=%q", today)
		assert.True(t, errors.Is(err, ErrInvalidInput), "today=%q: got %v", today, err)
	}
}

func TestSelectTargetsIsDeterministic(t *testing.T) {
	results := []*TermPage{
		termPageFor("b", "2025-02-15", "7203"),
		termPageFor("c", "2025-02-16", "9984", "8306"),
	}

	first, err := SelectTargets("2025-01-07", 40, 1, results)
	require.NoError(t, err)
	second, err := SelectTargets("2025-01-07", 40, 1, results)
	require.NoError(t, err)

	// 同一入力ならJSON表現までバイト一致する
	b1, err := json.Marshal(first)
	require.NoError(t, err)
	b2, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(b1), string(b2))
}

func TestSelectTargetsFetchedAtIsLatestResult(t *testing.T) {
	early := termPageFor("a", "2025-02-15", "7203")
	early.FetchedAt = "2025-01-07 08:00:00"
	late := termPageFor("b", "2025-02-16", "9984")
	late.FetchedAt = "2025-01-07 08:00:05"

	snap, err := SelectTargets("2025-01-07", 40, 1, []*TermPage{early, late})
	require.NoError(t, err)
	assert.Equal(t, "2025-01-07 08:00:05", snap.FetchedAt)
}
