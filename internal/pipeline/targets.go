// =============================================================================
// targets.go - 通知対象ウィンドウの選定
// =============================================================================
//
// 全termページの抽出結果から、権利日が「今日の40日後 ±1日」に入る銘柄を
// 権利日ごとのバケットに集約します。
//
// 例: 今日が2025-01-07なら、対象権利日は 2025-02-15 〜 2025-02-17。
//
// 日付計算はUTC上の整数日演算のみで行い、タイムゾーンやサマータイムの
// 影響を受けない。
//
// =============================================================================
package pipeline

import (
	"fmt"
	"sort"
	"time"
)

// 通知対象ウィンドウの既定値
const (
	// DefaultTargetDaysBefore は権利日の何日前を通知対象とするか
	DefaultTargetDaysBefore = 40

	// DefaultWindowDays は±何日の幅を許容するか
	DefaultWindowDays = 1
)

// dateLayout は権利日・今日の日付の共通フォーマット
const dateLayout = "2006-01-02"

// SelectTargets は権利日が対象ウィンドウに入る銘柄を集約してスナップショットを作る
//
// todayJST は "YYYY-MM-DD" 形式。daysBefore/window でウィンドウを指定する
// （通常は DefaultTargetDaysBefore / DefaultWindowDays）。
//
// 同一入力に対して完全に決定的な出力を返す（time.Nowを参照しない）。
// results の一部termが失敗して欠けていても、残りの結果だけで集約する。
func SelectTargets(todayJST string, daysBefore, window int, results []*TermPage) (*ScrapeSnapshot, error) {
	today, err := time.ParseInLocation(dateLayout, todayJST, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: today must be YYYY-MM-DD, got %q", ErrInvalidInput, todayJST)
	}

	// 対象となる権利日のセットを構築
	minDays := daysBefore - window
	maxDays := daysBefore + window
	targetSet := map[string]bool{}
	for d := minDays; d <= maxDays; d++ {
		targetSet[today.AddDate(0, 0, d).Format(dateLayout)] = true
	}

	byDate := map[string]*DateBucket{}
	var allSourceURLs []string
	fetchedAt := ""

	for _, result := range results {
		if result == nil || result.RightsDate == "" {
			continue
		}
		// スナップショットの取得時刻は最後に取得したページのもの
		// （同フォーマットのため文字列比較で新しい方を選べる）
		if result.FetchedAt > fetchedAt {
			fetchedAt = result.FetchedAt
		}

		if !targetSet[result.RightsDate] {
			continue
		}

		bucket, ok := byDate[result.RightsDate]
		if !ok {
			bucket = &DateBucket{Rows: []StockRow{}, SourceURLs: []string{}}
			byDate[result.RightsDate] = bucket
		}

		bucket.Rows = append(bucket.Rows, result.Rows...)
		bucket.Count += len(result.Rows)

		if result.SourceURL != "" {
			bucket.SourceURLs = uniqStrings(append(bucket.SourceURLs, result.SourceURL))
			allSourceURLs = append(allSourceURLs, result.SourceURL)
		}
	}

	targetDates := make([]string, 0, len(byDate))
	totalCount := 0
	for date, bucket := range byDate {
		targetDates = append(targetDates, date)
		totalCount += bucket.Count
	}
	sort.Strings(targetDates)

	return &ScrapeSnapshot{
		TodayJST: todayJST,
		TargetWindow: TargetWindow{
			DaysBefore: daysBefore,
			Window:     window,
			Range:      fmt.Sprintf("%d〜%d日後", minDays, maxDays),
		},
		TargetDates:   targetDates,
		TotalCount:    totalCount,
		ByDate:        byDate,
		AllSourceURLs: uniqStrings(allSourceURLs),
		HasTargets:    len(targetDates) > 0 && totalCount > 0,
		FetchedAt:     fetchedAt,
	}, nil
}
