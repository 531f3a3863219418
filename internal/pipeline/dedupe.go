// =============================================================================
// dedupe.go - 重複送信防止ゲート
// =============================================================================
//
// 送信済みマーカー（権利日 → 送信日時）を使って、同じ権利日について
// 通知を二度送らないようにします。
//
// 【重要な設計】読み取りと書き込みを分離する
//   - EvaluateDedupe: 読み取り＋判定のみ。状態を一切変更しない。
//   - SentStore.MarkSent: 送信が「成功した後」に呼び出し側が実行する。
//
// これにより、送信失敗時に誤って送信済みマークが付き、その権利日が
// 永久にスキップされる事故を防ぐ。
//
// =============================================================================
package pipeline

import "sort"

// SentStore は送信済みマーカーの永続ストア
//
// 実装はstore.goのsqlite版を参照。書き込みパス（MarkSent）は呼び出し側で
// 直列化すること（単一ライター前提）。
type SentStore interface {
	// Load は送信済みマーカー全件を 権利日 → 送信日時 のマップで返す。
	// 未初期化（1件もない）状態は空マップで、エラーではない。
	Load() (map[string]string, error)

	// MarkSent は配信に成功した権利日を送信済みとして記録する。
	// 既に記録済みの権利日は上書きしない（再確認は無害なno-op）。
	MarkSent(dates []string, sentAt string) error

	// Reset は全マーカーを削除する。テストや運用リセット専用の管理操作で、
	// 通常の実行が呼ぶことはない。
	Reset() error
}

// EvaluateDedupe はスナップショットの対象権利日を送信済み/未送信に分類する
//
// 純粋関数であり、sentDates を変更しない。戻り値の TargetDates / ByDate /
// TotalCount は未送信分のみに絞り込まれており、そのまま通知整形に渡せる。
// 対象0件は正常な結果（ShouldSend = false）。
func EvaluateDedupe(snap *ScrapeSnapshot, sentDates map[string]string) *DedupeResult {
	newDates := []string{}
	alreadySent := []SentDate{}

	for _, date := range snap.TargetDates {
		if sentAt, ok := sentDates[date]; ok {
			alreadySent = append(alreadySent, SentDate{Date: date, SentAt: sentAt})
		} else {
			newDates = append(newDates, date)
		}
	}

	// 未送信分のみのby_dateを構築
	newByDate := map[string]*DateBucket{}
	newTotalCount := 0
	for _, date := range newDates {
		if bucket, ok := snap.ByDate[date]; ok {
			newByDate[date] = bucket
			newTotalCount += bucket.Count
		}
	}

	knownSent := make([]string, 0, len(sentDates))
	for date := range sentDates {
		knownSent = append(knownSent, date)
	}
	sort.Strings(knownSent)

	return &DedupeResult{
		ShouldSend:    len(newDates) > 0,
		NewDates:      newDates,
		NewCount:      newTotalCount,
		AlreadySent:   alreadySent,
		TargetDates:   newDates,
		ByDate:        newByDate,
		TotalCount:    newTotalCount,
		TodayJST:      snap.TodayJST,
		AllSourceURLs: snap.AllSourceURLs,
		Debug: DedupeDebug{
			OriginalTargetDates: snap.TargetDates,
			OriginalTotalCount:  snap.TotalCount,
			KnownSentDates:      knownSent,
		},
	}
}
