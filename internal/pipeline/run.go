// =============================================================================
// run.go - パイプライン実行フロー
// =============================================================================
//
// 収集 → ウィンドウ選定 → 差分検出/永続化 → 重複送信防止 → 通知 の
// 一連の流れをまとめます。CLIとLambdaの両エントリポイントから呼ばれます。
//
// 【状態変更のタイミング】
//   - 行ストアへの反映は差分検出の直後
//   - 送信済みマーカーの書き込みは「メール送信が成功した後」のみ。
//     送信失敗時はマークせずエラーを返すので、次回の実行で再送される。
//
// =============================================================================
package pipeline

import "fmt"

// MailSender は通知メールの送信インターフェース
type MailSender interface {
	Send(subject, htmlBody string) error
}

// Notifier はDiscord Webhookへの送信インターフェース
type Notifier interface {
	Post(msg *DiscordMessage) error
}

// RunDeps はRunが使う外部依存をまとめる
//
// RowStore / SentStore / Email / Discord はnilにでき、その場合は対応する
// ステップをスキップする（例: DBなしでスナップショット出力のみ）。
type RunDeps struct {
	Fetcher   *Fetcher
	RowStore  *RowStore
	SentStore SentStore
	Email     MailSender
	Discord   Notifier
}

// RunReport は1回の実行の結果まとめ
type RunReport struct {
	Snapshot      *ScrapeSnapshot `json:"snapshot"`
	Dedupe        *DedupeResult   `json:"dedupe,omitempty"`
	Diff          *DiffResult     `json:"diff,omitempty"`
	CollectErrors []string        `json:"collect_errors,omitempty"`
	EmailSent     bool            `json:"email_sent"`
	MarkedSent    []string        `json:"marked_sent,omitempty"`
}

// Run はパイプラインを1回実行する
//
// 一覧ページの失敗は実行全体の失敗。個別termの失敗はレポートに記録した
// 上で続行する。メール送信の失敗はエラーとして返す（送信済みマークは
// 付けないので、次回の実行で自然に再試行される）。
func Run(cfg *Config, deps RunDeps) (*RunReport, error) {
	today := cfg.Today
	if today == "" {
		today = TodayJST()
	}

	// 1. 全termページを収集（部分失敗は許容）
	collected, err := CollectTerms(deps.Fetcher)
	if err != nil {
		return nil, err
	}

	// 2. 通知対象ウィンドウで絞り込み
	snap, err := SelectTargets(today, cfg.Window.DaysBefore, cfg.Window.Window, collected.Results)
	if err != nil {
		return nil, err
	}

	report := &RunReport{
		Snapshot:      snap,
		CollectErrors: collected.Errors,
	}

	// 3. 差分検出と行ストアへの反映（全権利日が対象。ウィンドウ外も含む）
	if deps.RowStore != nil {
		if err := runDiff(collected, deps, report); err != nil {
			return report, err
		}
	}

	// 4. 重複送信防止 → メール通知 → 送信済みマーク
	if deps.SentStore != nil {
		if err := runNotify(snap, deps, report); err != nil {
			return report, err
		}
	}

	return report, nil
}

// runDiff は差分を検出して行ストアに反映し、必要ならDiscordに通知する
func runDiff(collected *CollectResult, deps RunDeps, report *RunReport) error {
	now := NowJST()
	newRows := BuildSheetRows(FlattenRows(collected.Results), now)

	existing, err := deps.RowStore.LoadRows()
	if err != nil {
		return err
	}

	diff := DetectChanges(newRows, existing, now)
	report.Diff = diff

	if !diff.HasChanges {
		infof("no changes detected (%d rows unchanged)", diff.Summary.UnchangedCount)
		return nil
	}

	if err := deps.RowStore.ApplyDiff(diff); err != nil {
		return err
	}
	infof("applied diff: %d new, %d updated, %d possibly deleted",
		diff.Summary.NewCount, diff.Summary.UpdatedCount, diff.Summary.PossiblyDeletedCount)

	if deps.Discord != nil {
		// Discord通知の失敗は実行を止めない（行ストアへの反映は完了している）
		if err := deps.Discord.Post(BuildChangeNotification(diff)); err != nil {
			warnf("discord change notification failed: %v", err)
		}
	}
	return nil
}

// runNotify は未送信の権利日についてメールを送り、成功後にマークを付ける
func runNotify(snap *ScrapeSnapshot, deps RunDeps, report *RunReport) error {
	sentDates, err := deps.SentStore.Load()
	if err != nil {
		return err
	}

	dedupe := EvaluateDedupe(snap, sentDates)
	report.Dedupe = dedupe

	if !dedupe.ShouldSend {
		infof("nothing to send (targets=%d, already sent=%d)",
			len(snap.TargetDates), len(dedupe.AlreadySent))
		return nil
	}

	if deps.Email == nil {
		infof("%d unsent target date(s) but email is disabled", len(dedupe.NewDates))
		return nil
	}

	subject, body := BuildNotificationEmail(dedupe)
	if err := deps.Email.Send(subject, body); err != nil {
		// 送信済みマークは付けない。次回の実行で再送される。
		return fmt.Errorf("send notification email: %w", err)
	}
	report.EmailSent = true

	// 送信成功が確認できた後にのみマークを書く
	if err := deps.SentStore.MarkSent(dedupe.NewDates, NowJST()); err != nil {
		return fmt.Errorf("mark dates as sent: %w", err)
	}
	report.MarkedSent = dedupe.NewDates
	infof("notification sent for %v", dedupe.NewDates)

	return nil
}
