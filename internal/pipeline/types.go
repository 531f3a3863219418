// =============================================================================
// types.go - データ構造定義
// =============================================================================
//
// このファイルはyuutai-notifyシステム全体で使用するデータ構造を定義します。
//
// 【このファイルで定義している型】
//   - Term:           権利日ページの識別子（term）とラベル
//   - StockRow:       株主優待1銘柄のデータ
//   - TermPage:       1つのtermページの抽出結果
//   - DateBucket:     権利日ごとの銘柄まとめ
//   - ScrapeSnapshot: 1回のスクレイピング実行の集約結果
//   - SheetRow:       行ストアに永続化する1行（主キー・ハッシュ付き）
//   - DiffResult:     前回永続化データとの差分
//   - SentDate:       送信済みマーカー（権利日 → 送信日時）
//   - DedupeResult:   重複送信防止ゲートの判定結果
//
// =============================================================================
package pipeline

// Term は一覧ページ（list.php）で選択可能な1つの権利日を表す
//
// ID は term クエリパラメータの値、Label は近傍のテキストから抽出した
// 「1月20」「12月末」のような人間向けラベル。ラベルが見つからない場合は
// Label = ID となる。
type Term struct {
	ID    string `json:"term"`
	Label string `json:"label"`
}

// StockRow は株主優待1銘柄のデータ
//
// Code は4桁の証券コード。識別キーは Code + "_" + RightsDate。
type StockRow struct {
	RightsDate    string `json:"rights_date"`              // 権利日（YYYY-MM-DD）
	Code          string `json:"code"`                     // 証券コード（4桁）
	Name          string `json:"name"`                     // 銘柄名
	YuutaiSummary string `json:"yuutai_summary,omitempty"` // 優待内容の要約
	LendType      string `json:"lend_type"`                // 貸借区分
	Measures      string `json:"measures"`                 // 信用規制・対策
	Saiyaku       string `json:"saiyaku"`                  // 最大逆日歩
	SourceURL     string `json:"source_url,omitempty"`     // 取得元URL
}

// TermPage は1つのtermページから抽出した権利日と銘柄一覧
type TermPage struct {
	Term       string     `json:"term"`
	Label      string     `json:"label"`
	RightsDate string     `json:"rights_date"`
	Rows       []StockRow `json:"rows"`
	RowCount   int        `json:"row_count"`
	SourceURL  string     `json:"source_url"`
	FetchedAt  string     `json:"fetched_at"`
}

// DateBucket は1つの権利日に属する銘柄のまとめ
//
// Rows の順序はterm処理順をそのまま保持する（追加のソートは行わない）。
type DateBucket struct {
	Count      int        `json:"count"`
	Rows       []StockRow `json:"rows"`
	SourceURLs []string   `json:"source_urls"`
}

// TargetWindow は通知対象ウィンドウの定義（権利日のN日前 ± M日）
type TargetWindow struct {
	DaysBefore int    `json:"days_before"`
	Window     int    `json:"window"`
	Range      string `json:"range"`
}

// ScrapeSnapshot は1回のパイプライン実行の集約結果
//
// TargetDates は昇順ソート済み・重複なし。ByDate のキーは TargetDates と
// 一致する。生成後は変更しない。
type ScrapeSnapshot struct {
	TodayJST      string                 `json:"today_jst"`
	TargetWindow  TargetWindow           `json:"target_window"`
	TargetDates   []string               `json:"target_dates"`
	TotalCount    int                    `json:"total_count"`
	ByDate        map[string]*DateBucket `json:"by_date"`
	AllSourceURLs []string               `json:"all_source_urls"`
	HasTargets    bool                   `json:"has_targets"`
	FetchedAt     string                 `json:"fetched_at"`
}

// SheetRow は行ストアに永続化する1行
//
// PrimaryKey = Code + "_" + RightsDate。RowHash は内容変更検出用の
// フィンガープリント（rows.goを参照）。gormタグはsqliteストア用。
type SheetRow struct {
	PrimaryKey    string `json:"primary_key" gorm:"primaryKey;size:32"`
	Code          string `json:"code" gorm:"index;size:8"`
	Name          string `json:"name"`
	RightsDate    string `json:"rights_date" gorm:"index;size:10"`
	YuutaiSummary string `json:"yuutai_summary" gorm:"type:text"`
	LendType      string `json:"lend_type" gorm:"size:32"`
	Measures      string `json:"measures" gorm:"size:64"`
	Saiyaku       string `json:"saiyaku" gorm:"size:64"`
	RowHash       string `json:"row_hash" gorm:"size:16"`
	SourceURL     string `json:"source_url" gorm:"size:256"`
	FetchedAt     string `json:"fetched_at" gorm:"size:19"`
	CreatedAt     string `json:"created_at,omitempty" gorm:"size:19"`
	UpdatedAt     string `json:"updated_at,omitempty" gorm:"size:19"`
}

// TableName はgormのテーブル名を固定する
func (SheetRow) TableName() string { return "yuutai_rows" }

// DiffSummary は差分検出の件数サマリー
type DiffSummary struct {
	NewCount             int `json:"new_count"`
	UpdatedCount         int `json:"updated_count"`
	UnchangedCount       int `json:"unchanged_count"`
	PossiblyDeletedCount int `json:"possibly_deleted_count"`
}

// DiffResult は前回永続化データとの差分
//
// PossiblyDeleted は「今回の取得に含まれなかった既存キー」であり、
// あくまで参考情報。このシステムが行を削除することはない。
type DiffResult struct {
	HasChanges      bool        `json:"has_changes"`
	Summary         DiffSummary `json:"summary"`
	ToAdd           []SheetRow  `json:"to_add"`
	ToUpdate        []SheetRow  `json:"to_update"`
	UnchangedKeys   []string    `json:"-"`
	PossiblyDeleted []string    `json:"possibly_deleted"`
	FetchedAt       string      `json:"fetched_at"`
}

// SentDate は送信済みマーカー（権利日 → 送信日時）
//
// 通常運用では一度書いたキーを削除しない。クリアはReset（管理操作）のみ。
type SentDate struct {
	Date   string `json:"date" gorm:"primaryKey;size:10"`
	SentAt string `json:"sent_at" gorm:"size:19"`
}

// TableName はgormのテーブル名を固定する
func (SentDate) TableName() string { return "sent_dates" }

// DedupeDebug は重複送信防止ゲートのデバッグ情報
type DedupeDebug struct {
	OriginalTargetDates []string `json:"original_target_dates"`
	OriginalTotalCount  int      `json:"original_total_count"`
	KnownSentDates      []string `json:"known_sent_dates"`
}

// DedupeResult は重複送信防止ゲート（読み取りパス）の判定結果
//
// TargetDates / ByDate / TotalCount は未送信分のみに絞り込まれている。
type DedupeResult struct {
	ShouldSend    bool                   `json:"should_send"`
	NewDates      []string               `json:"new_dates"`
	NewCount      int                    `json:"new_count"`
	AlreadySent   []SentDate             `json:"already_sent"`
	TargetDates   []string               `json:"target_dates"`
	ByDate        map[string]*DateBucket `json:"by_date"`
	TotalCount    int                    `json:"total_count"`
	TodayJST      string                 `json:"today_jst"`
	AllSourceURLs []string               `json:"all_source_urls"`
	Debug         DedupeDebug            `json:"debug"`
}
