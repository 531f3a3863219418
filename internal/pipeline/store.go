// =============================================================================
// store.go - sqlite永続化（行ストア・送信済みマーカー）
// =============================================================================
//
// gorm + 純Go sqliteドライバで2つの永続状態を保持します。
//
//   - yuutai_rows: 永続化済みの銘柄行（主キー = code_rights_date）
//   - sent_dates:  送信済みマーカー（権利日 → 送信日時）
//
// どちらも書き込みは呼び出し側で直列化すること（単一ライター前提）。
// 読み取りは自由。
//
// =============================================================================
package pipeline

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// OpenDB はsqliteデータベースを開き、スキーマをマイグレートする
func OpenDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.AutoMigrate(&SheetRow{}, &SentDate{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}

// -----------------------------------------------------------------------------
// 行ストア
// -----------------------------------------------------------------------------

// RowStore は永続化済みの銘柄行へのアクセスを提供する
type RowStore struct {
	db *gorm.DB
}

// NewRowStore は行ストアを作成する
func NewRowStore(db *gorm.DB) *RowStore {
	return &RowStore{db: db}
}

// LoadRows は永続化済みの全行を 主キー → 行 のマップで返す
func (s *RowStore) LoadRows() (map[string]SheetRow, error) {
	var rows []SheetRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load rows: %w", err)
	}
	out := make(map[string]SheetRow, len(rows))
	for _, r := range rows {
		out[r.PrimaryKey] = r
	}
	return out, nil
}

// ApplyDiff は差分検出結果の追加・更新分を行ストアに反映する
//
// 削除候補（PossiblyDeleted）には何もしない。行の削除はこのシステムの
// 責務外。
func (s *RowStore) ApplyDiff(diff *DiffResult) error {
	rows := make([]SheetRow, 0, len(diff.ToAdd)+len(diff.ToUpdate))
	rows = append(rows, diff.ToAdd...)
	rows = append(rows, diff.ToUpdate...)
	if len(rows) == 0 {
		return nil
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "primary_key"}},
		UpdateAll: true,
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("apply diff (%d rows): %w", len(rows), err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// 送信済みマーカーストア
// -----------------------------------------------------------------------------

// DBSentStore はSentStoreのsqlite実装
type DBSentStore struct {
	db *gorm.DB
}

// NewSentStore は送信済みマーカーストアを作成する
func NewSentStore(db *gorm.DB) *DBSentStore {
	return &DBSentStore{db: db}
}

// Load は送信済みマーカー全件を 権利日 → 送信日時 のマップで返す
func (s *DBSentStore) Load() (map[string]string, error) {
	var markers []SentDate
	if err := s.db.Find(&markers).Error; err != nil {
		return nil, fmt.Errorf("load sent markers: %w", err)
	}
	out := make(map[string]string, len(markers))
	for _, m := range markers {
		out[m.Date] = m.SentAt
	}
	return out, nil
}

// MarkSent は配信に成功した権利日を送信済みとして記録する
//
// 既に記録済みの権利日はそのまま残す（最初の送信日時を保持）。
// 同じ日付で再度呼んでもエラーにならない。
func (s *DBSentStore) MarkSent(dates []string, sentAt string) error {
	if len(dates) == 0 {
		return nil
	}
	markers := make([]SentDate, 0, len(dates))
	for _, d := range dates {
		if d == "" {
			continue
		}
		markers = append(markers, SentDate{Date: d, SentAt: sentAt})
	}
	if len(markers) == 0 {
		return nil
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoNothing: true,
	}).Create(&markers).Error
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

// Reset は全マーカーを削除する（管理操作）
func (s *DBSentStore) Reset() error {
	err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&SentDate{}).Error
	if err != nil {
		return fmt.Errorf("reset sent markers: %w", err)
	}
	return nil
}
