// =============================================================================
// errors.go - パースエラー種別
// =============================================================================
//
// スクレイピング段階のエラーを種別ごとのセンチネルエラーとして定義します。
// 呼び出し側は errors.Is で種別を判定できます。
//
// 1つのterm抽出の失敗はそのtermのみを打ち切り、他のtermの処理は継続する
// （フォールトトレランスはcollect.go側の責務）。
//
// =============================================================================
package pipeline

import (
	"errors"
	"fmt"
)

// パース段階のエラー種別
var (
	// ErrStructuralMismatch は期待するHTML構造が見つからない場合
	// （ラジオボタンなし、HTMLが短すぎる等）
	ErrStructuralMismatch = errors.New("structural mismatch")

	// ErrMissingRightsDate は「権利日：YYYY年MM月DD日」ラベルが無い場合
	ErrMissingRightsDate = errors.New("rights date not found")

	// ErrNoTableFound はtermページにテーブルが1つも無い場合
	ErrNoTableFound = errors.New("no table found")

	// ErrInsufficientRows はテーブル行が2行未満（データ行なし）の場合
	ErrInsufficientRows = errors.New("insufficient table rows")

	// ErrInvalidInput は上流から渡されたデータの形式が不正な場合
	ErrInvalidInput = errors.New("invalid input")
)

// maxExcerptLen は診断用に保持するHTML断片の最大長
const maxExcerptLen = 200

// ParseError はパース失敗の詳細（種別・対象term・HTML断片）を保持する
//
// Excerpt は問題のHTMLの先頭部分（最大200文字）で、構造変更の診断に使う。
type ParseError struct {
	Kind    error  // 上記センチネルのいずれか
	Term    string // 対象term ID（一覧ページの場合は空）
	Detail  string // 人間向けの補足
	Excerpt string // 問題のHTML断片
}

func (e *ParseError) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Term != "" {
		msg = fmt.Sprintf("%s (term=%s)", msg, e.Term)
	}
	if e.Excerpt != "" {
		msg = fmt.Sprintf("%s; html: %s", msg, e.Excerpt)
	}
	return msg
}

// Unwrap により errors.Is(err, ErrXxx) での種別判定が可能になる
func (e *ParseError) Unwrap() error { return e.Kind }

// newParseError はParseErrorを構築する。markupは自動的に切り詰める。
func newParseError(kind error, term, detail, markup string) *ParseError {
	return &ParseError{
		Kind:    kind,
		Term:    term,
		Detail:  detail,
		Excerpt: truncateString(normalizeWhitespace(markup), maxExcerptLen),
	}
}
