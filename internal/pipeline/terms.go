// =============================================================================
// terms.go - term（権利日）一覧の抽出
// =============================================================================
//
// 一覧ページ（list.php）のHTMLから、選択可能な権利日term一覧を抽出します。
//
// 【抽出ロジック】
//   1. input[type=radio] 要素を列挙し、value属性をterm IDとする
//   2. valueの無いラジオボタンはスキップ、重複は最初の出現を採用
//   3. ラベルは周辺マークアップ（label要素 → 親 → 祖父母の順）のテキストから
//      「1月20」「12月末」形式（M月D or M月末）のパターンを探す
//   4. 見つからなければ label = term ID にフォールバック
//
// =============================================================================
package pipeline

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// minIndexHTMLLen より短いHTMLは取得失敗とみなす
const minIndexHTMLLen = 100

// reTermLabel は「1月20」「12月末」形式のラベルパターン
var reTermLabel = regexp.MustCompile(`\d{1,2}月(?:\d{1,2}|末)`)

// ParseTerms は一覧ページのHTMLからterm一覧を抽出する
//
// 戻り値の順序はHTML内での初出順。同じvalueのラジオボタンが複数ある
// 場合は最初のものだけを残す。
//
// ラジオボタンが1つも見つからない場合、またはHTMLが短すぎる場合は
// ErrStructuralMismatch（HTML構造が変更された可能性）。
func ParseTerms(html string) ([]Term, error) {
	if len(html) < minIndexHTMLLen {
		return nil, newParseError(ErrStructuralMismatch, "",
			"index page HTML too short to be a real page", html)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, newParseError(ErrStructuralMismatch, "",
			"index page HTML could not be parsed", html)
	}

	radios := doc.Find(`input[type="radio"]`)
	if radios.Length() == 0 {
		return nil, newParseError(ErrStructuralMismatch, "",
			"no radio inputs found on index page", html)
	}

	terms := make([]Term, 0, radios.Length())
	seen := map[string]bool{}

	radios.Each(func(_ int, s *goquery.Selection) {
		value, ok := s.Attr("value")
		value = strings.TrimSpace(value)
		if !ok || value == "" {
			return // valueがないラジオボタンはスキップ
		}
		if seen[value] {
			return
		}
		seen[value] = true

		terms = append(terms, Term{ID: value, Label: termLabel(s, value)})
	})

	if len(terms) == 0 {
		return nil, newParseError(ErrStructuralMismatch, "",
			"no radio inputs with a value attribute", html)
	}

	return terms, nil
}

// termLabel はラジオボタン周辺のテキストから人間向けラベルを探す
//
// 探索範囲は近傍から順に広げる:
//  1. 包含する（または直後の）label要素
//  2. 親要素のテキスト
//  3. 祖父母要素のテキスト
//
// どこにも見つからなければterm IDをそのまま返す。
func termLabel(s *goquery.Selection, fallback string) string {
	if l := s.Closest("label"); l.Length() > 0 {
		if m := reTermLabel.FindString(l.Text()); m != "" {
			return m
		}
	}
	if next := s.NextFiltered("label"); next.Length() > 0 {
		if m := reTermLabel.FindString(next.Text()); m != "" {
			return m
		}
	}
	if m := reTermLabel.FindString(s.Parent().Text()); m != "" {
		return m
	}
	if m := reTermLabel.FindString(s.Parent().Parent().Text()); m != "" {
		return m
	}
	return fallback
}
