// =============================================================================
// termpage.go - termページから権利日と銘柄一覧を抽出
// =============================================================================
//
// 1つのtermページのHTMLから、権利日と銘柄テーブルを抽出します。
//
// 【抽出の流れ】
//   1. 「権利日：YYYY年MM月DD日」ラベルから権利日を抽出
//   2. ページ内の全テーブルを列挙
//   3. 銘柄テーブルを特定（コード/銘柄名ヘッダーを含む最初のテーブル、
//      見つからなければ最大のテーブルにフォールバック）
//   4. ヘッダー行から列位置を解決（列名シノニムの部分一致、
//      解決できなければ位置ベース: コード=0列目, 銘柄名=1列目）
//   5. データ行をStockRowに変換。コードが4桁数字でない行は
//      ヘッダー残骸やノイズとみなして捨てる（エラーにはしない）
//
// 銘柄0件は正常（その権利日に対象銘柄がないだけ）。
//
// =============================================================================
package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// minTermHTMLLen より短いHTMLは取得失敗とみなす
const minTermHTMLLen = 100

// reRightsDate は「権利日：YYYY年MM月DD日」（全角/半角コロン両対応）
var reRightsDate = regexp.MustCompile(`権利日\s*[：:]\s*(\d{4})年(\d{1,2})月(\d{1,2})日`)

// reStockCode は証券コードの形式（4桁数字ちょうど）
var reStockCode = regexp.MustCompile(`^\d{4}$`)

// columnSynonyms は各フィールドの列名シノニム（特異度の高い順）
//
// ヘッダーテキストへの部分一致で列位置を解決する。サイトの表記ゆれに
// 追従するため、具体的な表記を先に並べる。
var columnSynonyms = map[string][]string{
	"code":      {"銘柄コード", "コード", "code"},
	"name":      {"銘柄名", "銘柄", "企業名", "name"},
	"lend_type": {"貸借区分", "貸借"},
	"measures":  {"信用規制", "規制", "対策"},
	"saiyaku":   {"最大逆日歩", "逆日歩", "最逆"},
}

// ParseTermPage は1つのtermページから権利日と銘柄一覧を抽出する
//
// 失敗は該当termのみの失敗として返す（兄弟termの処理を止めない判断は
// 呼び出し側）。エラー種別: ErrStructuralMismatch / ErrMissingRightsDate /
// ErrNoTableFound / ErrInsufficientRows。
func ParseTermPage(term Term, html, sourceURL, fetchedAt string) (*TermPage, error) {
	if len(html) < minTermHTMLLen {
		return nil, newParseError(ErrStructuralMismatch, term.ID,
			"term page HTML too short to be a real page", html)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, newParseError(ErrStructuralMismatch, term.ID,
			"term page HTML could not be parsed", html)
	}

	// 1. 権利日を抽出
	rightsDate, err := extractRightsDate(doc)
	if err != nil {
		return nil, newParseError(ErrMissingRightsDate, term.ID,
			"expected pattern 権利日：YYYY年MM月DD日", html)
	}

	// 2-3. 銘柄テーブルを特定
	table, err := selectStockTable(doc)
	if err != nil {
		return nil, newParseError(err, term.ID, "", html)
	}

	// 4-5. 行をパース
	rows, err := parseStockRows(table, rightsDate, sourceURL)
	if err != nil {
		return nil, newParseError(err, term.ID, "", html)
	}

	return &TermPage{
		Term:       term.ID,
		Label:      term.Label,
		RightsDate: rightsDate,
		Rows:       rows,
		RowCount:   len(rows),
		SourceURL:  sourceURL,
		FetchedAt:  fetchedAt,
	}, nil
}

// extractRightsDate はページ全文から権利日を探して YYYY-MM-DD で返す
func extractRightsDate(doc *goquery.Document) (string, error) {
	m := reRightsDate.FindStringSubmatch(doc.Text())
	if m == nil {
		return "", ErrMissingRightsDate
	}
	return fmt.Sprintf("%s-%s-%s", m[1], padDigits(m[2]), padDigits(m[3])), nil
}

// padDigits は1桁の数字文字列を0埋めで2桁にする
func padDigits(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// selectStockTable は銘柄テーブルを特定する
//
// ヒューリスティックの優先順:
//  1. テキストに「コード」「銘柄名」を含む最初のテーブル
//  2. 見つからなければ最大のテーブル（テキスト長で比較）- 最終手段
func selectStockTable(doc *goquery.Document) (*goquery.Selection, error) {
	tables := doc.Find("table")
	if tables.Length() == 0 {
		return nil, ErrNoTableFound
	}

	var stockTable *goquery.Selection
	tables.EachWithBreak(func(_ int, t *goquery.Selection) bool {
		text := t.Text()
		if strings.Contains(text, "銘柄コード") ||
			strings.Contains(text, "コード") ||
			strings.Contains(text, "銘柄名") {
			stockTable = t
			return false
		}
		return true
	})

	if stockTable == nil {
		// 最終手段: 最大のテーブルを使用
		var largest *goquery.Selection
		largestLen := -1
		tables.Each(func(_ int, t *goquery.Selection) {
			if l := len(t.Text()); l > largestLen {
				largest = t
				largestLen = l
			}
		})
		stockTable = largest
	}

	return stockTable, nil
}

// parseStockRows はテーブルの行をStockRowに変換する
func parseStockRows(table *goquery.Selection, rightsDate, sourceURL string) ([]StockRow, error) {
	trs := table.Find("tr")
	if trs.Length() < 2 {
		// ヘッダーのみ（またはゼロ行）でデータ行が存在しない
		return nil, ErrInsufficientRows
	}

	// ヘッダー行から列位置を解決
	headers := cellTexts(trs.First())
	cols := resolveColumns(headers)

	rows := make([]StockRow, 0, trs.Length()-1)
	trs.Slice(1, trs.Length()).Each(func(_ int, tr *goquery.Selection) {
		cells := cellTexts(tr)
		if len(cells) == 0 {
			return // 空行スキップ
		}

		code := cellAt(cells, cols["code"])
		if !reStockCode.MatchString(code) {
			// ヘッダー残骸・注記行など。エラーにせず捨てる。
			return
		}

		rows = append(rows, StockRow{
			RightsDate: rightsDate,
			Code:       code,
			Name:       cellAt(cells, cols["name"]),
			LendType:   cellAt(cells, cols["lend_type"]),
			Measures:   cellAt(cells, cols["measures"]),
			Saiyaku:    cellAt(cells, cols["saiyaku"]),
			SourceURL:  sourceURL,
		})
	})

	return rows, nil
}

// cellTexts は1行分のセル（th/td）のテキストを返す
//
// セル内にリンクがある場合はリンクテキストを優先する。goqueryのText()が
// タグ除去と実体参照のデコードを行うため、残りは空白正規化のみ。
func cellTexts(tr *goquery.Selection) []string {
	var out []string
	tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		text := ""
		if a := cell.Find("a"); a.Length() > 0 {
			text = a.First().Text()
		}
		if strings.TrimSpace(text) == "" {
			text = cell.Text()
		}
		out = append(out, normalizeWhitespace(text))
	})
	return out
}

// resolveColumns はヘッダーテキストから各フィールドの列位置を解決する
//
// シノニムの部分一致で探し、コードも銘柄名も見つからない場合は
// 位置ベース（コード=0, 銘柄名=1）にフォールバックする。
func resolveColumns(headers []string) map[string]int {
	cols := map[string]int{}
	for field, synonyms := range columnSynonyms {
		cols[field] = findColumnIndex(headers, synonyms)
	}

	if cols["code"] == -1 && cols["name"] == -1 {
		// 一般的な構成: コード(0), 銘柄名(1), ...
		cols["code"] = 0
		cols["name"] = 1
	}
	return cols
}

// findColumnIndex はヘッダー列からいずれかのパターンに部分一致する位置を返す
//
// パターンは特異度順に並んでいる前提で、パターン優先で探す。
// 見つからなければ -1。
func findColumnIndex(headers []string, patterns []string) int {
	for _, p := range patterns {
		for i, h := range headers {
			if strings.Contains(h, p) {
				return i
			}
		}
	}
	return -1
}

// cellAt は列位置のセル値を返す。範囲外・未解決（-1）は空文字。
func cellAt(cells []string, idx int) string {
	if idx >= 0 && idx < len(cells) {
		return cells[idx]
	}
	return ""
}
