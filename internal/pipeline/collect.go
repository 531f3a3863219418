// =============================================================================
// collect.go - 全termページの収集
// =============================================================================
//
// 一覧ページからterm一覧を取得し、termごとにページを取得・抽出します。
//
// 【部分失敗の扱い】
//   - 一覧ページの取得・パース失敗は実行全体の失敗（これが無いと何もできない）
//   - 個別termの取得・パース失敗はそのtermのみをスキップし、エラーとして
//     記録した上で残りのtermの処理を続行する
//
// 結果はterm発見順に並ぶ。部分失敗した実行を使うかどうかは呼び出し側の判断。
//
// =============================================================================
package pipeline

import (
	"fmt"
	"time"
)

// CollectResult は全term収集の結果とterm単位の失敗を保持する
type CollectResult struct {
	Terms   []Term      `json:"terms"`
	Results []*TermPage `json:"results"`
	Errors  []string    `json:"errors,omitempty"`
}

// CollectTerms は一覧ページから全termを発見し、各termページを抽出する
//
// 戻り値のResultsはterm発見順。失敗したtermはResultsに含まれず、
// Errorsに記録される。一覧ページ自体の失敗のみエラーを返す。
func CollectTerms(f *Fetcher) (*CollectResult, error) {
	indexHTML, err := f.FetchIndex()
	if err != nil {
		return nil, fmt.Errorf("fetch index page: %w", err)
	}

	terms, err := ParseTerms(indexHTML)
	if err != nil {
		return nil, fmt.Errorf("parse index page: %w", err)
	}
	infof("discovered %d terms", len(terms))

	result := &CollectResult{Terms: terms}

	for i, term := range terms {
		if i > 0 && f.cfg.WaitBetween > 0 {
			time.Sleep(f.cfg.WaitBetween)
		}

		page, err := collectOneTerm(f, term)
		if err != nil {
			errMsg := fmt.Sprintf("term %s: %v", term.ID, err)
			errorf("collecting %s", errMsg)
			result.Errors = append(result.Errors, errMsg)
			continue
		}

		infof("term %s (%s): rights_date=%s rows=%d",
			term.ID, term.Label, page.RightsDate, page.RowCount)
		result.Results = append(result.Results, page)
	}

	if len(result.Errors) > 0 {
		warnf("%d term(s) failed (collected %d of %d)",
			len(result.Errors), len(result.Results), len(terms))
	}

	return result, nil
}

// collectOneTerm は1つのtermページを取得して抽出する
func collectOneTerm(f *Fetcher, term Term) (*TermPage, error) {
	html, err := f.FetchTermPage(term.ID)
	if err != nil {
		return nil, err
	}
	sourceURL := BuildSourceURL(f.cfg.BaseURL, term.ID)
	return ParseTermPage(term, html, sourceURL, NowJST())
}
