// =============================================================================
// rows.go - 行ストア用の行データ整形
// =============================================================================
//
// 抽出したStockRowを、行ストアに永続化できる形（主キーと内容ハッシュ付き）
// に整形します。
//
// 【主キー】   code + "_" + rights_date（例: "7203_2025-02-15"）
// 【ハッシュ】 内容フィールドを固定順で連結してMD5、先頭16文字のみ保存。
//             この長さでの衝突リスクは無視できる程度に小さいが、ゼロではない。
//
// =============================================================================
package pipeline

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// rowHashHexLen はRowHashとして保存するハッシュの桁数
const rowHashHexLen = 16

// RowPrimaryKey は銘柄行の主キーを返す（code + "_" + rights_date）
func RowPrimaryKey(r StockRow) string {
	return r.Code + "_" + r.RightsDate
}

// RowFingerprint は行内容のフィンガープリントを返す
//
// 対象フィールドを固定順（順序依存）でつなぎ、どれか1つでも変わると
// 異なる値になる。保存用に16桁に切り詰める。
func RowFingerprint(r StockRow) string {
	source := strings.Join([]string{
		r.Code,
		r.Name,
		r.RightsDate,
		r.YuutaiSummary,
		r.LendType,
		r.Measures,
		r.Saiyaku,
	}, "|")
	sum := md5.Sum([]byte(source))
	return hex.EncodeToString(sum[:])[:rowHashHexLen]
}

// FlattenRows は全termページの銘柄行を処理順のまま1つのスライスにまとめる
func FlattenRows(results []*TermPage) []StockRow {
	var out []StockRow
	for _, result := range results {
		if result == nil {
			continue
		}
		out = append(out, result.Rows...)
	}
	return out
}

// BuildSheetRows は抽出行を行ストア用のSheetRowに整形する
//
// 必須フィールド（code, rights_date）が欠けた行はスキップする。
// CreatedAt / UpdatedAt はここでは設定しない（差分検出側の責務）。
func BuildSheetRows(rows []StockRow, fetchedAt string) []SheetRow {
	out := make([]SheetRow, 0, len(rows))
	for _, r := range rows {
		if r.Code == "" || r.RightsDate == "" {
			continue
		}
		out = append(out, SheetRow{
			PrimaryKey:    RowPrimaryKey(r),
			Code:          r.Code,
			Name:          r.Name,
			RightsDate:    r.RightsDate,
			YuutaiSummary: r.YuutaiSummary,
			LendType:      r.LendType,
			Measures:      r.Measures,
			Saiyaku:       r.Saiyaku,
			RowHash:       RowFingerprint(r),
			SourceURL:     r.SourceURL,
			FetchedAt:     fetchedAt,
		})
	}
	return out
}
