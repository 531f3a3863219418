package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowPrimaryKey(t *testing.T) {
	row := StockRow{Code: "7203", RightsDate: "2025-02-15"}
	assert.Equal(t, "7203_2025-02-15", RowPrimaryKey(row))
}

func TestRowFingerprint(t *testing.T) {
	base := StockRow{
		Code:       "7203",
		Name:       "トヨタ自動車",
		RightsDate: "2025-02-15",
		LendType:   "貸借",
		Measures:   "-",
		Saiyaku:    "4.8",
	}

	hash := RowFingerprint(base)
	assert.Len(t, hash, rowHashHexLen)
	assert.Regexp(t, "^[0-9a-f]+$", hash)

	// 同じ内容なら常に同じ値
	assert.Equal(t, hash, RowFingerprint(base))

	// SourceURLは内容に含めない（URL変更だけでは更新扱いにしない）
	withURL := base
	withURL.SourceURL = "https://example.com/other"
	assert.Equal(t, hash, RowFingerprint(withURL))

	// どのフィールドが変わってもハッシュは変わる
	mutations := map[string]StockRow{
		"code":           {Code: "9984", Name: base.Name, RightsDate: base.RightsDate, LendType: base.LendType, Measures: base.Measures, Saiyaku: base.Saiyaku},
		"name":           {Code: base.Code, Name: "別銘柄", RightsDate: base.RightsDate, LendType: base.LendType, Measures: base.Measures, Saiyaku: base.Saiyaku},
		"rights_date":    {Code: base.Code, Name: base.Name, RightsDate: "2025-03-31", LendType: base.LendType, Measures: base.Measures, Saiyaku: base.Saiyaku},
		"yuutai_summary": {Code: base.Code, Name: base.Name, RightsDate: base.RightsDate, YuutaiSummary: "QUOカード", LendType: base.LendType, Measures: base.Measures, Saiyaku: base.Saiyaku},
		"lend_type":      {Code: base.Code, Name: base.Name, RightsDate: base.RightsDate, LendType: "制度", Measures: base.Measures, Saiyaku: base.Saiyaku},
		"measures":       {Code: base.Code, Name: base.Name, RightsDate: base.RightsDate, LendType: base.LendType, Measures: "注意", Saiyaku: base.Saiyaku},
		"saiyaku":        {Code: base.Code, Name: base.Name, RightsDate: base.RightsDate, LendType: base.LendType, Measures: base.Measures, Saiyaku: "9.6"},
	}
	for field, mutated := range mutations {
		assert.NotEqual(t, hash, RowFingerprint(mutated), "field %s should affect the fingerprint", field)
	}
}

func TestFlattenRows(t *testing.T) {
	results := []*TermPage{
		termPageFor("a", "2025-02-15", "7203"),
		nil,
		termPageFor("b", "2025-03-31", "9984", "8306"),
	}

	rows := FlattenRows(results)
	require.Len(t, rows, 3)
	assert.Equal(t, "7203", rows[0].Code)
	assert.Equal(t, "9984", rows[1].Code)
	assert.Equal(t, "8306", rows[2].Code)
}

func TestBuildSheetRows(t *testing.T) {
	rows := []StockRow{
		{Code: "7203", Name: "トヨタ自動車", RightsDate: "2025-02-15", LendType: "貸借", Saiyaku: "4.8", SourceURL: "https://example.com/a"},
		{Code: "", Name: "コード欠落", RightsDate: "2025-02-15"},
		{Code: "9984", Name: "権利日欠落", RightsDate: ""},
	}

	sheet := BuildSheetRows(rows, "2025-01-07 08:00:00")
	require.Len(t, sheet, 1)

	got := sheet[0]
	assert.Equal(t, "7203_2025-02-15", got.PrimaryKey)
	assert.Equal(t, "7203", got.Code)
	assert.Equal(t, RowFingerprint(rows[0]), got.RowHash)
	assert.Equal(t, "2025-01-07 08:00:00", got.FetchedAt)

	// 作成・更新日時は差分検出側で設定する
	assert.Empty(t, got.CreatedAt)
	assert.Empty(t, got.UpdatedAt)
}
