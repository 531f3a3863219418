// =============================================================================
// diff.go - 新規・更新・削除候補の検出
// =============================================================================
//
// 今回取得した行と、行ストアに永続化済みの行を主キーで突き合わせ、
// 各行を 新規 / 更新 / 変更なし / 削除候補 に分類します。
//
// 【分類ルール】
//   - 既存に無い           → 新規（created_at = updated_at = 今回時刻）
//   - ハッシュが異なる     → 更新（created_atは既存の値を保持）
//   - ハッシュが同じ       → 変更なし
//   - 今回取得に含まれない → 削除候補（参考情報のみ。削除は行わない）
//
// 空入力はエラーではない（変更なし・送信対象なしは正常な結果）。
//
// =============================================================================
package pipeline

import "sort"

// DetectChanges は今回取得分と永続化済みデータの差分を検出する
//
// existing は主キー → 永続化済み行のマップ。newRows の順序は出力の
// ToAdd / ToUpdate にそのまま引き継がれる。この関数は純粋で、
// existing を変更しない。
func DetectChanges(newRows []SheetRow, existing map[string]SheetRow, now string) *DiffResult {
	// 未訪問の既存キーを追跡する（残ったものが削除候補）
	unvisited := make(map[string]bool, len(existing))
	for key := range existing {
		unvisited[key] = true
	}

	result := &DiffResult{
		ToAdd:           []SheetRow{},
		ToUpdate:        []SheetRow{},
		UnchangedKeys:   []string{},
		PossiblyDeleted: []string{},
		FetchedAt:       now,
	}

	for _, row := range newRows {
		prev, ok := existing[row.PrimaryKey]
		delete(unvisited, row.PrimaryKey)

		switch {
		case !ok:
			// 新規追加
			row.CreatedAt = now
			row.UpdatedAt = now
			result.ToAdd = append(result.ToAdd, row)
		case prev.RowHash != row.RowHash:
			// 内容が変わった。作成日時は既存の値を保持する。
			row.CreatedAt = prev.CreatedAt
			if row.CreatedAt == "" {
				row.CreatedAt = now
			}
			row.UpdatedAt = now
			result.ToUpdate = append(result.ToUpdate, row)
		default:
			result.UnchangedKeys = append(result.UnchangedKeys, row.PrimaryKey)
		}
	}

	// 今回の取得に含まれなかった既存行。実際に削除するかは運用判断であり、
	// このシステム自身は削除しない。
	for key := range unvisited {
		result.PossiblyDeleted = append(result.PossiblyDeleted, key)
	}
	sort.Strings(result.PossiblyDeleted)

	result.HasChanges = len(result.ToAdd) > 0 || len(result.ToUpdate) > 0
	result.Summary = DiffSummary{
		NewCount:             len(result.ToAdd),
		UpdatedCount:         len(result.ToUpdate),
		UnchangedCount:       len(result.UnchangedKeys),
		PossiblyDeletedCount: len(result.PossiblyDeleted),
	}
	return result
}
