// =============================================================================
// utils.go - ユーティリティ関数
// =============================================================================
//
// このファイルはシステム全体で使用する汎用的なヘルパー関数を提供します。
//
// 【このファイルで提供する機能】
//   - 文字列操作: 空白正規化、重複削除、切り詰め
//   - JST時刻: 現在時刻・今日の日付のJST文字列化
//   - JSON操作: ファイル書き込み、標準出力への出力
//   - ログ出力: 警告・情報メッセージの出力（stderr）
//
// =============================================================================
package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// jstZone はJST（UTC+9）の固定タイムゾーン
//
// サマータイムの無い固定オフセットを使い、日付計算の曖昧さを避ける。
var jstZone = time.FixedZone("JST", 9*60*60)

// NowJST は現在時刻を "YYYY-MM-DD HH:MM:SS" のJST文字列で返す
func NowJST() string {
	return time.Now().In(jstZone).Format("2006-01-02 15:04:05")
}

// TodayJST は今日の日付を "YYYY-MM-DD" のJST文字列で返す
func TodayJST() string {
	return time.Now().In(jstZone).Format("2006-01-02")
}

// normalizeWhitespace は文字列内の連続する空白を単一スペースに正規化する
//
// 使用例:
//
//	normalizeWhitespace("  トヨタ   自動車  ")  // "トヨタ 自動車"
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// uniqStrings は文字列スライスから重複と空文字列を除去する
//
// 出現順は維持する（最初に現れたものを残す）。
func uniqStrings(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// truncateString は文字列を指定した長さに切り詰める
//
// maxLen文字を超える場合、末尾に"..."を付けて切り詰める。
// 日本語などのマルチバイト文字も正しく処理する（runeを使用）。
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

// WriteJSONToStdout は任意のデータをJSON形式で標準出力に書き出す
//
// 標準出力はパイプライン出力（JSON）専用。ログはstderrに出す。
func WriteJSONToStdout(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteJSONFile は任意のデータをJSON形式でファイルに保存する
func WriteJSONFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// warnf は警告メッセージを標準エラー出力に書き出す
func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "WARN: "+format+"\n", args...)
}

// infof は情報メッセージを標準エラー出力に書き出す
func infof(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "INFO: "+format+"\n", args...)
}

// errorf はエラーメッセージを標準エラー出力に書き出す
//
// ログ出力のみでプログラムは終了しない。
func errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ERROR: "+format+"\n", args...)
}
