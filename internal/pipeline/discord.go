// =============================================================================
// discord.go - Discord Webhook通知
// =============================================================================
//
// 差分検出の結果サマリーと、実行エラーの通知をDiscord Webhookに送ります。
//
// 【メッセージの種類】
//   - 更新通知: 緑のEmbed。新規/更新の件数と銘柄リスト（上限付き）
//   - エラー通知: 赤のEmbed。@hereメンション付きでエラー内容を通知
//
// 【必要な環境変数】
//   DISCORD_WEBHOOK_URL - 通知先WebhookのURL
//
// =============================================================================
package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// Embedの色（Discordは10進数のRGB値を受け取る）
const (
	colorGreen = 3066993  // 更新通知
	colorRed   = 15158332 // エラー通知
)

// 通知に載せる銘柄リストの上限
const (
	maxNewItemsShown     = 10
	maxUpdatedItemsShown = 5
)

// DiscordMessage はWebhookに送るペイロード
type DiscordMessage struct {
	Content *string        `json:"content"`
	Embeds  []DiscordEmbed `json:"embeds"`
}

// DiscordEmbed はDiscordのEmbedメッセージ
type DiscordEmbed struct {
	Title     string         `json:"title"`
	Color     int            `json:"color"`
	Fields    []DiscordField `json:"fields"`
	Footer    *DiscordFooter `json:"footer,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// DiscordField はEmbed内の1項目
type DiscordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// DiscordFooter はEmbedのフッター
type DiscordFooter struct {
	Text string `json:"text"`
}

// BuildChangeNotification は差分検出結果から更新通知メッセージを生成する
//
// 新規銘柄は最大10件、更新銘柄は最大5件まで表示し、超過分は件数だけ示す。
// 削除候補があれば警告フィールドを付ける。
func BuildChangeNotification(diff *DiffResult) *DiscordMessage {
	embed := DiscordEmbed{
		Title: "株主優待データ更新",
		Color: colorGreen,
		Fields: []DiscordField{
			{Name: "新規追加", Value: fmt.Sprintf("%d件", diff.Summary.NewCount), Inline: true},
			{Name: "更新", Value: fmt.Sprintf("%d件", diff.Summary.UpdatedCount), Inline: true},
			{Name: "取得日時", Value: diff.FetchedAt, Inline: true},
		},
		Footer:    &DiscordFooter{Text: "96ut.com 株主優待同期"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if list := formatRowList(diff.ToAdd, maxNewItemsShown, true); list != "" {
		embed.Fields = append(embed.Fields, DiscordField{
			Name:  "新規追加銘柄",
			Value: "```\n" + list + "\n```",
		})
	}
	if list := formatRowList(diff.ToUpdate, maxUpdatedItemsShown, false); list != "" {
		embed.Fields = append(embed.Fields, DiscordField{
			Name:  "更新銘柄",
			Value: "```\n" + list + "\n```",
		})
	}
	if diff.Summary.PossiblyDeletedCount > 0 {
		embed.Fields = append(embed.Fields, DiscordField{
			Name:  "削除候補",
			Value: fmt.Sprintf("%d件（今回取得されず）", diff.Summary.PossiblyDeletedCount),
		})
	}

	return &DiscordMessage{Content: nil, Embeds: []DiscordEmbed{embed}}
}

// formatRowList は銘柄リストを「・コード 銘柄名」形式で整形する
func formatRowList(rows []SheetRow, limit int, withDate bool) string {
	if len(rows) == 0 {
		return ""
	}

	shown := rows
	if len(shown) > limit {
		shown = shown[:limit]
	}

	lines := make([]string, 0, len(shown)+1)
	for _, r := range shown {
		if withDate {
			lines = append(lines, fmt.Sprintf("・%s %s (%s)", r.Code, r.Name, r.RightsDate))
		} else {
			lines = append(lines, fmt.Sprintf("・%s %s", r.Code, r.Name))
		}
	}
	if len(rows) > limit {
		lines = append(lines, fmt.Sprintf("...他%d件", len(rows)-limit))
	}
	return strings.Join(lines, "\n")
}

// BuildErrorNotification は実行エラーの通知メッセージを生成する
//
// エラー内容は500文字で切り詰める。@hereメンション付き。
func BuildErrorNotification(runErr error) *DiscordMessage {
	mention := "@here エラーが発生しました"

	embed := DiscordEmbed{
		Title: "株主優待同期エラー",
		Color: colorRed,
		Fields: []DiscordField{
			{
				Name:  "エラー内容",
				Value: "```\n" + truncateString(runErr.Error(), 500) + "\n```",
			},
			{Name: "発生日時", Value: NowJST(), Inline: true},
		},
		Footer:    &DiscordFooter{Text: "要確認: 実行ログを確認してください"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	return &DiscordMessage{Content: &mention, Embeds: []DiscordEmbed{embed}}
}

// =============================================================================
// Webhook送信
// =============================================================================

// DiscordNotifier はWebhookへの送信を担当する
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordNotifier はWebhook URLを指定して通知者を作成する
func NewDiscordNotifier(webhookURL string) (*DiscordNotifier, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("DISCORD_WEBHOOK_URL is required")
	}
	return &DiscordNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// NewDiscordNotifierFromEnv は環境変数からDiscord通知者を作成する
func NewDiscordNotifierFromEnv() (*DiscordNotifier, error) {
	return NewDiscordNotifier(os.Getenv("DISCORD_WEBHOOK_URL"))
}

// Post はメッセージをWebhookにPOSTする
func (n *DiscordNotifier) Post(msg *DiscordMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	resp, err := n.client.Post(n.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post to discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode)
	}
	return nil
}
