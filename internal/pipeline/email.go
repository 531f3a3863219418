// =============================================================================
// email.go - 通知メールの生成と送信
// =============================================================================
//
// 未送信の権利日についてHTMLメール（本文にTSVデータ付き）を生成し、
// Gmail SMTP経由で送信します。
//
// 【必要な環境変数】
//   EMAIL_FROM     - 送信元メールアドレス（Gmail）
//   EMAIL_PASSWORD - Gmailアプリパスワード（通常のパスワードではない！）
//   EMAIL_TO       - 送信先メールアドレス（カンマ区切りで複数可）
//
// Gmail SMTPはポート587（TLS）を使用。送信失敗時は指数バックオフで
// リトライする（2秒→4秒→8秒）。
//
// =============================================================================
package pipeline

import (
	"fmt"
	"html"
	"math"
	"net/smtp"
	"os"
	"strings"
	"time"
)

// EmailConfig はメール送信の設定を保持する
type EmailConfig struct {
	From     string   // 送信元メールアドレス
	Password string   // Gmailアプリパスワード
	To       []string // 送信先メールアドレス（複数可）
	SMTPHost string   // SMTPサーバーホスト
	SMTPPort string   // SMTPポート
}

// EmailSender はメール送信を担当する
type EmailSender struct {
	config EmailConfig
}

// NewEmailSender は新しいメール送信者を作成する
//
// 【注意】通常のGmailパスワードは使用できない。必ずアプリパスワードを
// 使用すること。
func NewEmailSender(from, password, to string) (*EmailSender, error) {
	if from == "" {
		return nil, fmt.Errorf("EMAIL_FROM is required")
	}
	if password == "" {
		return nil, fmt.Errorf("EMAIL_PASSWORD is required (use Gmail App Password)")
	}
	if to == "" {
		return nil, fmt.Errorf("EMAIL_TO is required")
	}

	toList := strings.Split(to, ",")
	for i, addr := range toList {
		toList[i] = strings.TrimSpace(addr)
	}

	return &EmailSender{
		config: EmailConfig{
			From:     from,
			Password: password,
			To:       toList,
			SMTPHost: "smtp.gmail.com",
			SMTPPort: "587",
		},
	}, nil
}

// NewEmailSenderFromEnv は環境変数からメール送信者を作成する
func NewEmailSenderFromEnv() (*EmailSender, error) {
	return NewEmailSender(
		os.Getenv("EMAIL_FROM"),
		os.Getenv("EMAIL_PASSWORD"),
		os.Getenv("EMAIL_TO"),
	)
}

// =============================================================================
// メール本文生成
// =============================================================================

// tsvColumns はTSVデータの列見出し
var tsvColumns = []string{"権利日", "銘柄コード", "銘柄名", "貸借", "対策", "最逆"}

// BuildNotificationEmail は重複送信防止ゲートの結果から件名とHTML本文を生成する
//
// 本文は権利日ごとのHTMLテーブルと、Excel等に貼り付けられるTSVデータの
// <pre>ブロックで構成される。
func BuildNotificationEmail(d *DedupeResult) (subject, htmlBody string) {
	targetDates := d.TargetDates
	if len(targetDates) == 0 {
		return fmt.Sprintf("[株主優待] 対象銘柄なし - %s", d.TodayJST),
			"<p>本日の対象銘柄はありません。</p>"
	}

	// 件名: 権利日が1つならその日付、複数なら「他」を付ける
	if len(targetDates) == 1 {
		subject = fmt.Sprintf("[株主優待] %s 権利日 - %d件", targetDates[0], d.TotalCount)
	} else {
		subject = fmt.Sprintf("[株主優待] %s他 権利日 - %d件", targetDates[0], d.TotalCount)
	}

	var sb strings.Builder
	sb.WriteString(`<div style="font-family: sans-serif; font-size: 14px;">` + "\n")
	sb.WriteString("<h2>株主優待 通知</h2>\n<p>\n")
	sb.WriteString("<strong>対象権利日:</strong> " + html.EscapeString(strings.Join(targetDates, ", ")) + "<br>\n")
	sb.WriteString("<strong>基準日:</strong> " + html.EscapeString(d.TodayJST) + "<br>\n")
	sb.WriteString(`<strong>取得元:</strong> <a href="` + DefaultBaseURL + `">96ut.com</a><br>` + "\n")
	sb.WriteString(fmt.Sprintf("<strong>合計件数:</strong> %d件\n</p>\n", d.TotalCount))

	tsvLines := []string{strings.Join(tsvColumns, "\t")}

	for _, date := range targetDates {
		bucket, ok := d.ByDate[date]
		if !ok {
			continue
		}

		sb.WriteString(fmt.Sprintf("<h3>%s (%d件)</h3>\n", html.EscapeString(date), bucket.Count))

		if len(bucket.SourceURLs) > 0 {
			sb.WriteString(`<p style="font-size: 12px; color: #666;">取得元: `)
			for i, u := range bucket.SourceURLs {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(fmt.Sprintf(`<a href="%s">URL%d</a>`, html.EscapeString(u), i+1))
			}
			sb.WriteString("</p>\n")
		}

		sb.WriteString(`<table border="1" cellpadding="5" cellspacing="0" style="border-collapse: collapse; font-size: 13px;">` + "\n")
		sb.WriteString(`<thead style="background-color: #f0f0f0;">` + "\n")
		sb.WriteString("<tr><th>銘柄コード</th><th>銘柄名</th><th>貸借</th><th>対策</th><th>最逆</th></tr>\n")
		sb.WriteString("</thead>\n<tbody>\n")

		for _, row := range bucket.Rows {
			sb.WriteString("<tr>")
			for _, v := range []string{row.Code, row.Name, row.LendType, row.Measures, row.Saiyaku} {
				sb.WriteString("<td>" + html.EscapeString(v) + "</td>")
			}
			sb.WriteString("</tr>\n")

			tsvLines = append(tsvLines, strings.Join([]string{
				escapeTSV(row.RightsDate),
				escapeTSV(row.Code),
				escapeTSV(row.Name),
				escapeTSV(row.LendType),
				escapeTSV(row.Measures),
				escapeTSV(row.Saiyaku),
			}, "\t"))
		}

		sb.WriteString("</tbody>\n</table>\n<br>\n")
	}

	// TSVデータを<pre>で埋め込み（Excel等へのコピペ用）
	sb.WriteString("<h3>TSVデータ</h3>\n")
	sb.WriteString(`<pre style="background-color: #f5f5f5; padding: 10px; border: 1px solid #ddd; overflow-x: auto; font-size: 12px;">` + "\n")
	sb.WriteString(html.EscapeString(strings.Join(tsvLines, "\n")))
	sb.WriteString("\n</pre>\n")

	sb.WriteString(`<hr style="margin-top: 20px;">` + "\n")
	sb.WriteString(`<p style="font-size: 11px; color: #999;">この通知はyuutai-notifyによる自動送信です。<br>`)
	sb.WriteString(`データ取得元: <a href="` + DefaultBaseURL + `">96ut.com</a></p>` + "\n")
	sb.WriteString("</div>\n")

	return subject, sb.String()
}

// escapeTSV はTSVセル値をエスケープする
//
// タブ・改行・ダブルクォートを含む値はダブルクォートで囲み、
// 内部のダブルクォートは二重にする。
func escapeTSV(s string) string {
	if strings.ContainsAny(s, "\t\n\r\"") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

// =============================================================================
// メール送信
// =============================================================================

// Send は件名とHTML本文を指定してメールを送信する（リトライ付き）
func (es *EmailSender) Send(subject, htmlBody string) error {
	msg := es.buildEmailMessage(subject, htmlBody)
	return es.sendWithRetry(msg)
}

// buildEmailMessage はRFC 5322準拠のメールメッセージを構築する
//
// ヘッダーと本文は空行（\r\n）で区切る。
func (es *EmailSender) buildEmailMessage(subject, body string) []byte {
	var msg strings.Builder

	msg.WriteString(fmt.Sprintf("From: %s\r\n", es.config.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(es.config.To, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	return []byte(msg.String())
}

// sendWithRetry は指数バックオフでリトライしながらメールを送信する
//
// 1回目失敗: 2秒待機、2回目失敗: 4秒待機。一時的なネットワーク障害や
// サーバー過負荷に対応する。
func (es *EmailSender) sendWithRetry(msg []byte) error {
	maxRetries := 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			wait := time.Duration(math.Pow(2, float64(i))) * time.Second
			warnf("retrying email send in %v...", wait)
			time.Sleep(wait)
		}

		err := es.send(msg)
		if err == nil {
			return nil
		}

		lastErr = err
		warnf("email send failed (attempt %d/%d): %v", i+1, maxRetries, err)
	}

	return fmt.Errorf("failed to send email after %d retries: %w", maxRetries, lastErr)
}

// send はGmail SMTPを使用してメールを送信する
//
// PLAIN認証を使用。TLS（ポート587）で暗号化される。
func (es *EmailSender) send(msg []byte) error {
	auth := smtp.PlainAuth("", es.config.From, es.config.Password, es.config.SMTPHost)
	addr := es.config.SMTPHost + ":" + es.config.SMTPPort

	if err := smtp.SendMail(addr, auth, es.config.From, es.config.To, msg); err != nil {
		return fmt.Errorf("SMTP send failed: %w (check EMAIL_PASSWORD is a Gmail App Password)", err)
	}
	return nil
}
