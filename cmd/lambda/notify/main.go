// =============================================================================
// Lambda: yuutai-notify
// =============================================================================
//
// スケジュール実行（EventBridge等）でパイプラインを1回実行するLambda関数。
//
// 環境変数:
//   - DB_PATH:             sqliteファイルのパス（例: /mnt/data/yuutai.db、必須）
//   - TARGET_DAYS_BEFORE:  権利日の何日前を対象とするか（デフォルト: 40）
//   - WINDOW_DAYS:         ±何日の幅を許容するか（デフォルト: 1）
//   - EMAIL_FROM:          通知メール送信元（任意）
//   - EMAIL_PASSWORD:      Gmailアプリパスワード（任意）
//   - EMAIL_TO:            通知メール送信先（任意）
//   - DISCORD_WEBHOOK_URL: Discord Webhook URL（任意）
//
// =============================================================================
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"

	"yuutai-notify/internal/pipeline"
)

// Response はLambdaレスポンス
type Response struct {
	StatusCode  int      `json:"statusCode"`
	Message     string   `json:"message"`
	TargetDates []string `json:"targetDates"`
	TotalCount  int      `json:"totalCount"`
	EmailSent   bool     `json:"emailSent"`
}

// Handler はLambdaのメインハンドラー
func Handler(ctx context.Context, event interface{}) (Response, error) {
	log.Println("Starting yuutai-notify Lambda...")

	cfg := loadConfig()
	if cfg.Store.DBPath == "" {
		return Response{StatusCode: 400, Message: "DB_PATH is required"},
			fmt.Errorf("DB_PATH is required")
	}

	deps, err := buildDeps(cfg)
	if err != nil {
		return Response{StatusCode: 500, Message: err.Error()}, err
	}

	report, err := pipeline.Run(cfg, deps)
	if err != nil {
		log.Printf("Pipeline error: %v", err)
		if deps.Discord != nil {
			if postErr := deps.Discord.Post(pipeline.BuildErrorNotification(err)); postErr != nil {
				log.Printf("Error notification failed: %v", postErr)
			}
		}
		return Response{StatusCode: 500, Message: err.Error()}, err
	}

	log.Printf("Done: targets=%v total=%d emailSent=%v",
		report.Snapshot.TargetDates, report.Snapshot.TotalCount, report.EmailSent)

	return Response{
		StatusCode:  200,
		Message:     "ok",
		TargetDates: report.Snapshot.TargetDates,
		TotalCount:  report.Snapshot.TotalCount,
		EmailSent:   report.EmailSent,
	}, nil
}

// loadConfig は環境変数から設定を読み込む
func loadConfig() *pipeline.Config {
	cfg := &pipeline.Config{
		Scrape: pipeline.DefaultScrapeConfig(),
		Window: pipeline.WindowConfig{
			DaysBefore: envInt("TARGET_DAYS_BEFORE", pipeline.DefaultTargetDaysBefore),
			Window:     envInt("WINDOW_DAYS", pipeline.DefaultWindowDays),
		},
	}
	cfg.Store.DBPath = os.Getenv("DB_PATH")
	return cfg
}

// buildDeps は環境変数の有無に応じて実行時依存を組み立てる
//
// メール/Discordの設定が無い場合はその通知をスキップする（エラーにしない）。
func buildDeps(cfg *pipeline.Config) (pipeline.RunDeps, error) {
	deps := pipeline.RunDeps{
		Fetcher: pipeline.NewFetcher(cfg.Scrape),
	}

	db, err := pipeline.OpenDB(cfg.Store.DBPath)
	if err != nil {
		return deps, fmt.Errorf("open database: %w", err)
	}
	deps.RowStore = pipeline.NewRowStore(db)
	deps.SentStore = pipeline.NewSentStore(db)

	if os.Getenv("EMAIL_FROM") != "" {
		sender, err := pipeline.NewEmailSenderFromEnv()
		if err != nil {
			return deps, fmt.Errorf("email configuration: %w", err)
		}
		deps.Email = sender
	}

	if os.Getenv("DISCORD_WEBHOOK_URL") != "" {
		notifier, err := pipeline.NewDiscordNotifierFromEnv()
		if err != nil {
			return deps, fmt.Errorf("discord configuration: %w", err)
		}
		deps.Discord = notifier
	}

	return deps, nil
}

// envInt は整数の環境変数を読む（未設定・不正値はデフォルト）
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func main() {
	lambda.Start(Handler)
}
