// =============================================================================
// main.go - yuutai-notify CLIエントリポイント
// =============================================================================
//
// 96ut.comの株主優待一覧をスクレイピングし、権利日が40日前±1日に入る
// 銘柄のスナップショットを出力します。sqlite DBを指定すると差分検出・
// 永続化と重複送信防止付きのメール/Discord通知も行います。
//
// 【使用例】
//
//	# スナップショットを標準出力にJSONで出す（通知なし）
//	./pipeline
//
//	# 永続化・差分検出・メール通知込みで実行
//	./pipeline -db yuutai.db -sendEmail -notifyDiscord
//
//	# 基準日を固定して再実行
//	./pipeline -today 2025-01-07
//
//	# 送信済みマーカーをクリア（管理操作）
//	./pipeline -db yuutai.db -resetSent
//
// 【環境変数】（.envファイルからも読み込む）
//   EMAIL_FROM / EMAIL_PASSWORD / EMAIL_TO - メール通知用
//   DISCORD_WEBHOOK_URL                    - Discord通知用
//
// =============================================================================
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"yuutai-notify/internal/pipeline"
)

func main() {
	// .env ファイルから環境変数を読み込み
	// ファイルが存在しない場合は環境変数のみで続行する
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "WARN: .env file not loaded: %v (using environment variables only)\n", err)
	}

	cfg, err := pipeline.ParseFlags()
	if err != nil {
		fatalf("invalid configuration: %v", err)
	}

	deps, cleanup, err := buildDeps(cfg)
	if err != nil {
		fatalf("%v", err)
	}
	defer cleanup()

	// 管理操作: 送信済みマーカーのクリアのみ行って終了
	if cfg.ResetSent {
		if deps.SentStore == nil {
			fatalf("-resetSent requires -db")
		}
		if err := deps.SentStore.Reset(); err != nil {
			fatalf("reset sent markers: %v", err)
		}
		fmt.Fprintln(os.Stderr, "INFO: sent markers cleared")
		return
	}

	report, err := pipeline.Run(cfg, deps)
	if err != nil {
		// 実行エラーはDiscordにも通知する（設定されていれば）
		if deps.Discord != nil {
			if postErr := deps.Discord.Post(pipeline.BuildErrorNotification(err)); postErr != nil {
				fmt.Fprintf(os.Stderr, "WARN: error notification failed: %v\n", postErr)
			}
		}
		fatalf("pipeline failed: %v", err)
	}

	// スナップショットJSONを出力（stdoutはJSON専用、ログはstderr）
	if cfg.Output.OutFile != "" {
		if err := pipeline.WriteJSONFile(cfg.Output.OutFile, report.Snapshot); err != nil {
			fatalf("write snapshot to %s: %v", cfg.Output.OutFile, err)
		}
	} else {
		if err := pipeline.WriteJSONToStdout(report.Snapshot); err != nil {
			fatalf("write snapshot: %v", err)
		}
	}
}

// buildDeps は設定から実行時依存を組み立てる
//
// -db 未指定なら永続化系はnil（スナップショット出力のみのモード）。
// メール/Discordはフラグで有効化されたものだけ作る。
func buildDeps(cfg *pipeline.Config) (pipeline.RunDeps, func(), error) {
	deps := pipeline.RunDeps{
		Fetcher: pipeline.NewFetcher(cfg.Scrape),
	}
	cleanup := func() {}

	if cfg.Store.DBPath != "" {
		db, err := pipeline.OpenDB(cfg.Store.DBPath)
		if err != nil {
			return deps, cleanup, fmt.Errorf("open database: %w", err)
		}
		deps.RowStore = pipeline.NewRowStore(db)
		deps.SentStore = pipeline.NewSentStore(db)
		cleanup = func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
	}

	if cfg.Notify.SendEmail {
		sender, err := pipeline.NewEmailSenderFromEnv()
		if err != nil {
			return deps, cleanup, fmt.Errorf("email configuration: %w", err)
		}
		deps.Email = sender
	}

	if cfg.Notify.NotifyDiscord {
		notifier, err := pipeline.NewDiscordNotifierFromEnv()
		if err != nil {
			return deps, cleanup, fmt.Errorf("discord configuration: %w", err)
		}
		deps.Discord = notifier
	}

	return deps, cleanup, nil
}

// fatalf はエラーメッセージを出力してプログラムを終了する
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ERROR: "+format+"\n", args...)
	os.Exit(1)
}
