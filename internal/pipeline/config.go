// =============================================================================
// config.go - パイプライン設定
// =============================================================================
//
// CLIフラグの解析と設定管理を行います。
//
// 【設定グループ】
//   - ScrapeConfig: 取得先URL・User-Agent・タイムアウト・リトライ
//   - WindowConfig: 通知対象ウィンドウ（権利日のN日前 ± M日）
//   - StoreConfig:  sqliteデータベースのパス
//   - OutputConfig: スナップショットJSONの出力先
//   - NotifyConfig: メール/Discord通知の有効化
//
// 優先順位: フラグ > YAML設定ファイル(-config) > 既定値。
// メール認証情報やWebhook URLは環境変数（.env）から読む。
//
// =============================================================================
package pipeline

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ScrapeConfig は取得に関する設定
type ScrapeConfig struct {
	BaseURL     string
	UserAgent   string
	Timeout     time.Duration
	MaxRetries  int
	WaitBetween time.Duration
}

// DefaultScrapeConfig は既定の取得設定を返す
func DefaultScrapeConfig() ScrapeConfig {
	return ScrapeConfig{
		BaseURL:     DefaultBaseURL,
		UserAgent:   DefaultUserAgent,
		Timeout:     DefaultTimeout,
		MaxRetries:  DefaultMaxRetries,
		WaitBetween: DefaultWaitBetween,
	}
}

// WindowConfig は通知対象ウィンドウに関する設定
type WindowConfig struct {
	// DaysBefore は権利日の何日前を対象とするか
	DaysBefore int

	// Window は±何日の幅を許容するか
	Window int
}

// StoreConfig は永続化に関する設定
type StoreConfig struct {
	// DBPath はsqliteファイルのパス。空の場合、永続化と重複送信防止は無効。
	DBPath string
}

// OutputConfig は出力に関する設定
type OutputConfig struct {
	// OutFile が指定された場合、スナップショットJSONをファイルに出力
	// （空の場合は標準出力）
	OutFile string
}

// NotifyConfig は通知に関する設定
type NotifyConfig struct {
	// SendEmail がtrueの場合、未送信の権利日があればメールを送信
	SendEmail bool

	// NotifyDiscord がtrueの場合、差分があればDiscordに通知
	NotifyDiscord bool
}

// Config はパイプラインの全設定を保持する
type Config struct {
	Scrape ScrapeConfig
	Window WindowConfig
	Store  StoreConfig
	Output OutputConfig
	Notify NotifyConfig

	// Today は実行基準日（YYYY-MM-DD）。空の場合はJSTの今日。
	// テストや再実行で基準日を固定したい場合に使う。
	Today string

	// ResetSent がtrueの場合、送信済みマーカーを全削除して終了する（管理操作）
	ResetSent bool
}

// =============================================================================
// YAML設定ファイル
// =============================================================================

// FileConfig は-configで指定するYAML設定ファイルの形式
type FileConfig struct {
	BaseURL    string `yaml:"base_url"`
	UserAgent  string `yaml:"user_agent"`
	TimeoutSec int    `yaml:"timeout_seconds"`
	MaxRetries int    `yaml:"max_retries"`
	WaitMillis int    `yaml:"wait_millis"`
	DaysBefore int    `yaml:"days_before"`
	Window     int    `yaml:"window"`
	DB         string `yaml:"db"`
	OutFile    string `yaml:"out"`
}

// LoadConfigFile はYAML設定ファイルを読み込む
func LoadConfigFile(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fc FileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &fc, nil
}

// applyFile はYAML設定ファイルの値を（設定されている項目だけ）反映する
func (c *Config) applyFile(fc *FileConfig) {
	if fc.BaseURL != "" {
		c.Scrape.BaseURL = fc.BaseURL
	}
	if fc.UserAgent != "" {
		c.Scrape.UserAgent = fc.UserAgent
	}
	if fc.TimeoutSec > 0 {
		c.Scrape.Timeout = time.Duration(fc.TimeoutSec) * time.Second
	}
	if fc.MaxRetries > 0 {
		c.Scrape.MaxRetries = fc.MaxRetries
	}
	if fc.WaitMillis > 0 {
		c.Scrape.WaitBetween = time.Duration(fc.WaitMillis) * time.Millisecond
	}
	if fc.DaysBefore > 0 {
		c.Window.DaysBefore = fc.DaysBefore
	}
	if fc.Window > 0 {
		c.Window.Window = fc.Window
	}
	if fc.DB != "" {
		c.Store.DBPath = fc.DB
	}
	if fc.OutFile != "" {
		c.Output.OutFile = fc.OutFile
	}
}

// =============================================================================
// フラグ解析
// =============================================================================

// ParseFlags はCLIフラグを解析してConfigを返す
//
// -config でYAMLファイルを指定した場合、フラグで明示されていない項目に
// ファイルの値が入る（フラグが常に優先）。
func ParseFlags() (*Config, error) {
	cfg := &Config{
		Scrape: DefaultScrapeConfig(),
		Window: WindowConfig{DaysBefore: DefaultTargetDaysBefore, Window: DefaultWindowDays},
	}

	configPath := flag.String("config", "", "optional: path to YAML config file")

	flag.StringVar(&cfg.Scrape.BaseURL, "baseURL", "", "override scrape base URL")
	flag.IntVar(&cfg.Window.DaysBefore, "daysBefore", 0, "notify N days before the rights date")
	flag.IntVar(&cfg.Window.Window, "window", -1, "allow +/- N days around daysBefore")
	flag.StringVar(&cfg.Store.DBPath, "db", "", "sqlite database path (empty disables persistence)")
	flag.StringVar(&cfg.Output.OutFile, "out", "", "optional: write snapshot JSON to this path (default: stdout)")
	flag.StringVar(&cfg.Today, "today", "", "override today's date (YYYY-MM-DD, default: today in JST)")
	flag.BoolVar(&cfg.Notify.SendEmail, "sendEmail", false, "send notification email for unsent target dates")
	flag.BoolVar(&cfg.Notify.NotifyDiscord, "notifyDiscord", false, "post change summary to Discord webhook")
	flag.BoolVar(&cfg.ResetSent, "resetSent", false, "administrative: clear all sent markers and exit")

	flag.Parse()

	// フラグで指定された値を退避してから、既定値→設定ファイル→フラグの順に重ねる
	flagged := *cfg
	cfg.Scrape.BaseURL = DefaultBaseURL
	cfg.Window.DaysBefore = DefaultTargetDaysBefore
	cfg.Window.Window = DefaultWindowDays
	cfg.Store.DBPath = ""
	cfg.Output.OutFile = ""

	if *configPath != "" {
		fc, err := LoadConfigFile(*configPath)
		if err != nil {
			return nil, err
		}
		cfg.applyFile(fc)
	}

	if flagged.Scrape.BaseURL != "" {
		cfg.Scrape.BaseURL = flagged.Scrape.BaseURL
	}
	if flagged.Window.DaysBefore > 0 {
		cfg.Window.DaysBefore = flagged.Window.DaysBefore
	}
	if flagged.Window.Window >= 0 {
		cfg.Window.Window = flagged.Window.Window
	}
	if flagged.Store.DBPath != "" {
		cfg.Store.DBPath = flagged.Store.DBPath
	}
	if flagged.Output.OutFile != "" {
		cfg.Output.OutFile = flagged.Output.OutFile
	}

	return cfg, nil
}
