// =============================================================================
// fetch.go - 96ut.com からのページ取得
// =============================================================================
//
// 一覧ページとtermページのHTML取得を担当します。
//
// 【取得ポリシー】
//   - 固定User-Agentと日本語Accept-Languageを付与
//   - タイムアウト30秒
//   - 失敗時は指数バックオフで最大3回リトライ（1秒→2秒→4秒）
//   - 連続リクエストの間に1.5秒の待機（取得先への配慮）
//
// =============================================================================
package pipeline

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// 取得先の既定値（上書きはScrapeConfigで行う）
const (
	// DefaultBaseURL は株主優待一覧ページのURL
	DefaultBaseURL = "https://96ut.com/yuutai/list.php"

	// DefaultUserAgent は取得時に名乗るUser-Agent
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// DefaultTimeout はHTTPリクエストのタイムアウト
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries は1URLあたりの最大試行回数
	DefaultMaxRetries = 3

	// DefaultWaitBetween は連続リクエスト間の待機時間
	DefaultWaitBetween = 1500 * time.Millisecond
)

// BuildSourceURL はterm IDからtermページのURLを組み立てる
//
// 例: https://96ut.com/yuutai/list.php?term=X&days=0&key_y=y
func BuildSourceURL(baseURL, termID string) string {
	return baseURL + "?term=" + url.QueryEscape(termID) + "&days=0&key_y=y"
}

// Fetcher はリトライ付きのページ取得を行う
type Fetcher struct {
	cfg    ScrapeConfig
	client *http.Client
}

// NewFetcher はScrapeConfigからFetcherを作成する
func NewFetcher(cfg ScrapeConfig) *Fetcher {
	return &Fetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// FetchIndex は一覧ページのHTMLを取得する
func (f *Fetcher) FetchIndex() (string, error) {
	return f.get(f.cfg.BaseURL)
}

// FetchTermPage は1つのtermページのHTMLを取得する
func (f *Fetcher) FetchTermPage(termID string) (string, error) {
	return f.get(BuildSourceURL(f.cfg.BaseURL, termID))
}

// get はリトライ付きでURLを取得する
//
// 失敗するたびに待機時間を2倍にする（1秒→2秒→4秒）。
func (f *Fetcher) get(pageURL string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<(attempt-1)) * time.Second
			warnf("retrying %s in %v (attempt %d/%d): %v",
				pageURL, wait, attempt+1, f.cfg.MaxRetries, lastErr)
			time.Sleep(wait)
		}

		body, err := f.fetchOnce(pageURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}

	return "", fmt.Errorf("fetch %s failed after %d attempts: %w",
		pageURL, f.cfg.MaxRetries, lastErr)
}

func (f *Fetcher) fetchOnce(pageURL string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("request creation failed: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ja,en-US;q=0.7,en;q=0.3")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	return string(body), nil
}
