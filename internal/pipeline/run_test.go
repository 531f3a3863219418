package pipeline

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runIndexHTML は2つのtermを持つ一覧ページ
const runIndexHTML = `<html><head><title>株主優待 逆日歩一覧</title></head><body>
<form>
<label><input type="radio" name="term" value="a">2月15</label>
<label><input type="radio" name="term" value="b">3月末</label>
</form>
</body></html>`

// runTermPages はterm ID → termページHTML
var runTermPages = map[string]string{
	"a": `<html><body>
<p>権利日：2025年2月15日</p>
<table>
<tr><th>銘柄コード</th><th>銘柄名</th><th>貸借区分</th><th>対策</th><th>最大逆日歩</th></tr>
<tr><td>7203</td><td>トヨタ自動車</td><td>貸借</td><td>-</td><td>4.8</td></tr>
</table>
</body></html>`,
	"b": `<html><body>
<p>権利日：2025年3月31日</p>
<table>
<tr><th>銘柄コード</th><th>銘柄名</th><th>貸借区分</th><th>対策</th><th>最大逆日歩</th></tr>
<tr><td>9984</td><td>ソフトバンクグループ</td><td>貸借</td><td>注意</td><td>12.0</td></tr>
</table>
</body></html>`,
}

type fakeMailer struct {
	subjects []string
	fail     bool
}

func (m *fakeMailer) Send(subject, htmlBody string) error {
	if m.fail {
		return errors.New("smtp unavailable")
	}
	m.subjects = append(m.subjects, subject)
	return nil
}

type fakeNotifier struct {
	posts []*DiscordMessage
}

func (n *fakeNotifier) Post(msg *DiscordMessage) error {
	n.posts = append(n.posts, msg)
	return nil
}

func newScrapeServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		term := r.URL.Query().Get("term")
		if term == "" {
			w.Write([]byte(runIndexHTML))
			return
		}
		page, ok := runTermPages[term]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(page))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runConfig(srvURL string) *Config {
	cfg := &Config{
		Scrape: testScrapeConfig(srvURL),
		Window: WindowConfig{DaysBefore: DefaultTargetDaysBefore, Window: DefaultWindowDays},
		Today:  "2025-01-07",
	}
	cfg.Scrape.MaxRetries = 1
	return cfg
}

func TestRunEndToEnd(t *testing.T) {
	srv := newScrapeServer(t)
	cfg := runConfig(srv.URL)

	db, err := OpenDB(filepath.Join(t.TempDir(), "yuutai.db"))
	require.NoError(t, err)
	mailer := &fakeMailer{}
	notifier := &fakeNotifier{}
	deps := RunDeps{
		Fetcher:   NewFetcher(cfg.Scrape),
		RowStore:  NewRowStore(db),
		SentStore: NewSentStore(db),
		Email:     mailer,
		Discord:   notifier,
	}

	report, err := Run(cfg, deps)
	require.NoError(t, err)

	// 今日が2025-01-07 → 40日後±1日のウィンドウに入るのは2025-02-15のみ
	assert.Equal(t, []string{"2025-02-15"}, report.Snapshot.TargetDates)
	assert.Equal(t, 1, report.Snapshot.TotalCount)
	assert.True(t, report.Snapshot.HasTargets)
	assert.Empty(t, report.CollectErrors)

	// 差分: 初回なので両termの行が新規追加される
	require.NotNil(t, report.Diff)
	assert.Equal(t, 2, report.Diff.Summary.NewCount)
	require.Len(t, notifier.posts, 1)

	// メールは1通、送信後に権利日がマークされる
	assert.True(t, report.EmailSent)
	assert.Equal(t, []string{"2025-02-15"}, report.MarkedSent)
	require.Len(t, mailer.subjects, 1)
	assert.Equal(t, "[株主優待] 2025-02-15 権利日 - 1件", mailer.subjects[0])

	// 2回目の実行: 変更なし・送信済みなので何も起きない
	report2, err := Run(cfg, deps)
	require.NoError(t, err)
	assert.False(t, report2.Diff.HasChanges)
	assert.False(t, report2.EmailSent)
	assert.Empty(t, report2.MarkedSent)
	require.NotNil(t, report2.Dedupe)
	assert.False(t, report2.Dedupe.ShouldSend)
	assert.Len(t, mailer.subjects, 1, "no second email")
	assert.Len(t, notifier.posts, 1, "no second discord post")
}

func TestRunEmailFailureDoesNotMarkSent(t *testing.T) {
	srv := newScrapeServer(t)
	cfg := runConfig(srv.URL)

	db, err := OpenDB(filepath.Join(t.TempDir(), "yuutai.db"))
	require.NoError(t, err)
	mailer := &fakeMailer{fail: true}
	deps := RunDeps{
		Fetcher:   NewFetcher(cfg.Scrape),
		RowStore:  NewRowStore(db),
		SentStore: NewSentStore(db),
		Email:     mailer,
	}

	_, err = Run(cfg, deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send notification email")

	// マークされていないので、次の実行で再送される
	mailer.fail = false
	report, err := Run(cfg, deps)
	require.NoError(t, err)
	assert.True(t, report.EmailSent)
	assert.Equal(t, []string{"2025-02-15"}, report.MarkedSent)
}

func TestRunWithoutStoresSkipsPersistence(t *testing.T) {
	srv := newScrapeServer(t)
	cfg := runConfig(srv.URL)

	report, err := Run(cfg, RunDeps{Fetcher: NewFetcher(cfg.Scrape)})
	require.NoError(t, err)

	assert.Equal(t, []string{"2025-02-15"}, report.Snapshot.TargetDates)
	assert.Nil(t, report.Diff)
	assert.Nil(t, report.Dedupe)
	assert.False(t, report.EmailSent)
}

func TestRunContinuesOnTermFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		term := r.URL.Query().Get("term")
		switch term {
		case "":
			w.Write([]byte(runIndexHTML))
		case "a":
			w.WriteHeader(http.StatusInternalServerError) // このtermだけ失敗
		default:
			w.Write([]byte(runTermPages[term]))
		}
	}))
	defer srv.Close()

	cfg := runConfig(srv.URL)
	report, err := Run(cfg, RunDeps{Fetcher: NewFetcher(cfg.Scrape)})
	require.NoError(t, err)

	require.Len(t, report.CollectErrors, 1)
	assert.True(t, strings.HasPrefix(report.CollectErrors[0], "term a:"))

	// term bの結果（ウィンドウ外）だけは集約対象に残る
	assert.Empty(t, report.Snapshot.TargetDates)
	assert.False(t, report.Snapshot.HasTargets)
}

func TestRunFailsWhenIndexUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := runConfig(srv.URL)
	report, err := Run(cfg, RunDeps{Fetcher: NewFetcher(cfg.Scrape)})
	assert.Nil(t, report)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch index page")
}
