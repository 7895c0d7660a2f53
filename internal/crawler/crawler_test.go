package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/szhou12/rag-clean-energy/internal/config"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestIsSubURL(t *testing.T) {
	current := mustParse(t, "https://x.org/a/b")

	tests := []struct {
		next string
		want bool
	}{
		{"https://x.org/a/b/c", true},
		{"https://x.org/a/b/c/d", true},
		{"https://x.org/a", false},         // 路径更短
		{"https://x.org/a/b", false},       // 路径不更长
		{"https://x.org/a/b#frag", false},  // 携带 fragment
		{"https://x.org/a/b?q=1", false},   // 携带 query
		{"https://x.org/a/bc", true},       // 规则是纯字符串前缀，不按路径段判断
		{"https://other.org/a/b/c", false}, // 跨主机
	}
	for _, tt := range tests {
		t.Run(tt.next, func(t *testing.T) {
			got := isSubURL(current, mustParse(t, tt.next))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsExcluded(t *testing.T) {
	assert.True(t, isExcluded(mustParse(t, "https://x.org/about")))
	assert.True(t, isExcluded(mustParse(t, "https://x.org/About/team")))
	assert.False(t, isExcluded(mustParse(t, "https://x.org/reports/about")))
	assert.False(t, isExcluded(mustParse(t, "https://x.org/")))
	assert.False(t, isExcluded(mustParse(t, "https://x.org/data")))
}

func TestResolveLink(t *testing.T) {
	base := mustParse(t, "https://x.org/a/")

	next := resolveLink(base, "b/c")
	require.NotNil(t, next)
	assert.Equal(t, "https://x.org/a/b/c", next.String())

	assert.Nil(t, resolveLink(base, "://bad url"))
	// mailto 链接解析出来没有 host，应被丢弃。
	assert.Nil(t, resolveLink(base, "mailto:a@b.c"))
}

func TestIsDownloadable(t *testing.T) {
	assert.True(t, isDownloadable("/files/report.pdf"))
	assert.True(t, isDownloadable("/files/data.XLSX"))
	assert.True(t, isDownloadable("/files/old.xls"))
	assert.False(t, isDownloadable("/files/readme.txt"))
	assert.False(t, isDownloadable("/files/page"))
}

// newCrawlSite 搭建一个三层小站点：根页链接到两个子页和一个排除页，
// 子页再链接到一个孙页。
func newCrawlSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	page := func(pattern, body string) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, body)
		})
	}
	page("/data", `<html><body>
		<p>root content</p>
		<a href="/data/solar">solar</a>
		<a href="/data/wind">wind</a>
		<a href="/about">about</a>
		<a href="/data/solar?q=1">filtered</a>
	</body></html>`)
	page("/data/solar", `<html><body><p>solar content</p><a href="/data/solar/2024">2024</a></body></html>`)
	page("/data/wind", `<html><body><p>wind content</p></body></html>`)
	page("/data/solar/2024", `<html><body><p>solar 2024 content</p></body></html>`)
	page("/about", `<html><body><p>about page</p></body></html>`)
	return httptest.NewServer(mux)
}

func TestCrawlBFS(t *testing.T) {
	srv := newCrawlSite(t)
	defer srv.Close()

	c := New(config.CrawlerConfig{StagingDir: t.TempDir(), TimeoutSeconds: 5})
	docs, downloaded, err := c.Crawl(context.Background(), srv.URL+"/data", 10, false, nil)

	require.NoError(t, err)
	assert.Empty(t, downloaded)

	got := make(map[string]string, len(docs))
	for _, d := range docs {
		got[d.Source] = d.Content
	}
	// 排除页和带 query 的链接不应出现。
	assert.Len(t, docs, 4)
	assert.Contains(t, got, srv.URL+"/data")
	assert.Contains(t, got, srv.URL+"/data/solar")
	assert.Contains(t, got, srv.URL+"/data/wind")
	assert.Contains(t, got, srv.URL+"/data/solar/2024")
	assert.NotContains(t, got, srv.URL+"/about")

	assert.Contains(t, got[srv.URL+"/data/wind"], "wind content")
}

func TestCrawlMaxPagesBound(t *testing.T) {
	srv := newCrawlSite(t)
	defer srv.Close()

	c := New(config.CrawlerConfig{StagingDir: t.TempDir(), TimeoutSeconds: 5})
	docs, _, err := c.Crawl(context.Background(), srv.URL+"/data", 2, false, nil)

	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestCrawlLedgerSkipIsDeadEnd(t *testing.T) {
	srv := newCrawlSite(t)
	defer srv.Close()

	// solar 在台账中：自身不加载，其孙页也不应被发现。
	ledger := map[string]struct{}{srv.URL + "/data/solar": {}}
	c := New(config.CrawlerConfig{StagingDir: t.TempDir(), TimeoutSeconds: 5})
	docs, _, err := c.Crawl(context.Background(), srv.URL+"/data", 10, false, ledger)

	require.NoError(t, err)
	got := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		got[d.Source] = struct{}{}
	}
	assert.NotContains(t, got, srv.URL+"/data/solar")
	assert.NotContains(t, got, srv.URL+"/data/solar/2024")
	assert.Contains(t, got, srv.URL+"/data")
	assert.Contains(t, got, srv.URL+"/data/wind")
}

func TestCrawlFetchFailureContinues(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/data/broken">broken</a><a href="/data/ok">ok</a></body></html>`)
	})
	mux.HandleFunc("/data/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/data/ok", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>fine</p></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(config.CrawlerConfig{StagingDir: t.TempDir(), TimeoutSeconds: 5})
	docs, _, err := c.Crawl(context.Background(), srv.URL+"/data", 10, false, nil)

	require.NoError(t, err)
	got := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		got[d.Source] = struct{}{}
	}
	assert.Contains(t, got, srv.URL+"/data/ok")
	assert.NotContains(t, got, srv.URL+"/data/broken")
}

func TestCrawlAutodownload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/files/report.pdf">report</a></body></html>`)
	})
	mux.HandleFunc("/files/report.pdf", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "%PDF-1.4 fake")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	staging := t.TempDir()
	c := New(config.CrawlerConfig{StagingDir: staging, TimeoutSeconds: 5})

	docs, downloaded, err := c.Crawl(context.Background(), srv.URL+"/data", 10, true, nil)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	require.Len(t, downloaded, 1)
	assert.Equal(t, filepath.Join(staging, "report.pdf"), downloaded[0])
	_, err = os.Stat(downloaded[0])
	assert.NoError(t, err)

	// 同一附件再次抓取时不应重复下载。
	_, downloaded, err = c.Crawl(context.Background(), srv.URL+"/data", 10, true, nil)
	require.NoError(t, err)
	assert.Empty(t, downloaded)
}

func TestCrawlInvalidRootURL(t *testing.T) {
	c := New(config.CrawlerConfig{StagingDir: t.TempDir(), TimeoutSeconds: 5})
	_, _, err := c.Crawl(context.Background(), "not-a-url", 5, false, nil)
	assert.Error(t, err)
}
