// Package crawler 实现了 BFS 网页爬虫：从根 URL 开始逐层抓取子页面，
// 并可选地自动下载页面上链接的 PDF/Excel 附件到本地暂存目录。
package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/szhou12/rag-clean-energy/internal/config"
	"github.com/szhou12/rag-clean-energy/internal/model"
	"github.com/szhou12/rag-clean-energy/pkg/log"
)

// excludedKeywords 是非正文样板页的首路径段关键词集合，命中即不入队。
var excludedKeywords = map[string]struct{}{
	"about":    {},
	"contact":  {},
	"privacy":  {},
	"careers":  {},
	"login":    {},
	"register": {},
	"search":   {},
	"terms":    {},
	"news":     {},
	"sitemap":  {},
	"events":   {},
	"media":    {},
}

// downloadExtensions 是自动下载的附件扩展名集合。
var downloadExtensions = map[string]struct{}{
	".pdf":  {},
	".xlsx": {},
	".xls":  {},
}

// Crawler 封装 BFS 抓取所需的 HTTP 客户端与暂存目录。
type Crawler struct {
	client     *http.Client
	stagingDir string
	userAgent  string
}

// New 创建一个 Crawler 实例。
func New(cfg config.CrawlerConfig) *Crawler {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Crawler{
		client:     &http.Client{Timeout: timeout},
		stagingDir: cfg.StagingDir,
		userAgent:  cfg.UserAgent,
	}
}

// StagingDir 返回附件暂存目录。
func (c *Crawler) StagingDir() string {
	return c.stagingDir
}

// Crawl 从 rootURL 开始广度优先抓取，最多成功加载 maxPages 个页面。
// ledger 是已摄入且未到刷新期的来源集合：台账中的 URL 既不重新加载也不继续外扩。
// 返回本次新加载的文档列表和新下载的附件路径列表。
func (c *Crawler) Crawl(ctx context.Context, rootURL string, maxPages int, autodownload bool, ledger map[string]struct{}) ([]*model.Document, []string, error) {
	root, err := url.Parse(rootURL)
	if err != nil || root.Scheme == "" || root.Host == "" {
		return nil, nil, fmt.Errorf("无效的起始 URL: %q", rootURL)
	}
	if maxPages <= 0 {
		maxPages = 1
	}

	var (
		docs       []*model.Document
		downloaded []string
	)
	visited := map[string]struct{}{rootURL: {}}
	queue := []string{rootURL}

	for len(queue) > 0 && len(docs) < maxPages {
		// 取消检查放在页面加载之间，不打断进行中的网络调用。
		select {
		case <-ctx.Done():
			return docs, downloaded, ctx.Err()
		default:
		}

		current := queue[0]
		queue = queue[1:]

		// 台账命中：跳过加载，也不再从该页外扩。
		if _, ok := ledger[current]; ok {
			log.Infof("[Crawler] 已在台账中，跳过: %s", current)
			continue
		}

		content, links, err := c.loadPage(ctx, current)
		if err != nil {
			// 抓取失败仅记录并丢弃该节点，遍历继续。
			log.Warnf("[Crawler] 加载页面失败，跳过: %s, err=%v", current, err)
			continue
		}

		docs = append(docs, &model.Document{
			Source:  current,
			Content: content,
		})
		log.Infof("[Crawler] 已加载页面 %d/%d: %s", len(docs), maxPages, current)

		currentURL, err := url.Parse(current)
		if err != nil {
			continue
		}

		for _, link := range links {
			next := resolveLink(currentURL, link)
			if next == nil {
				continue
			}

			if autodownload && isDownloadable(next.Path) {
				if p, fresh := c.downloadFile(ctx, next.String()); fresh {
					downloaded = append(downloaded, p)
				}
				continue
			}

			nextStr := next.String()
			if _, seen := visited[nextStr]; seen {
				continue
			}
			if !isSubURL(currentURL, next) {
				continue
			}
			if isExcluded(next) {
				continue
			}
			visited[nextStr] = struct{}{}
			queue = append(queue, nextStr)
		}
	}

	return docs, downloaded, nil
}

// LoadSingle 加载单个 URL，用于到期页面的刷新路径。
func (c *Crawler) LoadSingle(ctx context.Context, pageURL string) (*model.Document, error) {
	content, _, err := c.loadPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return &model.Document{Source: pageURL, Content: content}, nil
}

// loadPage 抓取一个页面，返回正文文本和页面上的全部超链接。
func (c *Crawler) loadPage(ctx context.Context, pageURL string) (string, []string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, fmt.Errorf("非 2xx 状态码: %d", resp.StatusCode)
	}

	return extractPage(resp.Body)
}

// resolveLink 将 href 相对于当前页面解析为绝对 URL；
// 无 scheme 或无 host 的结果返回 nil。
func resolveLink(base *url.URL, href string) *url.URL {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil
	}
	next := base.ResolveReference(ref)
	if next.Scheme == "" || next.Host == "" {
		return nil
	}
	return next
}

// isSubURL 判断 next 是否是 current 的子 URL：
// 同一主机、路径严格更长且以当前路径为前缀、不携带 query 和 fragment。
func isSubURL(current, next *url.URL) bool {
	if next.Host != current.Host {
		return false
	}
	if next.RawQuery != "" || next.Fragment != "" {
		return false
	}
	return len(next.Path) > len(current.Path) && strings.HasPrefix(next.Path, current.Path)
}

// isExcluded 判断 URL 的首路径段是否命中排除关键词。
func isExcluded(u *url.URL) bool {
	segments := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return false
	}
	_, hit := excludedKeywords[strings.ToLower(segments[0])]
	return hit
}

// isDownloadable 判断路径是否指向受支持的附件类型。
func isDownloadable(p string) bool {
	_, ok := downloadExtensions[strings.ToLower(path.Ext(p))]
	return ok
}

// downloadFile 将附件下载到暂存目录。
// 目标路径已存在时跳过下载且不计入新下载列表；失败只记录日志。
func (c *Crawler) downloadFile(ctx context.Context, fileURL string) (string, bool) {
	parsed, err := url.Parse(fileURL)
	if err != nil {
		return "", false
	}
	dest := filepath.Join(c.stagingDir, path.Base(parsed.Path))

	if _, err := os.Stat(dest); err == nil {
		log.Infof("[Crawler] 附件已存在，跳过下载: %s", dest)
		return dest, false
	}

	if err := os.MkdirAll(c.stagingDir, os.ModePerm); err != nil {
		log.Warnf("[Crawler] 创建暂存目录失败: %v", err)
		return "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		log.Warnf("[Crawler] 下载附件失败，跳过: %s, err=%v", fileURL, err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warnf("[Crawler] 下载附件返回非 2xx 状态码，跳过: %s, status=%d", fileURL, resp.StatusCode)
		return "", false
	}

	f, err := os.Create(dest)
	if err != nil {
		log.Warnf("[Crawler] 创建附件文件失败: %s, err=%v", dest, err)
		return "", false
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		log.Warnf("[Crawler] 写入附件失败: %s, err=%v", dest, err)
		_ = os.Remove(dest)
		return "", false
	}

	log.Infof("[Crawler] 附件下载完成: %s", dest)
	return dest, true
}
