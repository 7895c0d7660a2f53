// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/szhou12/rag-clean-energy/internal/crawler"
	"github.com/szhou12/rag-clean-energy/internal/model"
	"github.com/szhou12/rag-clean-energy/internal/parser"
	"github.com/szhou12/rag-clean-energy/internal/pipeline"
	"github.com/szhou12/rag-clean-energy/internal/repository"
	"github.com/szhou12/rag-clean-energy/internal/textproc"
	"github.com/szhou12/rag-clean-energy/pkg/log"
	"github.com/szhou12/rag-clean-energy/pkg/storage"
	"github.com/szhou12/rag-clean-energy/pkg/tasks"
)

// IngestService 接口定义了数据摄入相关的业务操作。
type IngestService interface {
	// ProcessURL 抓取并摄入一个站点，返回本次加载的文档数和新下载的附件数。
	ProcessURL(ctx context.Context, rootURL string, maxPages int, autodownload bool, refreshDays *int, lang model.Language) (int, int, error)
	// ProcessFile 解析并摄入暂存目录中的一个本地文件。
	ProcessFile(ctx context.Context, path string, lang model.Language) error
	// UpdateSingleURL 重新抓取单个已入库 URL 并替换其内容。
	UpdateSingleURL(ctx context.Context, pageURL string) error
	// DeleteWebSources 按来源删除网页数据，内部按语言分组逐单元执行。
	DeleteWebSources(ctx context.Context, sources []string) error
	// DeleteFileSources 按来源删除文件数据，来源展开为 (source, page) 对。
	DeleteFileSources(ctx context.Context, sources []string) error
	ListWebPages() ([]model.WebPage, error)
	ListFilePages() ([]model.FilePage, error)
}

type ingestService struct {
	crawler     *crawler.Crawler
	processor   *textproc.Processor
	coordinator *pipeline.Coordinator
	webRepo     repository.WebPageRepository
	fileRepo    repository.FilePageRepository
	archive     bool // 是否把入库成功的原始文件归档到 MinIO
}

// NewIngestService 创建一个新的 IngestService 实例。
func NewIngestService(c *crawler.Crawler, p *textproc.Processor, coord *pipeline.Coordinator, webRepo repository.WebPageRepository, fileRepo repository.FilePageRepository, archive bool) IngestService {
	return &ingestService{
		crawler:     c,
		processor:   p,
		coordinator: coord,
		webRepo:     webRepo,
		fileRepo:    fileRepo,
		archive:     archive,
	}
}

// ProcessURL 执行一次完整的站点摄入：
// 台账快照 → BFS 抓取 → 按校验和分流 → 新文档单批插入 → 到期文档逐个更新。
func (s *ingestService) ProcessURL(ctx context.Context, rootURL string, maxPages int, autodownload bool, refreshDays *int, lang model.Language) (int, int, error) {
	if !lang.Valid() {
		return 0, 0, fmt.Errorf("不支持的语言: %q", lang)
	}

	ledger, err := s.webRepo.ActiveSources(time.Now())
	if err != nil {
		return 0, 0, fmt.Errorf("加载来源台账失败: %w", err)
	}

	docs, downloaded, err := s.crawler.Crawl(ctx, rootURL, maxPages, autodownload, ledger)
	if err != nil {
		return len(docs), len(downloaded), err
	}
	for _, doc := range docs {
		doc.Language = lang
	}

	newDocs, expiredDocs, upToDate := s.coordinator.Categorize(docs)
	log.Infof("[Ingest] 分流结果: new=%d, expired=%d, up_to_date=%d", len(newDocs), len(expiredDocs), len(upToDate))

	// 一次抓取的全部新文档构成一个插入单元。
	if len(newDocs) > 0 {
		s.processor.Clean(newDocs)
		chunks := s.processor.Split(newDocs)
		pages := make([]pipeline.WebPageInfo, 0, len(newDocs))
		for _, doc := range newDocs {
			pages = append(pages, pipeline.WebPageInfo{
				Source:      doc.Source,
				RefreshDays: refreshDays,
				Language:    lang,
			})
		}
		if _, err := s.coordinator.InsertWebPages(ctx, pages, chunks, lang); err != nil {
			return len(docs), len(downloaded), fmt.Errorf("插入新网页失败: %w", err)
		}
	}

	// 每个到期文档是独立的更新单元，单元失败不影响其余文档。
	for _, doc := range expiredDocs {
		if err := s.updateWebDoc(ctx, doc); err != nil {
			log.Errorf("[Ingest] 更新到期网页失败: source=%s, err=%v", doc.Source, err)
		}
	}

	return len(docs), len(downloaded), nil
}

// UpdateSingleURL 重新抓取单个 URL 并以一个更新单元替换其内容。
func (s *ingestService) UpdateSingleURL(ctx context.Context, pageURL string) error {
	lang, err := s.webRepo.LanguageBySource(pageURL)
	if err != nil {
		return fmt.Errorf("查询来源语言失败: %w", err)
	}
	doc, err := s.crawler.LoadSingle(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("重新抓取页面失败: %w", err)
	}
	doc.Language = lang
	return s.updateWebDoc(ctx, doc)
}

func (s *ingestService) updateWebDoc(ctx context.Context, doc *model.Document) error {
	batch := []*model.Document{doc}
	s.processor.Clean(batch)
	chunks := s.processor.Split(batch)
	_, err := s.coordinator.UpdateWebPage(ctx, doc.Source, chunks)
	return err
}

// ProcessFile 摄入单个本地文件。来源已存在时直接跳过；
// 解析失败原样返回给调用方处理。
func (s *ingestService) ProcessFile(ctx context.Context, path string, lang model.Language) error {
	if !lang.Valid() {
		return fmt.Errorf("不支持的语言: %q", lang)
	}

	exists, err := s.fileRepo.SourceExists(path)
	if err != nil {
		return fmt.Errorf("检查文件来源是否存在失败: %w", err)
	}
	if exists {
		log.Infof("[Ingest] 文件来源已存在，跳过: %s", path)
		return nil
	}

	docs, err := parser.Parse(path, lang)
	if err != nil {
		return err
	}

	s.processor.Clean(docs)
	chunks := s.processor.Split(docs)
	pages := make([]pipeline.FilePageInfo, 0, len(docs))
	for _, doc := range docs {
		pages = append(pages, pipeline.FilePageInfo{
			Source:   doc.Source,
			Page:     doc.Page,
			Language: lang,
		})
	}
	if _, err := s.coordinator.InsertFilePages(ctx, pages, chunks, lang); err != nil {
		return fmt.Errorf("插入文件页失败: %w", err)
	}

	if s.archive {
		// 归档失败不回滚已提交的摄入，只记录日志。
		if err := storage.ArchiveFile(ctx, path); err != nil {
			log.Errorf("[Ingest] 归档原始文件失败: %s, %v", path, err)
		}
	}
	return nil
}

// DeleteWebSources 按来源存储的语言分组，每组一个删除单元。
func (s *ingestService) DeleteWebSources(ctx context.Context, sources []string) error {
	grouped, err := s.webRepo.GroupSourcesByLanguage(sources)
	if err != nil {
		return fmt.Errorf("按语言分组来源失败: %w", err)
	}
	for lang, group := range grouped {
		if err := s.coordinator.DeleteWebPages(ctx, group, lang); err != nil {
			return err
		}
	}
	return nil
}

// DeleteFileSources 把每个来源展开为它的 (source, page) 对后按语言分组删除。
func (s *ingestService) DeleteFileSources(ctx context.Context, sources []string) error {
	var pairs []model.SourcePage
	for _, source := range sources {
		p, err := s.fileRepo.PagesBySource(source)
		if err != nil {
			return fmt.Errorf("查询文件页失败: %w", err)
		}
		pairs = append(pairs, p...)
	}
	grouped, err := s.fileRepo.GroupPagesByLanguage(pairs)
	if err != nil {
		return fmt.Errorf("按语言分组文件页失败: %w", err)
	}
	for lang, group := range grouped {
		if err := s.coordinator.DeleteFilePages(ctx, group, lang); err != nil {
			return err
		}
	}
	return nil
}

// ListWebPages 返回全部网页元数据行。
func (s *ingestService) ListWebPages() ([]model.WebPage, error) {
	return s.webRepo.ListPages()
}

// ListFilePages 返回全部文件页元数据行。
func (s *ingestService) ListFilePages() ([]model.FilePage, error) {
	return s.fileRepo.ListPages()
}

// FileTaskProcessor 把 IngestService 适配成 Kafka 消费者需要的处理器。
type FileTaskProcessor struct {
	Ingest IngestService
}

// Process 处理一个文件入库任务。
func (p *FileTaskProcessor) Process(ctx context.Context, task tasks.FileIngestTask) error {
	lang, err := model.ParseLanguage(task.Language)
	if err != nil {
		return err
	}
	return p.Ingest.ProcessFile(ctx, task.Path, lang)
}
