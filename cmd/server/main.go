// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/szhou12/rag-clean-energy/internal/config"
	"github.com/szhou12/rag-clean-energy/internal/crawler"
	"github.com/szhou12/rag-clean-energy/internal/handler"
	"github.com/szhou12/rag-clean-energy/internal/middleware"
	"github.com/szhou12/rag-clean-energy/internal/model"
	"github.com/szhou12/rag-clean-energy/internal/parser"
	"github.com/szhou12/rag-clean-energy/internal/pipeline"
	"github.com/szhou12/rag-clean-energy/internal/repository"
	"github.com/szhou12/rag-clean-energy/internal/service"
	"github.com/szhou12/rag-clean-energy/internal/textproc"
	"github.com/szhou12/rag-clean-energy/internal/vectorstore"
	"github.com/szhou12/rag-clean-energy/pkg/database"
	"github.com/szhou12/rag-clean-energy/pkg/embedding"
	"github.com/szhou12/rag-clean-energy/pkg/es"
	"github.com/szhou12/rag-clean-energy/pkg/kafka"
	"github.com/szhou12/rag-clean-energy/pkg/log"
	"github.com/szhou12/rag-clean-energy/pkg/storage"
	"github.com/szhou12/rag-clean-energy/pkg/tasks"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、MinIO、Elasticsearch 和 Kafka
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	webRepo := repository.NewWebPageRepository(database.DB)
	fileRepo := repository.NewFilePageRepository(database.DB)

	// 5. 初始化向量存储：每种语言一个独立索引
	embeddingClient := embedding.NewClient(cfg.Embedding)
	stores := map[model.Language]vectorstore.Store{
		model.LanguageEN: vectorstore.NewESStore(es.ESClient, cfg.Elasticsearch.IndexEN, model.LanguageEN, embeddingClient, cfg.Embedding.Model),
		model.LanguageZH: vectorstore.NewESStore(es.ESClient, cfg.Elasticsearch.IndexZH, model.LanguageZH, embeddingClient, cfg.Embedding.Model),
	}

	// 6. 初始化协调器与业务服务 (依赖注入)
	coordinator, err := pipeline.NewCoordinator(database.DB, webRepo, fileRepo, stores)
	if err != nil {
		log.Fatalf("初始化协调器失败: %v", err)
	}
	webCrawler := crawler.New(cfg.Crawler)
	processor := textproc.New(cfg.Splitter)
	ingestService := service.NewIngestService(webCrawler, processor, coordinator, webRepo, fileRepo, true)

	// 7. 启动后台 Kafka 消费者
	go kafka.StartConsumer(cfg.Kafka, &service.FileTaskProcessor{Ingest: ingestService})

	// 7.1 初始化导入 initfile 目录：已入库的文件会在消费端按来源跳过
	go enqueueSeedFiles("initfile", model.LanguageEN)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	ingestHandler := handler.NewIngestHandler(ingestService, cfg.Crawler.StagingDir)
	apiV1 := r.Group("/api/v1")
	{
		ingest := apiV1.Group("/ingest")
		{
			ingest.POST("/url", ingestHandler.IngestURL)
			ingest.POST("/file", ingestHandler.IngestFile)
		}

		web := apiV1.Group("/web")
		{
			web.GET("", ingestHandler.ListWebPages)
			web.POST("/refresh", ingestHandler.RefreshURL)
			web.DELETE("", ingestHandler.DeleteWebSources)
		}

		files := apiV1.Group("/files")
		{
			files.GET("", ingestHandler.ListFilePages)
			files.DELETE("", ingestHandler.DeleteFileSources)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// Kafka 消费者是一个阻塞循环，会随进程退出自然结束。
	log.Info("服务已优雅关闭")
}

// enqueueSeedFiles 扫描目录下受支持的文件并发送入库任务（幂等，
// 消费端按来源去重）。目录不存在时静默跳过。
func enqueueSeedFiles(dir string, lang model.Language) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Infof("enqueueSeedFiles: 目录 '%s' 不存在或不可用，跳过初始化导入", dir)
		return
	}

	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if _, err := parser.KindForPath(path); err != nil {
			log.Infof("enqueueSeedFiles: 不支持的文件类型，跳过: %s", path)
			return nil
		}
		task := tasks.FileIngestTask{Path: path, Language: string(lang)}
		if err := kafka.ProduceFileTask(task); err != nil {
			log.Warnf("enqueueSeedFiles: 发送任务失败: %s, err=%v", path, err)
			return nil
		}
		log.Infof("enqueueSeedFiles: 已提交入库任务: %s", path)
		return nil
	})
	if walkErr != nil {
		log.Warnf("enqueueSeedFiles: 遍历目录发生错误: %v", walkErr)
	}
}
