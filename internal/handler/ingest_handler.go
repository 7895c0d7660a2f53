// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/szhou12/rag-clean-energy/internal/model"
	"github.com/szhou12/rag-clean-energy/internal/parser"
	"github.com/szhou12/rag-clean-energy/internal/service"
	"github.com/szhou12/rag-clean-energy/pkg/kafka"
	"github.com/szhou12/rag-clean-energy/pkg/log"
	"github.com/szhou12/rag-clean-energy/pkg/tasks"
)

// IngestURLRequest 是摄入站点接口的请求体。
type IngestURLRequest struct {
	URL          string `json:"url" binding:"required"`
	MaxPages     int    `json:"max_pages"`
	Autodownload bool   `json:"autodownload"`
	RefreshDays  *int   `json:"refresh_days"`
	Language     string `json:"language" binding:"required"`
}

// RefreshURLRequest 是刷新单个页面接口的请求体。
type RefreshURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// DeleteSourcesRequest 是删除接口的请求体。
type DeleteSourcesRequest struct {
	Sources []string `json:"sources" binding:"required"`
}

// IngestHandler 负责处理所有与数据摄入相关的 API 请求。
type IngestHandler struct {
	ingestService service.IngestService
	stagingDir    string
}

// NewIngestHandler 创建一个新的 IngestHandler 实例。
func NewIngestHandler(ingestService service.IngestService, stagingDir string) *IngestHandler {
	return &IngestHandler{
		ingestService: ingestService,
		stagingDir:    stagingDir,
	}
}

// IngestURL 处理站点摄入请求：同步抓取并入库。
func (h *IngestHandler) IngestURL(c *gin.Context) {
	var req IngestURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效: " + err.Error()})
		return
	}
	lang, err := model.ParseLanguage(req.Language)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	numDocs, numFiles, err := h.ingestService.ProcessURL(c.Request.Context(), req.URL, req.MaxPages, req.Autodownload, req.RefreshDays, lang)
	if err != nil {
		log.Error("IngestURL: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "站点摄入失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "站点摄入完成",
		"data": gin.H{
			"num_documents": numDocs,
			"num_files":     numFiles,
		},
	})
}

// IngestFile 处理文件上传请求：文件落到暂存目录后发送异步任务，
// 由 Kafka 消费者完成解析和入库。
func (h *IngestHandler) IngestFile(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少上传文件"})
		return
	}
	lang, err := model.ParseLanguage(c.PostForm("language"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// 先验证扩展名，不支持的类型直接拒绝，不留暂存文件。
	if _, err := parser.KindForPath(file.Filename); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dest := filepath.Join(h.stagingDir, filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, dest); err != nil {
		log.Error("IngestFile: 保存上传文件失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存上传文件失败"})
		return
	}

	task := tasks.FileIngestTask{Path: dest, Language: string(lang)}
	if err := kafka.ProduceFileTask(task); err != nil {
		log.Error("IngestFile: 发送 Kafka 任务失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "提交文件任务失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "文件已接收，正在后台处理",
		"data":    gin.H{"path": dest},
	})
}

// RefreshURL 处理单个页面的强制刷新请求。
func (h *IngestHandler) RefreshURL(c *gin.Context) {
	var req RefreshURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效: " + err.Error()})
		return
	}

	if err := h.ingestService.UpdateSingleURL(c.Request.Context(), req.URL); err != nil {
		log.Error("RefreshURL: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "页面刷新失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "页面刷新成功",
	})
}

// DeleteWebSources 处理按来源删除网页数据的请求。
func (h *IngestHandler) DeleteWebSources(c *gin.Context) {
	var req DeleteSourcesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效: " + err.Error()})
		return
	}

	if err := h.ingestService.DeleteWebSources(c.Request.Context(), req.Sources); err != nil {
		log.Error("DeleteWebSources: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除网页数据失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "网页数据删除成功",
	})
}

// DeleteFileSources 处理按来源删除文件数据的请求。
func (h *IngestHandler) DeleteFileSources(c *gin.Context) {
	var req DeleteSourcesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数无效: " + err.Error()})
		return
	}

	if err := h.ingestService.DeleteFileSources(c.Request.Context(), req.Sources); err != nil {
		log.Error("DeleteFileSources: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除文件数据失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "文件数据删除成功",
	})
}

// ListWebPages 处理获取网页元数据列表的请求。
func (h *IngestHandler) ListWebPages(c *gin.Context) {
	pages, err := h.ingestService.ListWebPages()
	if err != nil {
		log.Error("ListWebPages: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取网页列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "获取网页列表成功",
		"data":    pages,
	})
}

// ListFilePages 处理获取文件页元数据列表的请求。
func (h *IngestHandler) ListFilePages(c *gin.Context) {
	pages, err := h.ingestService.ListFilePages()
	if err != nil {
		log.Error("ListFilePages: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取文件列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "获取文件列表成功",
		"data":    pages,
	})
}
