// Package pipeline 实现了双存储一致性层的协调器。
// 向量库（Elasticsearch）和元数据库（MySQL）之间没有共享事务管理器，
// 每个逻辑工作单元（批量插入、单文档更新、批量删除）都按手工两阶段提交执行：
// 关系事务回滚廉价可靠，作为内层；向量侧的补偿写是易错动作，放在外层收尾。
// 补偿本身失败时记录为致命不一致，只能人工对账，协调器不再自动修复。
package pipeline

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/szhou12/rag-clean-energy/internal/model"
	"github.com/szhou12/rag-clean-energy/internal/repository"
	"github.com/szhou12/rag-clean-energy/internal/vectorstore"
	"github.com/szhou12/rag-clean-energy/pkg/log"
)

// ErrInconsistent 表示补偿动作失败，两个存储之间出现了无法自动修复的不一致。
var ErrInconsistent = errors.New("向量库与元数据库状态不一致，需要人工对账")

// uowState 是工作单元状态机的状态名，状态迁移全部写入日志以便审计。
type uowState string

const (
	stateStart           uowState = "start"
	stateEmbedded        uowState = "embedded"
	stateOldSnapshotted  uowState = "old_snapshotted"
	stateOldDeleted      uowState = "old_deleted"
	stateNewWritten      uowState = "new_written"
	stateMetadataWritten uowState = "metadata_written"
	stateCommitted       uowState = "committed"
	stateCompensating    uowState = "compensating"
	stateFailed          uowState = "failed"
)

// unit 跟踪单个工作单元的状态，迁移时记日志。
type unit struct {
	op string
	st uowState
}

func newUnit(op string) *unit {
	u := &unit{op: op, st: stateStart}
	log.Infof("[Pipeline] %s: state=%s", op, stateStart)
	return u
}

func (u *unit) to(st uowState) {
	u.st = st
	log.Infof("[Pipeline] %s: state=%s", u.op, st)
}

// WebPageInfo 描述一条待插入的网页元数据。
type WebPageInfo struct {
	Source      string
	RefreshDays *int
	Language    model.Language
}

// FilePageInfo 描述一条待插入的文件页元数据。
type FilePageInfo struct {
	Source   string
	Page     string
	Language model.Language
}

// Coordinator 按工作单元协调向量库与元数据库的写入。
type Coordinator struct {
	db       *gorm.DB
	webRepo  repository.WebPageRepository
	fileRepo repository.FilePageRepository
	stores   map[model.Language]vectorstore.Store
	locks    *sourceLocks
	now      func() time.Time
}

// NewCoordinator 创建协调器。每个受支持语言都必须有对应的向量库分区，
// 构造期校验一次，调用期不再按字符串查找。
func NewCoordinator(
	db *gorm.DB,
	webRepo repository.WebPageRepository,
	fileRepo repository.FilePageRepository,
	stores map[model.Language]vectorstore.Store,
) (*Coordinator, error) {
	for _, lang := range model.Languages {
		if stores[lang] == nil {
			return nil, errors.New("缺少语言分区的向量库: " + string(lang))
		}
	}
	return &Coordinator{
		db:       db,
		webRepo:  webRepo,
		fileRepo: fileRepo,
		stores:   stores,
		locks:    newSourceLocks(),
		now:      time.Now,
	}, nil
}

// store 返回语言对应的向量库分区。语言在构造期已校验。
func (c *Coordinator) store(lang model.Language) (vectorstore.Store, error) {
	s, ok := c.stores[lang]
	if !ok {
		return nil, errors.New("不支持的语言: " + string(lang))
	}
	return s, nil
}
