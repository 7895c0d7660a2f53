package pipeline

import (
	"github.com/szhou12/rag-clean-energy/internal/model"
	"github.com/szhou12/rag-clean-energy/pkg/log"
)

// Categorize 按元数据库中的状态把抓取到的文档分为三类：
// 未入库的为 new；已入库且到刷新期的为 expired；其余为 up-to-date。
// 分类只读元数据库，单条查询失败时该文档被保守地当作 up-to-date 跳过。
func (c *Coordinator) Categorize(docs []*model.Document) (newDocs, expiredDocs, upToDateDocs []*model.Document) {
	now := c.now()
	for _, doc := range docs {
		page, err := c.webRepo.FindByChecksum(model.SourceChecksum(doc.Source))
		if err != nil {
			log.Warnf("[Pipeline] 查询文档元数据失败，跳过分类: %s, err=%v", doc.Source, err)
			upToDateDocs = append(upToDateDocs, doc)
			continue
		}
		switch {
		case page == nil:
			newDocs = append(newDocs, doc)
		case page.IsRefreshNeeded(now):
			expiredDocs = append(expiredDocs, doc)
		default:
			upToDateDocs = append(upToDateDocs, doc)
		}
	}
	log.Infof("[Pipeline] 文档分类完成: new=%d, expired=%d, up_to_date=%d",
		len(newDocs), len(expiredDocs), len(upToDateDocs))
	return newDocs, expiredDocs, upToDateDocs
}
