// Package es 提供了与 Elasticsearch 交互的客户端初始化功能。
package es

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/szhou12/rag-clean-energy/internal/config"
	"github.com/szhou12/rag-clean-energy/internal/model"
	"github.com/szhou12/rag-clean-energy/pkg/log"
)

var ESClient *elasticsearch.Client

// InitES 初始化 Elasticsearch 客户端，并确保每个语言索引存在。
func InitES(esCfg config.ElasticsearchConfig, dims int) error {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client

	for lang, indexName := range map[model.Language]string{
		model.LanguageEN: esCfg.IndexEN,
		model.LanguageZH: esCfg.IndexZH,
	} {
		if err := createIndexIfNotExists(indexName, lang, dims); err != nil {
			return err
		}
	}
	return nil
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则按语言创建。
// 中文索引使用 ik 分词器，英文索引使用 standard 分词器。
func createIndexIfNotExists(indexName string, lang model.Language, dims int) error {
	res, err := ESClient.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("检查索引 '%s' 是否存在时出错: %v", indexName, err)
		return err
	}
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引 '%s' 时收到意外的状态码: %d", indexName, res.StatusCode)
	}

	analyzer, searchAnalyzer := "standard", "standard"
	if lang == model.LanguageZH {
		analyzer, searchAnalyzer = "ik_max_word", "ik_smart"
	}

	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"chunk_id": { "type": "keyword" },
				"source": { "type": "keyword" },
				"page": { "type": "keyword" },
				"language": { "type": "keyword" },
				"content": {
					"type": "text",
					"analyzer": "%s",
					"search_analyzer": "%s"
				},
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"model_version": { "type": "keyword" }
			}
		}
	}`, analyzer, searchAnalyzer, dims)

	res, err = ESClient.Indices.Create(
		indexName,
		ESClient.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	if res.IsError() {
		return fmt.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, res.String())
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}
