// Package tasks 定义了通过 Kafka 传递的异步任务结构。
package tasks

// FileIngestTask 表示一个待入库的本地文件任务。
// Path 指向暂存目录中的文件，Language 决定向量写入哪个语言分区。
type FileIngestTask struct {
	Path     string `json:"path"`
	Language string `json:"language"`
}
