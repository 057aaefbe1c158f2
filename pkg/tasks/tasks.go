// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// IngestTask 表示一个异步入库任务：原文已归档到对象存储，
// 消费者按 ObjectName 取回后执行完整入库流水线。
type IngestTask struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	ObjectName string `json:"object_name"`
}
