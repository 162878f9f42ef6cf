// Package entity 定义领域实体
package entity

import "time"

// KnowledgeFile 已抽取文本的知识文件（由外部上传/抽取服务写入，这里只读）
type KnowledgeFile struct {
	ID            string    `json:"id" gorm:"type:uuid;primaryKey"`
	UserID        string    `json:"user_id" gorm:"type:uuid;index;not null"`
	Name          string    `json:"name" gorm:"type:varchar(255);not null"`
	FileType      string    `json:"file_type" gorm:"type:varchar(32)"`
	ExtractedText string    `json:"extracted_text" gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (KnowledgeFile) TableName() string {
	return "knowledge_files"
}
