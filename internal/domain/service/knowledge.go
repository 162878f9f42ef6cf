package service

import (
	"context"
)

// KnowledgeBlock 注入提示词的一段知识内容
type KnowledgeBlock struct {
	Name     string
	FileType string
	Content  string
}

// KnowledgeProvider 按会话配置装配知识内容
type KnowledgeProvider interface {
	// Load 加载用户名下指定知识文件的内容，缺失的 ID 跳过不报错
	Load(ctx context.Context, userID string, fileIDs []string) ([]KnowledgeBlock, error)
}
