// Package knowledge 提供知识内容装配实现
package knowledge

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mygads/genovaai-server-sub000/internal/domain/repository"
	"github.com/mygads/genovaai-server-sub000/internal/domain/service"
	"github.com/mygads/genovaai-server-sub000/internal/infrastructure/persistence/redis"
	"github.com/mygads/genovaai-server-sub000/pkg/logger"
)

var tracer = otel.Tracer("knowledge")

const cacheTTL = 10 * time.Minute

// Provider 基于数据库的知识内容装配器，文件内容经 Redis 缓存
type Provider struct {
	files repository.KnowledgeFileRepository
	cache *redis.Cache
}

// NewProvider 创建知识装配器
func NewProvider(files repository.KnowledgeFileRepository, cache *redis.Cache) *Provider {
	return &Provider{files: files, cache: cache}
}

var _ service.KnowledgeProvider = (*Provider)(nil)

// Load 加载用户名下指定知识文件的内容。
// 不存在或不属于该用户的 ID 静默跳过，装配失败不阻断问答主流程。
func (p *Provider) Load(ctx context.Context, userID string, fileIDs []string) ([]service.KnowledgeBlock, error) {
	ctx, span := tracer.Start(ctx, "knowledge.Provider.Load",
		trace.WithAttributes(attribute.Int("knowledge.requested", len(fileIDs))))
	defer span.End()

	if len(fileIDs) == 0 {
		return nil, nil
	}

	blocks := make([]service.KnowledgeBlock, 0, len(fileIDs))
	missing := make([]string, 0)

	for _, id := range fileIDs {
		block, ok := p.fromCache(ctx, userID, id)
		if ok {
			blocks = append(blocks, block)
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		files, err := p.files.GetByIDs(ctx, userID, missing)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		for _, f := range files {
			block := service.KnowledgeBlock{
				Name:     f.Name,
				FileType: f.FileType,
				Content:  f.ExtractedText,
			}
			blocks = append(blocks, block)
			p.toCache(ctx, userID, f.ID, block)
		}
	}

	span.SetAttributes(attribute.Int("knowledge.loaded", len(blocks)))
	return blocks, nil
}

func (p *Provider) fromCache(ctx context.Context, userID, fileID string) (service.KnowledgeBlock, bool) {
	var block service.KnowledgeBlock
	if p.cache == nil {
		return block, false
	}
	raw, err := p.cache.Get(ctx, redis.BuildKnowledgeKey(userID, fileID))
	if err != nil {
		return block, false
	}
	if err := json.Unmarshal(raw, &block); err != nil {
		return block, false
	}
	return block, true
}

func (p *Provider) toCache(ctx context.Context, userID, fileID string, block service.KnowledgeBlock) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Set(ctx, redis.BuildKnowledgeKey(userID, fileID), block, cacheTTL); err != nil {
		// 缓存失败只记日志
		logger.Warn(ctx, "failed to cache knowledge file", "file_id", fileID, "error", err)
	}
}
