package repository

import (
	"context"

	"github.com/mygads/genovaai-server-sub000/internal/domain/entity"
)

// SettingRepository 系统配置数据访问接口
type SettingRepository interface {
	// Get 根据键获取配置项，不存在返回 (nil, nil)
	Get(ctx context.Context, key string) (*entity.Setting, error)
	// Set 写入配置项
	Set(ctx context.Context, setting *entity.Setting) error
}
