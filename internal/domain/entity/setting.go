// Package entity 定义领域实体
package entity

import "time"

// 系统配置键
const (
	SettingKeyExchangeRate = "credit_exchange_rate"
)

// Setting 系统配置项（key -> value 只读查询）
type Setting struct {
	Key       string    `json:"key" gorm:"type:varchar(64);primaryKey"`
	Value     string    `json:"value" gorm:"type:varchar(255);not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Setting) TableName() string {
	return "app_settings"
}
