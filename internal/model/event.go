package model

import (
	"errors"
	"time"
)

// EventModel 生命周期事件数据模型
// 通知协作方的尽力投递队列,失败不影响生命周期事务
type EventModel struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	PermitID   string    `gorm:"type:varchar(64);not null;index" json:"permit_id"`
	Type       string    `gorm:"type:varchar(32);not null" json:"type"` // permit.created/permit.decided 等
	Data       []byte    `gorm:"type:jsonb;not null" json:"data"`
	Status     string    `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"` // pending/success/failed
	RetryCount int       `gorm:"default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

// TableName 指定表名
func (EventModel) TableName() string {
	return "events"
}

// Validate 验证事件模型
func (em *EventModel) Validate() error {
	if em.ID == "" {
		return errors.New("event ID is required")
	}
	if em.PermitID == "" {
		return errors.New("permit ID is required")
	}
	if em.Type == "" {
		return errors.New("event type is required")
	}
	if len(em.Data) == 0 {
		return errors.New("event data is required")
	}
	return nil
}
