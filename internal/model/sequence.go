package model

import (
	"errors"
	"time"
)

// SequenceCounterModel 许可单编号计数器数据模型
// 每个 (前缀, 月份) 桶一行,值只增不减,即使许可单被外部删除也不回收
type SequenceCounterModel struct {
	Prefix    string    `gorm:"primaryKey;type:varchar(32)"`
	MonthKey  string    `gorm:"primaryKey;type:varchar(16)"` // 如 "FEB 2024"
	Value     int64     `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (SequenceCounterModel) TableName() string {
	return "permit_sequences"
}

// Validate 验证计数器模型
func (scm *SequenceCounterModel) Validate() error {
	if scm.Prefix == "" {
		return errors.New("sequence prefix is required")
	}
	if scm.MonthKey == "" {
		return errors.New("sequence month key is required")
	}
	if scm.Value < 0 {
		return errors.New("sequence value must not be negative")
	}
	return nil
}
