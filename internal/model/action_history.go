package model

import (
	"errors"
	"time"
)

// ActionHistoryModel 操作历史数据模型
// 只追加,写入后不再更新或删除
type ActionHistoryModel struct {
	ID              string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	PermitID        string    `gorm:"type:varchar(64);not null;index" json:"permit_id"`
	Action          string    `gorm:"type:varchar(32);not null;index" json:"action"` // REVOKED/REAPPROVED/EXTENDED/CLOSED
	PerformedBy     string    `gorm:"type:varchar(64);not null" json:"performed_by"`
	PerformedByName string    `gorm:"type:varchar(128)" json:"performed_by_name,omitempty"`
	PerformedByRole string    `gorm:"type:varchar(64)" json:"performed_by_role,omitempty"`
	Comment         string    `gorm:"type:text" json:"comment,omitempty"`
	PreviousStatus  string    `gorm:"type:varchar(32);not null" json:"previous_status"`
	NewStatus       string    `gorm:"type:varchar(32);not null" json:"new_status"`
	Signature       string    `gorm:"type:text" json:"signature,omitempty"` // 可选签名
	CreatedAt       time.Time `gorm:"not null;index" json:"created_at"`
}

// TableName 指定表名
func (ActionHistoryModel) TableName() string {
	return "action_history"
}

// Validate 验证操作历史模型
func (ahm *ActionHistoryModel) Validate() error {
	if ahm.ID == "" {
		return errors.New("history ID is required")
	}
	if ahm.PermitID == "" {
		return errors.New("permit ID is required")
	}
	if ahm.Action == "" {
		return errors.New("action is required")
	}
	if ahm.PerformedBy == "" {
		return errors.New("performer is required")
	}
	if ahm.NewStatus == "" {
		return errors.New("new status is required")
	}
	return nil
}
