package model

import (
	"errors"
	"time"
)

// ApprovalRecordModel 审批记录数据模型
// 一条记录属于且仅属于一个许可单;重新审批追加新记录,历史按插入顺序保留
type ApprovalRecordModel struct {
	ID           string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	PermitID     string     `gorm:"type:varchar(64);not null;index" json:"permit_id"`
	Decision     string     `gorm:"type:varchar(32);not null;index" json:"decision"` // PENDING/APPROVED/REJECTED/REAPPROVED
	ApproverName string     `gorm:"type:varchar(128)" json:"approver_name,omitempty"`
	Comment      string     `gorm:"type:text" json:"comment,omitempty"`
	Signature    string     `gorm:"type:text" json:"signature,omitempty"` // 签名摘要
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	SignedAt     *time.Time `json:"signed_at,omitempty"`
	CreatedAt    time.Time  `gorm:"not null;index" json:"created_at"`
}

// TableName 指定表名
func (ApprovalRecordModel) TableName() string {
	return "approval_records"
}

// Validate 验证审批记录模型
func (arm *ApprovalRecordModel) Validate() error {
	if arm.ID == "" {
		return errors.New("record ID is required")
	}
	if arm.PermitID == "" {
		return errors.New("permit ID is required")
	}
	if arm.Decision == "" {
		return errors.New("approval decision is required")
	}
	return nil
}
