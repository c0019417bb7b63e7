package model

import (
	"encoding/json"
	"errors"
	"time"
)

// PermitModel 作业许可单数据模型
// permit_number 上的唯一索引是编号不重复的数据库层防线
type PermitModel struct {
	ID               string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	PermitNumber     string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_permits_number" json:"permit_number"`
	Title            string          `gorm:"type:varchar(255);not null" json:"title"`
	WorkType         string          `gorm:"type:varchar(64);not null" json:"work_type"`
	Location         string          `gorm:"type:varchar(255)" json:"location"`
	Status           string          `gorm:"type:varchar(32);not null;index;index:idx_permits_status_end_date,priority:1" json:"status"`
	StartDate        time.Time       `gorm:"not null" json:"start_date"`
	EndDate          time.Time       `gorm:"not null;index:idx_permits_status_end_date,priority:2" json:"end_date"`
	IsExtended       bool            `gorm:"not null;default:false" json:"is_extended"`
	ExtendedUntil    *time.Time      `json:"extended_until,omitempty"`
	ClosedAt         *time.Time      `json:"closed_at,omitempty"`
	AutoClosedAt     *time.Time      `json:"auto_closed_at,omitempty"`
	ClosureChecklist json.RawMessage `gorm:"type:jsonb" json:"closure_checklist,omitempty" swaggertype:"object"`
	ClosureComments  string          `gorm:"type:text" json:"closure_comments,omitempty"`
	SafetyRemarks    string          `gorm:"type:text" json:"safety_remarks,omitempty"`
	RemarksAddedBy   string          `gorm:"type:varchar(64)" json:"remarks_added_by,omitempty"`
	RemarksAddedAt   *time.Time      `json:"remarks_added_at,omitempty"`
	OwnerID          string          `gorm:"type:varchar(64);not null;index" json:"owner_id"`
	CreatedBy        string          `gorm:"type:varchar(64)" json:"created_by"`
	CreatedAt        time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName 指定表名
func (PermitModel) TableName() string {
	return "permits"
}

// Validate 验证许可单模型
func (pm *PermitModel) Validate() error {
	if pm.ID == "" {
		return errors.New("permit ID is required")
	}
	if pm.PermitNumber == "" {
		return errors.New("permit number is required")
	}
	if pm.Title == "" {
		return errors.New("permit title is required")
	}
	if pm.Status == "" {
		return errors.New("permit status is required")
	}
	if pm.StartDate.IsZero() || pm.EndDate.IsZero() {
		return errors.New("permit validity window is required")
	}
	if pm.EndDate.Before(pm.StartDate) {
		return errors.New("permit end date must not precede start date")
	}
	if pm.OwnerID == "" {
		return errors.New("permit owner is required")
	}
	return nil
}

// ExpiresAt 当前生效的到期时间,延期后以 extended_until 为准
func (pm *PermitModel) ExpiresAt() time.Time {
	if pm.IsExtended && pm.ExtendedUntil != nil {
		return *pm.ExtendedUntil
	}
	return pm.EndDate
}
