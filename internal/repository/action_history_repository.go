package repository

import (
	"github.com/mautops/permit-gin/internal/model"
	"gorm.io/gorm"
)

// ActionHistoryRepository 操作历史仓储接口
// 只提供追加与查询,历史条目写入后不可变
type ActionHistoryRepository interface {
	Append(entry *model.ActionHistoryModel) error
	FindByPermitID(permitID string) ([]*model.ActionHistoryModel, error)
	FindByAction(action string) ([]*model.ActionHistoryModel, error)
}

// actionHistoryRepository 操作历史仓储实现
type actionHistoryRepository struct {
	db *gorm.DB
}

// NewActionHistoryRepository 创建操作历史仓储
func NewActionHistoryRepository(db *gorm.DB) ActionHistoryRepository {
	return &actionHistoryRepository{db: db}
}

// Append 追加操作历史
func (r *actionHistoryRepository) Append(entry *model.ActionHistoryModel) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	return r.db.Create(entry).Error
}

// FindByPermitID 查找许可单的操作历史,按时间升序返回
func (r *actionHistoryRepository) FindByPermitID(permitID string) ([]*model.ActionHistoryModel, error) {
	var entries []*model.ActionHistoryModel
	err := r.db.Where("permit_id = ?", permitID).Order("created_at ASC").Find(&entries).Error
	return entries, err
}

// FindByAction 根据动作类型查找操作历史
func (r *actionHistoryRepository) FindByAction(action string) ([]*model.ActionHistoryModel, error) {
	var entries []*model.ActionHistoryModel
	err := r.db.Where("action = ?", action).Order("created_at DESC").Find(&entries).Error
	return entries, err
}
