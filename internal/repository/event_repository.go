package repository

import (
	"github.com/mautops/permit-gin/internal/model"
	"gorm.io/gorm"
)

// EventRepository 事件仓储接口
type EventRepository interface {
	Save(event *model.EventModel) error
	FindByPermitID(permitID string) ([]*model.EventModel, error)
	FindPending(limit int) ([]*model.EventModel, error)
}

// eventRepository 事件仓储实现
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository 创建事件仓储
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// Save 保存事件
func (r *eventRepository) Save(event *model.EventModel) error {
	return r.db.Save(event).Error
}

// FindByPermitID 查找许可单的事件
func (r *eventRepository) FindByPermitID(permitID string) ([]*model.EventModel, error) {
	var events []*model.EventModel
	err := r.db.Where("permit_id = ?", permitID).Order("created_at ASC").Find(&events).Error
	return events, err
}

// FindPending 查找待投递事件
func (r *eventRepository) FindPending(limit int) ([]*model.EventModel, error) {
	var events []*model.EventModel
	err := r.db.Where("status = ?", "pending").Order("created_at ASC").Limit(limit).Find(&events).Error
	return events, err
}
