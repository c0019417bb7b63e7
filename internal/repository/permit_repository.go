package repository

import (
	"time"

	"github.com/mautops/permit-gin/internal/model"
	"gorm.io/gorm"
)

// PermitRepository 许可单仓储接口
type PermitRepository interface {
	Create(permit *model.PermitModel) error
	Save(permit *model.PermitModel) error
	FindByID(id string) (*model.PermitModel, error)
	FindByNumber(number string) (*model.PermitModel, error)
	List(status string, workType string, orderClause string, offset int, limit int) ([]*model.PermitModel, int64, error)
	FindExpiredRegular(now time.Time) ([]*model.PermitModel, error)
	FindExpiredExtended(now time.Time) ([]*model.PermitModel, error)
	CloseExpired(id string, expectedStatus string, now time.Time) (bool, error)
}

// permitRepository 许可单仓储实现
type permitRepository struct {
	db *gorm.DB
}

// NewPermitRepository 创建许可单仓储
func NewPermitRepository(db *gorm.DB) PermitRepository {
	return &permitRepository{db: db}
}

// Create 创建许可单
func (r *permitRepository) Create(permit *model.PermitModel) error {
	return r.db.Create(permit).Error
}

// Save 保存许可单
func (r *permitRepository) Save(permit *model.PermitModel) error {
	return r.db.Save(permit).Error
}

// FindByID 根据 ID 查找许可单
func (r *permitRepository) FindByID(id string) (*model.PermitModel, error) {
	var permit model.PermitModel
	if err := r.db.Where("id = ?", id).First(&permit).Error; err != nil {
		return nil, err
	}
	return &permit, nil
}

// FindByNumber 根据编号查找许可单
func (r *permitRepository) FindByNumber(number string) (*model.PermitModel, error) {
	var permit model.PermitModel
	if err := r.db.Where("permit_number = ?", number).First(&permit).Error; err != nil {
		return nil, err
	}
	return &permit, nil
}

// List 分页查询许可单
// orderClause 必须由调用方先经过排序字段白名单校验
func (r *permitRepository) List(status string, workType string, orderClause string, offset int, limit int) ([]*model.PermitModel, int64, error) {
	query := r.db.Model(&model.PermitModel{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if workType != "" {
		query = query.Where("work_type = ?", workType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if orderClause == "" {
		orderClause = "created_at DESC"
	}

	var permits []*model.PermitModel
	err := query.Order(orderClause).Offset(offset).Limit(limit).Find(&permits).Error
	return permits, total, err
}

// FindExpiredRegular 查找未延期且已过截止日期的 APPROVED 许可单
func (r *permitRepository) FindExpiredRegular(now time.Time) ([]*model.PermitModel, error) {
	var permits []*model.PermitModel
	err := r.db.
		Where("status = ?", "APPROVED").
		Where("is_extended = ?", false).
		Where("end_date <= ?", now).
		Where("closed_at IS NULL").
		Find(&permits).Error
	return permits, err
}

// FindExpiredExtended 查找已延期且延期已过截止的许可单
func (r *permitRepository) FindExpiredExtended(now time.Time) ([]*model.PermitModel, error) {
	var permits []*model.PermitModel
	err := r.db.
		Where("status IN ?", []string{"EXTENDED", "REAPPROVED"}).
		Where("is_extended = ?", true).
		Where("extended_until <= ?", now).
		Where("closed_at IS NULL").
		Find(&permits).Error
	return permits, err
}

// CloseExpired 带守卫条件的单行关闭
// WHERE 同时检查期望状态与 closed_at IS NULL,并发的手工操作赢得竞争时
// 返回 false 而不是覆盖其结果,同一行不会被关闭两次
func (r *permitRepository) CloseExpired(id string, expectedStatus string, now time.Time) (bool, error) {
	res := r.db.Model(&model.PermitModel{}).
		Where("id = ?", id).
		Where("status = ?", expectedStatus).
		Where("closed_at IS NULL").
		Updates(map[string]interface{}{
			"status":         "CLOSED",
			"closed_at":      now,
			"auto_closed_at": now,
			"updated_at":     now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
