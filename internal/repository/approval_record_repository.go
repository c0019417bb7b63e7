package repository

import (
	"github.com/mautops/permit-gin/internal/model"
	"gorm.io/gorm"
)

// ApprovalRecordRepository 审批记录仓储接口
type ApprovalRecordRepository interface {
	Create(record *model.ApprovalRecordModel) error
	Save(record *model.ApprovalRecordModel) error
	FindByID(id string) (*model.ApprovalRecordModel, error)
	FindByPermitID(permitID string) ([]*model.ApprovalRecordModel, error)
	FindPendingByPermitID(permitID string) (*model.ApprovalRecordModel, error)
}

// approvalRecordRepository 审批记录仓储实现
type approvalRecordRepository struct {
	db *gorm.DB
}

// NewApprovalRecordRepository 创建审批记录仓储
func NewApprovalRecordRepository(db *gorm.DB) ApprovalRecordRepository {
	return &approvalRecordRepository{db: db}
}

// Create 创建审批记录
func (r *approvalRecordRepository) Create(record *model.ApprovalRecordModel) error {
	return r.db.Create(record).Error
}

// Save 保存审批记录
func (r *approvalRecordRepository) Save(record *model.ApprovalRecordModel) error {
	return r.db.Save(record).Error
}

// FindByID 根据 ID 查找审批记录
func (r *approvalRecordRepository) FindByID(id string) (*model.ApprovalRecordModel, error) {
	var record model.ApprovalRecordModel
	if err := r.db.Where("id = ?", id).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByPermitID 查找许可单的全部审批记录,按插入顺序返回
func (r *approvalRecordRepository) FindByPermitID(permitID string) ([]*model.ApprovalRecordModel, error) {
	var records []*model.ApprovalRecordModel
	err := r.db.Where("permit_id = ?", permitID).Order("created_at ASC").Find(&records).Error
	return records, err
}

// FindPendingByPermitID 查找许可单的待决记录
// 不变量保证同一许可单任意时刻至多一条 PENDING 记录
func (r *approvalRecordRepository) FindPendingByPermitID(permitID string) (*model.ApprovalRecordModel, error) {
	var record model.ApprovalRecordModel
	if err := r.db.Where("permit_id = ? AND decision = ?", permitID, "PENDING").First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}
