package service

import (
	"context"
	"errors"

	"github.com/mautops/permit-gin/internal/lifecycle"
	"github.com/mautops/permit-gin/internal/model"
	"github.com/mautops/permit-gin/internal/repository"
	"github.com/mautops/permit-gin/internal/utils"
	"gorm.io/gorm"
)

// PermitAggregate 许可单聚合视图
// 供 PDF/导出协作方消费的只读聚合
// @Description 许可单及其完整审批与操作历史
type PermitAggregate struct {
	Permit        *model.PermitModel           `json:"permit"`
	Approvals     []*model.ApprovalRecordModel `json:"approvals"`
	ActionHistory []*model.ActionHistoryModel  `json:"action_history"`
}

// ListPermitsQuery 许可单列表查询参数
type ListPermitsQuery struct {
	Status    string
	WorkType  string
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

// sortableFields 列表查询允许的排序字段白名单
var sortableFields = map[string]bool{
	"created_at":    true,
	"updated_at":    true,
	"end_date":      true,
	"start_date":    true,
	"permit_number": true,
	"status":        true,
}

// QueryService 查询服务接口
type QueryService interface {
	ListPermits(ctx context.Context, query *ListPermitsQuery) ([]*model.PermitModel, int64, error)
	GetActionHistory(ctx context.Context, permitID string) ([]*model.ActionHistoryModel, error)
	GetApprovals(ctx context.Context, permitID string) ([]*model.ApprovalRecordModel, error)
	GetAggregate(ctx context.Context, permitID string) (*PermitAggregate, error)
}

// queryService 查询服务实现
type queryService struct {
	db *gorm.DB
}

// NewQueryService 创建查询服务
func NewQueryService(db *gorm.DB) QueryService {
	return &queryService{db: db}
}

// ListPermits 分页查询许可单
func (s *queryService) ListPermits(ctx context.Context, query *ListPermitsQuery) ([]*model.PermitModel, int64, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	orderClause := ""
	if query.SortBy != "" {
		sortBy := utils.SanitizeSortField(query.SortBy)
		if err := utils.ValidateSortField(sortBy); err != nil || !sortableFields[sortBy] {
			return nil, 0, lifecycle.NewValidation("unsupported sort field %q", query.SortBy)
		}
		orderClause = sortBy + " " + utils.SanitizeSortOrder(query.SortOrder)
	}

	permits, total, err := repository.NewPermitRepository(s.db.WithContext(ctx)).
		List(query.Status, query.WorkType, orderClause, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, lifecycle.NewPersistence("failed to list permits", err)
	}
	return permits, total, nil
}

// GetActionHistory 获取许可单操作历史
func (s *queryService) GetActionHistory(ctx context.Context, permitID string) ([]*model.ActionHistoryModel, error) {
	if err := s.ensurePermit(ctx, permitID); err != nil {
		return nil, err
	}
	entries, err := repository.NewActionHistoryRepository(s.db.WithContext(ctx)).FindByPermitID(permitID)
	if err != nil {
		return nil, lifecycle.NewPersistence("failed to load action history", err)
	}
	return entries, nil
}

// GetApprovals 获取许可单审批记录,按插入顺序
func (s *queryService) GetApprovals(ctx context.Context, permitID string) ([]*model.ApprovalRecordModel, error) {
	if err := s.ensurePermit(ctx, permitID); err != nil {
		return nil, err
	}
	records, err := repository.NewApprovalRecordRepository(s.db.WithContext(ctx)).FindByPermitID(permitID)
	if err != nil {
		return nil, lifecycle.NewPersistence("failed to load approval records", err)
	}
	return records, nil
}

// GetAggregate 获取许可单导出聚合
func (s *queryService) GetAggregate(ctx context.Context, permitID string) (*PermitAggregate, error) {
	permit, err := repository.NewPermitRepository(s.db.WithContext(ctx)).FindByID(permitID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, lifecycle.NewNotFound("permit %s not found", permitID)
		}
		return nil, lifecycle.NewPersistence("failed to load permit", err)
	}

	approvals, err := repository.NewApprovalRecordRepository(s.db.WithContext(ctx)).FindByPermitID(permitID)
	if err != nil {
		return nil, lifecycle.NewPersistence("failed to load approval records", err)
	}
	entries, err := repository.NewActionHistoryRepository(s.db.WithContext(ctx)).FindByPermitID(permitID)
	if err != nil {
		return nil, lifecycle.NewPersistence("failed to load action history", err)
	}

	return &PermitAggregate{
		Permit:        permit,
		Approvals:     approvals,
		ActionHistory: entries,
	}, nil
}

// ensurePermit 确认许可单存在
func (s *queryService) ensurePermit(ctx context.Context, permitID string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.PermitModel{}).
		Where("id = ?", permitID).Count(&count).Error; err != nil {
		return lifecycle.NewPersistence("failed to check permit", err)
	}
	if count == 0 {
		return lifecycle.NewNotFound("permit %s not found", permitID)
	}
	return nil
}
