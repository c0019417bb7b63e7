package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/permit-gin/internal/auth"
	"github.com/mautops/permit-gin/internal/lifecycle"
	"github.com/mautops/permit-gin/internal/metrics"
	"github.com/mautops/permit-gin/internal/model"
	"github.com/mautops/permit-gin/internal/repository"
	"github.com/mautops/permit-gin/internal/sequence"
	"github.com/mautops/permit-gin/internal/utils"
	"gorm.io/gorm"
)

// createRetries 许可单编号唯一约束冲突的创建重试次数
const createRetries = 3

// LifecycleNotifier 生命周期事件通知接口
// 尽力投递,调用方不等待结果,投递失败不回滚生命周期事务
type LifecycleNotifier interface {
	Notify(permit *model.PermitModel, eventType string, payload interface{})
}

// PermitService 许可单服务接口
type PermitService interface {
	Create(ctx context.Context, req *CreatePermitRequest) (*model.PermitModel, error)
	Get(ctx context.Context, id string) (*model.PermitModel, error)
	Decide(ctx context.Context, approvalID string, req *DecideRequest) (*model.ApprovalRecordModel, error)
	Extend(ctx context.Context, id string, req *ExtendRequest) (*model.PermitModel, error)
	Revoke(ctx context.Context, id string, req *RevokeRequest) (*model.PermitModel, error)
	Reapprove(ctx context.Context, id string, req *ReapproveRequest) (*model.PermitModel, error)
	Close(ctx context.Context, id string, req *ClosePermitRequest) (*model.PermitModel, error)
	AddSafetyRemarks(ctx context.Context, id string, req *SafetyRemarksRequest) (*model.PermitModel, error)
	TransferOwner(ctx context.Context, id string, req *TransferOwnerRequest) (*model.PermitModel, error)
}

// CreatePermitRequest 创建许可单请求
// @Description 创建工作许可单的请求参数
type CreatePermitRequest struct {
	Title     string    `json:"title" example:"高空检修作业" binding:"required"`       // 作业标题
	WorkType  string    `json:"work_type" example:"hot-work" binding:"required"` // 作业类型
	Location  string    `json:"location" example:"3 号车间屋面"`                      // 作业地点
	StartDate time.Time `json:"start_date" binding:"required"`                   // 开始日期
	EndDate   time.Time `json:"end_date" binding:"required"`                     // 截止日期
	OwnerID   string    `json:"owner_id" example:"user-001"`                     // 持有人 ID,缺省为创建人
}

// DecideRequest 审批决定请求
// @Description 审批同意或拒绝的请求参数
type DecideRequest struct {
	Decision string `json:"decision" example:"APPROVED" binding:"required"` // APPROVED 或 REJECTED
	Comment  string `json:"comment" example:"同意施工"`                         // 审批意见
}

// ExtendRequest 延期请求
// @Description 延长许可单有效期的请求参数
type ExtendRequest struct {
	ExtendedUntil time.Time `json:"extended_until" binding:"required"` // 延期截止时间
}

// RevokeRequest 吊销请求
// @Description 吊销许可单的请求参数
type RevokeRequest struct {
	Reason  string `json:"reason" example:"现场安全条件不达标" binding:"required"` // 吊销原因
	Comment string `json:"comment"`                                       // 补充说明
}

// ReapproveRequest 重新审批请求
// @Description 重新审批已吊销许可单的请求参数
type ReapproveRequest struct {
	Comment   string `json:"comment" example:"整改完成,恢复作业"` // 审批意见
	Signature string `json:"signature"`                   // 审批签名
}

// ClosePermitRequest 关闭请求
// @Description 关闭许可单的请求参数
type ClosePermitRequest struct {
	ClosureChecklist json.RawMessage `json:"closure_checklist" swaggertype:"object"` // 关闭检查清单
	Comments         string          `json:"comments"`                               // 关闭说明
}

// SafetyRemarksRequest 安全备注请求
// @Description 追加安全备注的请求参数
type SafetyRemarksRequest struct {
	Remarks string `json:"remarks" binding:"required"` // 备注内容
}

// TransferOwnerRequest 转移持有人请求
// @Description 转移许可单持有人的请求参数
type TransferOwnerRequest struct {
	NewOwnerID string `json:"new_owner_id" example:"user-002" binding:"required"` // 新持有人 ID
}

// permitService 许可单服务实现
// 每个生命周期操作是一个事务单元,横跨许可单、审批记录与操作历史,
// 任何一步失败即整体回滚,不存在可观察的半完成状态
type permitService struct {
	db        *gorm.DB
	allocator sequence.Allocator
	prefix    string
	notifier  LifecycleNotifier
}

// NewPermitService 创建许可单服务
func NewPermitService(db *gorm.DB, allocator sequence.Allocator, prefix string, notifier LifecycleNotifier) PermitService {
	return &permitService{
		db:        db,
		allocator: allocator,
		prefix:    prefix,
		notifier:  notifier,
	}
}

// Create 创建许可单
// 分配编号后在同一事务内创建许可单与首条 PENDING 审批记录;
// 编号唯一约束冲突时重新分配并重试,冲突对调用方不可见
func (s *permitService) Create(ctx context.Context, req *CreatePermitRequest) (*model.PermitModel, error) {
	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	principal := auth.FromContext(ctx)
	ownerID := req.OwnerID
	if ownerID == "" {
		ownerID = principal.ID
	}
	if ownerID == "" {
		return nil, lifecycle.NewValidation("permit owner is required")
	}

	var permit *model.PermitModel
	var lastErr error
	for attempt := 0; attempt < createRetries; attempt++ {
		number, err := s.allocator.Next(ctx, s.prefix, time.Now())
		if err != nil {
			return nil, err
		}

		now := time.Now()
		permit = &model.PermitModel{
			ID:           uuid.New().String(),
			PermitNumber: number,
			Title:        req.Title,
			WorkType:     req.WorkType,
			Location:     req.Location,
			Status:       string(lifecycle.StatusPending),
			StartDate:    req.StartDate,
			EndDate:      req.EndDate,
			OwnerID:      ownerID,
			CreatedBy:    principal.ID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		record := &model.ApprovalRecordModel{
			ID:        uuid.New().String(),
			PermitID:  permit.ID,
			Decision:  string(lifecycle.DecisionPending),
			CreatedAt: now,
		}

		lastErr = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := repository.NewPermitRepository(tx).Create(permit); err != nil {
				return err
			}
			return repository.NewApprovalRecordRepository(tx).Create(record)
		})
		if lastErr == nil {
			break
		}
		if !errors.Is(lastErr, gorm.ErrDuplicatedKey) {
			return nil, lifecycle.NewPersistence("failed to create permit", lastErr)
		}
	}
	if lastErr != nil {
		return nil, lifecycle.NewConflict("permit number allocation conflict not resolved", lastErr)
	}

	metrics.RecordPermitCreated()

	if s.notifier != nil {
		s.notifier.Notify(permit, "permit.created", permit)
	}

	return permit, nil
}

// Get 获取许可单详情
func (s *permitService) Get(ctx context.Context, id string) (*model.PermitModel, error) {
	permit, err := repository.NewPermitRepository(s.db.WithContext(ctx)).FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, lifecycle.NewNotFound("permit %s not found", id)
		}
		return nil, lifecycle.NewPersistence("failed to load permit", err)
	}
	return permit, nil
}

// Decide 对待决审批记录作出决定
// 记录与许可单都必须处于待决状态,重复决定返回 InvalidState 而不是静默成功
func (s *permitService) Decide(ctx context.Context, approvalID string, req *DecideRequest) (*model.ApprovalRecordModel, error) {
	event, err := lifecycle.DecisionEvent(lifecycle.Decision(req.Decision))
	if err != nil {
		return nil, err
	}

	principal := auth.FromContext(ctx)
	var record *model.ApprovalRecordModel
	var decided *model.PermitModel

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recordRepo := repository.NewApprovalRecordRepository(tx)
		permitRepo := repository.NewPermitRepository(tx)

		record, err = recordRepo.FindByID(approvalID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return lifecycle.NewNotFound("approval record %s not found", approvalID)
			}
			return lifecycle.NewPersistence("failed to load approval record", err)
		}
		if record.Decision != string(lifecycle.DecisionPending) {
			return lifecycle.NewInvalidState("approval record %s already decided as %s", approvalID, record.Decision)
		}

		permit, err := permitRepo.FindByID(record.PermitID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return lifecycle.NewNotFound("permit %s not found", record.PermitID)
			}
			return lifecycle.NewPersistence("failed to load permit", err)
		}

		next, err := lifecycle.Next(lifecycle.Status(permit.Status), event)
		if err != nil {
			return err
		}

		now := time.Now()
		record.Decision = req.Decision
		record.ApproverName = principal.FullName()
		record.Comment = req.Comment
		record.ApprovedAt = &now
		record.SignedAt = &now
		if err := recordRepo.Save(record); err != nil {
			return lifecycle.NewPersistence("failed to save approval record", err)
		}

		permit.Status = string(next)
		permit.UpdatedAt = now
		if err := permitRepo.Save(permit); err != nil {
			return lifecycle.NewPersistence("failed to save permit", err)
		}
		decided = permit
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordPermitTransition(strings.ToLower(req.Decision))

	if s.notifier != nil {
		s.notifier.Notify(decided, "permit.decided", record)
	}
	return record, nil
}

// Extend 延期许可单
func (s *permitService) Extend(ctx context.Context, id string, req *ExtendRequest) (*model.PermitModel, error) {
	if req.ExtendedUntil.IsZero() {
		return nil, lifecycle.NewValidation("extended_until is required")
	}

	return s.transition(ctx, id, lifecycle.EventExtend, func(permit *model.PermitModel, now time.Time) (*model.ActionHistoryModel, error) {
		if !req.ExtendedUntil.After(permit.EndDate) {
			return nil, lifecycle.NewValidation("extended_until must be after the permit end date")
		}
		permit.IsExtended = true
		until := req.ExtendedUntil
		permit.ExtendedUntil = &until

		return s.historyEntry(ctx, permit, lifecycle.ActionExtended,
			"extended until "+until.Format(time.RFC3339), "", now), nil
	})
}

// Revoke 吊销许可单
func (s *permitService) Revoke(ctx context.Context, id string, req *RevokeRequest) (*model.PermitModel, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, lifecycle.NewValidation("revoke reason is required")
	}

	return s.transition(ctx, id, lifecycle.EventRevoke, func(permit *model.PermitModel, now time.Time) (*model.ActionHistoryModel, error) {
		comment := req.Reason
		if req.Comment != "" {
			comment += "; " + req.Comment
		}
		return s.historyEntry(ctx, permit, lifecycle.ActionRevoked, comment, "", now), nil
	})
}

// Reapprove 重新审批已吊销的许可单
// 追加一条新的 REAPPROVED 审批记录,既有记录保持不变
func (s *permitService) Reapprove(ctx context.Context, id string, req *ReapproveRequest) (*model.PermitModel, error) {
	principal := auth.FromContext(ctx)

	var permit *model.PermitModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		permitRepo := repository.NewPermitRepository(tx)

		var err error
		permit, err = permitRepo.FindByID(id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return lifecycle.NewNotFound("permit %s not found", id)
			}
			return lifecycle.NewPersistence("failed to load permit", err)
		}

		previous := lifecycle.Status(permit.Status)
		next, err := lifecycle.Next(previous, lifecycle.EventReapprove)
		if err != nil {
			return err
		}

		now := time.Now()
		// 只落库签名摘要,原始签名数据不持久化
		signature := utils.SignatureDigest(req.Signature)
		record := &model.ApprovalRecordModel{
			ID:           uuid.New().String(),
			PermitID:     permit.ID,
			Decision:     string(lifecycle.DecisionReapproved),
			ApproverName: principal.FullName(),
			Comment:      req.Comment,
			Signature:    signature,
			ApprovedAt:   &now,
			CreatedAt:    now,
		}
		if signature != "" {
			record.SignedAt = &now
		}
		if err := repository.NewApprovalRecordRepository(tx).Create(record); err != nil {
			return lifecycle.NewPersistence("failed to create reapproval record", err)
		}

		permit.Status = string(next)
		permit.UpdatedAt = now
		if err := permitRepo.Save(permit); err != nil {
			return lifecycle.NewPersistence("failed to save permit", err)
		}

		entry := s.historyEntry(ctx, permit, lifecycle.ActionReapproved, req.Comment, signature, now)
		entry.PreviousStatus = string(previous)
		if err := repository.NewActionHistoryRepository(tx).Append(entry); err != nil {
			return lifecycle.NewPersistence("failed to append action history", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordPermitTransition("reapprove")

	if s.notifier != nil {
		s.notifier.Notify(permit, "permit.reapproved", permit)
	}
	return permit, nil
}

// Close 关闭许可单
func (s *permitService) Close(ctx context.Context, id string, req *ClosePermitRequest) (*model.PermitModel, error) {
	return s.transition(ctx, id, lifecycle.EventClose, func(permit *model.PermitModel, now time.Time) (*model.ActionHistoryModel, error) {
		closedAt := now
		permit.ClosedAt = &closedAt
		permit.ClosureChecklist = req.ClosureChecklist
		permit.ClosureComments = req.Comments

		return s.historyEntry(ctx, permit, lifecycle.ActionClosed, req.Comments, "", now), nil
	})
}

// AddSafetyRemarks 追加安全备注
// 覆盖字段,不改变许可单状态,仅在允许的状态集合内可写
func (s *permitService) AddSafetyRemarks(ctx context.Context, id string, req *SafetyRemarksRequest) (*model.PermitModel, error) {
	if strings.TrimSpace(req.Remarks) == "" {
		return nil, lifecycle.NewValidation("remarks are required")
	}

	principal := auth.FromContext(ctx)
	var permit *model.PermitModel

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		permitRepo := repository.NewPermitRepository(tx)

		var err error
		permit, err = permitRepo.FindByID(id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return lifecycle.NewNotFound("permit %s not found", id)
			}
			return lifecycle.NewPersistence("failed to load permit", err)
		}

		if !lifecycle.CanAddRemarks(lifecycle.Status(permit.Status)) {
			return lifecycle.NewValidation("safety remarks not allowed while permit is %s", permit.Status)
		}

		now := time.Now()
		permit.SafetyRemarks = req.Remarks
		permit.RemarksAddedBy = principal.ID
		permit.RemarksAddedAt = &now
		permit.UpdatedAt = now
		if err := permitRepo.Save(permit); err != nil {
			return lifecycle.NewPersistence("failed to save permit", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return permit, nil
}

// TransferOwner 转移持有人,任何状态下均允许,仅改变持有人引用
func (s *permitService) TransferOwner(ctx context.Context, id string, req *TransferOwnerRequest) (*model.PermitModel, error) {
	if req.NewOwnerID == "" {
		return nil, lifecycle.NewValidation("new owner ID is required")
	}

	var permit *model.PermitModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		permitRepo := repository.NewPermitRepository(tx)

		var err error
		permit, err = permitRepo.FindByID(id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return lifecycle.NewNotFound("permit %s not found", id)
			}
			return lifecycle.NewPersistence("failed to load permit", err)
		}

		permit.OwnerID = req.NewOwnerID
		permit.UpdatedAt = time.Now()
		if err := permitRepo.Save(permit); err != nil {
			return lifecycle.NewPersistence("failed to save permit", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return permit, nil
}

// transition 执行一次带操作历史的状态转换
// mutate 在状态推进后补充副作用字段并返回待追加的历史条目;
// 历史写入失败与其他持久化失败同样回滚整个转换,审计完整性是正确性属性
func (s *permitService) transition(
	ctx context.Context,
	id string,
	event lifecycle.Event,
	mutate func(permit *model.PermitModel, now time.Time) (*model.ActionHistoryModel, error),
) (*model.PermitModel, error) {
	var permit *model.PermitModel

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		permitRepo := repository.NewPermitRepository(tx)

		var err error
		permit, err = permitRepo.FindByID(id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return lifecycle.NewNotFound("permit %s not found", id)
			}
			return lifecycle.NewPersistence("failed to load permit", err)
		}

		previous := lifecycle.Status(permit.Status)
		next, err := lifecycle.Next(previous, event)
		if err != nil {
			return err
		}

		now := time.Now()
		permit.Status = string(next)
		permit.UpdatedAt = now

		entry, err := mutate(permit, now)
		if err != nil {
			return err
		}
		entry.PreviousStatus = string(previous)

		if err := permitRepo.Save(permit); err != nil {
			return lifecycle.NewPersistence("failed to save permit", err)
		}
		if err := repository.NewActionHistoryRepository(tx).Append(entry); err != nil {
			return lifecycle.NewPersistence("failed to append action history", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordPermitTransition(strings.ToLower(string(event)))

	if s.notifier != nil {
		s.notifier.Notify(permit, "permit."+strings.ToLower(string(event)), permit)
	}
	return permit, nil
}

// historyEntry 构造操作历史条目,PreviousStatus 由调用方补齐
func (s *permitService) historyEntry(
	ctx context.Context,
	permit *model.PermitModel,
	action lifecycle.Action,
	comment string,
	signature string,
	now time.Time,
) *model.ActionHistoryModel {
	principal := auth.FromContext(ctx)
	return &model.ActionHistoryModel{
		ID:              uuid.New().String(),
		PermitID:        permit.ID,
		Action:          string(action),
		PerformedBy:     principal.IDOrSystem(),
		PerformedByName: principal.FullName(),
		PerformedByRole: principal.Role,
		Comment:         comment,
		NewStatus:       permit.Status,
		Signature:       signature,
		CreatedAt:       now,
	}
}

// validateCreateRequest 校验创建请求
func validateCreateRequest(req *CreatePermitRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return lifecycle.NewValidation("permit title is required")
	}
	if strings.TrimSpace(req.WorkType) == "" {
		return lifecycle.NewValidation("permit work type is required")
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return lifecycle.NewValidation("permit start and end dates are required")
	}
	if req.EndDate.Before(req.StartDate) {
		return lifecycle.NewValidation("permit end date must not precede start date")
	}
	return nil
}
