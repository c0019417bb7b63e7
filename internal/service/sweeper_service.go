package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/permit-gin/internal/lifecycle"
	"github.com/mautops/permit-gin/internal/metrics"
	"github.com/mautops/permit-gin/internal/model"
	"github.com/mautops/permit-gin/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// sweeperPrincipal 自动清扫写入操作历史时的执行者标识
const sweeperPrincipal = "auto-close-sweeper"

// SweepFailure 单条记录的清扫失败
type SweepFailure struct {
	PermitID string `json:"permit_id"`
	Error    string `json:"error"`
}

// SweepResult 一次清扫的结果
// @Description 自动关闭清扫的统计结果
type SweepResult struct {
	ClosedCount    int            `json:"closed_count"`    // 关闭总数
	RegularClosed  int            `json:"regular_closed"`  // 常规过期关闭数
	ExtendedClosed int            `json:"extended_closed"` // 延期过期关闭数
	Failures       []SweepFailure `json:"failures,omitempty"`
}

// SweeperService 自动关闭清扫服务接口
// 可重复执行的批处理:无外部状态变化时重复执行关闭零条记录
type SweeperService interface {
	Sweep(ctx context.Context, now time.Time) (*SweepResult, error)
}

// sweeperService 自动关闭清扫服务实现
type sweeperService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewSweeperService 创建清扫服务
func NewSweeperService(db *gorm.DB, logger *logrus.Logger) SweeperService {
	return &sweeperService{db: db, logger: logger}
}

// Sweep 执行一次清扫
// 两次独立扫描:(a) 未延期且截止已过的 APPROVED;(b) 已延期且延期已过的
// EXTENDED/REAPPROVED。逐条记录以守卫 UPDATE 关闭,单条失败收集后继续,
// 不中断整个批次;中途取消是安全的,下一次执行就是正确的重试
func (s *sweeperService) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	result := &SweepResult{}
	permitRepo := repository.NewPermitRepository(s.db.WithContext(ctx))

	regular, err := permitRepo.FindExpiredRegular(now)
	if err != nil {
		return nil, lifecycle.NewPersistence("failed to scan expired permits", err)
	}
	for _, permit := range regular {
		closed, err := s.closeOne(ctx, permit, now)
		if err != nil {
			result.Failures = append(result.Failures, SweepFailure{PermitID: permit.ID, Error: err.Error()})
			continue
		}
		if closed {
			result.RegularClosed++
		}
	}

	extended, err := permitRepo.FindExpiredExtended(now)
	if err != nil {
		return nil, lifecycle.NewPersistence("failed to scan expired extended permits", err)
	}
	for _, permit := range extended {
		closed, err := s.closeOne(ctx, permit, now)
		if err != nil {
			result.Failures = append(result.Failures, SweepFailure{PermitID: permit.ID, Error: err.Error()})
			continue
		}
		if closed {
			result.ExtendedClosed++
		}
	}

	result.ClosedCount = result.RegularClosed + result.ExtendedClosed
	metrics.RecordAutoClosed("regular", result.RegularClosed)
	metrics.RecordAutoClosed("extended", result.ExtendedClosed)

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"closed_count":    result.ClosedCount,
			"regular_closed":  result.RegularClosed,
			"extended_closed": result.ExtendedClosed,
			"failures":        len(result.Failures),
		}).Info("auto-close sweep finished")
	}
	return result, nil
}

// closeOne 关闭单条过期许可单
// 守卫更新与历史追加在同一事务内;守卫未命中(并发手工操作已处理)时
// 返回 false,既不报错也不计数
func (s *sweeperService) closeOne(ctx context.Context, permit *model.PermitModel, now time.Time) (bool, error) {
	closed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		closed, err = repository.NewPermitRepository(tx).CloseExpired(permit.ID, permit.Status, now)
		if err != nil {
			return err
		}
		if !closed {
			return nil
		}

		entry := &model.ActionHistoryModel{
			ID:              uuid.New().String(),
			PermitID:        permit.ID,
			Action:          string(lifecycle.ActionClosed),
			PerformedBy:     sweeperPrincipal,
			PerformedByName: "Auto Close Sweeper",
			PerformedByRole: "system",
			Comment:         "expired permit closed automatically",
			PreviousStatus:  permit.Status,
			NewStatus:       string(lifecycle.StatusClosed),
			CreatedAt:       now,
		}
		return repository.NewActionHistoryRepository(tx).Append(entry)
	})
	if err != nil {
		return false, err
	}
	return closed, nil
}
