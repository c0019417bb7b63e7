package sequence

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mautops/permit-gin/internal/lifecycle"
	"github.com/mautops/permit-gin/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PermitNumberPattern 许可单编号的持久化格式
var PermitNumberPattern = regexp.MustCompile(`^[A-Z]+ [A-Z]{3} \d{4} - \d{4}$`)

// maxSeedAttempts 计数器播种竞争的重试上限
const maxSeedAttempts = 5

// Allocator 许可单编号分配器
// 同一 (前缀, 月份) 桶内编号单调递增且永不重复,并发调用者各自获得唯一编号
type Allocator interface {
	Next(ctx context.Context, prefix string, at time.Time) (string, error)
}

// dbAllocator 基于数据库计数器的分配器实现
// 自增通过单条 UPDATE ... RETURNING 完成,读与写不可分割,
// 不复用"扫描最大值再插入"的竞态写法
type dbAllocator struct {
	db *gorm.DB
}

// NewAllocator 创建编号分配器
func NewAllocator(db *gorm.DB) Allocator {
	return &dbAllocator{db: db}
}

// MonthKey 返回月份桶键,如 "FEB 2024"
func MonthKey(at time.Time) string {
	return strings.ToUpper(at.Format("Jan 2006"))
}

// Format 格式化许可单编号,如 "RGDGTLWP FEB 2024 - 0001"
func Format(prefix string, monthKey string, value int64) string {
	return fmt.Sprintf("%s %s - %04d", prefix, monthKey, value)
}

// Next 分配下一个编号
// 计数器行缺失时从既有许可单编号播种(兼容缺少年份的旧格式),
// 播种采用 ON CONFLICT DO NOTHING,竞争方重试自增,输掉插入不丢编号
func (a *dbAllocator) Next(ctx context.Context, prefix string, at time.Time) (string, error) {
	if prefix == "" {
		return "", lifecycle.NewValidation("permit number prefix is required")
	}
	monthKey := MonthKey(at)

	for attempt := 0; attempt < maxSeedAttempts; attempt++ {
		var value int64
		res := a.db.WithContext(ctx).Raw(
			"UPDATE permit_sequences SET value = value + 1, updated_at = ? WHERE prefix = ? AND month_key = ? RETURNING value",
			time.Now(), prefix, monthKey,
		).Scan(&value)
		if res.Error != nil {
			return "", lifecycle.NewPersistence("failed to increment permit sequence", res.Error)
		}
		if res.RowsAffected > 0 {
			return Format(prefix, monthKey, value), nil
		}

		// 计数器尚未建立,用旧数据播种后重试
		seed, err := a.scanMaxSuffix(ctx, prefix, monthKey)
		if err != nil {
			return "", err
		}
		counter := &model.SequenceCounterModel{
			Prefix:    prefix,
			MonthKey:  monthKey,
			Value:     seed,
			UpdatedAt: time.Now(),
		}
		if err := a.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(counter).Error; err != nil {
			return "", lifecycle.NewPersistence("failed to seed permit sequence", err)
		}
	}

	return "", lifecycle.NewConflict("permit sequence allocation retries exhausted", nil)
}

// scanMaxSuffix 扫描既有许可单编号取当月最大序号
// 同时识别带年份的标准格式与缺少年份的旧格式
func (a *dbAllocator) scanMaxSuffix(ctx context.Context, prefix string, monthKey string) (int64, error) {
	parts := strings.SplitN(monthKey, " ", 2)
	monthToken, year := parts[0], parts[1]

	var numbers []string
	if err := a.db.WithContext(ctx).
		Model(&model.PermitModel{}).
		Where("permit_number LIKE ?", prefix+" "+monthToken+" %").
		Pluck("permit_number", &numbers).Error; err != nil {
		return 0, lifecycle.NewPersistence("failed to scan existing permit numbers", err)
	}

	// 旧格式没有年份,视同当月;带年份的只统计当前年份
	pattern := regexp.MustCompile(
		"^" + regexp.QuoteMeta(prefix) + " " + monthToken + "(?: " + year + `)? - (\d+)$`,
	)

	var max int64
	for _, number := range numbers {
		m := pattern.FindStringSubmatch(number)
		if m == nil {
			continue
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max, nil
}
