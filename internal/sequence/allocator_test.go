package sequence_test

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/permit-gin/internal/database"
	"github.com/mautops/permit-gin/internal/lifecycle"
	"github.com/mautops/permit-gin/internal/model"
	"github.com/mautops/permit-gin/internal/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupAllocatorDB 创建编号分配测试数据库
func setupAllocatorDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, database.Migrate(db))
	return db
}

// seedPermit 插入一条既有许可单
func seedPermit(t *testing.T, db *gorm.DB, number string) {
	now := time.Now()
	permit := &model.PermitModel{
		ID:           uuid.New().String(),
		PermitNumber: number,
		Title:        "既有作业",
		WorkType:     "hot-work",
		Status:       "APPROVED",
		StartDate:    now,
		EndDate:      now.Add(24 * time.Hour),
		OwnerID:      "user-001",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, db.Create(permit).Error)
}

// TestAllocator_Sequential 测试顺序分配
func TestAllocator_Sequential(t *testing.T) {
	db := setupAllocatorDB(t)
	allocator := sequence.NewAllocator(db)
	at := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	first, err := allocator.Next(context.Background(), "RGDGTLWP", at)
	require.NoError(t, err)
	assert.Equal(t, "RGDGTLWP FEB 2024 - 0001", first)

	second, err := allocator.Next(context.Background(), "RGDGTLWP", at)
	require.NoError(t, err)
	assert.Equal(t, "RGDGTLWP FEB 2024 - 0002", second)

	third, err := allocator.Next(context.Background(), "RGDGTLWP", at)
	require.NoError(t, err)
	assert.Equal(t, "RGDGTLWP FEB 2024 - 0003", third)
}

// TestAllocator_MonthBuckets 不同月份各自独立计数
func TestAllocator_MonthBuckets(t *testing.T) {
	db := setupAllocatorDB(t)
	allocator := sequence.NewAllocator(db)

	feb := time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	number, err := allocator.Next(context.Background(), "RGDGTLWP", feb)
	require.NoError(t, err)
	assert.Equal(t, "RGDGTLWP FEB 2024 - 0001", number)

	// 月份翻转后从 0001 重新开始
	number, err = allocator.Next(context.Background(), "RGDGTLWP", mar)
	require.NoError(t, err)
	assert.Equal(t, "RGDGTLWP MAR 2024 - 0001", number)

	// 回到二月继续递增,互不影响
	number, err = allocator.Next(context.Background(), "RGDGTLWP", feb)
	require.NoError(t, err)
	assert.Equal(t, "RGDGTLWP FEB 2024 - 0002", number)
}

// TestAllocator_PrefixBuckets 不同前缀各自独立计数
func TestAllocator_PrefixBuckets(t *testing.T) {
	db := setupAllocatorDB(t)
	allocator := sequence.NewAllocator(db)
	at := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	number, err := allocator.Next(context.Background(), "RGDGTLWP", at)
	require.NoError(t, err)
	assert.Equal(t, "RGDGTLWP FEB 2024 - 0001", number)

	number, err = allocator.Next(context.Background(), "HOTWORK", at)
	require.NoError(t, err)
	assert.Equal(t, "HOTWORK FEB 2024 - 0001", number)
}

// TestAllocator_SeedFromExisting 从既有编号播种,续接最大序号
func TestAllocator_SeedFromExisting(t *testing.T) {
	db := setupAllocatorDB(t)
	seedPermit(t, db, "RGDGTLWP FEB 2024 - 0007")
	seedPermit(t, db, "RGDGTLWP FEB 2024 - 0003")

	allocator := sequence.NewAllocator(db)
	at := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	number, err := allocator.Next(context.Background(), "RGDGTLWP", at)
	require.NoError(t, err)
	assert.Equal(t, "RGDGTLWP FEB 2024 - 0008", number)
}

// TestAllocator_SeedFromLegacyFormat 缺少年份的旧格式编号参与播种
func TestAllocator_SeedFromLegacyFormat(t *testing.T) {
	db := setupAllocatorDB(t)
	seedPermit(t, db, "RGDGTLWP FEB - 0005")
	// 其他年份的同月编号不参与当月计数
	seedPermit(t, db, "RGDGTLWP FEB 2023 - 0042")

	allocator := sequence.NewAllocator(db)
	at := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	number, err := allocator.Next(context.Background(), "RGDGTLWP", at)
	require.NoError(t, err)
	assert.Equal(t, "RGDGTLWP FEB 2024 - 0006", number)
}

// TestAllocator_EmptyPrefix 前缀为空拒绝分配
func TestAllocator_EmptyPrefix(t *testing.T) {
	db := setupAllocatorDB(t)
	allocator := sequence.NewAllocator(db)

	_, err := allocator.Next(context.Background(), "", time.Now())
	require.Error(t, err)
	assert.Equal(t, lifecycle.KindValidation, lifecycle.KindOf(err))
}

// TestAllocator_Concurrent 并发分配不重复不跳号
func TestAllocator_Concurrent(t *testing.T) {
	// 并发写需要文件数据库和 busy_timeout,共享内存库会互相锁死
	dsn := filepath.Join(t.TempDir(), "alloc.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	allocator := sequence.NewAllocator(db)
	at := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	const workers = 8
	numbers := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			numbers[idx], errs[idx] = allocator.Next(context.Background(), "RGDGTLWP", at)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.True(t, sequence.PermitNumberPattern.MatchString(numbers[i]), "number %q should match pattern", numbers[i])
	}

	// 分配结果恰好是 0001..000N 的一个排列
	sort.Strings(numbers)
	for i := 0; i < workers; i++ {
		assert.Equal(t, sequence.Format("RGDGTLWP", "FEB 2024", int64(i+1)), numbers[i])
	}
}

// TestMonthKey 测试月份桶键格式
func TestMonthKey(t *testing.T) {
	assert.Equal(t, "FEB 2024", sequence.MonthKey(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "DEC 2025", sequence.MonthKey(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)))
}

// TestPermitNumberPattern 测试编号正则
func TestPermitNumberPattern(t *testing.T) {
	assert.True(t, sequence.PermitNumberPattern.MatchString("RGDGTLWP FEB 2024 - 0001"))
	assert.True(t, sequence.PermitNumberPattern.MatchString("HOTWORK DEC 2025 - 9999"))

	assert.False(t, sequence.PermitNumberPattern.MatchString("RGDGTLWP FEB - 0001")) // 旧格式
	assert.False(t, sequence.PermitNumberPattern.MatchString("rgdgtlwp FEB 2024 - 0001"))
	assert.False(t, sequence.PermitNumberPattern.MatchString("RGDGTLWP FEB 2024 - 1"))
}
