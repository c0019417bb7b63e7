package repository_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/permit-gin/internal/database"
	"github.com/mautops/permit-gin/internal/model"
	"github.com/mautops/permit-gin/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupRepositoryDB 创建仓储测试数据库
func setupRepositoryDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, database.Migrate(db))
	return db
}

// newPermit 构造一条合法许可单
func newPermit(status string, number string) *model.PermitModel {
	now := time.Now()
	return &model.PermitModel{
		ID:           uuid.New().String(),
		PermitNumber: number,
		Title:        "仓储测试作业",
		WorkType:     "hot-work",
		Status:       status,
		StartDate:    now,
		EndDate:      now.Add(24 * time.Hour),
		OwnerID:      "user-001",
		CreatedBy:    "user-001",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// TestPermitRepository_UniqueNumber 编号唯一约束翻译为 gorm.ErrDuplicatedKey
func TestPermitRepository_UniqueNumber(t *testing.T) {
	db := setupRepositoryDB(t)
	repo := repository.NewPermitRepository(db)

	require.NoError(t, repo.Create(newPermit("PENDING", "RGDGTLWP FEB 2024 - 0001")))

	err := repo.Create(newPermit("PENDING", "RGDGTLWP FEB 2024 - 0001"))
	require.Error(t, err)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

// TestPermitRepository_FindByNumber 按编号查找
func TestPermitRepository_FindByNumber(t *testing.T) {
	db := setupRepositoryDB(t)
	repo := repository.NewPermitRepository(db)

	created := newPermit("PENDING", "RGDGTLWP FEB 2024 - 0001")
	require.NoError(t, repo.Create(created))

	found, err := repo.FindByNumber("RGDGTLWP FEB 2024 - 0001")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = repo.FindByNumber("RGDGTLWP FEB 2024 - 9999")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// TestPermitRepository_CloseExpired_Guard 守卫更新只命中期望状态
func TestPermitRepository_CloseExpired_Guard(t *testing.T) {
	db := setupRepositoryDB(t)
	repo := repository.NewPermitRepository(db)

	permit := newPermit("APPROVED", "RGDGTLWP FEB 2024 - 0001")
	require.NoError(t, repo.Create(permit))

	now := time.Now()

	// 期望状态不匹配时不关闭
	closed, err := repo.CloseExpired(permit.ID, "EXTENDED", now)
	require.NoError(t, err)
	assert.False(t, closed)

	closed, err = repo.CloseExpired(permit.ID, "APPROVED", now)
	require.NoError(t, err)
	assert.True(t, closed)

	// 已关闭的行第二次守卫失败
	closed, err = repo.CloseExpired(permit.ID, "CLOSED", now)
	require.NoError(t, err)
	assert.False(t, closed)

	reloaded, err := repo.FindByID(permit.ID)
	require.NoError(t, err)
	assert.Equal(t, "CLOSED", reloaded.Status)
	require.NotNil(t, reloaded.ClosedAt)
	require.NotNil(t, reloaded.AutoClosedAt)
}

// TestPermitRepository_List_Order 排序子句生效
func TestPermitRepository_List_Order(t *testing.T) {
	db := setupRepositoryDB(t)
	repo := repository.NewPermitRepository(db)

	for i, number := range []string{"RGDGTLWP FEB 2024 - 0003", "RGDGTLWP FEB 2024 - 0001", "RGDGTLWP FEB 2024 - 0002"} {
		p := newPermit("PENDING", number)
		p.CreatedAt = time.Now().Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(p))
	}

	permits, total, err := repo.List("", "", "permit_number ASC", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, permits, 3)
	assert.Equal(t, "RGDGTLWP FEB 2024 - 0001", permits[0].PermitNumber)
	assert.Equal(t, "RGDGTLWP FEB 2024 - 0003", permits[2].PermitNumber)

	// 缺省按创建时间倒序
	permits, _, err = repo.List("", "", "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, "RGDGTLWP FEB 2024 - 0002", permits[0].PermitNumber)
}
