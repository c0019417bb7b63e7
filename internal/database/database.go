package database

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/permit-gin/internal/config"
	"github.com/mautops/permit-gin/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// GetPoolConfig 获取连接池配置
func GetPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: 3600,
		ConnMaxIdleTime: 600,
	}
}

// Connect 连接数据库
// TranslateError 打开后唯一约束冲突统一映射为 gorm.ErrDuplicatedKey,
// 编号分配的冲突重试依赖这一映射
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := BuildDSN(cfg)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	poolConfig := GetPoolConfig()
	if cfg.MaxIdleConns > 0 {
		poolConfig.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolConfig.ConnMaxIdleTime = cfg.ConnMaxIdleTime
	}

	sqlDB.SetMaxIdleConns(poolConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(poolConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(poolConfig.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(poolConfig.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	dialector := db.Dialector.Name()

	// SQLite 不支持 jsonb,手动建表
	if dialector == "sqlite" || dialector == "sqlite3" {
		if err := createSQLiteTables(db); err != nil {
			return fmt.Errorf("failed to create SQLite tables: %w", err)
		}
	} else {
		if err := db.AutoMigrate(
			&model.PermitModel{},
			&model.ApprovalRecordModel{},
			&model.ActionHistoryModel{},
			&model.SequenceCounterModel{},
			&model.EventModel{},
		); err != nil {
			return fmt.Errorf("failed to auto migrate: %w", err)
		}
	}

	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// createSQLiteTables 为 SQLite 手动创建表(使用 TEXT 替代 jsonb)
func createSQLiteTables(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS permits (
			id VARCHAR(64) PRIMARY KEY,
			permit_number VARCHAR(64) NOT NULL,
			title VARCHAR(255) NOT NULL,
			work_type VARCHAR(64) NOT NULL,
			location VARCHAR(255),
			status VARCHAR(32) NOT NULL,
			start_date DATETIME NOT NULL,
			end_date DATETIME NOT NULL,
			is_extended BOOLEAN NOT NULL DEFAULT 0,
			extended_until DATETIME,
			closed_at DATETIME,
			auto_closed_at DATETIME,
			closure_checklist TEXT,
			closure_comments TEXT,
			safety_remarks TEXT,
			remarks_added_by VARCHAR(64),
			remarks_added_at DATETIME,
			owner_id VARCHAR(64) NOT NULL,
			created_by VARCHAR(64),
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create permits table: %w", err)
	}

	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS approval_records (
			id VARCHAR(64) PRIMARY KEY,
			permit_id VARCHAR(64) NOT NULL,
			decision VARCHAR(32) NOT NULL,
			approver_name VARCHAR(128),
			comment TEXT,
			signature TEXT,
			approved_at DATETIME,
			signed_at DATETIME,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create approval_records table: %w", err)
	}

	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS action_history (
			id VARCHAR(64) PRIMARY KEY,
			permit_id VARCHAR(64) NOT NULL,
			action VARCHAR(32) NOT NULL,
			performed_by VARCHAR(64) NOT NULL,
			performed_by_name VARCHAR(128),
			performed_by_role VARCHAR(64),
			comment TEXT,
			previous_status VARCHAR(32) NOT NULL,
			new_status VARCHAR(32) NOT NULL,
			signature TEXT,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create action_history table: %w", err)
	}

	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS permit_sequences (
			prefix VARCHAR(32) NOT NULL,
			month_key VARCHAR(16) NOT NULL,
			value INTEGER NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (prefix, month_key)
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create permit_sequences table: %w", err)
	}

	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id VARCHAR(64) PRIMARY KEY,
			permit_id VARCHAR(64) NOT NULL,
			type VARCHAR(32) NOT NULL,
			data TEXT NOT NULL,
			status VARCHAR(32) NOT NULL DEFAULT 'pending',
			retry_count INTEGER DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}

	return nil
}

// CreateIndexes 创建数据库索引
func CreateIndexes(db *gorm.DB) error {
	// permits 表索引,permit_number 唯一约束是编号不重复的最后防线
	if err := db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_permits_number ON permits(permit_number)").Error; err != nil {
		return fmt.Errorf("failed to create idx_permits_number: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_permits_status ON permits(status)").Error; err != nil {
		return fmt.Errorf("failed to create idx_permits_status: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_permits_status_end_date ON permits(status, end_date)").Error; err != nil {
		return fmt.Errorf("failed to create idx_permits_status_end_date: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_permits_owner_id ON permits(owner_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_permits_owner_id: %w", err)
	}

	// approval_records 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_records_permit_id ON approval_records(permit_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_records_permit_id: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_records_decision ON approval_records(permit_id, decision)").Error; err != nil {
		return fmt.Errorf("failed to create idx_records_decision: %w", err)
	}

	// action_history 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_history_permit_id ON action_history(permit_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_history_permit_id: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_history_created_at ON action_history(created_at)").Error; err != nil {
		return fmt.Errorf("failed to create idx_history_created_at: %w", err)
	}

	// events 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_events_status ON events(status)").Error; err != nil {
		return fmt.Errorf("failed to create idx_events_status: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_events_permit_id ON events(permit_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_events_permit_id: %w", err)
	}

	return nil
}

// ConnectWithRetry 带重试的数据库连接
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg)
		if err == nil {
			return db, nil
		}

		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2 // 指数退避
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(db *gorm.DB) bool {
	if db == nil {
		return false
	}

	sqlDB, err := db.DB()
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx) == nil
}

// Reconnect 重新连接数据库
func Reconnect(cfg config.DatabaseConfig, oldDB *gorm.DB) (*gorm.DB, error) {
	if oldDB != nil {
		if sqlDB, err := oldDB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	return Connect(cfg)
}
