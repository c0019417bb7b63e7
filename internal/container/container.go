package container

import (
	"fmt"
	"time"

	"github.com/mautops/permit-gin/internal/api"
	"github.com/mautops/permit-gin/internal/auth"
	"github.com/mautops/permit-gin/internal/config"
	"github.com/mautops/permit-gin/internal/database"
	"github.com/mautops/permit-gin/internal/integration"
	"github.com/mautops/permit-gin/internal/sequence"
	"github.com/mautops/permit-gin/internal/service"
	"github.com/mautops/permit-gin/internal/websocket"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、服务、通知器等
type Container struct {
	db                *gorm.DB
	hub               *websocket.Hub
	allocator         sequence.Allocator
	notifier          *integration.EventNotifier
	permitService     service.PermitService
	sweeperService    service.SweeperService
	queryService      service.QueryService
	keycloakValidator *auth.KeycloakTokenValidator
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config) (*Container, error) {
	// 1. 初始化数据库（带重试机制）
	// 默认重试 3 次，初始间隔 1 秒，指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 执行数据库迁移
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// 2. 初始化 WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// 3. 初始化事件通知器
	notifier := integration.NewEventNotifier(db, hub, cfg.Notify.WebhookURL, cfg.Notify.Workers)

	// 4. 初始化编号分配器与各服务
	allocator := sequence.NewAllocator(db)
	permitService := service.NewPermitService(db, allocator, cfg.Permit.NumberPrefix, notifier)
	sweeperService := service.NewSweeperService(db, api.GetLogger())
	queryService := service.NewQueryService(db)

	// 5. 初始化 Keycloak Token 验证器
	// 未配置 issuer 时不启用认证,路由层按 nil 验证器跳过认证中间件
	var keycloakValidator *auth.KeycloakTokenValidator
	if cfg.Keycloak.Issuer != "" {
		keycloakValidator = auth.NewKeycloakTokenValidator(cfg.Keycloak.Issuer)
	}

	return &Container{
		db:                db,
		hub:               hub,
		allocator:         allocator,
		notifier:          notifier,
		permitService:     permitService,
		sweeperService:    sweeperService,
		queryService:      queryService,
		keycloakValidator: keycloakValidator,
	}, nil
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Hub 获取 WebSocket Hub
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// Allocator 获取编号分配器
func (c *Container) Allocator() sequence.Allocator {
	return c.allocator
}

// Notifier 获取事件通知器
func (c *Container) Notifier() *integration.EventNotifier {
	return c.notifier
}

// PermitService 获取许可单服务
func (c *Container) PermitService() service.PermitService {
	return c.permitService
}

// SweeperService 获取自动关闭清扫服务
func (c *Container) SweeperService() service.SweeperService {
	return c.sweeperService
}

// QueryService 获取查询服务
func (c *Container) QueryService() service.QueryService {
	return c.queryService
}

// KeycloakValidator 获取 Keycloak Token 验证器
func (c *Container) KeycloakValidator() *auth.KeycloakTokenValidator {
	return c.keycloakValidator
}

// Controllers 构建路由控制器集合
func (c *Container) Controllers() *api.Controllers {
	return &api.Controllers{
		Permit:   api.NewPermitController(c.permitService),
		Approval: api.NewApprovalController(c.permitService, c.sweeperService),
		Query:    api.NewQueryController(c.queryService),
	}
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	if c.notifier != nil {
		c.notifier.Stop()
	}

	if c.db != nil {
		sqlDB, err := c.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}

	return nil
}
