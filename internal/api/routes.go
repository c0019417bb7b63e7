package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	_ "github.com/mautops/permit-gin/docs" // 导入生成的 docs 包
	"github.com/mautops/permit-gin/internal/auth"
	"github.com/mautops/permit-gin/internal/config"
	"github.com/mautops/permit-gin/internal/websocket"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// Controllers 路由依赖的控制器集合
type Controllers struct {
	Permit   *PermitController
	Approval *ApprovalController
	Query    *QueryController
}

// RouterConfig 路由构建选项
type RouterConfig struct {
	SwaggerHost    string
	Port           int
	CORS           *config.CORSConfig
	RateLimit      *config.RateLimitConfig
	TracingEnabled bool
}

// SetupRoutes 配置路由,使用默认 Swagger 地址且不启用 CORS
func SetupRoutes(hub *websocket.Hub, validator *auth.KeycloakTokenValidator, db *gorm.DB, controllers *Controllers) *gin.Engine {
	return SetupRoutesWithConfig(hub, validator, db, controllers, RouterConfig{
		SwaggerHost: "localhost",
		Port:        8080,
	})
}

// SetupRoutesWithConfig 按配置构建路由
func SetupRoutesWithConfig(
	hub *websocket.Hub,
	validator *auth.KeycloakTokenValidator,
	db *gorm.DB,
	controllers *Controllers,
	rc RouterConfig,
) *gin.Engine {
	router := gin.Default()

	// 中间件
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware())
	router.Use(ErrorHandlerMiddleware())
	router.Use(SecurityHeadersMiddleware())
	if rc.TracingEnabled {
		router.Use(TracingMiddleware())
	}
	if rc.CORS != nil && len(rc.CORS.AllowedOrigins) > 0 {
		router.Use(CORSMiddleware(rc.CORS.AllowedOrigins))
	}

	// 健康检查
	healthController := NewHealthController(db)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", MetricsHandler)

	// WebSocket 路由
	if hub != nil && validator != nil {
		router.GET("/ws/permits/:id", websocket.WebSocketHandler(hub, validator))
	}

	// Swagger UI 路由
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.URL(fmt.Sprintf("http://%s:%d/swagger/doc.json", rc.SwaggerHost, rc.Port)), // Swagger JSON URL
	))

	// API v1 路由组
	v1 := router.Group("/api/v1")
	if rc.RateLimit != nil && rc.RateLimit.Enabled {
		v1.Use(RateLimitMiddleware(rc.RateLimit.RPS, rc.RateLimit.Burst))
	}
	if validator != nil {
		v1.Use(auth.KeycloakAuthMiddleware(validator))
	}
	{
		// 许可单管理路由
		permits := v1.Group("/permits")
		{
			permits.POST("", controllers.Permit.Create)
			permits.GET("", controllers.Query.ListPermits)
			permits.GET("/:id", controllers.Permit.Get)
			permits.POST("/:id/extend", controllers.Permit.Extend)
			permits.POST("/:id/revoke", controllers.Permit.Revoke)
			permits.POST("/:id/reapprove", controllers.Permit.Reapprove)
			permits.POST("/:id/close", controllers.Permit.Close)
			permits.POST("/:id/remarks", controllers.Permit.AddSafetyRemarks)
			permits.POST("/:id/transfer", controllers.Permit.TransferOwner)
			permits.GET("/:id/action-history", controllers.Query.GetActionHistory)
			permits.GET("/:id/approvals", controllers.Query.GetApprovals)
			permits.GET("/:id/export", controllers.Query.Export)
		}

		// 审批管理路由
		approvals := v1.Group("/approvals")
		{
			approvals.PUT("/:id/decision", controllers.Approval.Decide)
			approvals.POST("/auto-close", controllers.Approval.AutoClose)
		}
	}

	// 自定义 NoRoute 处理器,返回 JSON 格式的 404
	router.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, "route not found", "the requested route does not exist")
	})

	return router
}
