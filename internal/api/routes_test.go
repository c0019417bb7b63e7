package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/permit-gin/internal/api"
	"github.com/mautops/permit-gin/internal/config"
	"github.com/mautops/permit-gin/internal/database"
	"github.com/mautops/permit-gin/internal/sequence"
	"github.com/mautops/permit-gin/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupRouter 构建测试路由,关闭认证中间件
func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	permitService := service.NewPermitService(db, sequence.NewAllocator(db), "RGDGTLWP", nil)
	sweeperService := service.NewSweeperService(db, nil)
	queryService := service.NewQueryService(db)

	controllers := &api.Controllers{
		Permit:   api.NewPermitController(permitService),
		Approval: api.NewApprovalController(permitService, sweeperService),
		Query:    api.NewQueryController(queryService),
	}
	return api.SetupRoutes(nil, nil, db, controllers), db
}

// doJSON 发送 JSON 请求并返回响应
func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// createPermitViaAPI 通过接口创建许可单并返回其 ID
func createPermitViaAPI(t *testing.T, router *gin.Engine) string {
	w := doJSON(router, http.MethodPost, "/api/v1/permits", map[string]interface{}{
		"title":      "高空检修作业",
		"work_type":  "hot-work",
		"location":   "3 号车间屋面",
		"start_date": time.Now().Format(time.RFC3339),
		"end_date":   time.Now().Add(48 * time.Hour).Format(time.RFC3339),
		"owner_id":   "user-001",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			ID           string `json:"id"`
			PermitNumber string `json:"permit_number"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.ID)
	return resp.Data.ID
}

// pendingApprovalID 查出许可单的待决审批记录 ID
func pendingApprovalID(t *testing.T, db *gorm.DB, permitID string) string {
	var id string
	require.NoError(t, db.Raw(
		"SELECT id FROM approval_records WHERE permit_id = ? AND decision = 'PENDING'", permitID,
	).Scan(&id).Error)
	require.NotEmpty(t, id)
	return id
}

// approveViaAPI 通过接口批准许可单
func approveViaAPI(t *testing.T, router *gin.Engine, db *gorm.DB, permitID string) {
	recordID := pendingApprovalID(t, db, permitID)
	w := doJSON(router, http.MethodPut, "/api/v1/approvals/"+recordID+"/decision", map[string]string{
		"decision": "APPROVED",
		"comment":  "同意施工",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

// TestRoutes_CreatePermit 创建接口返回 201
func TestRoutes_CreatePermit(t *testing.T) {
	router, _ := setupRouter(t)

	id := createPermitViaAPI(t, router)
	assert.NotEmpty(t, id)
}

// TestRoutes_CreatePermit_MissingTitle 缺少必填字段返回 400
func TestRoutes_CreatePermit_MissingTitle(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/permits", map[string]interface{}{
		"work_type":  "hot-work",
		"start_date": time.Now().Format(time.RFC3339),
		"end_date":   time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestRoutes_GetPermit 详情与 404
func TestRoutes_GetPermit(t *testing.T) {
	router, _ := setupRouter(t)
	id := createPermitViaAPI(t, router)

	w := doJSON(router, http.MethodGet, "/api/v1/permits/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/permits/00000000-0000-0000-0000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestRoutes_GetPermit_InvalidID 非法 ID 返回 400
func TestRoutes_GetPermit_InvalidID(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(router, http.MethodGet, "/api/v1/permits/bad%20id%3Bdrop", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestRoutes_Decide 审批决定接口
func TestRoutes_Decide(t *testing.T) {
	router, db := setupRouter(t)
	id := createPermitViaAPI(t, router)
	recordID := pendingApprovalID(t, db, id)

	w := doJSON(router, http.MethodPut, "/api/v1/approvals/"+recordID+"/decision", map[string]string{
		"decision": "APPROVED",
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 重复决定映射为 409
	w = doJSON(router, http.MethodPut, "/api/v1/approvals/"+recordID+"/decision", map[string]string{
		"decision": "REJECTED",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

// TestRoutes_LifecycleTransitions 延期、吊销、重批、关闭走通
func TestRoutes_LifecycleTransitions(t *testing.T) {
	router, db := setupRouter(t)
	id := createPermitViaAPI(t, router)
	approveViaAPI(t, router, db, id)

	w := doJSON(router, http.MethodPost, "/api/v1/permits/"+id+"/revoke", map[string]string{
		"reason": "现场安全条件不达标",
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(router, http.MethodPost, "/api/v1/permits/"+id+"/reapprove", map[string]string{
		"comment": "整改完成",
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 重批后的许可单不能直接关闭,映射为 409
	w = doJSON(router, http.MethodPost, "/api/v1/permits/"+id+"/close", map[string]interface{}{})
	assert.Equal(t, http.StatusConflict, w.Code)
}

// TestRoutes_Close 关闭接口
func TestRoutes_Close(t *testing.T) {
	router, db := setupRouter(t)
	id := createPermitViaAPI(t, router)
	approveViaAPI(t, router, db, id)

	w := doJSON(router, http.MethodPost, "/api/v1/permits/"+id+"/close", map[string]interface{}{
		"closure_checklist": map[string]bool{"area_cleared": true},
		"comments":          "作业完成",
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

// TestRoutes_ListPermits 列表接口与分页结构
func TestRoutes_ListPermits(t *testing.T) {
	router, _ := setupRouter(t)
	for i := 0; i < 3; i++ {
		createPermitViaAPI(t, router)
	}

	w := doJSON(router, http.MethodGet, "/api/v1/permits?page=1&page_size=2&status=PENDING", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data       []json.RawMessage  `json:"data"`
		Pagination api.PaginationInfo `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, int64(3), resp.Pagination.Total)
	assert.Equal(t, 2, resp.Pagination.TotalPage)
}

// TestRoutes_ListPermits_BadSortField 非法排序字段返回 400
func TestRoutes_ListPermits_BadSortField(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(router, http.MethodGet, "/api/v1/permits?sort_by=owner_id", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestRoutes_AutoClose 手动触发自动关闭
func TestRoutes_AutoClose(t *testing.T) {
	router, db := setupRouter(t)
	id := createPermitViaAPI(t, router)
	approveViaAPI(t, router, db, id)

	// 把截止时间改到过去
	require.NoError(t, db.Exec(
		"UPDATE permits SET end_date = ? WHERE id = ?",
		time.Now().Add(-time.Hour), id,
	).Error)

	w := doJSON(router, http.MethodPost, "/api/v1/approvals/auto-close", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data service.SweepResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.RegularClosed)
	assert.Equal(t, 1, resp.Data.ClosedCount)
	assert.Contains(t, w.Body.String(), `"closed_count":1`)

	// 幂等:再次触发关闭零条
	w = doJSON(router, http.MethodPost, "/api/v1/approvals/auto-close", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Data.RegularClosed)
	assert.Equal(t, 0, resp.Data.ClosedCount)
}

// TestRoutes_ActionHistoryAndApprovals 历史与审批查询接口
func TestRoutes_ActionHistoryAndApprovals(t *testing.T) {
	router, db := setupRouter(t)
	id := createPermitViaAPI(t, router)
	approveViaAPI(t, router, db, id)

	w := doJSON(router, http.MethodPost, "/api/v1/permits/"+id+"/revoke", map[string]string{
		"reason": "隐患",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/permits/"+id+"/action-history", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/permits/"+id+"/approvals", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/permits/"+id+"/export", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestRoutes_Health 健康检查
func TestRoutes_Health(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestRoutes_NotFound 未注册路由返回 JSON 404
func TestRoutes_NotFound(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(router, http.MethodGet, "/api/v1/no-such-route", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
}

// TestRoutes_RateLimit 限流启用后超额请求返回 429
func TestRoutes_RateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	permitService := service.NewPermitService(db, sequence.NewAllocator(db), "RGDGTLWP", nil)
	controllers := &api.Controllers{
		Permit:   api.NewPermitController(permitService),
		Approval: api.NewApprovalController(permitService, service.NewSweeperService(db, nil)),
		Query:    api.NewQueryController(service.NewQueryService(db)),
	}
	router := api.SetupRoutesWithConfig(nil, nil, db, controllers, api.RouterConfig{
		SwaggerHost: "localhost",
		Port:        8080,
		RateLimit:   &config.RateLimitConfig{Enabled: true, RPS: 1, Burst: 1},
	})

	w := doJSON(router, http.MethodGet, "/api/v1/permits", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/permits", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// 限流只作用于 API 路由组
	w = doJSON(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestRoutes_RequestIDHeader 响应带请求 ID,传入时原样回传
func TestRoutes_RequestIDHeader(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "fixed-id-123", w.Header().Get("X-Request-ID"))
}
