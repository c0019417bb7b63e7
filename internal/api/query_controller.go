package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mautops/permit-gin/internal/service"
	"github.com/mautops/permit-gin/internal/utils"
)

// QueryController 查询控制器
type QueryController struct {
	queryService service.QueryService
}

// NewQueryController 创建查询控制器
func NewQueryController(queryService service.QueryService) *QueryController {
	return &QueryController{
		queryService: queryService,
	}
}

// ListPermits 列出许可单
// @Summary      获取许可单列表
// @Description  分页获取许可单列表,支持状态与作业类型过滤、排序
// @Tags         查询统计
// @Accept       json
// @Produce      json
// @Param        status query string false "许可单状态"
// @Param        work_type query string false "作业类型"
// @Param        page query int false "页码" default(1)
// @Param        page_size query int false "每页数量" default(20)
// @Param        sort_by query string false "排序字段" default(created_at)
// @Param        order query string false "排序方向" Enums(asc, desc) default(desc)
// @Success      200  {object}  PaginatedResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /permits [get]
// @Security     BearerAuth
func (c *QueryController) ListPermits(ctx *gin.Context) {
	query := &service.ListPermitsQuery{
		Status:    ctx.Query("status"),
		WorkType:  ctx.Query("work_type"),
		SortBy:    ctx.Query("sort_by"),
		SortOrder: ctx.Query("order"),
		Page:      1,
		PageSize:  20,
	}

	if pageStr := ctx.Query("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			query.Page = page
		}
	}
	if pageSizeStr := ctx.Query("page_size"); pageSizeStr != "" {
		if pageSize, err := strconv.Atoi(pageSizeStr); err == nil && pageSize > 0 {
			query.PageSize = pageSize
		}
	}

	permits, total, err := c.queryService.ListPermits(ctx.Request.Context(), query)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	// 计算总页数
	totalPage := int((total + int64(query.PageSize) - 1) / int64(query.PageSize))

	Paginated(ctx, permits, PaginationInfo{
		Page:      query.Page,
		PageSize:  query.PageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}

// GetActionHistory 获取操作历史
// @Summary      获取许可单操作历史
// @Description  按时间顺序返回许可单的全部操作历史
// @Tags         查询统计
// @Produce      json
// @Param        id path string true "许可单 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /permits/{id}/action-history [get]
// @Security     BearerAuth
func (c *QueryController) GetActionHistory(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidatePermitID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid permit ID", err.Error())
		return
	}

	entries, err := c.queryService.GetActionHistory(ctx.Request.Context(), id)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, entries)
}

// GetApprovals 获取审批记录
// @Summary      获取许可单审批记录
// @Description  按插入顺序返回许可单的全部审批记录
// @Tags         查询统计
// @Produce      json
// @Param        id path string true "许可单 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /permits/{id}/approvals [get]
// @Security     BearerAuth
func (c *QueryController) GetApprovals(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidatePermitID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid permit ID", err.Error())
		return
	}

	records, err := c.queryService.GetApprovals(ctx.Request.Context(), id)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, records)
}

// Export 导出许可单聚合
// @Summary      导出许可单聚合视图
// @Description  返回许可单及其完整审批与操作历史,供 PDF 等下游消费
// @Tags         查询统计
// @Produce      json
// @Param        id path string true "许可单 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /permits/{id}/export [get]
// @Security     BearerAuth
func (c *QueryController) Export(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidatePermitID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid permit ID", err.Error())
		return
	}

	aggregate, err := c.queryService.GetAggregate(ctx.Request.Context(), id)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, aggregate)
}
