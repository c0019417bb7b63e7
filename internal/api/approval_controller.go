package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/permit-gin/internal/service"
	"github.com/mautops/permit-gin/internal/utils"
)

// ApprovalController 审批控制器
type ApprovalController struct {
	permitService  service.PermitService
	sweeperService service.SweeperService
}

// NewApprovalController 创建审批控制器
func NewApprovalController(permitService service.PermitService, sweeperService service.SweeperService) *ApprovalController {
	return &ApprovalController{
		permitService:  permitService,
		sweeperService: sweeperService,
	}
}

// Decide 审批决定
// @Summary      对待决审批记录作出决定
// @Description  同意或拒绝一条待决审批记录,重复决定返回冲突
// @Tags         审批管理
// @Accept       json
// @Produce      json
// @Param        id path string true "审批记录 ID"
// @Param        request body service.DecideRequest true "审批决定"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /approvals/{id}/decision [put]
// @Security     BearerAuth
func (c *ApprovalController) Decide(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateRecordID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid approval record ID", err.Error())
		return
	}

	var req service.DecideRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	record, err := c.permitService.Decide(ctx.Request.Context(), id, &req)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, record)
}

// AutoClose 触发过期许可单自动关闭
// @Summary      自动关闭过期许可单
// @Description  扫描过期许可单并逐条关闭,返回关闭数量与失败明细;重复调用幂等
// @Tags         审批管理
// @Produce      json
// @Success      200  {object}  Response
// @Failure      500  {object}  ErrorResponse
// @Router       /approvals/auto-close [post]
// @Security     BearerAuth
func (c *ApprovalController) AutoClose(ctx *gin.Context) {
	result, err := c.sweeperService.Sweep(ctx.Request.Context(), time.Now())
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, result)
}
