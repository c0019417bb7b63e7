package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/permit-gin/internal/service"
	"github.com/mautops/permit-gin/internal/utils"
)

// PermitController 许可单控制器
type PermitController struct {
	permitService service.PermitService
}

// NewPermitController 创建许可单控制器
func NewPermitController(permitService service.PermitService) *PermitController {
	return &PermitController{
		permitService: permitService,
	}
}

// validatePermitID 验证许可单 ID 并返回错误响应（如果无效）
func (c *PermitController) validatePermitID(ctx *gin.Context, id string) bool {
	if err := utils.ValidatePermitID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid permit ID", err.Error())
		return false
	}
	return true
}

// Create 创建许可单
// @Summary      创建工作许可单
// @Description  分配许可单编号并创建待审批的许可单
// @Tags         许可单管理
// @Accept       json
// @Produce      json
// @Param        request body service.CreatePermitRequest true "许可单信息"
// @Success      201  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /permits [post]
// @Security     BearerAuth
func (c *PermitController) Create(ctx *gin.Context) {
	var req service.CreatePermitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := utils.ValidatePermitTitle(req.Title); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid permit title", err.Error())
		return
	}

	permit, err := c.permitService.Create(ctx.Request.Context(), &req)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Created(ctx, permit)
}

// Get 获取许可单
// @Summary      获取许可单详情
// @Description  根据 ID 获取许可单详情
// @Tags         许可单管理
// @Accept       json
// @Produce      json
// @Param        id path string true "许可单 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /permits/{id} [get]
// @Security     BearerAuth
func (c *PermitController) Get(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validatePermitID(ctx, id) {
		return
	}

	permit, err := c.permitService.Get(ctx.Request.Context(), id)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, permit)
}

// Extend 延期许可单
// @Summary      延长许可单有效期
// @Description  将已批准的许可单延期到新的截止时间
// @Tags         许可单管理
// @Accept       json
// @Produce      json
// @Param        id path string true "许可单 ID"
// @Param        request body service.ExtendRequest true "延期信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /permits/{id}/extend [post]
// @Security     BearerAuth
func (c *PermitController) Extend(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validatePermitID(ctx, id) {
		return
	}

	var req service.ExtendRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	permit, err := c.permitService.Extend(ctx.Request.Context(), id, &req)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, permit)
}

// Revoke 吊销许可单
// @Summary      吊销许可单
// @Description  吊销生效中的许可单,原因必填
// @Tags         许可单管理
// @Accept       json
// @Produce      json
// @Param        id path string true "许可单 ID"
// @Param        request body service.RevokeRequest true "吊销信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /permits/{id}/revoke [post]
// @Security     BearerAuth
func (c *PermitController) Revoke(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validatePermitID(ctx, id) {
		return
	}

	var req service.RevokeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	permit, err := c.permitService.Revoke(ctx.Request.Context(), id, &req)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, permit)
}

// Reapprove 重新审批许可单
// @Summary      重新审批已吊销的许可单
// @Description  吊销整改后重新批准,追加新的审批记录
// @Tags         许可单管理
// @Accept       json
// @Produce      json
// @Param        id path string true "许可单 ID"
// @Param        request body service.ReapproveRequest true "重新审批信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /permits/{id}/reapprove [post]
// @Security     BearerAuth
func (c *PermitController) Reapprove(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validatePermitID(ctx, id) {
		return
	}

	var req service.ReapproveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	permit, err := c.permitService.Reapprove(ctx.Request.Context(), id, &req)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, permit)
}

// Close 关闭许可单
// @Summary      关闭许可单
// @Description  作业完成后关闭许可单,记录关闭检查清单
// @Tags         许可单管理
// @Accept       json
// @Produce      json
// @Param        id path string true "许可单 ID"
// @Param        request body service.ClosePermitRequest true "关闭信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /permits/{id}/close [post]
// @Security     BearerAuth
func (c *PermitController) Close(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validatePermitID(ctx, id) {
		return
	}

	var req service.ClosePermitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	permit, err := c.permitService.Close(ctx.Request.Context(), id, &req)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, permit)
}

// AddSafetyRemarks 追加安全备注
// @Summary      追加安全备注
// @Description  在许可单上追加或覆盖安全备注
// @Tags         许可单管理
// @Accept       json
// @Produce      json
// @Param        id path string true "许可单 ID"
// @Param        request body service.SafetyRemarksRequest true "备注信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /permits/{id}/remarks [post]
// @Security     BearerAuth
func (c *PermitController) AddSafetyRemarks(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validatePermitID(ctx, id) {
		return
	}

	var req service.SafetyRemarksRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	req.Remarks = utils.SanitizeString(req.Remarks)

	permit, err := c.permitService.AddSafetyRemarks(ctx.Request.Context(), id, &req)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, permit)
}

// TransferOwner 转移持有人
// @Summary      转移许可单持有人
// @Description  将许可单转移给新的持有人
// @Tags         许可单管理
// @Accept       json
// @Produce      json
// @Param        id path string true "许可单 ID"
// @Param        request body service.TransferOwnerRequest true "转移信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /permits/{id}/transfer [post]
// @Security     BearerAuth
func (c *PermitController) TransferOwner(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.validatePermitID(ctx, id) {
		return
	}

	var req service.TransferOwnerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	permit, err := c.permitService.TransferOwner(ctx.Request.Context(), id, &req)
	if err != nil {
		RespondError(ctx, err)
		return
	}

	Success(ctx, permit)
}
