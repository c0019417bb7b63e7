package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/permit-gin/internal/lifecycle"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 错误处理中间件
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()

			var apiErr *APIError
			if errors.As(err, &apiErr) {
				Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
			} else {
				Error(c, http.StatusInternalServerError, "internal server error", err.Error())
			}
		}
	}
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}

// RespondError 将生命周期错误映射为 HTTP 状态码并返回
// 非法迁移视为资源当前状态的冲突而不是请求格式问题
func RespondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch lifecycle.KindOf(err) {
	case lifecycle.KindValidation:
		status = http.StatusBadRequest
	case lifecycle.KindNotFound:
		status = http.StatusNotFound
	case lifecycle.KindInvalidState, lifecycle.KindConflict:
		status = http.StatusConflict
	case lifecycle.KindPersistence:
		status = http.StatusInternalServerError
	}
	Error(c, status, err.Error(), "")
}
