package auth

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

// contextKey context 键类型
type contextKey string

// principalContextKey 已认证主体在 context 中的键
const principalContextKey contextKey = "principal"

// Principal 已认证主体
// 由认证协作方签发,本服务只消费,不做认证与权限判定
type Principal struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// FullName 返回主体全名
func (p Principal) FullName() string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return p.ID
	}
	return name
}

// IDOrSystem 返回主体 ID,匿名调用方回落为 system
func (p Principal) IDOrSystem() string {
	if p.ID == "" {
		return "system"
	}
	return p.ID
}

// WithPrincipal 将主体写入 context
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// FromContext 从 context 读取主体,缺失时返回零值
func FromContext(ctx context.Context) Principal {
	if ctx == nil {
		return Principal{}
	}
	if p, ok := ctx.Value(principalContextKey).(Principal); ok {
		return p
	}
	return Principal{}
}

// SetGinPrincipal 将主体同时写入 gin context 与请求 context
// 由认证中间件调用,服务层统一通过 FromContext 读取
func SetGinPrincipal(c *gin.Context, p Principal) {
	c.Set("user_id", p.ID)
	c.Set(string(principalContextKey), p)
	c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
}
