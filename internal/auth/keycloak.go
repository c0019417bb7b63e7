package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// KeycloakClaims Keycloak JWT 声明
type KeycloakClaims struct {
	Sub               string `json:"sub"`
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	jwt.RegisteredClaims
}

// Principal 将声明映射为已认证主体
// 取 realm 角色列表的首个角色作为主体角色
func (c *KeycloakClaims) Principal() Principal {
	role := ""
	if len(c.RealmAccess.Roles) > 0 {
		role = c.RealmAccess.Roles[0]
	}
	return Principal{
		ID:        c.Sub,
		FirstName: c.GivenName,
		LastName:  c.FamilyName,
		Role:      role,
	}
}

// KeycloakTokenValidator Keycloak Token 验证器
type KeycloakTokenValidator struct {
	issuer     string
	jwksURL    string
	jwksCache  *sync.Map
	httpClient *http.Client
}

// NewKeycloakTokenValidator 创建 Keycloak Token 验证器
func NewKeycloakTokenValidator(issuer string) *KeycloakTokenValidator {
	jwksURL := fmt.Sprintf("%s/protocol/openid-connect/certs", issuer)
	return &KeycloakTokenValidator{
		issuer:     issuer,
		jwksURL:    jwksURL,
		jwksCache:  &sync.Map{},
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Issuer 返回 Issuer URL
func (v *KeycloakTokenValidator) Issuer() string {
	return v.issuer
}

// ValidateToken 验证 Keycloak JWT Token
func (v *KeycloakTokenValidator) ValidateToken(tokenString string) (*KeycloakClaims, error) {
	// 1. 解析 token (不验证签名),拿到 kid
	token, err := jwt.ParseWithClaims(tokenString, &KeycloakClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return nil, nil
	})
	if err != nil && token == nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	kid, ok := token.Header["kid"].(string)
	if !ok {
		return nil, errors.New("missing kid in token header")
	}

	// 2. 获取公钥
	publicKey, err := v.GetPublicKey(kid)
	if err != nil {
		return nil, fmt.Errorf("failed to get public key: %w", err)
	}

	// 3. 重新解析并验证 token
	token, err = jwt.ParseWithClaims(tokenString, &KeycloakClaims{}, func(token *jwt.Token) (interface{}, error) {
		return publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}

	// 4. 验证 claims
	if claims, ok := token.Claims.(*KeycloakClaims); ok && token.Valid {
		if claims.Issuer != v.issuer {
			return nil, errors.New("invalid issuer")
		}
		if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
			return nil, errors.New("token expired")
		}
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// GetPublicKey 获取公钥 (从 JWKS 或缓存)
func (v *KeycloakTokenValidator) GetPublicKey(kid string) (interface{}, error) {
	if cached, ok := v.jwksCache.Load(kid); ok {
		return cached, nil
	}

	resp, err := v.httpClient.Get(v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			Use string `json:"use"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	for _, key := range jwks.Keys {
		if key.Kid == kid {
			publicKey, err := parseRSAPublicKey(key.N, key.E)
			if err != nil {
				return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
			}
			v.jwksCache.Store(kid, publicKey)
			return publicKey, nil
		}
	}

	return nil, fmt.Errorf("key not found in JWKS: %s", kid)
}

// parseRSAPublicKey 解析 RSA 公钥
func parseRSAPublicKey(nStr, eStr string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode n: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode e: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := int(new(big.Int).SetBytes(eBytes).Int64())

	return &rsa.PublicKey{N: n, E: e}, nil
}

// KeycloakAuthMiddleware Keycloak JWT 认证中间件
// 验证通过后把主体写入请求 context,供服务层消费
func KeycloakAuthMiddleware(validator *KeycloakTokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "missing authorization header",
			})
			c.Abort()
			return
		}

		if len(token) > 7 && token[:7] == "Bearer " {
			token = token[7:]
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "invalid token",
				"detail":  err.Error(),
			})
			c.Abort()
			return
		}

		SetGinPrincipal(c, claims.Principal())
		c.Set("username", claims.PreferredUsername)
		c.Set("email", claims.Email)

		c.Next()
	}
}
