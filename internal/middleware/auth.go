package middleware

import (
	"errors"
	"net/http"
	"strings"

	"console/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by the auth middleware.
const (
	KeyUserID   = "userID"
	KeyUserRole = "userRole"
	KeyRoleID   = "roleID"
)

var errMissingToken = errors.New("Authorization is missing")

// Auth validates bearer tokens and authorizes by role name or permission code.
type Auth struct {
	secret []byte
	cache  *PermissionCache
}

func NewAuth(secret []byte, cache *PermissionCache) *Auth {
	return &Auth{secret: secret, cache: cache}
}

// Claims is what a verified token says about its bearer.
type Claims struct {
	UserID string
	Role   string
	RoleID string
}

// Parse verifies tokenString and extracts its claims.
func (a *Auth) Parse(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}
	if !token.Valid {
		return Claims{}, jwt.ErrTokenInvalidClaims
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, jwt.ErrTokenInvalidClaims
	}
	c := Claims{}
	c.UserID, _ = mc["sub"].(string)
	c.Role, _ = mc["role"].(string)
	c.RoleID, _ = mc["role_id"].(string)
	return c, nil
}

// tokenFromRequest reads the bearer token, falling back to the access_token cookie.
func tokenFromRequest(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if cookie, err := c.Cookie("access_token"); err == nil && cookie != "" {
			return cookie, nil
		}
		return "", errMissingToken
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("Invalid authorization format. Expected 'Bearer <token>'")
	}
	return parts[1], nil
}

// authenticate sets the claims on the context or aborts with 401.
func (a *Auth) authenticate(c *gin.Context) (Claims, bool) {
	tokenString, err := tokenFromRequest(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		return Claims{}, false
	}

	claims, err := a.Parse(tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token: "+err.Error()))
		return Claims{}, false
	}

	c.Set(KeyUserID, claims.UserID)
	c.Set(KeyUserRole, claims.Role)
	c.Set(KeyRoleID, claims.RoleID)
	return claims, true
}

// Authenticated accepts any valid token.
func (a *Auth) Authenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := a.authenticate(c); !ok {
			return
		}
		c.Next()
	}
}

// RequireRole validates the JWT token and checks the user's role is one of allowedRoles
func (a *Auth) RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := a.authenticate(c)
		if !ok {
			return
		}
		if claims.Role == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Role not found in token"))
			return
		}

		for _, role := range allowedRoles {
			if claims.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
	}
}

// RequirePermission checks that the user's role holds every code in
// requiredPerms ("<module>.<kind>"). Codes come from the cache, so a revoked
// permission keeps working until the entry expires.
func (a *Auth) RequirePermission(requiredPerms ...string) gin.HandlerFunc {
	return a.RequirePermissionFrom(func(*gin.Context) []string { return requiredPerms })
}

// RequirePermissionFrom is RequirePermission with the codes derived from the request.
func (a *Auth) RequirePermissionFrom(codes func(c *gin.Context) []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		requiredPerms := codes(c)
		claims, ok := a.authenticate(c)
		if !ok {
			return
		}
		if claims.RoleID == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: no role assigned"))
			return
		}

		userPerms, err := a.cache.Codes(c.Request.Context(), claims.RoleID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify permissions"))
			return
		}

		permSet := make(map[string]bool, len(userPerms))
		for _, p := range userPerms {
			permSet[p] = true
		}
		for _, required := range requiredPerms {
			if !permSet[required] {
				c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: missing permission '"+required+"'"))
				return
			}
		}

		c.Next()
	}
}
