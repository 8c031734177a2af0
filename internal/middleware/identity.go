package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"roles-service/internal/policy"
)

// Claims represents the JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// IdentityMiddleware resolves the calling user. Behind the gateway
// the identity arrives as X-User-ID / X-User-Role headers; direct
// callers present a Bearer token instead. Header identity wins when
// both are present.
func IdentityMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		userRole := c.GetHeader("X-User-Role")

		if userID == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.JSON(http.StatusUnauthorized, gin.H{
					"success": false,
					"error": gin.H{
						"code":    "MISSING_IDENTITY",
						"message": "X-User-ID header or Authorization bearer token is required",
					},
				})
				c.Abort()
				return
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{
					"success": false,
					"error": gin.H{
						"code":    "INVALID_TOKEN_FORMAT",
						"message": "Authorization header must be in format: Bearer <token>",
					},
				})
				c.Abort()
				return
			}

			token, err := jwt.ParseWithClaims(tokenParts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				c.JSON(http.StatusUnauthorized, gin.H{
					"success": false,
					"error": gin.H{
						"code":    "INVALID_TOKEN",
						"message": "Invalid or expired token",
					},
				})
				c.Abort()
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok {
				c.JSON(http.StatusUnauthorized, gin.H{
					"success": false,
					"error": gin.H{
						"code":    "INVALID_CLAIMS",
						"message": "Invalid token claims",
					},
				})
				c.Abort()
				return
			}

			userID = claims.UserID
			userRole = claims.Role
			if claims.TenantID != "" {
				c.Set("tenant_id", claims.TenantID)
			}
		}

		parsedID, err := uuid.Parse(userID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_USER_ID",
					"message": "User ID must be a valid UUID",
				},
			})
			c.Abort()
			return
		}

		c.Set("user_id", parsedID)
		c.Set("user_role", userRole)
		c.Next()
	}
}

// GetUserID retrieves the authenticated user ID from gin context
func GetUserID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get("user_id"); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// GetUserRole retrieves the authenticated user's role from gin context
func GetUserRole(c *gin.Context) policy.Role {
	return policy.Role(c.GetString("user_role"))
}

// RequireRole rejects callers whose role sits below the given level.
func RequireRole(minimum policy.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetUserRole(c)
		if !policy.IsKnown(role) {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NO_ROLE",
					"message": "A recognized role is required for this operation",
				},
			})
			c.Abort()
			return
		}

		ok, err := policy.HasAuthorityOver(role, minimum)
		if err != nil || !ok {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INSUFFICIENT_ROLE",
					"message": fmt.Sprintf("Role %s is required for this operation", minimum),
				},
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
