package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/EQSP-Task-Manager/backend-draft/internal/models"
)

// Context keys populated by the middleware below.
const (
	UserIDKey   = "user_id"
	DeviceIDKey = "device_id"
)

// DeviceIDHeader identifies which of the user's devices issued a request.
// Sync clients must always send it.
const DeviceIDHeader = "X-Device-Id"

// Auth verifies the bearer token and resolves the calling user's identity
// into the request context. Every storage row is scoped by this identity,
// so multi-tenancy lives entirely at this boundary.
func Auth(jwtKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
			return
		}
		tokenString := authHeader[7:]

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(jwtKey), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
			return
		}

		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
			return
		}

		c.Set(UserIDKey, subject)
		c.Next()
	}
}

// DeviceID rejects sync requests that do not declare a device identity.
func DeviceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		deviceID := c.GetHeader(DeviceIDHeader)
		if deviceID == "" {
			c.AbortWithStatusJSON(http.StatusForbidden,
				models.ErrorResponse{Error: DeviceIDHeader + " header is not provided"})
			return
		}
		c.Set(DeviceIDKey, deviceID)
		c.Next()
	}
}
