package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/wajah/internal/auth"
	"github.com/satriahrh/wajah/internal/metrics"
)

const deviceIDKey = "deviceID"

// Metrics records request counts and latency per route
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status)
			metrics.RequestCount.WithLabelValues(method, path, status).Inc()
			metrics.RequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// bearerToken extracts the JWT from the Authorization header only
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// authenticate validates a device token and returns its device ID. On
// failure it writes the response itself and returns an empty ID.
func authenticate(c echo.Context, signer *auth.Signer, logger *zap.Logger) (string, error) {
	token := bearerToken(c)
	if token == "" {
		logger.Warn("Request rejected: missing token", zap.String("path", c.Path()))
		return "", c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in Authorization header",
		})
	}

	claims, err := signer.ValidateToken(token)
	if err != nil {
		logger.Warn("Request rejected: invalid token", zap.Error(err))
		return "", c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	if claims.Role != auth.RoleDevice {
		logger.Warn("Request rejected: invalid role", zap.String("role", claims.Role))
		return "", c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only device tokens are allowed",
		})
	}

	if claims.DeviceID == "" {
		logger.Error("Request rejected: missing device ID in token")
		return "", c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Device ID not found in token",
		})
	}
	return claims.DeviceID, nil
}

// RequireDevice only lets requests with a valid device token through
func RequireDevice(signer *auth.Signer, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			deviceID, err := authenticate(c, signer, logger)
			if deviceID == "" {
				return err
			}
			c.Set(deviceIDKey, deviceID)
			return next(c)
		}
	}
}

func deviceID(c echo.Context) string {
	id, _ := c.Get(deviceIDKey).(string)
	return id
}
