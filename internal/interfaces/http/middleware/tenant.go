package middleware

import (
	"net/http"
	"slices"

	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/interfaces/http/dto"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tenant context keys
const (
	TenantIDKey     = "tenant_id"
	TenantHeaderKey = "X-Tenant-ID"
)

// TenantMiddlewareConfig holds configuration for tenant middleware
type TenantMiddlewareConfig struct {
	// HeaderEnabled allows X-Tenant-ID when no JWT claim carries a tenant
	HeaderEnabled bool
	SkipPaths     []string
	Logger        *zap.Logger
}

// DefaultTenantConfig returns default tenant middleware configuration
func DefaultTenantConfig() TenantMiddlewareConfig {
	return TenantMiddlewareConfig{
		HeaderEnabled: true,
		SkipPaths:     []string{"/health", "/api/v1/health"},
		Logger:        zap.NewNop(),
	}
}

// TenantMiddleware resolves the tenant of the request.
// Extraction order: JWT claims > X-Tenant-ID header
func TenantMiddleware() gin.HandlerFunc {
	return TenantMiddlewareWithConfig(DefaultTenantConfig())
}

// TenantMiddlewareWithConfig returns tenant middleware with custom configuration
func TenantMiddlewareWithConfig(cfg TenantMiddlewareConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		if slices.Contains(cfg.SkipPaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		tenantID, method := GetJWTTenantID(c), "jwt"
		if tenantID == "" && cfg.HeaderEnabled {
			tenantID, method = c.GetHeader(TenantHeaderKey), "header"
		}

		if tenantID == "" {
			respondUnauthorized(c, "Tenant identification required")
			return
		}
		if _, err := uuid.Parse(tenantID); err != nil {
			respondUnauthorized(c, "Invalid tenant ID format")
			return
		}

		c.Set(TenantIDKey, tenantID)
		c.Request = c.Request.WithContext(logger.WithTenantID(c.Request.Context(), tenantID))
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.Scope().SetTag("tenant_id", tenantID)
		}

		cfg.Logger.Debug("Tenant identified",
			zap.String("tenant_id", tenantID),
			zap.String("method", method),
		)
		c.Next()
	}
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponseWithRequestID(dto.ErrCodeUnauthorized, message, GetRequestID(c)))
}

// GetTenantID retrieves the tenant ID from gin.Context
func GetTenantID(c *gin.Context) string {
	return c.GetString(TenantIDKey)
}

// GetTenantUUID retrieves the tenant ID as UUID from gin.Context
func GetTenantUUID(c *gin.Context) (uuid.UUID, error) {
	return uuid.Parse(GetTenantID(c))
}
