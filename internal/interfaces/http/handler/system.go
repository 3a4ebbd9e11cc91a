package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/erp/invoicing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// SystemHandler serves the health endpoint
type SystemHandler struct {
	BaseHandler
	startTime time.Time
	version   string
	db        HealthChecker
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(version string, db HealthChecker) *SystemHandler {
	return &SystemHandler{
		startTime: time.Now(),
		version:   version,
		db:        db,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status" example:"ok"`
	Database  string `json:"database" example:"ok"`
	Version   string `json:"version" example:"1.0.0"`
	GoVersion string `json:"go_version" example:"go1.25.5"`
	Uptime    string `json:"uptime" example:"1h30m45s"`
}

// Health godoc
//
//	@ID				getHealth
//	@Summary		Health check
//	@Description	Reports the service and database state. Answers 503 when the database is unreachable.
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	APIResponse[HealthResponse]
//	@Failure		503	{object}	APIResponse[HealthResponse]
//	@Router			/health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "ok",
		Database:  "ok",
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}

	status := http.StatusOK
	if h.db != nil {
		if err := pingWithin(c.Request.Context(), h.db, 2*time.Second); err != nil {
			resp.Status, resp.Database = "degraded", "unreachable"
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, dto.Response{Success: status == http.StatusOK, Data: resp})
}

func pingWithin(ctx context.Context, db HealthChecker, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return db.PingContext(ctx)
}
