package handler

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/freelance/backend/internal/infrastructure/event"
	"github.com/freelance/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping() error
}

// SystemHandler serves health, readiness and recent activity
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	db        Pinger
	activity  *event.ActivityLog
	delivery  func() event.DeliveryStats
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. db and activity may be nil.
func NewSystemHandler(name, version string, db Pinger, activity *event.ActivityLog, logger *zap.Logger) *SystemHandler {
	return &SystemHandler{
		BaseHandler: BaseHandler{logger: logger},
		name:        name,
		version:     version,
		db:          db,
		activity:    activity,
		startTime:   time.Now(),
	}
}

// WithDeliveryStats adds event delivery counters to the info endpoint
func (h *SystemHandler) WithDeliveryStats(stats func() event.DeliveryStats) *SystemHandler {
	h.delivery = stats
	return h
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`

	Events *event.DeliveryStats `json:"events,omitempty"`
}

// Health reports the process is up
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready reports whether the database answers
// GET /ready
func (h *SystemHandler) Ready(c *gin.Context) {
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			h.log().Warn("readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "not ready",
				"database": "unreachable",
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"database": "ok",
	})
}

// Info returns version and uptime
// GET /api/v1/system/info
func (h *SystemHandler) Info(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.delivery != nil {
		stats := h.delivery()
		info.Events = &stats
	}
	h.Success(c, info)
}

// Activity returns the most recent billing events, newest first
// GET /api/v1/system/activity?limit=
func (h *SystemHandler) Activity(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	if h.activity == nil {
		h.Success(c, []event.Activity{})
		return
	}
	h.Success(c, h.activity.Recent(limit))
}
