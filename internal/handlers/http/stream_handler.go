package http

import (
	"context"
	"net/http"

	"camlink/internal/core/domain"
	"camlink/internal/core/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StreamHandler exposes the viewer's open sessions over a local control
// API so dashboards and scripts can watch and drive the fallback ladder.
type StreamHandler struct {
	sessions *services.SessionManager
	ready    func(ctx context.Context) error
}

// NewStreamHandler builds the handler. ready reports whether backing
// services are reachable; nil means always ready.
func NewStreamHandler(sessions *services.SessionManager, ready func(ctx context.Context) error) *StreamHandler {
	return &StreamHandler{sessions: sessions, ready: ready}
}

func (h *StreamHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/streams", h.ListStreams)
		api.GET("/streams/:id", h.GetStream)
		api.POST("/streams/:id/retry", h.RetryStream)
		api.POST("/streams/:id/stop", h.StopStream)
	}

	router.GET("/healthz", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

type sessionStatus struct {
	SessionID string                    `json:"session_id"`
	StreamID  domain.StreamID           `json:"stream_id"`
	Status    domain.ConnectionSnapshot `json:"status"`
}

func statusOf(s *services.Session) sessionStatus {
	return sessionStatus{
		SessionID: s.ID,
		StreamID:  s.StreamID,
		Status:    s.Controller.Snapshot(),
	}
}

func (h *StreamHandler) ListStreams(c *gin.Context) {
	sessions := h.sessions.List()
	out := make([]sessionStatus, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, statusOf(s))
	}

	c.JSON(http.StatusOK, gin.H{"streams": out})
}

func (h *StreamHandler) GetStream(c *gin.Context) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	c.JSON(http.StatusOK, statusOf(s))
}

// RetryStream restarts the session at the head of its protocol ladder.
func (h *StreamHandler) RetryStream(c *gin.Context) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	s.Controller.Retry()
	c.JSON(http.StatusAccepted, statusOf(s))
}

func (h *StreamHandler) StopStream(c *gin.Context) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	s.Controller.Stop()
	c.JSON(http.StatusOK, statusOf(s))
}

func (h *StreamHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *StreamHandler) Ready(c *gin.Context) {
	if h.ready != nil {
		if err := h.ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
