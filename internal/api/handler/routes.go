package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"denuncia/backend/internal/directory"
)

// Router builds the gin engine with every route registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	if h.health != nil {
		r.GET("/healthz", h.Healthz)
	}
	if h.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}

	public := r.Group("/api")
	{
		public.POST("/complaints", h.CreateComplaint)
		public.GET("/complaints/:protocol", h.TrackComplaint)
		public.GET("/categories", h.ListCategories)
	}

	staff := r.Group("/api/staff", h.requireStaff(false))
	{
		view := h.requirePermission(directory.ActionViewComplaint)
		staff.GET("/complaints", view, h.ListComplaints)
		staff.GET("/complaints/:id", view, h.GetComplaint)
		staff.GET("/complaints/:id/history", view, h.GetHistory)
		staff.GET("/statuses/:status/complaints", view, h.ListByStatus)

		staff.POST("/complaints/:id/status", h.requirePermission(directory.ActionTransitionComplaint), h.ChangeStatus)
		staff.DELETE("/protocols/:protocol", h.requirePermission(directory.ActionDeleteComplaint), h.DeleteComplaint)
		staff.GET("/dashboard", h.requirePermission(directory.ActionViewDashboard), h.Dashboard)
		staff.POST("/categories", h.requirePermission(directory.ActionManageCategories), h.CreateCategory)
	}

	if h.Hub != nil {
		r.GET("/api/staff/feed", h.requireStaff(true), h.requirePermission(directory.ActionViewComplaint), h.ServeWebSocket)
	}
	return r
}

// Healthz reports 503 when the database or Redis does not answer.
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()
	if err := h.health.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		// The public tracking path embeds the protocol; log the route instead.
		h.logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
