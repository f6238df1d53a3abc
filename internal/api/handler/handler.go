// Package handler exposes the complaint repository over HTTP with gin.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"denuncia/backend/internal/complaint"
	"denuncia/backend/internal/livefeed"
	"denuncia/backend/internal/models"
	"denuncia/backend/internal/sentinel"
)

// ComplaintService is the part of complaint.Repository the HTTP layer uses.
type ComplaintService interface {
	Create(ctx context.Context, d models.Draft, categoryIDs []uint) (string, error)
	GetByProtocol(ctx context.Context, code string, useCache bool) (*models.ComplaintView, error)
	GetByID(ctx context.Context, id uint) (*models.ComplaintView, error)
	ListByStatus(ctx context.Context, status models.Status, useCache bool) ([]models.ComplaintView, error)
	ListPaged(ctx context.Context, page, pageSize int, f models.ListFilter) (*models.PagedResult, error)
	History(ctx context.Context, id uint) ([]models.HistoryView, error)
	ApplyTransition(ctx context.Context, req complaint.TransitionRequest) (*models.ComplaintView, error)
	Delete(ctx context.Context, code string, actorID *uint, reason string) error
	DashboardStats(ctx context.Context) (*models.Stats, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, name string) (*models.Category, error)
}

// PermissionChecker answers whether a staff member may perform an action.
type PermissionChecker interface {
	HasPermission(ctx context.Context, staffID uint, action string) (bool, error)
}

// HealthChecker pings the backing stores.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

const healthTimeout = 2 * time.Second

// Handler holds what the routes need.
type Handler struct {
	Complaints  ComplaintService
	Permissions PermissionChecker
	Tokens      *Tokens
	Hub         *livefeed.Hub

	health   HealthChecker
	gatherer prometheus.Gatherer
	location *time.Location
	logger   *slog.Logger
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// WithHealth enables /healthz.
func WithHealth(c HealthChecker) Option {
	return func(h *Handler) {
		h.health = c
	}
}

// WithGatherer enables /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) {
		h.gatherer = g
	}
}

// WithLocation sets the zone date-only query parameters are read in.
func WithLocation(loc *time.Location) Option {
	return func(h *Handler) {
		if loc != nil {
			h.location = loc
		}
	}
}

// NewHandler wires the routes' dependencies. hub may be nil, in which case
// the live feed is not served.
func NewHandler(complaints ComplaintService, perms PermissionChecker, tokens *Tokens, hub *livefeed.Hub, opts ...Option) *Handler {
	h := &Handler{
		Complaints:  complaints,
		Permissions: perms,
		Tokens:      tokens,
		Hub:         hub,
		location:    time.Local,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// writeError maps the error taxonomy onto HTTP statuses. Storage failures
// never leak their cause.
func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *sentinel.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "field": verr.Field, "reason": verr.Reason})
	case errors.Is(err, sentinel.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed"})
	case errors.Is(err, sentinel.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, context.Canceled):
		c.Status(499)
	default:
		h.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// badRequest reports a request that failed gin binding.
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "reason": err.Error()})
}
