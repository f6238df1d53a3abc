// Package complaint is the repository behind every complaint read and write.
// Writes run in one store transaction; cache invalidation happens right after
// commit and before the call returns; notifications, audit and attachment
// cleanup are best-effort and never undo a committed write.
package complaint

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"denuncia/backend/internal/cache"
	"denuncia/backend/internal/config"
	"denuncia/backend/internal/lifecycle"
	"denuncia/backend/internal/metrics"
	"denuncia/backend/internal/models"
	"denuncia/backend/internal/notify"
	"denuncia/backend/internal/protocol"
	"denuncia/backend/internal/sentinel"
)

// EntityType is how complaints are named in the audit log.
const EntityType = "complaint"

// StaffDirectory resolves who should hear about complaint events.
type StaffDirectory interface {
	FindStaffByRoles(ctx context.Context, roles []string) ([]models.StaffContact, error)
}

// AuditLogger receives the snapshot of a complaint about to be erased.
type AuditLogger interface {
	LogDelete(ctx context.Context, entityType, key string, actorID *uint, snapshot any, reason string) error
}

// Notifier queues a notification without blocking.
type Notifier interface {
	Dispatch(ctx context.Context, n notify.Notification) bool
}

// AttachmentRemover deletes a stored attachment by key.
type AttachmentRemover interface {
	Remove(ctx context.Context, key string) error
}

type Repository struct {
	db        *gorm.DB
	cache     cache.Cache
	engine    *lifecycle.Engine
	generator protocol.Generator

	directory   StaffDirectory
	audit       AuditLogger
	notifier    Notifier
	attachments AttachmentRemover
	notifyRoles []string

	ttl      config.CacheTTL
	location *time.Location
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Repository)

func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Repository) {
		r.metrics = m
	}
}

func WithDirectory(d StaffDirectory) Option {
	return func(r *Repository) {
		r.directory = d
	}
}

func WithAuditLogger(a AuditLogger) Option {
	return func(r *Repository) {
		r.audit = a
	}
}

func WithNotifier(n Notifier) Option {
	return func(r *Repository) {
		r.notifier = n
	}
}

func WithAttachments(a AttachmentRemover) Option {
	return func(r *Repository) {
		r.attachments = a
	}
}

// WithTTL overrides the cache lifetimes. Zero fields keep their default.
func WithTTL(ttl config.CacheTTL) Option {
	return func(r *Repository) {
		d := config.DefaultCacheTTL
		r.ttl = config.CacheTTL{
			ByProtocol: orDefault(ttl.ByProtocol, d.ByProtocol),
			StatusList: orDefault(ttl.StatusList, d.StatusList),
			All:        orDefault(ttl.All, d.All),
			Paged:      orDefault(ttl.Paged, d.Paged),
			Stats:      orDefault(ttl.Stats, d.Stats),
			Categories: orDefault(ttl.Categories, d.Categories),
		}
	}
}

func WithGenerator(g protocol.Generator) Option {
	return func(r *Repository) {
		r.generator = g
	}
}

// WithNotifyRoles sets which staff roles hear about new complaints and status
// changes.
func WithNotifyRoles(roles ...string) Option {
	return func(r *Repository) {
		r.notifyRoles = roles
	}
}

// WithClock replaces time.Now for both the repository and its transition
// engine.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// WithDisplayLocation sets the zone used for the formatted dates of the read
// model.
func WithDisplayLocation(loc *time.Location) Option {
	return func(r *Repository) {
		r.location = loc
	}
}

// NewRepository wires a repository. A nil cache disables caching.
func NewRepository(db *gorm.DB, c cache.Cache, opts ...Option) *Repository {
	if c == nil {
		c = cache.Nop{}
	}
	r := &Repository{
		db:          db,
		cache:       c,
		generator:   protocol.NewGenerator(),
		notifyRoles: []string{"admin", "manager"},
		ttl:         config.DefaultCacheTTL,
		location:    time.Local,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.engine = lifecycle.NewEngine(lifecycle.WithClock(r.now))
	return r
}

func orDefault(v, d time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return d
}

// storageFailure logs the real cause and returns the generic ErrStorage.
func (r *Repository) storageFailure(ctx context.Context, op string, err error, attrs ...any) error {
	r.logger.ErrorContext(ctx, "storage failure", append([]any{"op", op, "error", err}, attrs...)...)
	return sentinel.Storage(op)
}

// recipients is best-effort: a directory failure means nobody is notified.
func (r *Repository) recipients(ctx context.Context) []models.StaffContact {
	if r.directory == nil || len(r.notifyRoles) == 0 {
		return nil
	}
	staff, err := r.directory.FindStaffByRoles(ctx, r.notifyRoles)
	if err != nil {
		r.logger.WarnContext(ctx, "could not resolve notification recipients", "roles", r.notifyRoles, "error", err)
		return nil
	}
	return staff
}

func (r *Repository) dispatch(ctx context.Context, n notify.Notification) {
	if r.notifier == nil {
		return
	}
	n.Recipients = r.recipients(ctx)
	if len(n.Recipients) == 0 {
		return
	}
	r.notifier.Dispatch(ctx, n)
}
