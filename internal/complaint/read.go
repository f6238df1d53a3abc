package complaint

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"denuncia/backend/internal/analysis"
	"denuncia/backend/internal/models"
	"denuncia/backend/internal/protocol"
	"denuncia/backend/internal/sentinel"
)

// MaxPageSize caps ListPaged.
const MaxPageSize = 100

// GetByProtocol returns the complaint a reporter's protocol refers to.
func (r *Repository) GetByProtocol(ctx context.Context, code string, useCache bool) (*models.ComplaintView, error) {
	defer r.metrics.ObserveOperation("get_by_protocol", time.Now())

	code = protocol.Normalize(code)
	if !protocol.Valid(code) {
		return nil, sentinel.Invalid("protocol", "must be 8 letters or digits")
	}
	load := func(ctx context.Context) (*models.ComplaintView, error) {
		var c models.Complaint
		err := r.db.WithContext(ctx).Where("protocol = ?", code).Take(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sentinel.ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("find by protocol: %w", err)
		}
		return r.loadView(ctx, r.db, c.ID)
	}

	var (
		v   *models.ComplaintView
		err error
	)
	if useCache {
		v, err = remember(ctx, r, classProtocol, protocolKey(code), r.ttl.ByProtocol, load)
	} else {
		v, err = load(ctx)
	}
	return v, r.readError(ctx, "get complaint by protocol", err)
}

// GetByID always reads the store; staff views must not be stale.
func (r *Repository) GetByID(ctx context.Context, id uint) (*models.ComplaintView, error) {
	defer r.metrics.ObserveOperation("get_by_id", time.Now())

	if id == 0 {
		return nil, sentinel.Invalid("id", "is required")
	}
	v, err := r.loadView(ctx, r.db, id)
	return v, r.readError(ctx, "get complaint by id", err, "id", id)
}

// ListByStatus returns every complaint in status, newest first.
func (r *Repository) ListByStatus(ctx context.Context, status models.Status, useCache bool) ([]models.ComplaintView, error) {
	defer r.metrics.ObserveOperation("list_by_status", time.Now())

	if !status.Valid() {
		return nil, sentinel.Invalid("status", fmt.Sprintf("unknown status %q", status))
	}
	load := func(ctx context.Context) ([]models.ComplaintView, error) {
		return r.list(ctx, func(q *gorm.DB) *gorm.DB { return q.Where("status = ?", status) })
	}
	var (
		out []models.ComplaintView
		err error
	)
	if useCache {
		out, err = remember(ctx, r, classStatus, statusKey(status), r.ttl.StatusList, load)
	} else {
		out, err = load(ctx)
	}
	return out, r.readError(ctx, "list complaints by status", err, "status", status)
}

// ListAll returns every complaint, newest first.
func (r *Repository) ListAll(ctx context.Context, useCache bool) ([]models.ComplaintView, error) {
	defer r.metrics.ObserveOperation("list_all", time.Now())

	load := func(ctx context.Context) ([]models.ComplaintView, error) {
		return r.list(ctx, func(q *gorm.DB) *gorm.DB { return q })
	}
	var (
		out []models.ComplaintView
		err error
	)
	if useCache {
		out, err = remember(ctx, r, classAll, keyAll, r.ttl.All, load)
	} else {
		out, err = load(ctx)
	}
	return out, r.readError(ctx, "list complaints", err)
}

func (r *Repository) list(ctx context.Context, scope func(*gorm.DB) *gorm.DB) ([]models.ComplaintView, error) {
	var rows []models.Complaint
	err := scope(r.db.WithContext(ctx).Model(&models.Complaint{})).
		Preload("Assignee").
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	return r.loadViews(ctx, r.db, rows, false)
}

// ListPaged returns one page of complaints matching f plus the total for f.
// Page numbers start at 1.
func (r *Repository) ListPaged(ctx context.Context, page, pageSize int, f models.ListFilter) (*models.PagedResult, error) {
	defer r.metrics.ObserveOperation("list_paged", time.Now())

	if page < 1 {
		return nil, sentinel.Invalid("page", "must be at least 1")
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return nil, sentinel.Invalid("page_size", fmt.Sprintf("must be between 1 and %d", MaxPageSize))
	}
	if f.Status != nil && !f.Status.Valid() {
		return nil, sentinel.Invalid("status", fmt.Sprintf("unknown status %q", *f.Status))
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, sentinel.Invalid("to", "must not be before from")
	}

	scope := func(q *gorm.DB) *gorm.DB {
		if f.Status != nil {
			q = q.Where("status = ?", *f.Status)
		}
		if f.From != nil {
			q = q.Where("created_at >= ?", startOfDay(*f.From).UTC())
		}
		if f.To != nil {
			q = q.Where("created_at < ?", startOfDay(*f.To).AddDate(0, 0, 1).UTC())
		}
		return q
	}
	load := func(ctx context.Context) (*models.PagedResult, error) {
		var total int64
		if err := scope(r.db.WithContext(ctx).Model(&models.Complaint{})).Count(&total).Error; err != nil {
			return nil, fmt.Errorf("count complaints: %w", err)
		}
		var rows []models.Complaint
		err := scope(r.db.WithContext(ctx).Model(&models.Complaint{})).
			Preload("Assignee").
			Order("created_at DESC, id DESC").
			Offset((page - 1) * pageSize).
			Limit(pageSize).
			Find(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("page complaints: %w", err)
		}
		items, err := r.loadViews(ctx, r.db, rows, false)
		if err != nil {
			return nil, err
		}
		return &models.PagedResult{
			Items:    items,
			Page:     page,
			PageSize: pageSize,
			Total:    total,
			Pages:    int(math.Ceil(float64(total) / float64(pageSize))),
		}, nil
	}

	res, err := remember(ctx, r, classPaged, pagedKey(page, pageSize, f), r.ttl.Paged, load)
	return res, r.readError(ctx, "list complaints paged", err, "page", page, "page_size", pageSize)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// History returns the transitions of one complaint, oldest first.
func (r *Repository) History(ctx context.Context, id uint) ([]models.HistoryView, error) {
	if id == 0 {
		return nil, sentinel.Invalid("id", "is required")
	}
	var exists int64
	if err := r.db.WithContext(ctx).Model(&models.Complaint{}).Where("id = ?", id).Count(&exists).Error; err != nil {
		return nil, r.storageFailure(ctx, "complaint history", err, "id", id)
	}
	if exists == 0 {
		return nil, sentinel.ErrNotFound
	}
	var entries []models.StatusHistoryEntry
	err := r.db.WithContext(ctx).Preload("Actor").
		Where("complaint_id = ?", id).
		Order("created_at, id").
		Find(&entries).Error
	if err != nil {
		return nil, r.storageFailure(ctx, "complaint history", err, "id", id)
	}
	out := make([]models.HistoryView, len(entries))
	for i, e := range entries {
		out[i] = r.historyView(e)
	}
	return out, nil
}

type statusCount struct {
	Status models.Status
	N      int64
}

type resolutionRow struct {
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// DashboardStats aggregates the whole table; it is always served through the
// cache.
func (r *Repository) DashboardStats(ctx context.Context) (*models.Stats, error) {
	defer r.metrics.ObserveOperation("dashboard_stats", time.Now())

	load := func(ctx context.Context) (*models.Stats, error) {
		q := r.db.WithContext(ctx)
		var counts []statusCount
		err := q.Model(&models.Complaint{}).
			Select("status, COUNT(*) AS n").
			Group("status").
			Scan(&counts).Error
		if err != nil {
			return nil, fmt.Errorf("count by status: %w", err)
		}
		byStatus := make(map[models.Status]int64, len(counts))
		for _, c := range counts {
			byStatus[c.Status] = c.N
		}

		now := r.now()
		var recent int64
		if err := q.Model(&models.Complaint{}).Where("created_at >= ?", now.AddDate(0, 0, -30).UTC()).Count(&recent).Error; err != nil {
			return nil, fmt.Errorf("count recent: %w", err)
		}

		var resolved []resolutionRow
		err = q.Model(&models.Complaint{}).
			Select("created_at, completed_at").
			Where("status = ? AND completed_at IS NOT NULL", models.StatusConcluded).
			Scan(&resolved).Error
		if err != nil {
			return nil, fmt.Errorf("load resolution times: %w", err)
		}
		durations := make([]time.Duration, 0, len(resolved))
		for _, row := range resolved {
			if row.CompletedAt != nil && row.CompletedAt.After(row.CreatedAt) {
				durations = append(durations, row.CompletedAt.Sub(row.CreatedAt))
			}
		}

		st := analysis.Summarize(analysis.Input{
			ByStatus:        byStatus,
			LastThirtyDays:  recent,
			ResolutionTimes: durations,
			Now:             now,
		})
		return &st, nil
	}

	st, err := remember(ctx, r, classStats, keyStats, r.ttl.Stats, load)
	return st, r.readError(ctx, "dashboard stats", err)
}

// readError passes NotFound and validation errors through and turns anything
// else into a logged ErrStorage.
func (r *Repository) readError(ctx context.Context, op string, err error, attrs ...any) error {
	if err == nil || errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrValidation) {
		return err
	}
	return r.storageFailure(ctx, op, err, attrs...)
}
