package complaint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"denuncia/backend/internal/models"
	"denuncia/backend/internal/notify"
	"denuncia/backend/internal/sentinel"
	"denuncia/backend/internal/storage"
)

// MaxProtocolAttempts bounds how many codes Create tries before giving up.
const MaxProtocolAttempts = 3

// Input limits.
const (
	MaxDescriptionLength = 10000
	MaxShortFieldLength  = 255
	MaxClientLength      = 1024
)

// Create stores a new Pending complaint linked to categoryIDs and returns its
// protocol. The complaint, its protocol reservation and its category links
// commit together or not at all.
func (r *Repository) Create(ctx context.Context, d models.Draft, categoryIDs []uint) (string, error) {
	defer r.metrics.ObserveOperation("create", time.Now())

	d, categoryIDs, err := r.validateDraft(d, categoryIDs)
	if err != nil {
		return "", err
	}

	var c models.Complaint
	for attempt := 1; attempt <= MaxProtocolAttempts; attempt++ {
		code, err := r.generator.Generate()
		if err != nil {
			return "", r.storageFailure(ctx, "create complaint", err, "stage", "generate protocol")
		}
		c, err = r.insert(ctx, code, d, categoryIDs)
		if err == nil {
			break
		}
		if errors.Is(err, sentinel.ErrProtocolCollision) {
			r.metrics.IncrementProtocolRetry()
			r.logger.WarnContext(ctx, "protocol collision, regenerating", "attempt", attempt)
			if attempt == MaxProtocolAttempts {
				return "", r.storageFailure(ctx, "create complaint", err, "attempts", attempt)
			}
			continue
		}
		if errors.Is(err, sentinel.ErrValidation) {
			return "", err
		}
		return "", r.storageFailure(ctx, "create complaint", err)
	}

	r.metrics.IncrementCreated()
	r.invalidateComplaint(ctx, "")
	r.logger.InfoContext(ctx, "complaint created", "id", c.ID, "protocol", c.Protocol, "categories", len(categoryIDs))

	if r.notifier != nil {
		view, err := r.loadView(ctx, r.db, c.ID)
		if err != nil {
			r.logger.WarnContext(ctx, "could not load new complaint for notification", "id", c.ID, "error", err)
			fallback := r.toView(&c, nil, 0, nil, true)
			view = &fallback
		}
		r.dispatch(ctx, notify.Notification{Kind: notify.KindNewComplaint, Complaint: *view})
	}
	return c.Protocol, nil
}

func (r *Repository) insert(ctx context.Context, code string, d models.Draft, categoryIDs []uint) (models.Complaint, error) {
	now := r.now().UTC()
	c := models.Complaint{
		Protocol:        code,
		Description:     d.Description,
		OccurredOn:      d.OccurredOn,
		Location:        d.Location,
		InvolvedPersons: d.InvolvedPersons,
		Status:          models.StatusPending,
		Priority:        d.Priority,
		SubmitterIP:     d.SubmitterIP,
		SubmitterClient: d.SubmitterClient,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if d.AttachmentKey != "" {
		key := d.AttachmentKey
		c.AttachmentKey = &key
	}

	err := storage.RunInTx(ctx, r.db, func(tx *gorm.DB) error {
		if len(categoryIDs) > 0 {
			var n int64
			if err := tx.Model(&models.Category{}).Where("id IN ? AND active = ?", categoryIDs, true).Count(&n).Error; err != nil {
				return fmt.Errorf("check categories: %w", err)
			}
			if n != int64(len(categoryIDs)) {
				return sentinel.Invalid("category_ids", "unknown or inactive category")
			}
		}
		if err := tx.Create(&models.IssuedProtocol{Protocol: code, IssuedAt: now}).Error; err != nil {
			if storage.IsUniqueViolation(err) {
				return fmt.Errorf("protocol %s: %w", code, sentinel.ErrProtocolCollision)
			}
			return fmt.Errorf("reserve protocol: %w", err)
		}
		if err := tx.Create(&c).Error; err != nil {
			if storage.IsUniqueViolation(err) {
				return fmt.Errorf("protocol %s: %w", code, sentinel.ErrProtocolCollision)
			}
			return fmt.Errorf("insert complaint: %w", err)
		}
		if len(categoryIDs) == 0 {
			return nil
		}
		links := make([]models.ComplaintCategory, len(categoryIDs))
		for i, id := range categoryIDs {
			links[i] = models.ComplaintCategory{ComplaintID: c.ID, CategoryID: id}
		}
		if err := tx.Create(&links).Error; err != nil {
			return fmt.Errorf("link categories: %w", err)
		}
		return nil
	})
	return c, err
}

// validateDraft trims and checks the draft and de-duplicates categoryIDs
// while keeping their order.
func (r *Repository) validateDraft(d models.Draft, categoryIDs []uint) (models.Draft, []uint, error) {
	d.Description = strings.TrimSpace(d.Description)
	d.Location = strings.TrimSpace(d.Location)
	d.InvolvedPersons = strings.TrimSpace(d.InvolvedPersons)
	d.AttachmentKey = strings.TrimSpace(d.AttachmentKey)
	d.SubmitterIP = strings.TrimSpace(d.SubmitterIP)
	d.SubmitterClient = truncateUTF8(strings.ToValidUTF8(d.SubmitterClient, "\uFFFD"), MaxClientLength)

	switch {
	case d.Description == "":
		return d, nil, sentinel.Invalid("description", "is required")
	case len(d.Description) > MaxDescriptionLength:
		return d, nil, sentinel.Invalid("description", fmt.Sprintf("must be at most %d characters", MaxDescriptionLength))
	case len(d.Location) > MaxShortFieldLength:
		return d, nil, sentinel.Invalid("location", fmt.Sprintf("must be at most %d characters", MaxShortFieldLength))
	case len(d.AttachmentKey) > MaxShortFieldLength:
		return d, nil, sentinel.Invalid("attachment_key", fmt.Sprintf("must be at most %d characters", MaxShortFieldLength))
	case len(d.InvolvedPersons) > MaxDescriptionLength:
		return d, nil, sentinel.Invalid("involved_persons", fmt.Sprintf("must be at most %d characters", MaxDescriptionLength))
	case !d.Priority.Valid():
		return d, nil, sentinel.Invalid("priority", fmt.Sprintf("unknown priority %q", d.Priority))
	case d.OccurredOn != nil && d.OccurredOn.After(r.now()):
		return d, nil, sentinel.Invalid("occurred_on", "cannot be in the future")
	}

	seen := make(map[uint]bool, len(categoryIDs))
	ids := make([]uint, 0, len(categoryIDs))
	for _, id := range categoryIDs {
		if id == 0 {
			return d, nil, sentinel.Invalid("category_ids", "must be positive")
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return d, ids, nil
}

// truncateUTF8 cuts s to at most limit bytes without splitting a character.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
