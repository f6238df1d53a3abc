package complaint

import (
	"context"
	"time"

	"gorm.io/gorm"

	"denuncia/backend/internal/models"
	"denuncia/backend/internal/protocol"
	"denuncia/backend/internal/sentinel"
	"denuncia/backend/internal/storage"
)

// Delete erases a complaint with its category links and history. The audit
// snapshot is written before the erase and the attachment is removed after
// commit; neither failure stops or undoes the deletion.
func (r *Repository) Delete(ctx context.Context, code string, actorID *uint, reason string) error {
	defer r.metrics.ObserveOperation("delete", time.Now())

	code = protocol.Normalize(code)
	if !protocol.Valid(code) {
		return sentinel.Invalid("protocol", "must be 8 letters or digits")
	}

	var c models.Complaint
	err := r.db.WithContext(ctx).Where("protocol = ?", code).Take(&c).Error
	if err != nil {
		return r.readError(ctx, "delete complaint", notFound(err), "protocol", code)
	}
	view, err := r.loadView(ctx, r.db, c.ID)
	if err != nil {
		return r.readError(ctx, "delete complaint", err, "protocol", code)
	}

	if r.audit != nil {
		snap := models.DeletionSnapshot{
			Complaint:     *view,
			CategoryNames: view.CategoryNames,
			HistoryCount:  view.HistoryCount,
			DeletedBy:     actorID,
			DeletedAt:     r.now().UTC(),
		}
		if err := r.audit.LogDelete(ctx, EntityType, code, actorID, snap, reason); err != nil {
			r.logger.ErrorContext(ctx, "audit log failed, deleting anyway", "protocol", code, "error", err)
		}
	}

	err = storage.RunInTx(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Where("complaint_id = ?", c.ID).Delete(&models.ComplaintCategory{}).Error; err != nil {
			return err
		}
		if err := tx.Where("complaint_id = ?", c.ID).Delete(&models.StatusHistoryEntry{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Complaint{}, c.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return sentinel.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return r.readError(ctx, "delete complaint", err, "protocol", code)
	}

	r.invalidateComplaint(ctx, code)
	r.metrics.IncrementDeleted()
	r.logger.InfoContext(ctx, "complaint deleted", "id", c.ID, "protocol", code, "history_entries", view.HistoryCount)

	if c.AttachmentKey != nil && *c.AttachmentKey != "" && r.attachments != nil {
		if err := r.attachments.Remove(ctx, *c.AttachmentKey); err != nil {
			r.logger.WarnContext(ctx, "attachment removal failed", "protocol", code, "key", *c.AttachmentKey, "error", err)
		}
	}
	return nil
}
