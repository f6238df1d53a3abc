package complaint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"denuncia/backend/internal/lifecycle"
	"denuncia/backend/internal/models"
	"denuncia/backend/internal/notify"
	"denuncia/backend/internal/sentinel"
	"denuncia/backend/internal/storage"
)

// TransitionRequest asks for a status change. Notify fans the change out to
// staff after commit.
type TransitionRequest struct {
	ComplaintID uint
	Status      models.Status
	ActorID     *uint
	AssigneeID  *uint
	Note        string
	Notify      bool
}

// ApplyTransition changes the status and appends the history entry in one
// transaction. Concurrent transitions on the same complaint queue on the row
// lock: each records the status it replaced and every entry stays in history.
func (r *Repository) ApplyTransition(ctx context.Context, req TransitionRequest) (*models.ComplaintView, error) {
	defer r.metrics.ObserveOperation("apply_transition", time.Now())

	t := lifecycle.Transition{
		ComplaintID: req.ComplaintID,
		Status:      req.Status,
		ActorID:     req.ActorID,
		AssigneeID:  req.AssigneeID,
		Note:        req.Note,
	}
	if err := r.engine.Validate(t); err != nil {
		return nil, err
	}

	var res lifecycle.Result
	err := storage.RunInTx(ctx, r.db, func(tx *gorm.DB) error {
		if t.AssigneeID != nil {
			var n int64
			if err := tx.Model(&models.Staff{}).Where("id = ? AND active = ?", *t.AssigneeID, true).Count(&n).Error; err != nil {
				return fmt.Errorf("check assignee: %w", err)
			}
			if n == 0 {
				return sentinel.Invalid("assignee_id", "unknown or inactive staff member")
			}
		}
		var err error
		res, err = r.engine.Apply(tx, t)
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sentinel.ErrValidation):
		return nil, err
	default:
		return nil, r.storageFailure(ctx, "apply transition", err, "id", req.ComplaintID, "status", req.Status)
	}

	r.invalidateComplaint(ctx, res.Complaint.Protocol)
	r.metrics.RecordTransition(string(res.Complaint.Status))
	r.logger.InfoContext(ctx, "complaint status changed",
		"id", res.Complaint.ID,
		"from", res.Previous,
		"to", res.Complaint.Status,
		"history_id", res.Entry.ID,
	)

	// The transition is committed; a failed reload must not look like a failed
	// write, or callers would retry and record it twice.
	view, err := r.loadView(ctx, r.db, res.Complaint.ID)
	if err != nil {
		r.logger.WarnContext(ctx, "could not reload complaint after transition", "id", res.Complaint.ID, "error", err)
		partial := r.toView(&res.Complaint, nil, 0, []models.StatusHistoryEntry{res.Entry}, true)
		view = &partial
	}

	if req.Notify {
		r.dispatch(ctx, notify.Notification{
			Kind:      notify.KindStatusChanged,
			Complaint: *view,
			Previous:  res.Previous,
		})
	}
	return view, nil
}
