// Package lifecycle moves a complaint between workflow states. Apply performs
// the status update and the matching history append on the caller's
// transaction, so both commit or neither does.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"denuncia/backend/internal/models"
	"denuncia/backend/internal/sentinel"
)

// MaxNoteLength bounds both history notes and resolution notes.
const MaxNoteLength = 5000

// Transition asks for a complaint to enter Status. ActorID is nil for
// system-originated changes; a nil AssigneeID leaves the assignee untouched.
type Transition struct {
	ComplaintID uint
	Status      models.Status
	ActorID     *uint
	AssigneeID  *uint
	Note        string
}

// Result is what Apply wrote.
type Result struct {
	Complaint models.Complaint
	Previous  models.Status
	Entry     models.StatusHistoryEntry
}

// Engine holds no state besides its clock; one instance serves every request.
type Engine struct {
	now func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate checks the request without touching the store. Any state may
// follow any other.
func (e *Engine) Validate(t Transition) error {
	if t.ComplaintID == 0 {
		return sentinel.Invalid("complaint_id", "is required")
	}
	if !t.Status.Valid() {
		return sentinel.Invalid("status", fmt.Sprintf("unknown status %q", t.Status))
	}
	if len(t.Note) > MaxNoteLength {
		return sentinel.Invalid("note", fmt.Sprintf("must be at most %d characters", MaxNoteLength))
	}
	if t.AssigneeID != nil && *t.AssigneeID == 0 {
		return sentinel.Invalid("assignee_id", "must be a staff id")
	}
	return nil
}

// Apply updates the complaint and appends one history entry using tx, which
// must be an open transaction. It does not commit, invalidate caches or
// notify anyone.
func (e *Engine) Apply(tx *gorm.DB, t Transition) (Result, error) {
	if err := e.Validate(t); err != nil {
		return Result{}, err
	}
	note := strings.TrimSpace(t.Note)

	// The row lock makes Previous the status this transition actually replaced.
	var c models.Complaint
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, t.ComplaintID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Result{}, sentinel.ErrNotFound
		}
		return Result{}, fmt.Errorf("load complaint %d: %w", t.ComplaintID, err)
	}
	previous := c.Status

	now := e.now().UTC()
	updates := map[string]any{
		"status":     t.Status,
		"updated_at": now,
	}
	if t.Status == models.StatusConcluded {
		updates["completed_at"] = now
		updates["resolution_note"] = note
	} else {
		updates["completed_at"] = nil
	}
	if t.AssigneeID != nil {
		updates["assignee_id"] = *t.AssigneeID
	}

	// UpdateColumns keeps gorm from overwriting updated_at with its own clock.
	if err := tx.Model(&models.Complaint{}).Where("id = ?", c.ID).UpdateColumns(updates).Error; err != nil {
		return Result{}, fmt.Errorf("update complaint %d: %w", c.ID, err)
	}

	entry := models.StatusHistoryEntry{
		ComplaintID: c.ID,
		Status:      t.Status,
		ActorID:     t.ActorID,
		Note:        note,
		CreatedAt:   now,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return Result{}, fmt.Errorf("append history for complaint %d: %w", c.ID, err)
	}

	c.Status = t.Status
	c.UpdatedAt = now
	if t.Status == models.StatusConcluded {
		c.CompletedAt = &now
		c.ResolutionNote = note
	} else {
		c.CompletedAt = nil
	}
	if t.AssigneeID != nil {
		id := *t.AssigneeID
		c.AssigneeID = &id
	}

	return Result{Complaint: c, Previous: previous, Entry: entry}, nil
}
