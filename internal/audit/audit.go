// Package audit persists an append-only trail of destructive actions.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"denuncia/backend/internal/models"
)

const ActionDelete = "delete"

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// LogDelete records that entityType/key is about to be erased. snapshot is
// stored as JSON and must be marshalable.
func (s *Store) LogDelete(ctx context.Context, entityType, key string, actorID *uint, snapshot any, reason string) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal audit snapshot: %w", err)
	}
	entry := models.AuditEntry{
		EntityType: entityType,
		EntityKey:  key,
		Action:     ActionDelete,
		ActorID:    actorID,
		Reason:     reason,
		Snapshot:   datatypes.JSON(payload),
		CreatedAt:  s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByEntity returns the trail for one entity, newest first.
func (s *Store) ListByEntity(ctx context.Context, entityType, key string) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := s.db.WithContext(ctx).
		Where("entity_type = ? AND entity_key = ?", entityType, key).
		Order("created_at desc, id desc").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
