package complaint

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"denuncia/backend/internal/models"
	"denuncia/backend/internal/sentinel"
	"denuncia/backend/internal/storage"
)

// ListCategories returns the active categories by name.
func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	out, err := remember(ctx, r, classCategories, keyCategories, r.ttl.Categories, func(ctx context.Context) ([]models.Category, error) {
		var cats []models.Category
		if err := r.db.WithContext(ctx).Where("active = ?", true).Order("name").Find(&cats).Error; err != nil {
			return nil, fmt.Errorf("list categories: %w", err)
		}
		return cats, nil
	})
	return out, r.readError(ctx, "list categories", err)
}

func (r *Repository) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 120 {
		return nil, sentinel.Invalid("name", "must be between 1 and 120 characters")
	}
	c := models.Category{Name: name, Active: true}
	if err := r.db.WithContext(ctx).Create(&c).Error; err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, sentinel.Invalid("name", "already exists")
		}
		return nil, r.storageFailure(ctx, "create category", err)
	}
	r.invalidate(ctx, []string{keyCategories})
	return &c, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel.ErrNotFound
	}
	return err
}
