// Package directory looks up staff members and answers permission checks.
package directory

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"gorm.io/gorm"

	"denuncia/backend/internal/models"
	"denuncia/backend/internal/sentinel"
	"denuncia/backend/internal/storage"
)

// Roles.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleAnalyst = "analyst"
	RoleViewer  = "viewer"
)

// Actions a staff member may be allowed to perform.
const (
	ActionViewComplaint       = "complaint.view"
	ActionTransitionComplaint = "complaint.transition"
	ActionDeleteComplaint     = "complaint.delete"
	ActionViewDashboard       = "dashboard.view"
	ActionManageCategories    = "category.manage"
)

// Policy maps a role to the actions it grants.
type Policy map[string][]string

// DefaultPolicy: only admins erase complaints; viewers only read.
var DefaultPolicy = Policy{
	RoleAdmin:   {ActionViewComplaint, ActionTransitionComplaint, ActionDeleteComplaint, ActionViewDashboard, ActionManageCategories},
	RoleManager: {ActionViewComplaint, ActionTransitionComplaint, ActionViewDashboard},
	RoleAnalyst: {ActionViewComplaint, ActionTransitionComplaint},
	RoleViewer:  {ActionViewComplaint, ActionViewDashboard},
}

func (p Policy) Allows(role, action string) bool {
	for _, a := range p[role] {
		if a == action {
			return true
		}
	}
	return false
}

// KnownRole reports whether the policy defines role.
func (p Policy) KnownRole(role string) bool {
	_, ok := p[role]
	return ok
}

type Directory struct {
	db     *gorm.DB
	policy Policy
}

type Option func(*Directory)

func WithPolicy(p Policy) Option {
	return func(d *Directory) {
		d.policy = p
	}
}

func New(db *gorm.DB, opts ...Option) *Directory {
	d := &Directory{db: db, policy: DefaultPolicy}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FindStaffByRoles returns the active staff holding any of roles.
func (d *Directory) FindStaffByRoles(ctx context.Context, roles []string) ([]models.StaffContact, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	var staff []models.Staff
	err := d.db.WithContext(ctx).
		Where("role IN ? AND active = ?", roles, true).
		Order("id").
		Find(&staff).Error
	if err != nil {
		return nil, fmt.Errorf("find staff by roles: %w", err)
	}
	out := make([]models.StaffContact, 0, len(staff))
	for i := range staff {
		out = append(out, staff[i].Contact())
	}
	return out, nil
}

// HasPermission is false for unknown or inactive staff.
func (d *Directory) HasPermission(ctx context.Context, staffID uint, action string) (bool, error) {
	s, err := d.FindByID(ctx, staffID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.Active && d.policy.Allows(s.Role, action), nil
}

func (d *Directory) FindByID(ctx context.Context, id uint) (*models.Staff, error) {
	var s models.Staff
	err := d.db.WithContext(ctx).First(&s, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find staff %d: %w", id, err)
	}
	return &s, nil
}

// CreateStaff registers an active staff member.
func (d *Directory) CreateStaff(ctx context.Context, name, email, role string, telegramChatID *int64) (*models.Staff, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, sentinel.Invalid("email", "is not a valid address")
	}
	if !d.policy.KnownRole(role) {
		return nil, sentinel.Invalid("role", fmt.Sprintf("unknown role %q", role))
	}
	s := models.Staff{
		Name:           strings.TrimSpace(name),
		Email:          email,
		Role:           role,
		TelegramChatID: telegramChatID,
		Active:         true,
	}
	if err := d.db.WithContext(ctx).Create(&s).Error; err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, sentinel.Invalid("email", "is already registered")
		}
		return nil, fmt.Errorf("create staff: %w", err)
	}
	return &s, nil
}

// SetActive enables or disables a staff member.
func (d *Directory) SetActive(ctx context.Context, id uint, active bool) error {
	res := d.db.WithContext(ctx).Model(&models.Staff{}).Where("id = ?", id).Update("active", active)
	if res.Error != nil {
		return fmt.Errorf("set staff %d active: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
