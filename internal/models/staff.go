package models

import "time"

// Staff is a member of the team that handles complaints.
// Role drives both notification eligibility and permission checks.
type Staff struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	Name           string `gorm:"type:varchar(120);not null" json:"name"`
	Email          string `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	Role           string `gorm:"type:varchar(32);index;not null" json:"role"`
	TelegramChatID *int64 `json:"telegram_chat_id,omitempty"` // optional
	Active         bool   `gorm:"not null" json:"active"`
	CreatedAt      time.Time
}

// DisplayName falls back to the e-mail when no name was recorded.
func (s *Staff) DisplayName() string {
	if s == nil {
		return ""
	}
	if s.Name != "" {
		return s.Name
	}
	return s.Email
}

// Contact converts the row into the shape handed to notification senders.
func (s *Staff) Contact() StaffContact {
	return StaffContact{
		ID:             s.ID,
		Name:           s.DisplayName(),
		Email:          s.Email,
		Role:           s.Role,
		TelegramChatID: s.TelegramChatID,
	}
}

// StaffContact is what the notification layer needs to reach a staff member.
type StaffContact struct {
	ID             uint   `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	TelegramChatID *int64 `json:"telegram_chat_id,omitempty"`
}
