package models

import "time"

// Complaint is an anonymous report ("denúncia") tracked through the workflow.
// The reporter only ever knows the Protocol; ID is internal.
type Complaint struct {
	ID       uint   `gorm:"primaryKey"`
	Protocol string `gorm:"type:varchar(8);uniqueIndex;not null"`

	Description     string  `gorm:"type:text;not null"`
	AttachmentKey   *string `gorm:"type:varchar(255)"`
	OccurredOn      *time.Time
	Location        string `gorm:"type:varchar(255)"`
	InvolvedPersons string `gorm:"type:text"`

	Status         Status   `gorm:"type:varchar(32);index;not null"`
	Priority       Priority `gorm:"type:varchar(16)"`
	AssigneeID     *uint    `gorm:"index"`
	Assignee       *Staff   `gorm:"foreignKey:AssigneeID"`
	ResolutionNote string   `gorm:"type:text"`

	// Captured once at creation.
	SubmitterIP     string `gorm:"type:varchar(64)"`
	SubmitterClient string `gorm:"type:text"`

	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// IssuedProtocol remembers every protocol ever handed out. Rows are never
// deleted, so a code cannot be issued twice even after its complaint is erased.
type IssuedProtocol struct {
	Protocol string    `gorm:"type:varchar(8);primaryKey"`
	IssuedAt time.Time `gorm:"not null"`
}

func (IssuedProtocol) TableName() string {
	return "issued_protocols"
}

// Category classifies complaints (harassment, fraud, ...).
type Category struct {
	ID     uint   `gorm:"primaryKey"`
	Name   string `gorm:"type:varchar(120);uniqueIndex;not null"`
	Active bool   `gorm:"not null"`
}

// ComplaintCategory is the join entity between complaints and categories.
type ComplaintCategory struct {
	ComplaintID uint `gorm:"primaryKey"`
	CategoryID  uint `gorm:"primaryKey;index"`
}

func (ComplaintCategory) TableName() string {
	return "complaint_categories"
}

// StatusHistoryEntry is an append-only audit row written in the same
// transaction as the status change it records.
type StatusHistoryEntry struct {
	ID          uint   `gorm:"primaryKey"`
	ComplaintID uint   `gorm:"index;not null"`
	Status      Status `gorm:"type:varchar(32);not null"`
	// ActorID is nil for system-originated transitions.
	ActorID   *uint  `gorm:"index"`
	Actor     *Staff `gorm:"foreignKey:ActorID"`
	Note      string `gorm:"type:text"`
	CreatedAt time.Time
}

func (StatusHistoryEntry) TableName() string {
	return "complaint_status_history"
}
