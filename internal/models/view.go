package models

import "time"

// DisplayTimeLayout is how timestamps are rendered in read models.
const (
	DisplayTimeLayout = "02/01/2006 15:04"
	DisplayDateLayout = "02/01/2006"
)

// Draft is the reporter-supplied input for a new complaint.
type Draft struct {
	Description     string
	AttachmentKey   string
	OccurredOn      *time.Time
	Location        string
	InvolvedPersons string
	Priority        Priority

	SubmitterIP     string
	SubmitterClient string
}

// ComplaintView is the denormalised read model handed to presentation
// layers. It is what gets serialised into the cache.
type ComplaintView struct {
	ID              uint       `json:"id"`
	Protocol        string     `json:"protocol"`
	Description     string     `json:"description"`
	AttachmentKey   string     `json:"attachment_key,omitempty"`
	OccurredOn      *time.Time `json:"occurred_on,omitempty"`
	Location        string     `json:"location,omitempty"`
	InvolvedPersons string     `json:"involved_persons,omitempty"`

	Status         Status   `json:"status"`
	StatusLabel    string   `json:"status_label"`
	Priority       Priority `json:"priority,omitempty"`
	AssigneeID     *uint    `json:"assignee_id,omitempty"`
	AssigneeName   string   `json:"assignee_name,omitempty"`
	ResolutionNote string   `json:"resolution_note,omitempty"`

	SubmitterIP            string `json:"submitter_ip,omitempty"`
	SubmitterClient        string `json:"submitter_client,omitempty"`
	SubmitterClientSummary string `json:"submitter_client_summary,omitempty"`

	CategoryIDs     []uint   `json:"category_ids"`
	CategoryNames   []string `json:"category_names"`
	CategoriesLabel string   `json:"categories_label"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	OccurredOnDisplay  string `json:"occurred_on_display,omitempty"`
	CreatedAtDisplay   string `json:"created_at_display"`
	UpdatedAtDisplay   string `json:"updated_at_display"`
	CompletedAtDisplay string `json:"completed_at_display,omitempty"`

	HistoryCount int           `json:"history_count"`
	History      []HistoryView `json:"history"`
}

// PublicView is the subset a reporter sees when checking a protocol.
type PublicView struct {
	Protocol           string        `json:"protocol"`
	Status             Status        `json:"status"`
	StatusLabel        string        `json:"status_label"`
	CategoriesLabel    string        `json:"categories_label"`
	ResolutionNote     string        `json:"resolution_note,omitempty"`
	CreatedAtDisplay   string        `json:"created_at_display"`
	UpdatedAtDisplay   string        `json:"updated_at_display"`
	CompletedAtDisplay string        `json:"completed_at_display,omitempty"`
	Timeline           []PublicEvent `json:"timeline"`
}

// PublicEvent is a history entry stripped of staff identity.
type PublicEvent struct {
	Status      Status `json:"status"`
	StatusLabel string `json:"status_label"`
	At          string `json:"at"`
}

// Public strips everything that could identify staff or the submitter.
func (v *ComplaintView) Public() PublicView {
	p := PublicView{
		Protocol:           v.Protocol,
		Status:             v.Status,
		StatusLabel:        v.StatusLabel,
		CategoriesLabel:    v.CategoriesLabel,
		ResolutionNote:     v.ResolutionNote,
		CreatedAtDisplay:   v.CreatedAtDisplay,
		UpdatedAtDisplay:   v.UpdatedAtDisplay,
		CompletedAtDisplay: v.CompletedAtDisplay,
		Timeline:           make([]PublicEvent, 0, len(v.History)),
	}
	for _, h := range v.History {
		p.Timeline = append(p.Timeline, PublicEvent{Status: h.Status, StatusLabel: h.StatusLabel, At: h.CreatedAtDisplay})
	}
	return p
}

// HistoryView is a StatusHistoryEntry with the actor resolved.
type HistoryView struct {
	ID               uint      `json:"id"`
	Status           Status    `json:"status"`
	StatusLabel      string    `json:"status_label"`
	ActorID          *uint     `json:"actor_id,omitempty"`
	ActorName        string    `json:"actor_name,omitempty"`
	Note             string    `json:"note,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	CreatedAtDisplay string    `json:"created_at_display"`
}

// ListFilter narrows paginated listings. Nil fields are not applied.
// To is inclusive: the whole day is matched.
type ListFilter struct {
	Status *Status    `json:"status,omitempty"`
	From   *time.Time `json:"from,omitempty"`
	To     *time.Time `json:"to,omitempty"`
}

// PagedResult is one page of complaints plus the total for the same filter.
type PagedResult struct {
	Items    []ComplaintView `json:"items"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	Total    int64           `json:"total"`
	Pages    int             `json:"pages"`
}

// Stats feeds the staff dashboard.
type Stats struct {
	Total              int64            `json:"total"`
	Open               int64            `json:"open"`
	ByStatus           map[Status]int64 `json:"by_status"`
	LastThirtyDays     int64            `json:"last_thirty_days"`
	ResolutionRate     float64          `json:"resolution_rate"`
	AvgResolutionHours float64          `json:"avg_resolution_hours"`
	GeneratedAt        time.Time        `json:"generated_at"`
}

// DeletionSnapshot is the record handed to the audit log before a complaint
// is erased.
type DeletionSnapshot struct {
	Complaint     ComplaintView `json:"complaint"`
	CategoryNames []string      `json:"category_names"`
	HistoryCount  int           `json:"history_count"`
	DeletedBy     *uint         `json:"deleted_by,omitempty"`
	DeletedAt     time.Time     `json:"deleted_at"`
}
