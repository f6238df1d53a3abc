package complaint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mssola/useragent"
	"gorm.io/gorm"

	"denuncia/backend/internal/models"
	"denuncia/backend/internal/sentinel"
)

type categoryRow struct {
	ComplaintID uint
	CategoryID  uint
	Name        string
}

type countRow struct {
	ComplaintID uint
	N           int64
}

// loadViews turns rows into read models with three extra queries, however
// many complaints there are. History itself is only loaded when asked for.
func (r *Repository) loadViews(ctx context.Context, db *gorm.DB, complaints []models.Complaint, withHistory bool) ([]models.ComplaintView, error) {
	if len(complaints) == 0 {
		return []models.ComplaintView{}, nil
	}
	ids := make([]uint, len(complaints))
	for i := range complaints {
		ids[i] = complaints[i].ID
	}
	q := db.WithContext(ctx)

	var cats []categoryRow
	err := q.Table("complaint_categories AS cc").
		Select("cc.complaint_id, cc.category_id, c.name").
		Joins("JOIN categories AS c ON c.id = cc.category_id").
		Where("cc.complaint_id IN ?", ids).
		Order("c.name").
		Scan(&cats).Error
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	catsBy := make(map[uint][]categoryRow, len(complaints))
	for _, c := range cats {
		catsBy[c.ComplaintID] = append(catsBy[c.ComplaintID], c)
	}

	var counts []countRow
	err = q.Model(&models.StatusHistoryEntry{}).
		Select("complaint_id, COUNT(*) AS n").
		Where("complaint_id IN ?", ids).
		Group("complaint_id").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("count history: %w", err)
	}
	countBy := make(map[uint]int, len(counts))
	for _, c := range counts {
		countBy[c.ComplaintID] = int(c.N)
	}

	var historyBy map[uint][]models.StatusHistoryEntry
	if withHistory {
		var entries []models.StatusHistoryEntry
		err = q.Preload("Actor").
			Where("complaint_id IN ?", ids).
			Order("created_at, id").
			Find(&entries).Error
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		historyBy = make(map[uint][]models.StatusHistoryEntry, len(complaints))
		for _, e := range entries {
			historyBy[e.ComplaintID] = append(historyBy[e.ComplaintID], e)
		}
	}

	views := make([]models.ComplaintView, len(complaints))
	for i := range complaints {
		c := &complaints[i]
		views[i] = r.toView(c, catsBy[c.ID], countBy[c.ID], historyBy[c.ID], withHistory)
	}
	return views, nil
}

// loadView reads one complaint by id with its full history.
func (r *Repository) loadView(ctx context.Context, db *gorm.DB, id uint) (*models.ComplaintView, error) {
	var c models.Complaint
	err := db.WithContext(ctx).Preload("Assignee").First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load complaint %d: %w", id, err)
	}
	views, err := r.loadViews(ctx, db, []models.Complaint{c}, true)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (r *Repository) toView(c *models.Complaint, cats []categoryRow, historyCount int, history []models.StatusHistoryEntry, withHistory bool) models.ComplaintView {
	v := models.ComplaintView{
		ID:                     c.ID,
		Protocol:               c.Protocol,
		Description:            c.Description,
		OccurredOn:             c.OccurredOn,
		Location:               c.Location,
		InvolvedPersons:        c.InvolvedPersons,
		Status:                 c.Status,
		StatusLabel:            c.Status.Label(),
		Priority:               c.Priority,
		AssigneeID:             c.AssigneeID,
		AssigneeName:           c.Assignee.DisplayName(),
		ResolutionNote:         c.ResolutionNote,
		SubmitterIP:            c.SubmitterIP,
		SubmitterClient:        c.SubmitterClient,
		SubmitterClientSummary: ClientSummary(c.SubmitterClient),
		CategoryIDs:            make([]uint, 0, len(cats)),
		CategoryNames:          make([]string, 0, len(cats)),
		CreatedAt:              c.CreatedAt,
		UpdatedAt:              c.UpdatedAt,
		CompletedAt:            c.CompletedAt,
		CreatedAtDisplay:       r.display(c.CreatedAt),
		UpdatedAtDisplay:       r.display(c.UpdatedAt),
		HistoryCount:           historyCount,
	}
	if c.AttachmentKey != nil {
		v.AttachmentKey = *c.AttachmentKey
	}
	if c.OccurredOn != nil {
		v.OccurredOnDisplay = c.OccurredOn.In(r.location).Format(models.DisplayDateLayout)
	}
	if c.CompletedAt != nil {
		v.CompletedAtDisplay = r.display(*c.CompletedAt)
	}
	for _, cat := range cats {
		v.CategoryIDs = append(v.CategoryIDs, cat.CategoryID)
		v.CategoryNames = append(v.CategoryNames, cat.Name)
	}
	v.CategoriesLabel = strings.Join(v.CategoryNames, ", ")

	if withHistory {
		v.History = make([]models.HistoryView, 0, len(history))
		for _, e := range history {
			v.History = append(v.History, r.historyView(e))
		}
		v.HistoryCount = len(v.History)
	}
	return v
}

func (r *Repository) historyView(e models.StatusHistoryEntry) models.HistoryView {
	return models.HistoryView{
		ID:               e.ID,
		Status:           e.Status,
		StatusLabel:      e.Status.Label(),
		ActorID:          e.ActorID,
		ActorName:        e.Actor.DisplayName(),
		Note:             e.Note,
		CreatedAt:        e.CreatedAt,
		CreatedAtDisplay: r.display(e.CreatedAt),
	}
}

func (r *Repository) display(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(r.location).Format(models.DisplayTimeLayout)
}

// ClientSummary condenses a User-Agent header into "Browser version / OS".
func ClientSummary(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if ua.Bot() {
		return "bot: " + name
	}
	var b strings.Builder
	b.WriteString(name)
	if version != "" {
		b.WriteString(" " + version)
	}
	if os := ua.OS(); os != "" {
		b.WriteString(" / " + os)
	}
	if ua.Mobile() {
		b.WriteString(" (mobile)")
	}
	summary := strings.TrimSpace(b.String())
	if summary == "" {
		return raw
	}
	return summary
}
