package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"denuncia/backend/internal/complaint"
	"denuncia/backend/internal/models"
	"denuncia/backend/internal/sentinel"
)

const dateLayout = "2006-01-02"

type createComplaintRequest struct {
	Description     string `json:"description" binding:"required"`
	CategoryIDs     []uint `json:"category_ids"`
	OccurredOn      string `json:"occurred_on"`
	Location        string `json:"location"`
	InvolvedPersons string `json:"involved_persons"`
	Priority        string `json:"priority"`
	AttachmentKey   string `json:"attachment_key"`
}

// CreateComplaint files an anonymous complaint and returns its protocol.
func (h *Handler) CreateComplaint(c *gin.Context) {
	var req createComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	draft := models.Draft{
		Description:     req.Description,
		AttachmentKey:   req.AttachmentKey,
		Location:        req.Location,
		InvolvedPersons: req.InvolvedPersons,
		Priority:        models.Priority(strings.ToLower(strings.TrimSpace(req.Priority))),
		SubmitterIP:     c.ClientIP(),
		SubmitterClient: c.Request.UserAgent(),
	}
	if req.OccurredOn != "" {
		d, err := time.ParseInLocation(dateLayout, req.OccurredOn, h.location)
		if err != nil {
			h.writeError(c, sentinel.Invalid("occurred_on", "must be YYYY-MM-DD"))
			return
		}
		draft.OccurredOn = &d
	}

	code, err := h.Complaints.Create(c.Request.Context(), draft, req.CategoryIDs)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"protocol": code})
}

// TrackComplaint is what a reporter sees for a protocol: status, categories
// and timeline, never staff identities.
func (h *Handler) TrackComplaint(c *gin.Context) {
	v, err := h.Complaints.GetByProtocol(c.Request.Context(), c.Param("protocol"), true)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v.Public())
}

func (h *Handler) ListCategories(c *gin.Context) {
	cats, err := h.Complaints.ListCategories(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cats)
}

type createCategoryRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req createCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cat, err := h.Complaints.CreateCategory(c.Request.Context(), req.Name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

type listQuery struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Status   string `form:"status"`
	From     string `form:"from"`
	To       string `form:"to"`
}

// ListComplaints is the paginated staff listing.
func (h *Handler) ListComplaints(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = 20
	}

	var f models.ListFilter
	if q.Status != "" {
		st, err := models.ParseStatus(q.Status)
		if err != nil {
			h.writeError(c, sentinel.Invalid("status", "unknown status"))
			return
		}
		f.Status = &st
	}
	for _, d := range []struct {
		field string
		raw   string
		dst   **time.Time
	}{{"from", q.From, &f.From}, {"to", q.To, &f.To}} {
		if d.raw == "" {
			continue
		}
		t, err := time.ParseInLocation(dateLayout, d.raw, h.location)
		if err != nil {
			h.writeError(c, sentinel.Invalid(d.field, "must be YYYY-MM-DD"))
			return
		}
		*d.dst = &t
	}

	res, err := h.Complaints.ListPaged(c.Request.Context(), q.Page, q.PageSize, f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListByStatus(c *gin.Context) {
	st, err := models.ParseStatus(c.Param("status"))
	if err != nil {
		h.writeError(c, sentinel.Invalid("status", "unknown status"))
		return
	}
	views, err := h.Complaints.ListByStatus(c.Request.Context(), st, true)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) GetComplaint(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	v, err := h.Complaints.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) GetHistory(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	history, err := h.Complaints.History(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

type changeStatusRequest struct {
	Status     string `json:"status" binding:"required"`
	AssigneeID *uint  `json:"assignee_id"`
	Note       string `json:"note"`
	Notify     *bool  `json:"notify"`
}

// ChangeStatus moves a complaint to another status. The acting staff member
// is taken from the token. Notifications go out unless notify is false.
func (h *Handler) ChangeStatus(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}
	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	st, err := models.ParseStatus(req.Status)
	if err != nil {
		h.writeError(c, sentinel.Invalid("status", "unknown status"))
		return
	}
	v, err := h.Complaints.ApplyTransition(c.Request.Context(), complaint.TransitionRequest{
		ComplaintID: id,
		Status:      st,
		ActorID:     staffIDFrom(c),
		AssigneeID:  req.AssigneeID,
		Note:        req.Note,
		Notify:      req.Notify == nil || *req.Notify,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type deleteRequest struct {
	Reason string `json:"reason"`
}

// DeleteComplaint erases a complaint by protocol. The reason goes to the
// audit log.
func (h *Handler) DeleteComplaint(c *gin.Context) {
	var req deleteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	if err := h.Complaints.Delete(c.Request.Context(), c.Param("protocol"), staffIDFrom(c), req.Reason); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Dashboard(c *gin.Context) {
	stats, err := h.Complaints.DashboardStats(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		h.writeError(c, sentinel.Invalid("id", "must be a positive integer"))
		return 0, false
	}
	return uint(id), true
}
