package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"denuncia/backend/internal/api/handler"
	"denuncia/backend/internal/cache"
	"denuncia/backend/internal/complaint"
	"denuncia/backend/internal/directory"
	"denuncia/backend/internal/livefeed"
	"denuncia/backend/internal/metrics"
	"denuncia/backend/internal/models"
	"denuncia/backend/internal/notify"
	"denuncia/backend/internal/sentinel"
	"denuncia/backend/internal/storage/storagetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	adminID    uint = 1
	analystID  uint = 2
	viewerID   uint = 3
	inactiveID uint = 4
)

type apiFixture struct {
	db      *gorm.DB
	repo    *complaint.Repository
	tokens  *handler.Tokens
	handler *handler.Handler
	router  *gin.Engine
}

type healthFunc func(ctx context.Context) error

func (f healthFunc) Ping(ctx context.Context) error { return f(ctx) }

func newAPIFixture(t *testing.T, opts ...complaint.Option) *apiFixture {
	t.Helper()
	db := storagetest.NewSQLite(t)
	for _, c := range []models.Category{
		{ID: 1, Name: "Assédio moral", Active: true},
		{ID: 2, Name: "Fraude", Active: true},
	} {
		require.NoError(t, db.Create(&c).Error)
	}
	for _, s := range []models.Staff{
		{ID: adminID, Name: "Admin", Email: "admin@example.org", Role: directory.RoleAdmin, Active: true},
		{ID: analystID, Name: "Analista", Email: "analista@example.org", Role: directory.RoleAnalyst, Active: true},
		{ID: viewerID, Name: "Leitor", Email: "leitor@example.org", Role: directory.RoleViewer, Active: true},
		{ID: inactiveID, Name: "Ex", Email: "ex@example.org", Role: directory.RoleAdmin},
	} {
		require.NoError(t, db.Create(&s).Error)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	dir := directory.New(db)
	base := []complaint.Option{complaint.WithMetrics(m), complaint.WithDisplayLocation(time.UTC), complaint.WithDirectory(dir)}
	repo := complaint.NewRepository(db, cache.NewMemory(), append(base, opts...)...)
	tokens := handler.NewTokens("test-secret", time.Hour)

	return &apiFixture{db: db, repo: repo, tokens: tokens}
}

func (f *apiFixture) build(t *testing.T, hub *livefeed.Hub, opts ...handler.Option) *apiFixture {
	t.Helper()
	f.handler = handler.NewHandler(f.repo, directory.New(f.db), f.tokens, hub, opts...)
	f.router = f.handler.Router()
	return f
}

func (f *apiFixture) token(t *testing.T, staffID uint) string {
	t.Helper()
	tok, err := f.tokens.Issue(staffID)
	require.NoError(t, err)
	return tok
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) file(t *testing.T, description string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/complaints", "", gin.H{"description": description, "category_ids": []uint{1}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		Protocol string `json:"protocol"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Protocol
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCreateAndTrackComplaint(t *testing.T) {
	f := newAPIFixture(t).build(t, nil)

	code := f.file(t, "Gestor humilha a equipe em reuniões")
	require.Len(t, code, 8)

	rec := f.do(t, http.MethodGet, "/api/complaints/"+strings.ToLower(code), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	raw := decode[map[string]any](t, rec)
	assert.Equal(t, code, raw["protocol"])
	assert.Equal(t, "pending", raw["status"])
	assert.Equal(t, "Assédio moral", raw["categories_label"])
	assert.NotContains(t, raw, "submitter_ip")
	assert.NotContains(t, raw, "description")

	// The submitter's address and client are kept for staff.
	var stored models.Complaint
	require.NoError(t, f.db.Where("protocol = ?", code).Take(&stored).Error)
	assert.Equal(t, "192.0.2.1", stored.SubmitterIP)
	assert.Contains(t, stored.SubmitterClient, "Chrome")
}

func TestCreateComplaintRejectsBadInput(t *testing.T) {
	f := newAPIFixture(t).build(t, nil)

	tests := []struct {
		name string
		body any
	}{
		{"missing description", gin.H{"category_ids": []uint{1}}},
		{"bad date", gin.H{"description": "x", "occurred_on": "31/12/2025"}},
		{"unknown category", gin.H{"description": "x", "category_ids": []uint{99}}},
		{"bad priority", gin.H{"description": "x", "priority": "urgent"}},
		{"not json", "{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/complaints", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	var n int64
	require.NoError(t, f.db.Model(&models.Complaint{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestTrackComplaintErrors(t *testing.T) {
	f := newAPIFixture(t).build(t, nil)

	rec := f.do(t, http.MethodGet, "/api/complaints/short", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "protocol", decode[map[string]any](t, rec)["field"])

	rec = f.do(t, http.MethodGet, "/api/complaints/ZZZZ9999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaffAuthentication(t *testing.T) {
	f := newAPIFixture(t).build(t, nil)

	expired := handler.NewTokens("test-secret", time.Nanosecond)
	old, err := expired.Issue(adminID)
	require.NoError(t, err)
	forged, err := handler.NewTokens("other-secret", time.Hour).Issue(adminID)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
		{"expired", old, http.StatusUnauthorized},
		{"wrong secret", forged, http.StatusUnauthorized},
		{"inactive staff", f.token(t, inactiveID), http.StatusForbidden},
		{"unknown staff", f.token(t, 404), http.StatusForbidden},
		{"viewer", f.token(t, viewerID), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/api/staff/complaints", tt.token, nil)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestTokens(t *testing.T) {
	tokens := handler.NewTokens("s3cret", time.Hour)

	raw, err := tokens.Issue(42)
	require.NoError(t, err)
	id, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	// alg "none" must never be accepted.
	unsigned := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdGFmZl9pZCI6NDJ9."
	_, err = tokens.Parse(unsigned)
	assert.Error(t, err)
}

func TestChangeStatusFlow(t *testing.T) {
	f := newAPIFixture(t).build(t, nil)
	code := f.file(t, "Desvio de materiais do almoxarifado")
	v, err := f.repo.GetByProtocol(context.Background(), code, false)
	require.NoError(t, err)
	path := "/api/staff/complaints/" + strconv.FormatUint(uint64(v.ID), 10)

	rec := f.do(t, http.MethodPost, path+"/status", f.token(t, viewerID), gin.H{"status": "under_review"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, path+"/status", f.token(t, analystID), gin.H{"status": "UnderReview", "assignee_id": analystID, "note": "Triagem"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[models.ComplaintView](t, rec)
	assert.Equal(t, models.StatusUnderReview, got.Status)
	assert.Equal(t, "Analista", got.AssigneeName)

	rec = f.do(t, http.MethodPost, path+"/status", f.token(t, analystID), gin.H{"status": "closed"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, path+"/status", f.token(t, analystID), gin.H{"status": "concluded", "note": "Advertência aplicada"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, path+"/history", f.token(t, viewerID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]models.HistoryView](t, rec)
	require.Len(t, history, 2)
	for _, h := range history {
		require.NotNil(t, h.ActorID)
		assert.Equal(t, analystID, *h.ActorID)
	}

	rec = f.do(t, http.MethodGet, "/api/complaints/"+code, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	public := decode[models.PublicView](t, rec)
	assert.Equal(t, models.StatusConcluded, public.Status)
	assert.Equal(t, "Advertência aplicada", public.ResolutionNote)
	assert.Len(t, public.Timeline, 2)

	rec = f.do(t, http.MethodPost, "/api/staff/complaints/999/status", f.token(t, analystID), gin.H{"status": "archived"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/staff/complaints/abc", f.token(t, analystID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListingsAndDashboard(t *testing.T) {
	f := newAPIFixture(t).build(t, nil)
	for _, d := range []string{"um", "dois", "três"} {
		f.file(t, d)
	}
	viewer := f.token(t, viewerID)

	rec := f.do(t, http.MethodGet, "/api/staff/complaints?page=1&page_size=2&status=pending", viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[models.PagedResult](t, rec)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Len(t, page.Items, 2)

	rec = f.do(t, http.MethodGet, "/api/staff/complaints?from=2026-13-01", viewer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/staff/statuses/pending/complaints", viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.ComplaintView](t, rec), 3)

	rec = f.do(t, http.MethodGet, "/api/staff/statuses/nope/complaints", viewer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/staff/dashboard", viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[models.Stats](t, rec)
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 3, stats.Open)

	rec = f.do(t, http.MethodGet, "/api/staff/dashboard", f.token(t, analystID), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteComplaint(t *testing.T) {
	f := newAPIFixture(t).build(t, nil)
	code := f.file(t, "Conflito de interesses na licitação")

	rec := f.do(t, http.MethodDelete, "/api/staff/protocols/"+code, f.token(t, analystID), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/staff/protocols/"+code, f.token(t, adminID), gin.H{"reason": "duplicada"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/complaints/"+code, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/staff/protocols/"+code, f.token(t, adminID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategories(t *testing.T) {
	f := newAPIFixture(t).build(t, nil)

	rec := f.do(t, http.MethodPost, "/api/staff/categories", f.token(t, adminID), gin.H{"name": "Discriminação"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/staff/categories", f.token(t, adminID), gin.H{"name": "Fraude"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/staff/categories", f.token(t, viewerID), gin.H{"name": "Outra"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Category](t, rec), 3)
}

type failingService struct {
	handler.ComplaintService
	err error
}

func (s failingService) GetByProtocol(context.Context, string, bool) (*models.ComplaintView, error) {
	return nil, s.err
}

func TestStorageErrorsAreOpaque(t *testing.T) {
	f := newAPIFixture(t)
	h := handler.NewHandler(failingService{err: errors.Join(sentinel.Storage("get complaint"), errors.New("pq: password authentication failed"))}, directory.New(f.db), f.tokens, nil)
	router := h.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/complaints/ABCD1234", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}

func TestHealthzAndMetrics(t *testing.T) {
	var healthErr error
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.IncrementCreated()
	f := newAPIFixture(t).build(t, nil,
		handler.WithHealth(healthFunc(func(context.Context) error { return healthErr })),
		handler.WithGatherer(reg),
	)

	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	healthErr = errors.New("connection refused")
	rec = f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = f.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "denuncia_complaints_created_total")
}

func TestLiveFeedReceivesNewComplaints(t *testing.T) {
	hub := livefeed.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	dispatcher := notify.NewDispatcher([]notify.Sender{hub})
	defer func() { _ = dispatcher.Close(context.Background()) }()

	f := newAPIFixture(t, complaint.WithNotifier(dispatcher)).build(t, hub)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/staff/feed?token=" + f.token(t, adminID)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		n, err := hub.Count(context.Background())
		return err == nil && n == 1
	}, time.Second, 10*time.Millisecond)

	code := f.file(t, "Ameaças no setor de compras")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var ev livefeed.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, notify.KindNewComplaint, ev.Kind)
	assert.Equal(t, code, ev.Protocol)
	assert.Equal(t, models.StatusPending, ev.Status)
}

func TestLiveFeedRequiresToken(t *testing.T) {
	hub := livefeed.NewHub()
	f := newAPIFixture(t).build(t, hub)

	rec := f.do(t, http.MethodGet, "/api/staff/feed", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
