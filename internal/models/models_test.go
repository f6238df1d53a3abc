package models_test

import (
	"reflect"
	"testing"
	"time"

	"denuncia/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseStatus_AcceptsStoredAndCamelCase verifies both spellings map onto the enum.
func TestParseStatus_AcceptsStoredAndCamelCase(t *testing.T) {
	tests := []struct {
		raw  string
		want models.Status
	}{
		{"pending", models.StatusPending},
		{"Pending", models.StatusPending},
		{"under_review", models.StatusUnderReview},
		{"UnderReview", models.StatusUnderReview},
		{" UnderInvestigation ", models.StatusUnderInvestigation},
		{"CONCLUDED", models.StatusConcluded},
		{"archived", models.StatusArchived},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := models.ParseStatus(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStatus_RejectsUnknown(t *testing.T) {
	for _, raw := range []string{"", "closed", "under review", "pending!"} {
		_, err := models.ParseStatus(raw)
		assert.Error(t, err, "status %q should be rejected", raw)
	}
}

func TestStatusLabels_CoverEveryStatus(t *testing.T) {
	for _, s := range models.AllStatuses {
		assert.True(t, s.Valid())
		assert.NotEqual(t, string(s), s.Label(), "status %s needs a display label", s)
	}
	assert.False(t, models.Status("reopened").Valid())
	assert.Equal(t, "reopened", models.Status("reopened").Label())
}

func TestPriorityValid(t *testing.T) {
	assert.True(t, models.Priority("").Valid(), "unset priority is allowed")
	assert.True(t, models.PriorityCritical.Valid())
	assert.False(t, models.Priority("urgent").Valid())
}

func TestStaffDisplayName(t *testing.T) {
	var nilStaff *models.Staff
	assert.Equal(t, "", nilStaff.DisplayName())

	s := &models.Staff{Email: "ana@example.org"}
	assert.Equal(t, "ana@example.org", s.DisplayName())

	s.Name = "Ana Souza"
	assert.Equal(t, "Ana Souza", s.DisplayName())
}

func TestStaffContact_CopiesTelegramChat(t *testing.T) {
	chat := int64(4242)
	s := &models.Staff{ID: 3, Name: "Bruno", Email: "bruno@example.org", Role: "manager", TelegramChatID: &chat}

	c := s.Contact()

	assert.Equal(t, uint(3), c.ID)
	assert.Equal(t, "Bruno", c.Name)
	assert.Equal(t, "manager", c.Role)
	require.NotNil(t, c.TelegramChatID)
	assert.Equal(t, chat, *c.TelegramChatID)
}

// TestComplaintStructTags catches accidental removal of the constraints the
// repository relies on.
func TestComplaintStructTags(t *testing.T) {
	complaintType := reflect.TypeOf(models.Complaint{})

	protocolField, found := complaintType.FieldByName("Protocol")
	require.True(t, found)
	assert.Contains(t, protocolField.Tag.Get("gorm"), "uniqueIndex", "protocol must be unique")

	statusField, found := complaintType.FieldByName("Status")
	require.True(t, found)
	assert.Contains(t, statusField.Tag.Get("gorm"), "index")

	issuedType := reflect.TypeOf(models.IssuedProtocol{})
	issuedField, found := issuedType.FieldByName("Protocol")
	require.True(t, found)
	assert.Contains(t, issuedField.Tag.Get("gorm"), "primaryKey")
}

func TestPublicView_HidesStaffAndSubmitter(t *testing.T) {
	actor := uint(7)
	v := &models.ComplaintView{
		Protocol:        "ABCD1234",
		Status:          models.StatusUnderReview,
		StatusLabel:     models.StatusUnderReview.Label(),
		AssigneeName:    "Ana",
		SubmitterIP:     "10.0.0.1",
		CategoriesLabel: "Assédio, Fraude",
		History: []models.HistoryView{{
			Status:           models.StatusUnderReview,
			StatusLabel:      models.StatusUnderReview.Label(),
			ActorID:          &actor,
			ActorName:        "Ana",
			Note:             "internal note",
			CreatedAt:        time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			CreatedAtDisplay: "01/05/2024 10:00",
		}},
	}

	p := v.Public()

	assert.Equal(t, "ABCD1234", p.Protocol)
	assert.Equal(t, "Assédio, Fraude", p.CategoriesLabel)
	require.Len(t, p.Timeline, 1)
	assert.Equal(t, "01/05/2024 10:00", p.Timeline[0].At)
	assert.Equal(t, models.StatusUnderReview, p.Timeline[0].Status)
}
