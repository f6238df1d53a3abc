package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"denuncia/backend/internal/models"
)

func TestSummarize_Empty(t *testing.T) {
	now := time.Now()
	st := Summarize(Input{Now: now})

	assert.Zero(t, st.Total)
	assert.Zero(t, st.ResolutionRate)
	assert.Zero(t, st.AvgResolutionHours)
	assert.Len(t, st.ByStatus, len(models.AllStatuses))
	assert.Equal(t, now, st.GeneratedAt)
}

func TestSummarize(t *testing.T) {
	st := Summarize(Input{
		ByStatus: map[models.Status]int64{
			models.StatusPending:            4,
			models.StatusUnderInvestigation: 2,
			models.StatusConcluded:          3,
			models.StatusArchived:           1,
		},
		LastThirtyDays:  6,
		ResolutionTimes: []time.Duration{2 * time.Hour, 4 * time.Hour, 30 * time.Minute},
	})

	assert.Equal(t, int64(10), st.Total)
	assert.Equal(t, int64(6), st.Open)
	assert.Equal(t, int64(0), st.ByStatus[models.StatusUnderReview])
	assert.Equal(t, 30.0, st.ResolutionRate)
	assert.Equal(t, 2.2, st.AvgResolutionHours)
	assert.Equal(t, int64(6), st.LastThirtyDays)
}

func TestSummarize_IgnoresUnknownStatus(t *testing.T) {
	st := Summarize(Input{ByStatus: map[models.Status]int64{"Closed": 5, models.StatusPending: 1}})
	assert.Equal(t, int64(1), st.Total)
	assert.NotContains(t, st.ByStatus, models.Status("Closed"))
}

func TestIsOpen(t *testing.T) {
	assert.True(t, IsOpen(models.StatusPending))
	assert.True(t, IsOpen(models.StatusUnderReview))
	assert.False(t, IsOpen(models.StatusConcluded))
	assert.False(t, IsOpen(models.StatusArchived))
}
