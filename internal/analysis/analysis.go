// Package analysis turns raw complaint counts into the dashboard figures.
// It does no I/O; the repository runs the queries and hands the results here.
package analysis

import (
	"math"
	"time"

	"denuncia/backend/internal/models"
)

// Input is what the repository reads from the store.
type Input struct {
	ByStatus       map[models.Status]int64
	LastThirtyDays int64
	// ResolutionTimes holds completed_at - created_at for every concluded
	// complaint.
	ResolutionTimes []time.Duration
	Now             time.Time
}

// IsOpen reports whether a complaint in status s still needs work.
func IsOpen(s models.Status) bool {
	switch s {
	case models.StatusPending, models.StatusUnderReview, models.StatusUnderInvestigation:
		return true
	}
	return false
}

// Summarize computes the dashboard stats. ByStatus in the result always has
// every status, zero when absent. ResolutionRate is the percentage of
// complaints that reached Concluded, one decimal.
func Summarize(in Input) models.Stats {
	st := models.Stats{
		ByStatus:       make(map[models.Status]int64, len(models.AllStatuses)),
		LastThirtyDays: in.LastThirtyDays,
		GeneratedAt:    in.Now,
	}
	for _, s := range models.AllStatuses {
		n := in.ByStatus[s]
		st.ByStatus[s] = n
		st.Total += n
		if IsOpen(s) {
			st.Open += n
		}
	}
	if st.Total > 0 {
		st.ResolutionRate = round1(float64(st.ByStatus[models.StatusConcluded]) * 100 / float64(st.Total))
	}
	if len(in.ResolutionTimes) > 0 {
		var sum time.Duration
		for _, d := range in.ResolutionTimes {
			sum += d
		}
		st.AvgResolutionHours = round1(sum.Hours() / float64(len(in.ResolutionTimes)))
	}
	return st
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
