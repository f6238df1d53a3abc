package models

import (
	"fmt"
	"strings"
)

// Status is the workflow state of a complaint.
type Status string

const (
	StatusPending            Status = "pending"
	StatusUnderReview        Status = "under_review"
	StatusUnderInvestigation Status = "under_investigation"
	StatusConcluded          Status = "concluded"
	StatusArchived           Status = "archived"
)

// AllStatuses lists every workflow state in display order.
var AllStatuses = []Status{
	StatusPending,
	StatusUnderReview,
	StatusUnderInvestigation,
	StatusConcluded,
	StatusArchived,
}

var statusLabels = map[Status]string{
	StatusPending:            "Pendente",
	StatusUnderReview:        "Em análise",
	StatusUnderInvestigation: "Em investigação",
	StatusConcluded:          "Concluída",
	StatusArchived:           "Arquivada",
}

// Valid reports whether s belongs to the fixed set of states.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the display label shown to staff and reporters.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// ParseStatus accepts the stored value ("under_review") as well as the
// CamelCase form used by older clients ("UnderReview").
func ParseStatus(raw string) (Status, error) {
	v := strings.TrimSpace(raw)
	if s := Status(strings.ToLower(v)); s.Valid() {
		return s, nil
	}
	for _, s := range AllStatuses {
		if strings.EqualFold(strings.ReplaceAll(string(s), "_", ""), v) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// Priority is the optional triage priority of a complaint. Empty means unset.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is unset or one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case "", PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}
