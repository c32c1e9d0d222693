package appointments

import (
	"sort"
	"time"
)

// Tab selects the upcoming/past split of the list view.
type Tab string

const (
	TabUpcoming Tab = "upcoming"
	TabPast     Tab = "past"
)

// SortKey selects the ordering of the projected list.
type SortKey string

const (
	SortByDate   SortKey = "date"
	SortByDoctor SortKey = "doctor"
	SortByStatus SortKey = "status"
)

// StatusAll disables the status filter.
const StatusAll = "all"

// Projection is the view selection applied to the canonical set.
type Projection struct {
	Tab    Tab     `json:"tab"`
	Status string  `json:"status"`
	Sort   SortKey `json:"sort"`
}

// DefaultProjection mirrors the view's initial selections.
func DefaultProjection() Projection {
	return Projection{Tab: TabUpcoming, Status: StatusAll, Sort: SortByDate}
}

// Project filters and orders the canonical set for rendering: status filter
// first (exact, case-sensitive), then the tab split (past includes
// unclassifiable records), then a stable sort. The input slice is not
// mutated.
func Project(appts []Appointment, p Projection, now time.Time) []Appointment {
	result := make([]Appointment, 0, len(appts))
	for _, appt := range appts {
		if p.Status != "" && p.Status != StatusAll && appt.Status != p.Status {
			continue
		}
		switch p.Tab {
		case TabUpcoming:
			if !appt.UpcomingAt(now) {
				continue
			}
		case TabPast:
			if appt.UpcomingAt(now) {
				continue
			}
		}
		result = append(result, appt)
	}

	less := lessFunc(p.Sort)
	sort.SliceStable(result, func(i, j int) bool {
		return less(result[i], result[j])
	})
	return result
}

func lessFunc(key SortKey) func(a, b Appointment) bool {
	switch key {
	case SortByDoctor:
		return func(a, b Appointment) bool {
			return doctorName(a) < doctorName(b)
		}
	case SortByStatus:
		return func(a, b Appointment) bool {
			return a.Status < b.Status
		}
	default:
		// Date ascending; unclassifiable records rank after any
		// classifiable one and equal among themselves, so the stable sort
		// preserves their input order.
		return func(a, b Appointment) bool {
			switch {
			case a.Unclassifiable:
				return false
			case b.Unclassifiable:
				return true
			default:
				return a.Resolved.Before(b.Resolved)
			}
		}
	}
}

func doctorName(a Appointment) string {
	if a.Doctor == nil {
		return ""
	}
	return a.Doctor.Name
}
