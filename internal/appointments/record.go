// Package appointments holds the canonical appointment model and the
// reconciliation primitives over the hospital API's inconsistently shaped
// records: normalization, date/time classification and view projection.
package appointments

import (
	"strconv"
	"time"
)

// Appointment statuses the upstream is known to emit. The enumeration is
// open: unknown values pass through verbatim.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusCancelled = "CANCELLED"
	StatusCompleted = "COMPLETED"
)

// RawRecord is an appointment exactly as the upstream delivered it. No
// schema is guaranteed; key names vary across historical API versions.
type RawRecord = map[string]any

// Doctor is the optional practitioner descriptor on an appointment. Every
// field is independently optional.
type Doctor struct {
	Name      string `json:"name,omitempty"`
	Specialty string `json:"specialty,omitempty"`
	Image     string `json:"image,omitempty"`
}

// Appointment is the canonical appointment shape. Instances are immutable
// once built for a fetch cycle; a new fetch rebuilds the whole set.
type Appointment struct {
	// ID is the upstream identifier, stringified. Empty means the record is
	// not actionable (cancel stays disabled).
	ID string `json:"id,omitempty"`
	// DateText and TimeText carry the raw textual values as supplied.
	DateText string `json:"date,omitempty"`
	TimeText string `json:"time,omitempty"`
	// Status is preserved verbatim; unknown values are not coerced.
	Status      string  `json:"status,omitempty"`
	Doctor      *Doctor `json:"doctor,omitempty"`
	Description string  `json:"description,omitempty"`

	// Resolved is the classified instant for DateText+TimeText. Zero with
	// Unclassifiable=true means the record could not be placed in time and
	// is never upcoming.
	Resolved       time.Time `json:"resolved,omitempty"`
	Unclassifiable bool      `json:"unclassifiable,omitempty"`
}

// Field alias tables. Ordered, first present-and-non-null wins. The upstream
// has renamed these fields across versions with no schema flag, so the lists
// are additive data rather than inlined conditionals.
var (
	idKeys          = []string{"apId", "id", "appointmentId"}
	dateKeys        = []string{"appointmentDate", "appointment_date", "date"}
	timeKeys        = []string{"appointmentTime", "appointment_time", "time"}
	descriptionKeys = []string{"descript", "Descript", "description"}
	doctorKeys      = []string{"doctor"}

	doctorNameKeys      = []string{"name", "doctorName"}
	doctorSpecialtyKeys = []string{"specialty", "specialization"}
	doctorImageKeys     = []string{"image", "profileImage"}

	// specializationNameKeys unwraps the nested specialization relation the
	// upstream sometimes inlines instead of a plain string.
	specializationNameKeys = []string{"spName", "name"}
)

// Normalize maps a raw record onto the canonical shape. It is total: absent
// or malformed fields become zero values, never an error.
func Normalize(raw RawRecord) Appointment {
	appt := Appointment{
		ID:          firstString(raw, idKeys),
		DateText:    firstString(raw, dateKeys),
		TimeText:    firstString(raw, timeKeys),
		Status:      firstString(raw, []string{"status"}),
		Description: firstString(raw, descriptionKeys),
		Doctor:      normalizeDoctor(raw),
	}
	appt.Resolved, appt.Unclassifiable = resolveInstant(appt.DateText, appt.TimeText)
	return appt
}

// NormalizeAll maps every raw record to exactly one canonical appointment.
// Records are never dropped or duplicated, however malformed.
func NormalizeAll(raws []RawRecord) []Appointment {
	appts := make([]Appointment, len(raws))
	for i, raw := range raws {
		appts[i] = Normalize(raw)
	}
	return appts
}

// UpcomingAt reports whether the appointment lies strictly after now.
// Unclassifiable appointments are never upcoming.
func (a Appointment) UpcomingAt(now time.Time) bool {
	return !a.Unclassifiable && a.Resolved.After(now)
}

func normalizeDoctor(raw RawRecord) *Doctor {
	nested, ok := firstValue(raw, doctorKeys).(map[string]any)
	if !ok {
		return nil
	}

	doc := &Doctor{
		Name:      firstString(nested, doctorNameKeys),
		Specialty: firstString(nested, doctorSpecialtyKeys),
		Image:     firstString(nested, doctorImageKeys),
	}
	if doc.Specialty == "" {
		if spec, ok := firstValue(nested, doctorSpecialtyKeys).(map[string]any); ok {
			doc.Specialty = firstString(spec, specializationNameKeys)
		}
	}
	return doc
}

// firstValue returns the first present-and-non-null value among keys.
func firstValue(raw map[string]any, keys []string) any {
	for _, key := range keys {
		if v, ok := raw[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

// firstString is firstValue rendered as text: strings pass through, numbers
// stringify (upstream ids are integers), everything else is absent.
func firstString(raw map[string]any, keys []string) string {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64)
		case int:
			return strconv.Itoa(s)
		case bool:
			// booleans never carry field content here
		}
	}
	return ""
}
