package models

import "time"

// DayCategory classifies a single tracked day. Exactly one category applies
// per entry; the zero value is not valid.
type DayCategory string

const (
	DayRegular     DayCategory = "REGULAR"
	DayPTO         DayCategory = "PTO"
	DayHoliday     DayCategory = "HOLIDAY"
	DaySick        DayCategory = "SICK"
	DayRotation    DayCategory = "ROTATION"
	DayTravel      DayCategory = "TRAVEL"
	DayUnpaidLeave DayCategory = "UNPAID_LEAVE"
)

// Valid returns true when the category is a supported value.
func (c DayCategory) Valid() bool {
	switch c {
	case DayRegular, DayPTO, DayHoliday, DaySick, DayRotation, DayTravel, DayUnpaidLeave:
		return true
	default:
		return false
	}
}

// PerDiemValues are the supported per-diem unit multipliers.
var PerDiemValues = []float64{0, 0.75, 1}

// ValidPerDiem reports whether v is a supported per-diem unit value.
func ValidPerDiem(v float64) bool {
	for _, allowed := range PerDiemValues {
		if v == allowed {
			return true
		}
	}
	return false
}

// TimeEntry represents one calendar day tracked by one employee.
type TimeEntry struct {
	ID              string       `db:"id" json:"id"`
	EmployeeID      string       `db:"employee_id" json:"employee_id"`
	Date            time.Time    `db:"date" json:"date"`
	StartTime       *time.Time   `db:"start_time" json:"start_time,omitempty"`
	EndTime         *time.Time   `db:"end_time" json:"end_time,omitempty"`
	TotalHours      *float64     `db:"total_hours" json:"total_hours,omitempty"`
	Category        DayCategory  `db:"category" json:"category"`
	PerDiem         float64      `db:"per_diem" json:"per_diem"`
	ProjectID       *string      `db:"project_id" json:"project_id,omitempty"`
	PayPeriodID     *string      `db:"pay_period_id" json:"pay_period_id,omitempty"`
	Status          PeriodStatus `db:"status" json:"status"`
	RejectionReason *string      `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// HasPerDiem is the derived legacy view of the numeric per-diem field.
func (e *TimeEntry) HasPerDiem() bool {
	return e.PerDiem > 0
}

// Hours returns the recorded hours, zero when none were captured.
func (e *TimeEntry) Hours() float64 {
	if e.TotalHours == nil {
		return 0
	}
	return *e.TotalHours
}

// EntryKind describes how an entry participates in aggregation.
type EntryKind string

const (
	EntryKindWorked      EntryKind = "worked"
	EntryKindPerDiemOnly EntryKind = "per-diem-only"
	EntryKindPTO         EntryKind = "pto"
	EntryKindHoliday     EntryKind = "holiday"
	EntryKindSick        EntryKind = "sick"
	EntryKindRotation    EntryKind = "rotation"
	EntryKindTravel      EntryKind = "travel"
	EntryKindUnpaidLeave EntryKind = "unpaid-leave"
)

// Kind classifies the entry. A regular-category day with no start/end and no
// hours but a positive per-diem is a per-diem-only day.
func (e *TimeEntry) Kind() EntryKind {
	switch e.Category {
	case DayPTO:
		return EntryKindPTO
	case DayHoliday:
		return EntryKindHoliday
	case DaySick:
		return EntryKindSick
	case DayRotation:
		return EntryKindRotation
	case DayTravel:
		return EntryKindTravel
	case DayUnpaidLeave:
		return EntryKindUnpaidLeave
	default:
		if e.StartTime == nil && e.EndTime == nil && e.TotalHours == nil && e.PerDiem > 0 {
			return EntryKindPerDiemOnly
		}
		return EntryKindWorked
	}
}

// TimeEntryFilter scopes entry listing queries.
type TimeEntryFilter struct {
	EmployeeID  string
	PayPeriodID string
	DateFrom    *time.Time
	DateTo      *time.Time
}
