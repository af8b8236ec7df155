package models

import "time"

// PeriodStatus captures the pay period lifecycle state.
type PeriodStatus string

const (
	PeriodStatusDraft     PeriodStatus = "DRAFT"
	PeriodStatusSubmitted PeriodStatus = "SUBMITTED"
	PeriodStatusApproved  PeriodStatus = "APPROVED"
	PeriodStatusRejected  PeriodStatus = "REJECTED"
	PeriodStatusPaid      PeriodStatus = "PAID"
)

// Valid returns true when the status is a supported value.
func (s PeriodStatus) Valid() bool {
	switch s {
	case PeriodStatusDraft, PeriodStatusSubmitted, PeriodStatusApproved, PeriodStatusRejected, PeriodStatusPaid:
		return true
	default:
		return false
	}
}

// PeriodEvent identifies a lifecycle transition request.
type PeriodEvent string

const (
	EventSubmit   PeriodEvent = "submit"
	EventApprove  PeriodEvent = "approve"
	EventReject   PeriodEvent = "reject"
	EventMarkPaid PeriodEvent = "markPaid"
)

// transitions is the full lifecycle table. Submit from REJECTED is the
// resubmission path; PAID is terminal.
var transitions = map[PeriodStatus]map[PeriodEvent]PeriodStatus{
	PeriodStatusDraft: {
		EventSubmit: PeriodStatusSubmitted,
	},
	PeriodStatusSubmitted: {
		EventApprove: PeriodStatusApproved,
		EventReject:  PeriodStatusRejected,
	},
	PeriodStatusApproved: {
		EventMarkPaid: PeriodStatusPaid,
	},
	PeriodStatusRejected: {
		EventSubmit: PeriodStatusSubmitted,
	},
}

// Next returns the resulting status for an event, and whether the transition
// is allowed from the current status.
func (s PeriodStatus) Next(event PeriodEvent) (PeriodStatus, bool) {
	next, ok := transitions[s][event]
	return next, ok
}

// PeriodWindowDays is the fixed length of a pay period window.
const PeriodWindowDays = 7

// PeriodWindowEnd returns the inclusive end date for a window starting at start.
func PeriodWindowEnd(start time.Time) time.Time {
	return start.AddDate(0, 0, PeriodWindowDays-1)
}

// PeriodTotals holds the aggregate fields computed from a period's entry set.
// They are always recomputed from the entries, never edited directly.
type PeriodTotals struct {
	TotalHours         float64 `db:"total_hours" json:"total_hours"`
	TotalOvertimeHours float64 `db:"total_overtime_hours" json:"total_overtime_hours"`
	TotalHolidayHours  float64 `db:"total_holiday_hours" json:"total_holiday_hours"`
	TotalSickHours     float64 `db:"total_sick_hours" json:"total_sick_hours"`
	TotalRotationHours float64 `db:"total_rotation_hours" json:"total_rotation_hours"`
	TotalTravelHours   float64 `db:"total_travel_hours" json:"total_travel_hours"`
	TotalPtoHours      float64 `db:"total_pto_hours" json:"total_pto_hours"`
	TotalPerDiem       float64 `db:"total_per_diem" json:"total_per_diem"`
	TotalSickDays      int     `db:"total_sick_days" json:"total_sick_days"`
	TotalPto           int     `db:"total_pto" json:"total_pto"`
	TotalRotationDays  int     `db:"total_rotation_days" json:"total_rotation_days"`
}

// PayPeriod represents a 7-day timesheet bundle for one employee.
type PayPeriod struct {
	ID         string    `db:"id" json:"id"`
	EmployeeID string    `db:"employee_id" json:"employee_id"`
	StartDate  time.Time `db:"start_date" json:"start_date"`
	EndDate    time.Time `db:"end_date" json:"end_date"`

	PeriodTotals

	Status          PeriodStatus `db:"status" json:"status"`
	SubmittedAt     *time.Time   `db:"submitted_at" json:"submitted_at,omitempty"`
	ReviewedAt      *time.Time   `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewerID      *string      `db:"reviewer_id" json:"reviewer_id,omitempty"`
	RejectionReason *string      `db:"rejection_reason" json:"rejection_reason,omitempty"`
	PaidAt          *time.Time   `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// PayPeriodDetail extends the period with employee metadata and entries.
type PayPeriodDetail struct {
	PayPeriod
	EmployeeName string      `db:"employee_name" json:"employee_name"`
	Entries      []TimeEntry `db:"-" json:"entries,omitempty"`
}

// PayPeriodFilter scopes period listing queries. An empty Status means all
// statuses.
type PayPeriodFilter struct {
	EmployeeID string
	Status     *PeriodStatus
	Search     string
	Page       int
	PageSize   int
}
