package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paylog/timecard-api/internal/models"
)

func payPeriodRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "employee_id", "start_date", "end_date",
		"total_hours", "total_overtime_hours", "total_holiday_hours", "total_sick_hours",
		"total_rotation_hours", "total_travel_hours", "total_pto_hours", "total_per_diem",
		"total_sick_days", "total_pto", "total_rotation_days",
		"status", "submitted_at", "reviewed_at", "reviewer_id", "rejection_reason", "paid_at",
		"created_at", "updated_at", "employee_name",
	}).AddRow(
		"pp-1", "emp-1", now, now.AddDate(0, 0, 6),
		40.0, 5.0, 0.0, 0.0,
		0.0, 0.0, 0.0, 3.5,
		0, 0, 0,
		string(models.PeriodStatusSubmitted), now, nil, nil, nil, nil,
		now, now, "Jane Doe",
	)
}

func TestListPayPeriodsWithFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPayPeriodRepository(db)

	now := time.Now()
	status := models.PeriodStatusSubmitted
	mock.ExpectQuery(`SELECT pp\.id, pp\.employee_id, .+ FROM pay_periods pp\s+JOIN users u ON u\.id = pp\.employee_id WHERE 1=1 AND pp\.status = \$1 AND LOWER\(u\.full_name\) LIKE \$2\s+ORDER BY pp\.start_date DESC, pp\.id ASC\s+LIMIT 20 OFFSET 0`).
		WithArgs(string(status), "%jane%").
		WillReturnRows(payPeriodRows(now))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM pay_periods pp`).
		WithArgs(string(status), "%jane%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	periods, total, err := repo.List(context.Background(), models.PayPeriodFilter{Status: &status, Search: "Jane"})
	require.NoError(t, err)
	assert.Len(t, periods, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Jane Doe", periods[0].EmployeeName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStatusGuardsExpectedStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPayPeriodRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE pay_periods SET status = \$3, updated_at = \$4, submitted_at = \$5, rejection_reason = NULL WHERE id = \$1 AND status = \$2`).
		WithArgs("pp-1", string(models.PeriodStatusDraft), string(models.PeriodStatusSubmitted), sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE time_entries SET status = \$2, updated_at = \$3, rejection_reason = NULL WHERE pay_period_id = \$1`).
		WithArgs("pp-1", string(models.PeriodStatusSubmitted), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectCommit()

	ok, err := repo.TransitionStatus(context.Background(), "pp-1",
		models.PeriodStatusDraft, models.PeriodStatusSubmitted,
		TransitionUpdate{SubmittedAt: &now, ClearRejection: true})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStatusLosesRace(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPayPeriodRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE pay_periods SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	ok, err := repo.TransitionStatus(context.Background(), "pp-1",
		models.PeriodStatusDraft, models.PeriodStatusSubmitted,
		TransitionUpdate{SubmittedAt: &now, ClearRejection: true})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStatusRejectPropagatesReason(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPayPeriodRepository(db)

	now := time.Now().UTC()
	reviewer := "admin-1"
	reason := "missing project codes"
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE pay_periods SET status = \$3, updated_at = \$4, reviewed_at = \$5, reviewer_id = \$6, rejection_reason = \$7 WHERE id = \$1 AND status = \$2`).
		WithArgs("pp-1", string(models.PeriodStatusSubmitted), string(models.PeriodStatusRejected), sqlmock.AnyArg(), now, reviewer, reason).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE time_entries SET status = \$2, updated_at = \$3, rejection_reason = \$4 WHERE pay_period_id = \$1`).
		WithArgs("pp-1", string(models.PeriodStatusRejected), sqlmock.AnyArg(), reason).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectCommit()

	ok, err := repo.TransitionStatus(context.Background(), "pp-1",
		models.PeriodStatusSubmitted, models.PeriodStatusRejected,
		TransitionUpdate{ReviewedAt: &now, ReviewerID: &reviewer, RejectionReason: &reason})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithEntriesClaimsAll(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPayPeriodRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO pay_periods").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE time_entries SET pay_period_id = \$1, status = \$2, updated_at = \$3 WHERE id = ANY\(\$4\) AND pay_period_id IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	period := &models.PayPeriod{
		EmployeeID: "emp-1",
		StartDate:  time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
	}
	err := repo.CreateWithEntries(context.Background(), period, []string{"te-1", "te-2"})
	require.NoError(t, err)
	assert.NotEmpty(t, period.ID)
	assert.Equal(t, models.PeriodStatusDraft, period.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithEntriesRollsBackOnPartialClaim(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPayPeriodRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO pay_periods").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE time_entries SET pay_period_id`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	period := &models.PayPeriod{
		EmployeeID: "emp-1",
		StartDate:  time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
	}
	err := repo.CreateWithEntries(context.Background(), period, []string{"te-1", "te-2"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
