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

func timeEntryRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "employee_id", "date", "start_time", "end_time", "total_hours",
		"category", "per_diem", "project_id", "pay_period_id", "status",
		"rejection_reason", "created_at", "updated_at",
	}).AddRow(
		"te-1", "emp-1", now, nil, nil, 8.0,
		string(models.DayRegular), 1.0, nil, "pp-1", string(models.PeriodStatusDraft),
		nil, now, now,
	)
}

func TestListTimeEntriesByPeriod(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTimeEntryRepository(db)

	now := time.Now()
	mock.ExpectQuery(`SELECT id, employee_id, .+ FROM time_entries WHERE 1=1 AND pay_period_id = \$1 ORDER BY date ASC`).
		WithArgs("pp-1").
		WillReturnRows(timeEntryRows(now))

	entries, err := repo.List(context.Background(), models.TimeEntryFilter{PayPeriodID: "pp-1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "te-1", entries[0].ID)
	assert.Equal(t, models.DayRegular, entries[0].Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUnassignedScopesWindow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTimeEntryRepository(db)

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, employee_id, .+ FROM time_entries WHERE employee_id = \$1 AND pay_period_id IS NULL AND date >= \$2 AND date <= \$3 ORDER BY date ASC`).
		WithArgs("emp-1", from, to).
		WillReturnRows(timeEntryRows(from))

	entries, err := repo.ListUnassigned(context.Background(), "emp-1", from, to)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveWithPeriodTotalsComputesFromTransactionRead(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTimeEntryRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectExec(`SELECT id FROM pay_periods WHERE id = \$1 FOR UPDATE`).
		WithArgs("pp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO time_entries").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT id, employee_id, .+ FROM time_entries WHERE pay_period_id = \$1 ORDER BY date ASC`).
		WithArgs("pp-1").
		WillReturnRows(timeEntryRows(now))
	mock.ExpectExec(`UPDATE pay_periods SET total_hours = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	hours := 8.0
	periodID := "pp-1"
	entry := &models.TimeEntry{
		EmployeeID:  "emp-1",
		Date:        time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		TotalHours:  &hours,
		Category:    models.DayRegular,
		PayPeriodID: &periodID,
	}
	var seen []models.TimeEntry
	err := repo.SaveWithPeriodTotals(context.Background(), entry, periodID, func(entries []models.TimeEntry) models.PeriodTotals {
		seen = entries
		return models.PeriodTotals{TotalHours: 8}
	})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, models.PeriodStatusDraft, entry.Status)
	require.Len(t, seen, 1)
	assert.Equal(t, "te-1", seen[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveWithPeriodTotalsRollsBackOnTotalsFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTimeEntryRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectExec(`SELECT id FROM pay_periods WHERE id = \$1 FOR UPDATE`).
		WithArgs("pp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO time_entries").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT id, employee_id, .+ FROM time_entries WHERE pay_period_id = \$1 ORDER BY date ASC`).
		WithArgs("pp-1").
		WillReturnRows(timeEntryRows(now))
	mock.ExpectExec(`UPDATE pay_periods SET total_hours`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	hours := 8.0
	periodID := "pp-1"
	entry := &models.TimeEntry{
		EmployeeID:  "emp-1",
		Date:        time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		TotalHours:  &hours,
		Category:    models.DayRegular,
		PayPeriodID: &periodID,
	}
	err := repo.SaveWithPeriodTotals(context.Background(), entry, periodID, func(entries []models.TimeEntry) models.PeriodTotals {
		return models.PeriodTotals{TotalHours: 8}
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteWithPeriodTotals(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTimeEntryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT id FROM pay_periods WHERE id = \$1 FOR UPDATE`).
		WithArgs("pp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM time_entries WHERE id = \$1`).
		WithArgs("te-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT id, employee_id, .+ FROM time_entries WHERE pay_period_id = \$1 ORDER BY date ASC`).
		WithArgs("pp-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "employee_id", "date", "start_time", "end_time", "total_hours",
			"category", "per_diem", "project_id", "pay_period_id", "status",
			"rejection_reason", "created_at", "updated_at",
		}))
	mock.ExpectExec(`UPDATE pay_periods SET total_hours = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.DeleteWithPeriodTotals(context.Background(), "te-1", "pp-1", func(entries []models.TimeEntry) models.PeriodTotals {
		assert.Empty(t, entries)
		return models.PeriodTotals{}
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
