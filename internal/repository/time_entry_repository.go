package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/paylog/timecard-api/internal/models"
)

const timeEntryColumns = `id, employee_id, date, start_time, end_time, total_hours, category, per_diem, project_id, pay_period_id, status, rejection_reason, created_at, updated_at`

// TimeEntryRepository handles persistence for tracked days.
type TimeEntryRepository struct {
	db *sqlx.DB
}

// NewTimeEntryRepository constructs the repository.
func NewTimeEntryRepository(db *sqlx.DB) *TimeEntryRepository {
	return &TimeEntryRepository{db: db}
}

// FindByID returns a single entry.
func (r *TimeEntryRepository) FindByID(ctx context.Context, id string) (*models.TimeEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM time_entries WHERE id = $1 LIMIT 1`, timeEntryColumns)
	var entry models.TimeEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find time entry by id: %w", err)
	}
	return &entry, nil
}

// List returns entries matching the filter, ordered by date ascending.
func (r *TimeEntryRepository) List(ctx context.Context, filter models.TimeEntryFilter) ([]models.TimeEntry, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.EmployeeID != "" {
		where = append(where, fmt.Sprintf("employee_id = $%d", len(args)+1))
		args = append(args, filter.EmployeeID)
	}
	if filter.PayPeriodID != "" {
		where = append(where, fmt.Sprintf("pay_period_id = $%d", len(args)+1))
		args = append(args, filter.PayPeriodID)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	query := fmt.Sprintf(`SELECT %s FROM time_entries WHERE %s ORDER BY date ASC`, timeEntryColumns, strings.Join(where, " AND "))

	var entries []models.TimeEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	return entries, nil
}

// ListUnassigned returns an employee's entries without an owning period inside
// the given window, ordered by date ascending.
func (r *TimeEntryRepository) ListUnassigned(ctx context.Context, employeeID string, from, to time.Time) ([]models.TimeEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM time_entries WHERE employee_id = $1 AND pay_period_id IS NULL AND date >= $2 AND date <= $3 ORDER BY date ASC`, timeEntryColumns)
	var entries []models.TimeEntry
	if err := r.db.SelectContext(ctx, &entries, query, employeeID, from, to); err != nil {
		return nil, fmt.Errorf("list unassigned time entries: %w", err)
	}
	return entries, nil
}

// Create inserts a new entry.
func (r *TimeEntryRepository) Create(ctx context.Context, entry *models.TimeEntry) error {
	prepareEntry(entry)
	const query = `INSERT INTO time_entries (id, employee_id, date, start_time, end_time, total_hours, category, per_diem, project_id, pay_period_id, status, rejection_reason, created_at, updated_at)
VALUES (:id, :employee_id, :date, :start_time, :end_time, :total_hours, :category, :per_diem, :project_id, :pay_period_id, :status, :rejection_reason, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create time entry: %w", err)
	}
	return nil
}

// Update persists mutable fields of an entry.
func (r *TimeEntryRepository) Update(ctx context.Context, entry *models.TimeEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE time_entries SET date = :date, start_time = :start_time, end_time = :end_time, total_hours = :total_hours, category = :category, per_diem = :per_diem, project_id = :project_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("update time entry: %w", err)
	}
	return nil
}

// Delete removes an entry.
func (r *TimeEntryRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM time_entries WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete time entry: %w", err)
	}
	return nil
}

// SaveWithPeriodTotals writes the entry and the recomputed totals of its
// owning period in one transaction. The period row is locked first so
// concurrent writers to the same period serialize, and totals are computed
// from the entry set as read inside the transaction; aggregates therefore
// never drift from the committed entries.
func (r *TimeEntryRepository) SaveWithPeriodTotals(ctx context.Context, entry *models.TimeEntry, periodID string, compute func([]models.TimeEntry) models.PeriodTotals) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if err := lockPeriod(ctx, tx, periodID); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	prepareEntry(entry)
	const entryQuery = `INSERT INTO time_entries (id, employee_id, date, start_time, end_time, total_hours, category, per_diem, project_id, pay_period_id, status, rejection_reason, created_at, updated_at)
VALUES (:id, :employee_id, :date, :start_time, :end_time, :total_hours, :category, :per_diem, :project_id, :pay_period_id, :status, :rejection_reason, :created_at, :updated_at)
ON CONFLICT (id)
DO UPDATE SET date = EXCLUDED.date, start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time, total_hours = EXCLUDED.total_hours, category = EXCLUDED.category, per_diem = EXCLUDED.per_diem, project_id = EXCLUDED.project_id, updated_at = EXCLUDED.updated_at`
	if _, err := tx.NamedExecContext(ctx, entryQuery, entry); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("save time entry: %w", err)
	}

	entries, err := periodEntriesTx(ctx, tx, periodID)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := updatePeriodTotals(ctx, tx, periodID, compute(entries)); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit time entry save: %w", err)
	}
	return nil
}

// DeleteWithPeriodTotals removes the entry and writes the recomputed totals
// of its owning period in one transaction, under the same period row lock
// as SaveWithPeriodTotals.
func (r *TimeEntryRepository) DeleteWithPeriodTotals(ctx context.Context, entryID, periodID string, compute func([]models.TimeEntry) models.PeriodTotals) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if err := lockPeriod(ctx, tx, periodID); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM time_entries WHERE id = $1`, entryID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete time entry: %w", err)
	}

	entries, err := periodEntriesTx(ctx, tx, periodID)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := updatePeriodTotals(ctx, tx, periodID, compute(entries)); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit time entry delete: %w", err)
	}
	return nil
}

// lockPeriod takes the period row lock. Locking before the entry write gives
// every writer of a period a single serialization point, so two updates to
// different entries of the same period cannot deadlock on each other's rows.
func lockPeriod(ctx context.Context, tx *sqlx.Tx, periodID string) error {
	if _, err := tx.ExecContext(ctx, `SELECT id FROM pay_periods WHERE id = $1 FOR UPDATE`, periodID); err != nil {
		return fmt.Errorf("lock pay period: %w", err)
	}
	return nil
}

func periodEntriesTx(ctx context.Context, tx *sqlx.Tx, periodID string) ([]models.TimeEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM time_entries WHERE pay_period_id = $1 ORDER BY date ASC`, timeEntryColumns)
	var entries []models.TimeEntry
	if err := tx.SelectContext(ctx, &entries, query, periodID); err != nil {
		return nil, fmt.Errorf("load period entries: %w", err)
	}
	return entries, nil
}

func updatePeriodTotals(ctx context.Context, tx *sqlx.Tx, periodID string, totals models.PeriodTotals) error {
	const query = `UPDATE pay_periods SET total_hours = $2, total_overtime_hours = $3, total_holiday_hours = $4, total_sick_hours = $5, total_rotation_hours = $6, total_travel_hours = $7, total_pto_hours = $8, total_per_diem = $9, total_sick_days = $10, total_pto = $11, total_rotation_days = $12, updated_at = $13 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, periodID,
		totals.TotalHours, totals.TotalOvertimeHours, totals.TotalHolidayHours,
		totals.TotalSickHours, totals.TotalRotationHours, totals.TotalTravelHours,
		totals.TotalPtoHours, totals.TotalPerDiem, totals.TotalSickDays,
		totals.TotalPto, totals.TotalRotationDays, time.Now().UTC()); err != nil {
		return fmt.Errorf("update period totals: %w", err)
	}
	return nil
}

func prepareEntry(entry *models.TimeEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	if entry.Status == "" {
		entry.Status = models.PeriodStatusDraft
	}
}
