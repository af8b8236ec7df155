package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/paylog/timecard-api/internal/models"
)

const payPeriodColumns = `pp.id, pp.employee_id, pp.start_date, pp.end_date,
pp.total_hours, pp.total_overtime_hours, pp.total_holiday_hours, pp.total_sick_hours,
pp.total_rotation_hours, pp.total_travel_hours, pp.total_pto_hours, pp.total_per_diem,
pp.total_sick_days, pp.total_pto, pp.total_rotation_days,
pp.status, pp.submitted_at, pp.reviewed_at, pp.reviewer_id, pp.rejection_reason, pp.paid_at,
pp.created_at, pp.updated_at`

// PayPeriodRepository handles persistence for pay period bundles.
type PayPeriodRepository struct {
	db *sqlx.DB
}

// NewPayPeriodRepository constructs the repository.
func NewPayPeriodRepository(db *sqlx.DB) *PayPeriodRepository {
	return &PayPeriodRepository{db: db}
}

// CreateWithEntries inserts the period and claims the given entries for it in
// one transaction. Claimed entries take the period's DRAFT status.
func (r *PayPeriodRepository) CreateWithEntries(ctx context.Context, period *models.PayPeriod, entryIDs []string) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if period.CreatedAt.IsZero() {
		period.CreatedAt = now
	}
	period.UpdatedAt = now
	if period.Status == "" {
		period.Status = models.PeriodStatusDraft
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	const insertQuery = `INSERT INTO pay_periods (id, employee_id, start_date, end_date,
total_hours, total_overtime_hours, total_holiday_hours, total_sick_hours,
total_rotation_hours, total_travel_hours, total_pto_hours, total_per_diem,
total_sick_days, total_pto, total_rotation_days,
status, created_at, updated_at)
VALUES (:id, :employee_id, :start_date, :end_date,
:total_hours, :total_overtime_hours, :total_holiday_hours, :total_sick_hours,
:total_rotation_hours, :total_travel_hours, :total_pto_hours, :total_per_diem,
:total_sick_days, :total_pto, :total_rotation_days,
:status, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, period); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create pay period: %w", err)
	}

	if len(entryIDs) > 0 {
		const claimQuery = `UPDATE time_entries SET pay_period_id = $1, status = $2, updated_at = $3 WHERE id = ANY($4) AND pay_period_id IS NULL`
		res, err := tx.ExecContext(ctx, claimQuery, period.ID, period.Status, now, pq.Array(entryIDs))
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("claim entries for pay period: %w", err)
		}
		claimed, err := res.RowsAffected()
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("claim entries for pay period: %w", err)
		}
		if claimed != int64(len(entryIDs)) {
			tx.Rollback() //nolint:errcheck
			return sql.ErrNoRows
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit pay period create: %w", err)
	}
	return nil
}

// FindByID returns a pay period.
func (r *PayPeriodRepository) FindByID(ctx context.Context, id string) (*models.PayPeriod, error) {
	query := fmt.Sprintf(`SELECT %s FROM pay_periods pp WHERE pp.id = $1 LIMIT 1`, payPeriodColumns)
	var period models.PayPeriod
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find pay period by id: %w", err)
	}
	return &period, nil
}

// FindDetailByID returns a pay period with employee metadata.
func (r *PayPeriodRepository) FindDetailByID(ctx context.Context, id string) (*models.PayPeriodDetail, error) {
	query := fmt.Sprintf(`SELECT %s, u.full_name AS employee_name
FROM pay_periods pp
JOIN users u ON u.id = pp.employee_id
WHERE pp.id = $1 LIMIT 1`, payPeriodColumns)
	var detail models.PayPeriodDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find pay period detail by id: %w", err)
	}
	return &detail, nil
}

// List returns pay periods matching the filter with total count, newest
// window first. Ties on start date are broken by id for a stable order.
func (r *PayPeriodRepository) List(ctx context.Context, filter models.PayPeriodFilter) ([]models.PayPeriodDetail, int, error) {
	base := `FROM pay_periods pp
JOIN users u ON u.id = pp.employee_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.EmployeeID != "" {
		where = append(where, fmt.Sprintf("pp.employee_id = $%d", len(args)+1))
		args = append(args, filter.EmployeeID)
	}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("pp.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("LOWER(u.full_name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s, u.full_name AS employee_name
%s WHERE %s
ORDER BY pp.start_date DESC, pp.id ASC
LIMIT %d OFFSET %d`, payPeriodColumns, base, whereClause, size, offset)

	var periods []models.PayPeriodDetail
	if err := r.db.SelectContext(ctx, &periods, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list pay periods: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count pay periods: %w", err)
	}
	return periods, total, nil
}

// ListBetween returns all periods whose window starts inside [from, to],
// optionally narrowed to one employee or status. Used by report generation,
// so it is not paginated.
func (r *PayPeriodRepository) ListBetween(ctx context.Context, from, to time.Time, employeeID string, status *models.PeriodStatus) ([]models.PayPeriodDetail, error) {
	base := `FROM pay_periods pp
JOIN users u ON u.id = pp.employee_id`
	where := []string{"pp.start_date >= $1", "pp.start_date <= $2"}
	args := []interface{}{from, to}
	if employeeID != "" {
		where = append(where, fmt.Sprintf("pp.employee_id = $%d", len(args)+1))
		args = append(args, employeeID)
	}
	if status != nil && status.Valid() {
		where = append(where, fmt.Sprintf("pp.status = $%d", len(args)+1))
		args = append(args, *status)
	}

	query := fmt.Sprintf(`SELECT %s, u.full_name AS employee_name
%s WHERE %s
ORDER BY u.full_name ASC, pp.start_date ASC`, payPeriodColumns, base, strings.Join(where, " AND "))

	var periods []models.PayPeriodDetail
	if err := r.db.SelectContext(ctx, &periods, query, args...); err != nil {
		return nil, fmt.Errorf("list pay periods for report: %w", err)
	}
	return periods, nil
}

// TransitionUpdate carries the bookkeeping fields written alongside a status
// change. Nil pointers leave the column untouched; ClearRejection resets the
// rejection reason on both the period and its entries.
type TransitionUpdate struct {
	SubmittedAt     *time.Time
	ReviewedAt      *time.Time
	ReviewerID      *string
	RejectionReason *string
	PaidAt          *time.Time
	ClearRejection  bool
}

// TransitionStatus moves a period from the expected status to the next one
// and mirrors the new status onto its entries, all in one transaction. The
// expected-status guard makes concurrent transitions race-safe: it returns
// false without changing anything when the period is no longer in the
// expected status.
func (r *PayPeriodRepository) TransitionStatus(ctx context.Context, id string, expected, next models.PeriodStatus, update TransitionUpdate) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}

	now := time.Now().UTC()
	set := []string{"status = $3", "updated_at = $4"}
	args := []interface{}{id, expected, next, now}
	if update.SubmittedAt != nil {
		set = append(set, fmt.Sprintf("submitted_at = $%d", len(args)+1))
		args = append(args, *update.SubmittedAt)
	}
	if update.ReviewedAt != nil {
		set = append(set, fmt.Sprintf("reviewed_at = $%d", len(args)+1))
		args = append(args, *update.ReviewedAt)
	}
	if update.ReviewerID != nil {
		set = append(set, fmt.Sprintf("reviewer_id = $%d", len(args)+1))
		args = append(args, *update.ReviewerID)
	}
	if update.RejectionReason != nil {
		set = append(set, fmt.Sprintf("rejection_reason = $%d", len(args)+1))
		args = append(args, *update.RejectionReason)
	} else if update.ClearRejection {
		set = append(set, "rejection_reason = NULL")
	}
	if update.PaidAt != nil {
		set = append(set, fmt.Sprintf("paid_at = $%d", len(args)+1))
		args = append(args, *update.PaidAt)
	}

	periodQuery := fmt.Sprintf(`UPDATE pay_periods SET %s WHERE id = $1 AND status = $2`, strings.Join(set, ", "))
	res, err := tx.ExecContext(ctx, periodQuery, args...)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("transition pay period: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("transition pay period: %w", err)
	}
	if affected == 0 {
		tx.Rollback() //nolint:errcheck
		return false, nil
	}

	entrySet := []string{"status = $2", "updated_at = $3"}
	entryArgs := []interface{}{id, next, now}
	if update.RejectionReason != nil {
		entrySet = append(entrySet, fmt.Sprintf("rejection_reason = $%d", len(entryArgs)+1))
		entryArgs = append(entryArgs, *update.RejectionReason)
	} else if update.ClearRejection {
		entrySet = append(entrySet, "rejection_reason = NULL")
	}
	entryQuery := fmt.Sprintf(`UPDATE time_entries SET %s WHERE pay_period_id = $1`, strings.Join(entrySet, ", "))
	if _, err := tx.ExecContext(ctx, entryQuery, entryArgs...); err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("mirror status onto entries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit pay period transition: %w", err)
	}
	return true, nil
}
