package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/paylog/timecard-api/internal/access"
	"github.com/paylog/timecard-api/internal/models"
	appErrors "github.com/paylog/timecard-api/pkg/errors"
)

type entryRepository interface {
	FindByID(ctx context.Context, id string) (*models.TimeEntry, error)
	List(ctx context.Context, filter models.TimeEntryFilter) ([]models.TimeEntry, error)
	Create(ctx context.Context, entry *models.TimeEntry) error
	Update(ctx context.Context, entry *models.TimeEntry) error
	Delete(ctx context.Context, id string) error
	SaveWithPeriodTotals(ctx context.Context, entry *models.TimeEntry, periodID string, compute func([]models.TimeEntry) models.PeriodTotals) error
	DeleteWithPeriodTotals(ctx context.Context, entryID, periodID string, compute func([]models.TimeEntry) models.PeriodTotals) error
}

type entryPeriodRepository interface {
	FindByID(ctx context.Context, id string) (*models.PayPeriod, error)
}

type periodCacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// EntryService owns time entry mutations. Writes on assigned entries always
// recompute the owning period's totals in the same transaction.
type EntryService struct {
	entries           entryRepository
	periods           entryPeriodRepository
	cache             periodCacheInvalidator
	validator         *validator.Validate
	logger            *zap.Logger
	overtimeThreshold float64
}

// NewEntryService constructs the entry service.
func NewEntryService(entries entryRepository, periods entryPeriodRepository, cache periodCacheInvalidator, validate *validator.Validate, logger *zap.Logger, overtimeThreshold float64) *EntryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if overtimeThreshold <= 0 {
		overtimeThreshold = 40
	}
	svc := &EntryService{entries: entries, periods: periods, cache: cache, validator: validate, logger: logger, overtimeThreshold: overtimeThreshold}
	registerPayrollValidations(svc.validator)
	return svc
}

func registerPayrollValidations(v *validator.Validate) {
	v.RegisterValidation("day_category", func(fl validator.FieldLevel) bool { //nolint:errcheck
		return models.DayCategory(strings.ToUpper(fl.Field().String())).Valid()
	})
	v.RegisterValidation("per_diem_unit", func(fl validator.FieldLevel) bool { //nolint:errcheck
		return models.ValidPerDiem(fl.Field().Float())
	})
}

// TimeEntryRequest is the write payload for a tracked day.
type TimeEntryRequest struct {
	Date       string     `json:"date" validate:"required"`
	StartTime  *time.Time `json:"start_time"`
	EndTime    *time.Time `json:"end_time"`
	TotalHours *float64   `json:"total_hours" validate:"omitempty,gte=0,lte=24"`
	Category   string     `json:"category" validate:"required,day_category"`
	PerDiem    float64    `json:"per_diem" validate:"per_diem_unit"`
	ProjectID  *string    `json:"project_id"`
}

// Create records a new tracked day for the acting employee.
func (s *EntryService) Create(ctx context.Context, req TimeEntryRequest, claims *models.JWTClaims) (*models.TimeEntry, error) {
	entry, err := s.buildEntry(req, claims.UserID)
	if err != nil {
		return nil, err
	}

	existing, err := s.entries.List(ctx, models.TimeEntryFilter{EmployeeID: claims.UserID, DateFrom: &entry.Date, DateTo: &entry.Date})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing entries")
	}
	if len(existing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an entry already exists for this date")
	}

	if err := s.entries.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create time entry")
	}
	return entry, nil
}

// Update rewrites an existing tracked day. When the entry belongs to a
// period, the period's totals are recomputed atomically with the write.
func (s *EntryService) Update(ctx context.Context, id string, req TimeEntryRequest, claims *models.JWTClaims) (*models.TimeEntry, error) {
	current, err := s.loadOwned(ctx, id, claims)
	if err != nil {
		return nil, err
	}

	period, err := s.editablePeriod(ctx, current)
	if err != nil {
		return nil, err
	}

	updated, err := s.buildEntry(req, claims.UserID)
	if err != nil {
		return nil, err
	}
	updated.ID = current.ID
	updated.PayPeriodID = current.PayPeriodID
	updated.Status = current.Status
	updated.CreatedAt = current.CreatedAt

	if !updated.Date.Equal(current.Date) {
		existing, err := s.entries.List(ctx, models.TimeEntryFilter{EmployeeID: claims.UserID, DateFrom: &updated.Date, DateTo: &updated.Date})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing entries")
		}
		if len(existing) > 0 {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an entry already exists for this date")
		}
	}

	if period == nil {
		if err := s.entries.Update(ctx, updated); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update time entry")
		}
		return updated, nil
	}

	if updated.Date.Before(period.StartDate) || updated.Date.After(period.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "entry date falls outside the pay period window")
	}

	if err := s.entries.SaveWithPeriodTotals(ctx, updated, period.ID, s.computeTotals); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save entry with period totals")
	}
	s.invalidatePeriodCache(ctx, period.EmployeeID)
	return updated, nil
}

// Delete removes a tracked day under the same ownership and editability
// rules as updates.
func (s *EntryService) Delete(ctx context.Context, id string, claims *models.JWTClaims) error {
	current, err := s.loadOwned(ctx, id, claims)
	if err != nil {
		return err
	}

	period, err := s.editablePeriod(ctx, current)
	if err != nil {
		return err
	}

	if period == nil {
		if err := s.entries.Delete(ctx, id); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete time entry")
		}
		return nil
	}

	if err := s.entries.DeleteWithPeriodTotals(ctx, id, period.ID, s.computeTotals); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete entry with period totals")
	}
	s.invalidatePeriodCache(ctx, period.EmployeeID)
	return nil
}

// List returns entries for an employee. USER is always scoped to self;
// staff may read any employee's entries.
func (s *EntryService) List(ctx context.Context, filter models.TimeEntryFilter, claims *models.JWTClaims) ([]models.TimeEntry, error) {
	if !access.IsStaff(claims.Role) {
		filter.EmployeeID = claims.UserID
	} else if filter.EmployeeID == "" {
		filter.EmployeeID = claims.UserID
	}

	entries, err := s.entries.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list time entries")
	}
	return entries, nil
}

func (s *EntryService) loadOwned(ctx context.Context, id string, claims *models.JWTClaims) (*models.TimeEntry, error) {
	entry, err := s.entries.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "time entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time entry")
	}
	// entries are personal records: no role overrides ownership here
	if entry.EmployeeID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "time entries can only be modified by their owner")
	}
	return entry, nil
}

// editablePeriod returns the owning period when the entry is assigned, after
// verifying the period still accepts edits. Unassigned entries return nil.
func (s *EntryService) editablePeriod(ctx context.Context, entry *models.TimeEntry) (*models.PayPeriod, error) {
	if entry.PayPeriodID == nil {
		return nil, nil
	}
	period, err := s.periods.FindByID(ctx, *entry.PayPeriodID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "owning pay period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load owning pay period")
	}
	if period.Status != models.PeriodStatusDraft && period.Status != models.PeriodStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "entries are locked once the pay period is "+strings.ToLower(string(period.Status)))
	}
	return period, nil
}

// computeTotals is handed to the repository, which invokes it on the entry
// set read inside the write transaction.
func (s *EntryService) computeTotals(entries []models.TimeEntry) models.PeriodTotals {
	return ComputeTotals(entries, s.overtimeThreshold)
}

func (s *EntryService) invalidatePeriodCache(ctx context.Context, employeeID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "periods:*"); err != nil {
		s.logger.Warn("failed to invalidate period cache", zap.String("employee_id", employeeID), zap.Error(err))
	}
}

func (s *EntryService) buildEntry(req TimeEntryRequest, employeeID string) (*models.TimeEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time entry payload")
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}

	category := models.DayCategory(strings.ToUpper(req.Category))

	if (req.StartTime == nil) != (req.EndTime == nil) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start and end time must be provided together")
	}

	hours := req.TotalHours
	if req.StartTime != nil && req.EndTime != nil {
		if !req.EndTime.After(*req.StartTime) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
		}
		if hours == nil {
			worked := req.EndTime.Sub(*req.StartTime).Hours()
			if worked > 24 {
				return nil, appErrors.Clone(appErrors.ErrValidation, "a tracked day cannot exceed 24 hours")
			}
			hours = &worked
		}
	}

	switch category {
	case models.DayUnpaidLeave:
		if (hours != nil && *hours != 0) || req.StartTime != nil || req.PerDiem != 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unpaid leave carries no hours and no per-diem")
		}
		hours = nil
	case models.DayRegular:
		if hours == nil && req.PerDiem == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a regular day needs worked time or a per-diem")
		}
	}

	return &models.TimeEntry{
		EmployeeID: employeeID,
		Date:       date,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		TotalHours: hours,
		Category:   category,
		PerDiem:    req.PerDiem,
		ProjectID:  req.ProjectID,
		Status:     models.PeriodStatusDraft,
	}, nil
}
