package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/paylog/timecard-api/internal/access"
	"github.com/paylog/timecard-api/internal/models"
	"github.com/paylog/timecard-api/internal/repository"
	appErrors "github.com/paylog/timecard-api/pkg/errors"
)

type periodRepository interface {
	CreateWithEntries(ctx context.Context, period *models.PayPeriod, entryIDs []string) error
	FindByID(ctx context.Context, id string) (*models.PayPeriod, error)
	FindDetailByID(ctx context.Context, id string) (*models.PayPeriodDetail, error)
	List(ctx context.Context, filter models.PayPeriodFilter) ([]models.PayPeriodDetail, int, error)
	TransitionStatus(ctx context.Context, id string, expected, next models.PeriodStatus, update repository.TransitionUpdate) (bool, error)
}

type periodEntryReader interface {
	List(ctx context.Context, filter models.TimeEntryFilter) ([]models.TimeEntry, error)
	ListUnassigned(ctx context.Context, employeeID string, from, to time.Time) ([]models.TimeEntry, error)
}

type periodAuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type periodListCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// PeriodService owns the pay period lifecycle: bundling draft entries into a
// window, the submit/approve/reject/pay transitions, and the review listing.
type PeriodService struct {
	periods           periodRepository
	entries           periodEntryReader
	audit             periodAuditWriter
	cache             periodListCache
	validator         *validator.Validate
	logger            *zap.Logger
	overtimeThreshold float64
	listTTL           time.Duration
}

// NewPeriodService constructs the period service.
func NewPeriodService(periods periodRepository, entries periodEntryReader, audit periodAuditWriter, cache periodListCache, validate *validator.Validate, logger *zap.Logger, overtimeThreshold float64, listTTL time.Duration) *PeriodService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if overtimeThreshold <= 0 {
		overtimeThreshold = 40
	}
	if listTTL <= 0 {
		listTTL = 2 * time.Minute
	}
	return &PeriodService{periods: periods, entries: entries, audit: audit, cache: cache, validator: validate, logger: logger, overtimeThreshold: overtimeThreshold, listTTL: listTTL}
}

// CreatePeriodRequest bundles draft entries into a new 7-day period.
type CreatePeriodRequest struct {
	WeekStart string   `json:"week_start" validate:"required"`
	EntryIDs  []string `json:"entry_ids" validate:"required,min=1,max=7,unique"`
}

// CreateFromDrafts turns the employee's unassigned draft entries into a new
// DRAFT pay period. All requested entries must be owned, unassigned, dated
// inside the window, and on distinct dates.
func (s *PeriodService) CreateFromDrafts(ctx context.Context, req CreatePeriodRequest, claims *models.JWTClaims) (*models.PayPeriodDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid period payload")
	}

	start, err := time.Parse("2006-01-02", req.WeekStart)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid week start, expected YYYY-MM-DD")
	}
	end := models.PeriodWindowEnd(start)

	available, err := s.entries.ListUnassigned(ctx, claims.UserID, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft entries")
	}
	byID := make(map[string]models.TimeEntry, len(available))
	for _, entry := range available {
		byID[entry.ID] = entry
	}

	selected := make([]models.TimeEntry, 0, len(req.EntryIDs))
	dates := make(map[string]struct{}, len(req.EntryIDs))
	for _, id := range req.EntryIDs {
		entry, ok := byID[id]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "entry "+id+" is not an unassigned draft inside the window")
		}
		day := entry.Date.Format("2006-01-02")
		if _, dup := dates[day]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, "two entries share the date "+day)
		}
		dates[day] = struct{}{}
		selected = append(selected, entry)
	}

	period := &models.PayPeriod{
		EmployeeID:   claims.UserID,
		StartDate:    start,
		EndDate:      end,
		PeriodTotals: ComputeTotals(selected, s.overtimeThreshold),
		Status:       models.PeriodStatusDraft,
	}

	if err := s.periods.CreateWithEntries(ctx, period, req.EntryIDs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "one or more entries were claimed by another period")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create pay period")
	}

	s.invalidateListCache(ctx)

	detail := &models.PayPeriodDetail{PayPeriod: *period, EmployeeName: claims.FullName, Entries: selected}
	return detail, nil
}

// Submit moves a period into review. It is also the resubmission path after
// a rejection, clearing the previous rejection reason.
func (s *PeriodService) Submit(ctx context.Context, id string, claims *models.JWTClaims) (*models.PayPeriod, error) {
	period, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if period.EmployeeID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owning employee can submit a pay period")
	}

	now := time.Now().UTC()
	update := repository.TransitionUpdate{SubmittedAt: &now, ClearRejection: true}
	return s.transition(ctx, period, models.EventSubmit, update, claims, models.AuditActionPeriodSubmit)
}

// Approve accepts a submitted period.
func (s *PeriodService) Approve(ctx context.Context, id string, claims *models.JWTClaims) (*models.PayPeriod, error) {
	if !access.CanPerform(models.EventApprove, claims.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot approve pay periods")
	}
	period, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	update := repository.TransitionUpdate{ReviewedAt: &now, ReviewerID: &claims.UserID}
	return s.transition(ctx, period, models.EventApprove, update, claims, models.AuditActionPeriodApprove)
}

// Reject sends a submitted period back to its owner with a reason.
func (s *PeriodService) Reject(ctx context.Context, id, reason string, claims *models.JWTClaims) (*models.PayPeriod, error) {
	if !access.CanPerform(models.EventReject, claims.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot reject pay periods")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a rejection reason is required")
	}
	period, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	update := repository.TransitionUpdate{ReviewedAt: &now, ReviewerID: &claims.UserID, RejectionReason: &reason}
	return s.transition(ctx, period, models.EventReject, update, claims, models.AuditActionPeriodReject)
}

// MarkPaid settles an approved period. PAID is terminal.
func (s *PeriodService) MarkPaid(ctx context.Context, id string, claims *models.JWTClaims) (*models.PayPeriod, error) {
	if !access.CanPerform(models.EventMarkPaid, claims.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot mark pay periods as paid")
	}
	period, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	update := repository.TransitionUpdate{PaidAt: &now}
	return s.transition(ctx, period, models.EventMarkPaid, update, claims, models.AuditActionPeriodPay)
}

// Get returns a period with its entries. Owner or staff only.
func (s *PeriodService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.PayPeriodDetail, error) {
	detail, err := s.periods.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "pay period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pay period")
	}
	if detail.EmployeeID != claims.UserID && !access.IsStaff(claims.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "pay period belongs to another employee")
	}

	entries, err := s.entries.List(ctx, models.TimeEntryFilter{PayPeriodID: id})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period entries")
	}
	detail.Entries = entries
	return detail, nil
}

// PeriodListResult is the cached shape of a period listing page.
type PeriodListResult struct {
	Periods    []models.PayPeriodDetail `json:"periods"`
	Pagination models.Pagination        `json:"pagination"`
}

// List returns periods for review screens. A USER is always scoped to their
// own periods regardless of the requested filter; staff may filter by
// employee, status, and name substring.
func (s *PeriodService) List(ctx context.Context, filter models.PayPeriodFilter, claims *models.JWTClaims) (*PeriodListResult, error) {
	if !access.IsStaff(claims.Role) {
		filter.EmployeeID = claims.UserID
		filter.Search = ""
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	key := listCacheKey(filter)
	if s.cache != nil {
		var cached PeriodListResult
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("period list cache read failed", zap.Error(err))
		}
	}

	periods, total, err := s.periods.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pay periods")
	}

	result := &PeriodListResult{
		Periods:    periods,
		Pagination: models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total},
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result, s.listTTL); err != nil {
			s.logger.Warn("period list cache write failed", zap.Error(err))
		}
	}
	return result, nil
}

func (s *PeriodService) load(ctx context.Context, id string) (*models.PayPeriod, error) {
	period, err := s.periods.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "pay period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pay period")
	}
	return period, nil
}

// transition runs one lifecycle event against the loaded period. The
// repository's expected-status guard decides races: when the guarded UPDATE
// matches no row the period moved underneath us and the caller gets an
// invalid-transition conflict, with nothing mutated.
func (s *PeriodService) transition(ctx context.Context, period *models.PayPeriod, event models.PeriodEvent, update repository.TransitionUpdate, claims *models.JWTClaims, auditAction string) (*models.PayPeriod, error) {
	next, ok := period.Status.Next(event)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot %s a %s pay period", event, strings.ToLower(string(period.Status))))
	}

	applied, err := s.periods.TransitionStatus(ctx, period.ID, period.Status, next, update)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transition pay period")
	}
	if !applied {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "pay period status changed concurrently, reload and retry")
	}

	s.invalidateListCache(ctx)

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &claims.UserID,
			Action:     auditAction,
			Resource:   "pay_period",
			ResourceID: &period.ID,
			NewValues:  []byte(fmt.Sprintf(`{"from":%q,"to":%q}`, period.Status, next)),
		}); err != nil {
			s.logger.Warn("failed to record period audit log", zap.Error(err))
		}
	}

	refreshed, err := s.load(ctx, period.ID)
	if err != nil {
		return nil, err
	}
	return refreshed, nil
}

func (s *PeriodService) invalidateListCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "periods:*"); err != nil {
		s.logger.Warn("failed to invalidate period list cache", zap.Error(err))
	}
}

func listCacheKey(filter models.PayPeriodFilter) string {
	status := ""
	if filter.Status != nil {
		status = string(*filter.Status)
	}
	return fmt.Sprintf("periods:%s:%s:%s:%d:%d", filter.EmployeeID, status, strings.ToLower(filter.Search), filter.Page, filter.PageSize)
}
