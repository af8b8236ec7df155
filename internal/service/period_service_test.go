package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paylog/timecard-api/internal/models"
	"github.com/paylog/timecard-api/internal/repository"
	appErrors "github.com/paylog/timecard-api/pkg/errors"
)

type mockPeriodRepo struct {
	periods     map[string]models.PayPeriod
	created     *models.PayPeriod
	createdIDs  []string
	transitions int
	forceRace   bool
}

func (m *mockPeriodRepo) CreateWithEntries(ctx context.Context, period *models.PayPeriod, entryIDs []string) error {
	if m.periods == nil {
		m.periods = make(map[string]models.PayPeriod)
	}
	if period.ID == "" {
		period.ID = "new-period"
	}
	m.periods[period.ID] = *period
	m.created = period
	m.createdIDs = entryIDs
	return nil
}

func (m *mockPeriodRepo) FindByID(ctx context.Context, id string) (*models.PayPeriod, error) {
	if p, ok := m.periods[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPeriodRepo) FindDetailByID(ctx context.Context, id string) (*models.PayPeriodDetail, error) {
	if p, ok := m.periods[id]; ok {
		return &models.PayPeriodDetail{PayPeriod: p, EmployeeName: "Jane Doe"}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPeriodRepo) List(ctx context.Context, filter models.PayPeriodFilter) ([]models.PayPeriodDetail, int, error) {
	var out []models.PayPeriodDetail
	for _, p := range m.periods {
		if filter.EmployeeID != "" && p.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		out = append(out, models.PayPeriodDetail{PayPeriod: p})
	}
	return out, len(out), nil
}

func (m *mockPeriodRepo) TransitionStatus(ctx context.Context, id string, expected, next models.PeriodStatus, update repository.TransitionUpdate) (bool, error) {
	m.transitions++
	if m.forceRace {
		return false, nil
	}
	p, ok := m.periods[id]
	if !ok || p.Status != expected {
		return false, nil
	}
	p.Status = next
	if update.SubmittedAt != nil {
		p.SubmittedAt = update.SubmittedAt
	}
	if update.ReviewedAt != nil {
		p.ReviewedAt = update.ReviewedAt
	}
	if update.ReviewerID != nil {
		p.ReviewerID = update.ReviewerID
	}
	if update.RejectionReason != nil {
		p.RejectionReason = update.RejectionReason
	} else if update.ClearRejection {
		p.RejectionReason = nil
	}
	if update.PaidAt != nil {
		p.PaidAt = update.PaidAt
	}
	m.periods[id] = p
	return true, nil
}

type mockEntryReader struct {
	unassigned []models.TimeEntry
	assigned   map[string][]models.TimeEntry
}

func (m *mockEntryReader) List(ctx context.Context, filter models.TimeEntryFilter) ([]models.TimeEntry, error) {
	if filter.PayPeriodID != "" {
		return m.assigned[filter.PayPeriodID], nil
	}
	return nil, nil
}

func (m *mockEntryReader) ListUnassigned(ctx context.Context, employeeID string, from, to time.Time) ([]models.TimeEntry, error) {
	var out []models.TimeEntry
	for _, e := range m.unassigned {
		if e.EmployeeID != employeeID || e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

type mockAuditWriter struct {
	actions []string
}

func (m *mockAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.actions = append(m.actions, log.Action)
	return nil
}

func claimsFor(id string, role models.UserRole) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: role, FullName: "Jane Doe"}
}

func draftEntry(id, employeeID, date string, hours float64) models.TimeEntry {
	day, _ := time.Parse("2006-01-02", date)
	return models.TimeEntry{ID: id, EmployeeID: employeeID, Date: day, TotalHours: &hours, Category: models.DayRegular, Status: models.PeriodStatusDraft}
}

func newPeriodService(periods *mockPeriodRepo, entries *mockEntryReader, audit *mockAuditWriter) *PeriodService {
	return NewPeriodService(periods, entries, audit, nil, nil, nil, 40, 0)
}

func TestCreateFromDraftsComputesTotals(t *testing.T) {
	entries := &mockEntryReader{unassigned: []models.TimeEntry{
		draftEntry("e1", "emp-1", "2026-03-02", 9),
		draftEntry("e2", "emp-1", "2026-03-03", 9),
		draftEntry("e3", "emp-1", "2026-03-04", 9),
		draftEntry("e4", "emp-1", "2026-03-05", 9),
		draftEntry("e5", "emp-1", "2026-03-06", 9),
	}}
	periods := &mockPeriodRepo{}
	svc := newPeriodService(periods, entries, &mockAuditWriter{})

	detail, err := svc.CreateFromDrafts(context.Background(), CreatePeriodRequest{
		WeekStart: "2026-03-02",
		EntryIDs:  []string{"e1", "e2", "e3", "e4", "e5"},
	}, claimsFor("emp-1", models.RoleUser))

	require.NoError(t, err)
	assert.Equal(t, models.PeriodStatusDraft, detail.Status)
	assert.Equal(t, 40.0, detail.TotalHours)
	assert.Equal(t, 5.0, detail.TotalOvertimeHours)
	assert.Len(t, detail.Entries, 5)
	assert.Equal(t, []string{"e1", "e2", "e3", "e4", "e5"}, periods.createdIDs)
	assert.Equal(t, detail.StartDate.AddDate(0, 0, 6), detail.EndDate)
}

func TestCreateFromDraftsRejectsForeignOrAssignedEntry(t *testing.T) {
	entries := &mockEntryReader{unassigned: []models.TimeEntry{
		draftEntry("e1", "emp-1", "2026-03-02", 8),
	}}
	svc := newPeriodService(&mockPeriodRepo{}, entries, &mockAuditWriter{})

	_, err := svc.CreateFromDrafts(context.Background(), CreatePeriodRequest{
		WeekStart: "2026-03-02",
		EntryIDs:  []string{"e1", "not-mine"},
	}, claimsFor("emp-1", models.RoleUser))

	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestCreateFromDraftsRejectsDuplicateDates(t *testing.T) {
	entries := &mockEntryReader{unassigned: []models.TimeEntry{
		draftEntry("e1", "emp-1", "2026-03-02", 8),
		draftEntry("e2", "emp-1", "2026-03-02", 4),
	}}
	svc := newPeriodService(&mockPeriodRepo{}, entries, &mockAuditWriter{})

	_, err := svc.CreateFromDrafts(context.Background(), CreatePeriodRequest{
		WeekStart: "2026-03-02",
		EntryIDs:  []string{"e1", "e2"},
	}, claimsFor("emp-1", models.RoleUser))

	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestSubmitIsOwnerOnly(t *testing.T) {
	periods := &mockPeriodRepo{periods: map[string]models.PayPeriod{
		"pp-1": {ID: "pp-1", EmployeeID: "emp-1", Status: models.PeriodStatusDraft},
	}}
	svc := newPeriodService(periods, &mockEntryReader{}, &mockAuditWriter{})

	_, err := svc.Submit(context.Background(), "pp-1", claimsFor("emp-2", models.RoleAdmin))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	assert.Zero(t, periods.transitions)
}

func TestSubmitDraftPeriod(t *testing.T) {
	periods := &mockPeriodRepo{periods: map[string]models.PayPeriod{
		"pp-1": {ID: "pp-1", EmployeeID: "emp-1", Status: models.PeriodStatusDraft},
	}}
	audit := &mockAuditWriter{}
	svc := newPeriodService(periods, &mockEntryReader{}, audit)

	period, err := svc.Submit(context.Background(), "pp-1", claimsFor("emp-1", models.RoleUser))
	require.NoError(t, err)
	assert.Equal(t, models.PeriodStatusSubmitted, period.Status)
	assert.NotNil(t, period.SubmittedAt)
	assert.Contains(t, audit.actions, models.AuditActionPeriodSubmit)
}

func TestResubmitAfterRejectionClearsReason(t *testing.T) {
	reason := "missing project codes"
	periods := &mockPeriodRepo{periods: map[string]models.PayPeriod{
		"pp-1": {ID: "pp-1", EmployeeID: "emp-1", Status: models.PeriodStatusRejected, RejectionReason: &reason},
	}}
	svc := newPeriodService(periods, &mockEntryReader{}, &mockAuditWriter{})

	period, err := svc.Submit(context.Background(), "pp-1", claimsFor("emp-1", models.RoleUser))
	require.NoError(t, err)
	assert.Equal(t, models.PeriodStatusSubmitted, period.Status)
	assert.Nil(t, period.RejectionReason)
	assert.NotNil(t, period.SubmittedAt)
}

func TestApproveRolePolicy(t *testing.T) {
	newRepo := func() *mockPeriodRepo {
		return &mockPeriodRepo{periods: map[string]models.PayPeriod{
			"pp-1": {ID: "pp-1", EmployeeID: "emp-1", Status: models.PeriodStatusSubmitted},
		}}
	}

	svc := newPeriodService(newRepo(), &mockEntryReader{}, &mockAuditWriter{})
	_, err := svc.Approve(context.Background(), "pp-1", claimsFor("acc-1", models.RoleAccountant))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	repo := newRepo()
	svc = newPeriodService(repo, &mockEntryReader{}, &mockAuditWriter{})
	period, err := svc.Approve(context.Background(), "pp-1", claimsFor("hr-1", models.RoleHR))
	require.NoError(t, err)
	assert.Equal(t, models.PeriodStatusApproved, period.Status)
	require.NotNil(t, period.ReviewerID)
	assert.Equal(t, "hr-1", *period.ReviewerID)
}

func TestRejectRequiresReason(t *testing.T) {
	periods := &mockPeriodRepo{periods: map[string]models.PayPeriod{
		"pp-1": {ID: "pp-1", EmployeeID: "emp-1", Status: models.PeriodStatusSubmitted},
	}}
	svc := newPeriodService(periods, &mockEntryReader{}, &mockAuditWriter{})

	_, err := svc.Reject(context.Background(), "pp-1", "   ", claimsFor("hr-1", models.RoleHR))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Zero(t, periods.transitions)

	period, err := svc.Reject(context.Background(), "pp-1", "timesheet incomplete", claimsFor("hr-1", models.RoleHR))
	require.NoError(t, err)
	assert.Equal(t, models.PeriodStatusRejected, period.Status)
	require.NotNil(t, period.RejectionReason)
	assert.Equal(t, "timesheet incomplete", *period.RejectionReason)
}

func TestMarkPaidRolePolicy(t *testing.T) {
	newRepo := func() *mockPeriodRepo {
		return &mockPeriodRepo{periods: map[string]models.PayPeriod{
			"pp-1": {ID: "pp-1", EmployeeID: "emp-1", Status: models.PeriodStatusApproved},
		}}
	}

	svc := newPeriodService(newRepo(), &mockEntryReader{}, &mockAuditWriter{})
	_, err := svc.MarkPaid(context.Background(), "pp-1", claimsFor("pm-1", models.RoleProjectManager))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	svc = newPeriodService(newRepo(), &mockEntryReader{}, &mockAuditWriter{})
	period, err := svc.MarkPaid(context.Background(), "pp-1", claimsFor("acc-1", models.RoleAccountant))
	require.NoError(t, err)
	assert.Equal(t, models.PeriodStatusPaid, period.Status)
	assert.NotNil(t, period.PaidAt)
}

func TestInvalidTransitionLeavesStateUnchanged(t *testing.T) {
	periods := &mockPeriodRepo{periods: map[string]models.PayPeriod{
		"pp-1": {ID: "pp-1", EmployeeID: "emp-1", Status: models.PeriodStatusDraft},
	}}
	svc := newPeriodService(periods, &mockEntryReader{}, &mockAuditWriter{})

	_, err := svc.Approve(context.Background(), "pp-1", claimsFor("hr-1", models.RoleHR))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
	assert.Equal(t, models.PeriodStatusDraft, periods.periods["pp-1"].Status)
	assert.Zero(t, periods.transitions)

	_, err = svc.MarkPaid(context.Background(), "pp-1", claimsFor("acc-1", models.RoleAccountant))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestPaidIsTerminal(t *testing.T) {
	periods := &mockPeriodRepo{periods: map[string]models.PayPeriod{
		"pp-1": {ID: "pp-1", EmployeeID: "emp-1", Status: models.PeriodStatusPaid},
	}}
	svc := newPeriodService(periods, &mockEntryReader{}, &mockAuditWriter{})

	_, err := svc.Submit(context.Background(), "pp-1", claimsFor("emp-1", models.RoleUser))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))

	_, err = svc.MarkPaid(context.Background(), "pp-1", claimsFor("admin-1", models.RoleAdmin))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestTransitionRaceLoserGetsConflict(t *testing.T) {
	periods := &mockPeriodRepo{
		periods: map[string]models.PayPeriod{
			"pp-1": {ID: "pp-1", EmployeeID: "emp-1", Status: models.PeriodStatusDraft},
		},
		forceRace: true,
	}
	svc := newPeriodService(periods, &mockEntryReader{}, &mockAuditWriter{})

	_, err := svc.Submit(context.Background(), "pp-1", claimsFor("emp-1", models.RoleUser))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestListScopesUserToSelf(t *testing.T) {
	periods := &mockPeriodRepo{periods: map[string]models.PayPeriod{
		"pp-1": {ID: "pp-1", EmployeeID: "emp-1", Status: models.PeriodStatusSubmitted},
		"pp-2": {ID: "pp-2", EmployeeID: "emp-2", Status: models.PeriodStatusSubmitted},
	}}
	svc := newPeriodService(periods, &mockEntryReader{}, &mockAuditWriter{})

	result, err := svc.List(context.Background(), models.PayPeriodFilter{EmployeeID: "emp-2", Search: "Jane"}, claimsFor("emp-1", models.RoleUser))
	require.NoError(t, err)
	require.Len(t, result.Periods, 1)
	assert.Equal(t, "emp-1", result.Periods[0].EmployeeID)
}

func TestListStaffCanFilterByStatus(t *testing.T) {
	periods := &mockPeriodRepo{periods: map[string]models.PayPeriod{
		"pp-1": {ID: "pp-1", EmployeeID: "emp-1", Status: models.PeriodStatusSubmitted},
		"pp-2": {ID: "pp-2", EmployeeID: "emp-2", Status: models.PeriodStatusDraft},
	}}
	svc := newPeriodService(periods, &mockEntryReader{}, &mockAuditWriter{})

	status := models.PeriodStatusSubmitted
	result, err := svc.List(context.Background(), models.PayPeriodFilter{Status: &status}, claimsFor("hr-1", models.RoleHR))
	require.NoError(t, err)
	require.Len(t, result.Periods, 1)
	assert.Equal(t, "pp-1", result.Periods[0].ID)
}

func TestGetForbiddenForOtherUser(t *testing.T) {
	periods := &mockPeriodRepo{periods: map[string]models.PayPeriod{
		"pp-1": {ID: "pp-1", EmployeeID: "emp-1", Status: models.PeriodStatusSubmitted},
	}}
	entries := &mockEntryReader{assigned: map[string][]models.TimeEntry{
		"pp-1": {draftEntry("e1", "emp-1", "2026-03-02", 8)},
	}}
	svc := newPeriodService(periods, entries, &mockAuditWriter{})

	_, err := svc.Get(context.Background(), "pp-1", claimsFor("emp-2", models.RoleUser))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	detail, err := svc.Get(context.Background(), "pp-1", claimsFor("hr-1", models.RoleHR))
	require.NoError(t, err)
	assert.Len(t, detail.Entries, 1)
}
