package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/paylog/timecard-api/internal/models"
)

func TestCanAccessExactMatch(t *testing.T) {
	assert.True(t, CanAccess("/profile", models.RoleUser))
	assert.True(t, CanAccess("/profile", models.RoleHR))
	assert.False(t, CanAccess("/staff/profile", models.RoleUser))
	assert.True(t, CanAccess("/staff/profile", models.RoleAccountant))
}

func TestCanAccessLongestPrefix(t *testing.T) {
	// /staff/profile is exact for staff; a deeper staff route falls back to
	// the /staff prefix row.
	assert.True(t, CanAccess("/staff/periods/123", models.RoleProjectManager))
	assert.False(t, CanAccess("/staff/periods/123", models.RoleUser))

	assert.True(t, CanAccess("/entries/42", models.RoleUser))
	assert.True(t, CanAccess("/periods/42/approve", models.RoleHR))
	assert.False(t, CanAccess("/employees", models.RoleUser))
	assert.True(t, CanAccess("/employees", models.RoleAdmin))
}

func TestCanAccessUnknownRouteDenied(t *testing.T) {
	assert.False(t, CanAccess("/internal/debug", models.RoleAdmin))
	assert.False(t, CanAccess("", models.RoleAdmin))
}

func TestCanAccessPrefixBoundary(t *testing.T) {
	// /entriesfoo must not match the /entries prefix.
	assert.False(t, CanAccess("/entriesfoo", models.RoleUser))
	assert.True(t, CanAccess("/entries/", models.RoleUser))
}

func TestDefaultLanding(t *testing.T) {
	assert.Equal(t, "/profile", DefaultLanding(models.RoleUser))
	assert.Equal(t, "/staff/profile", DefaultLanding(models.RoleAdmin))
	assert.Equal(t, "/staff/profile", DefaultLanding(models.RoleAccountant))
	assert.Equal(t, "/staff/profile", DefaultLanding(models.RoleHR))
	assert.Equal(t, "/staff/profile", DefaultLanding(models.RoleProjectManager))
}

func TestIsStaff(t *testing.T) {
	assert.False(t, IsStaff(models.RoleUser))
	assert.False(t, IsStaff(models.UserRole("GUEST")))
	assert.True(t, IsStaff(models.RoleAdmin))
	assert.True(t, IsStaff(models.RoleAccountant))
	assert.True(t, IsStaff(models.RoleHR))
	assert.True(t, IsStaff(models.RoleProjectManager))
}

func TestCanPerformReviewPolicy(t *testing.T) {
	tests := []struct {
		name  string
		event models.PeriodEvent
		role  models.UserRole
		want  bool
	}{
		{"admin approves", models.EventApprove, models.RoleAdmin, true},
		{"hr approves", models.EventApprove, models.RoleHR, true},
		{"pm approves", models.EventApprove, models.RoleProjectManager, true},
		{"accountant cannot approve", models.EventApprove, models.RoleAccountant, false},
		{"user cannot approve", models.EventApprove, models.RoleUser, false},
		{"accountant cannot reject", models.EventReject, models.RoleAccountant, false},
		{"hr rejects", models.EventReject, models.RoleHR, true},
		{"accountant marks paid", models.EventMarkPaid, models.RoleAccountant, true},
		{"pm cannot mark paid", models.EventMarkPaid, models.RoleProjectManager, false},
		{"admin marks paid", models.EventMarkPaid, models.RoleAdmin, true},
		{"submit is not role gated", models.EventSubmit, models.RoleAdmin, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanPerform(tt.event, tt.role))
		})
	}
}
