package access

import (
	"strings"

	"github.com/paylog/timecard-api/internal/models"
)

// RoutePolicy maps a route pattern to the roles allowed to reach it.
type RoutePolicy struct {
	Pattern string
	Roles   []models.UserRole
}

var allRoles = []models.UserRole{
	models.RoleUser,
	models.RoleAdmin,
	models.RoleAccountant,
	models.RoleHR,
	models.RoleProjectManager,
}

var staffRoles = []models.UserRole{
	models.RoleAdmin,
	models.RoleAccountant,
	models.RoleHR,
	models.RoleProjectManager,
}

// routeTable is the static access table consulted for every authenticated
// route. Lookup is exact match first, then longest matching prefix. Routes
// with no matching row are denied.
var routeTable = []RoutePolicy{
	{Pattern: "/profile", Roles: allRoles},
	{Pattern: "/staff/profile", Roles: staffRoles},
	{Pattern: "/auth", Roles: allRoles},
	{Pattern: "/entries", Roles: allRoles},
	{Pattern: "/periods", Roles: allRoles},
	{Pattern: "/employees", Roles: staffRoles},
	{Pattern: "/reports", Roles: staffRoles},
	{Pattern: "/staff", Roles: staffRoles},
	{Pattern: "/metrics", Roles: staffRoles},
}

// CanAccess reports whether the role may reach the given route. The route is
// the path relative to the API prefix.
func CanAccess(route string, role models.UserRole) bool {
	route = normalize(route)

	for _, policy := range routeTable {
		if policy.Pattern == route {
			return roleAllowed(policy.Roles, role)
		}
	}

	best := -1
	var bestPolicy RoutePolicy
	for _, policy := range routeTable {
		if !prefixMatch(route, policy.Pattern) {
			continue
		}
		if len(policy.Pattern) > best {
			best = len(policy.Pattern)
			bestPolicy = policy
		}
	}
	if best < 0 {
		return false
	}
	return roleAllowed(bestPolicy.Roles, role)
}

// DefaultLanding returns the post-login destination for a role.
func DefaultLanding(role models.UserRole) string {
	if role == models.RoleUser {
		return "/profile"
	}
	return "/staff/profile"
}

// IsStaff reports whether the role may act across employees.
func IsStaff(role models.UserRole) bool {
	return role.Valid() && role != models.RoleUser
}

// reviewPolicy gates lifecycle transitions per role. Approve/reject excludes
// ACCOUNTANT; markPaid includes ACCOUNTANT but excludes PROJECT_MANAGER.
var reviewPolicy = map[models.PeriodEvent][]models.UserRole{
	models.EventApprove:  {models.RoleAdmin, models.RoleHR, models.RoleProjectManager},
	models.EventReject:   {models.RoleAdmin, models.RoleHR, models.RoleProjectManager},
	models.EventMarkPaid: {models.RoleAdmin, models.RoleHR, models.RoleAccountant},
}

// CanPerform reports whether the role may trigger the given reviewer event.
// Submit is owner-gated, not role-gated, and always returns false here.
func CanPerform(event models.PeriodEvent, role models.UserRole) bool {
	return roleAllowed(reviewPolicy[event], role)
}

func roleAllowed(roles []models.UserRole, role models.UserRole) bool {
	for _, allowed := range roles {
		if allowed == role {
			return true
		}
	}
	return false
}

func normalize(route string) string {
	if route == "" {
		return "/"
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	if len(route) > 1 {
		route = strings.TrimRight(route, "/")
	}
	return route
}

func prefixMatch(route, pattern string) bool {
	if !strings.HasPrefix(route, pattern) {
		return false
	}
	if len(route) == len(pattern) {
		return true
	}
	return route[len(pattern)] == '/'
}
