package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Action names an operation guarded by the role policy.
type Action string

const (
	ActionClaimRead        Action = "claim.read"
	ActionClaimBuild       Action = "claim.build"
	ActionClaimScrub       Action = "claim.scrub"
	ActionClaimAdvise      Action = "claim.advise"
	ActionApplySuggestions Action = "claim.apply_suggestions"
	ActionClaimSubmit      Action = "claim.submit"
	ActionSetOutcome       Action = "claim.set_outcome"
	ActionDenialCreate     Action = "denial.create"
	ActionAuditRead        Action = "audit.read"
	ActionSourceWrite      Action = "source.write"
	ActionChargeWrite      Action = "charge.write"
	ActionSettingsWrite    Action = "settings.write"
)

var allRoles = []string{RoleAdmin, RoleBiller, RoleCoder}

// policy is the single source of truth for which roles may perform which
// action. Actions missing from the table are denied.
var policy = map[Action][]string{
	ActionClaimRead:        allRoles,
	ActionClaimBuild:       {RoleAdmin, RoleBiller},
	ActionClaimScrub:       allRoles,
	ActionClaimAdvise:      allRoles,
	ActionApplySuggestions: allRoles,
	ActionClaimSubmit:      {RoleAdmin, RoleBiller},
	ActionSetOutcome:       {RoleAdmin},
	ActionDenialCreate:     {RoleAdmin, RoleBiller},
	ActionAuditRead:        {RoleAdmin},
	ActionSourceWrite:      {RoleAdmin, RoleBiller},
	ActionChargeWrite:      allRoles,
	ActionSettingsWrite:    {RoleAdmin},
}

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// Authorize returns the caller bound to ctx if it may perform action.
func Authorize(ctx context.Context, action Action) (Caller, error) {
	caller, ok := CallerFromContext(ctx)
	if !ok || caller.TenantID <= 0 {
		return Caller{}, ErrUnauthenticated
	}
	if !Allowed(action, caller.Role) {
		return Caller{}, fmt.Errorf("role %s may not perform %s: %w", caller.Role, action, ErrForbidden)
	}
	return caller, nil
}

// Allowed reports whether role may perform action.
func Allowed(action Action, role string) bool {
	for _, r := range policy[action] {
		if r == role {
			return true
		}
	}
	return false
}

// RequirePermission rejects requests whose caller may not perform action.
func RequirePermission(action Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller, ok := CallerFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
			}
			if !Allowed(action, caller.Role) {
				return echo.NewHTTPError(http.StatusForbidden,
					fmt.Sprintf("role %s may not perform %s", caller.Role, action))
			}
			return next(c)
		}
	}
}
