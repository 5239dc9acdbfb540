package refresh

import (
	"strings"

	"route-refresh/internal/route"
)

// ValidationResult is the verdict of ValidateRoute. Reason is set only for
// invalid routes.
type ValidationResult struct {
	Valid  bool
	Reason string
}

// ValidateRoute decides whether r can be sent to the backend for a refresh.
func ValidateRoute(r *route.Route) ValidationResult {
	if r == nil {
		return ValidationResult{Reason: "route is missing"}
	}
	if r.Options.Profile != route.ProfileDrivingTraffic {
		return ValidationResult{Reason: "route profile is " + quoteProfile(r.Options.Profile) + ", only " + route.ProfileDrivingTraffic + " routes support refresh"}
	}
	if !r.Options.EnableRefresh {
		return ValidationResult{Reason: "refresh is disabled in route options"}
	}
	if strings.TrimSpace(r.ResponseUUID) == "" || r.IsLocal() {
		return ValidationResult{Reason: "route has no backend response identifier"}
	}
	return ValidationResult{Valid: true}
}

func quoteProfile(p string) string {
	if p == "" {
		return "empty"
	}
	return p
}
