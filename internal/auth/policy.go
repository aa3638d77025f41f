package auth

import (
	"net/http"
	"strings"
)

// Policy determines required roles by request.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt returns true when a request should skip auth/RBAC.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

const monthlyReportsPrefix = "/api/v1/reports/monthly/"

// FleetOnly reports whether the request acts on every station at once.
// Station-scoped tokens may not call these routes.
func (p Policy) FleetOnly(r *http.Request) bool {
	return r != nil && r.URL.Path == "/api/v1/accrual/run-all"
}

// StationFromPath returns the station code addressed by a per-station report route.
func (p Policy) StationFromPath(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	rest, ok := strings.CutPrefix(strings.TrimSuffix(r.URL.Path, "/"), monthlyReportsPrefix)
	if !ok || rest == "" || rest == "export.xlsx" {
		return "", false
	}
	station, _, _ := strings.Cut(rest, "/")
	return station, station != ""
}

// RequiredRole resolves required role for the request.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	method := r.Method

	switch {
	case path == "/api/v1/accrual/run":
		return RoleOperator, true
	case path == "/api/v1/accrual/run-all":
		return RoleAdmin, true
	case strings.HasPrefix(path, "/api/v1/reports/"):
		if strings.Contains(path, "/export.") {
			return RoleAdmin, true
		}
		return RoleViewer, true
	}

	if strings.HasPrefix(path, "/api/") {
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return RoleViewer, true
		}
		return RoleOperator, true
	}
	return "", false
}
