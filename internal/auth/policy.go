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

// RequiredRole resolves required role for the request.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	method := r.Method

	switch {
	case path == "/api/v1/stations" || strings.HasPrefix(path, "/api/v1/stations/"):
		if method == http.MethodGet {
			return RoleEmployee, true
		}
		return RoleAdmin, true
	case path == "/api/v1/readings":
		return RoleEmployee, true
	case path == "/api/v1/settlements":
		if method == http.MethodPost {
			return RoleManager, true
		}
		return RoleEmployee, true
	case strings.HasPrefix(path, "/api/v1/settlements/"):
		if strings.Contains(path, "/export.") {
			return RoleManager, true
		}
		return RoleEmployee, true
	case path == "/api/v1/handovers/bank-deposit":
		return RoleOwner, true
	case path == "/api/v1/handovers" || strings.HasPrefix(path, "/api/v1/handovers/"):
		return RoleEmployee, true
	case path == "/api/v1/shifts/close":
		return RoleManager, true
	case path == "/api/v1/exports/settlements.csv":
		return RoleManager, true
	}

	if strings.HasPrefix(path, "/api/") {
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return RoleEmployee, true
		}
		return RoleManager, true
	}
	return "", false
}
