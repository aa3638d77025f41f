package auth

import (
	"sort"
	"strings"
)

// StationScope limits a caller to a set of station codes. A nil scope covers the whole fleet.
type StationScope map[string]struct{}

// NewStationScope builds a scope from the token's station claim. Blank codes are dropped,
// and a claim with no codes yields the fleet scope.
func NewStationScope(codes []string) StationScope {
	var scope StationScope
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if scope == nil {
			scope = make(StationScope, len(codes))
		}
		scope[code] = struct{}{}
	}
	return scope
}

// Fleet reports whether the scope is unrestricted.
func (s StationScope) Fleet() bool {
	return s == nil
}

// Allows reports whether the scope covers stationCode.
func (s StationScope) Allows(stationCode string) bool {
	if s == nil {
		return true
	}
	_, ok := s[strings.TrimSpace(stationCode)]
	return ok
}

// Codes returns the scoped station codes in order, or nil for the fleet scope.
func (s StationScope) Codes() []string {
	if s == nil {
		return nil
	}
	codes := make([]string, 0, len(s))
	for code := range s {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// String renders the scope for audit records.
func (s StationScope) String() string {
	if s == nil {
		return "fleet"
	}
	return strings.Join(s.Codes(), ",")
}
