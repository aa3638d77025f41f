package masterdata

import (
	"context"
	"errors"
	"strings"
)

// TariffAssignment links a station to the tariff type of its inverter devices.
// An empty TariffType means the device has no tariff configured.
type TariffAssignment struct {
	StationCode string
	TariffType  string
}

// Validate checks assignment invariants.
func (a TariffAssignment) Validate() error {
	if strings.TrimSpace(a.StationCode) == "" {
		return errors.New("tariff assignment: empty station code")
	}
	return nil
}

// HasTariff reports whether a tariff type is configured.
func (a TariffAssignment) HasTariff() bool {
	return strings.TrimSpace(a.TariffType) != ""
}

// AssignmentRepository reads tariff assignments for billing.
type AssignmentRepository interface {
	ListBillingAssignments(ctx context.Context) ([]TariffAssignment, error)
	AssignmentFor(ctx context.Context, stationCode string) (*TariffAssignment, error)
}

// Dedupe removes repeated (station, tariff) pairs, keeping first-seen order.
func Dedupe(assignments []TariffAssignment) []TariffAssignment {
	seen := make(map[TariffAssignment]struct{}, len(assignments))
	out := make([]TariffAssignment, 0, len(assignments))
	for _, a := range assignments {
		a.StationCode = strings.TrimSpace(a.StationCode)
		a.TariffType = strings.TrimSpace(a.TariffType)
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
