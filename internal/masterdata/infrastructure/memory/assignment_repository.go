package memory

import (
	"context"
	"sync"

	masterdata "solar-billing/internal/masterdata/domain"
)

// AssignmentRepository is an in-memory assignment reader for tests and demos.
type AssignmentRepository struct {
	mu          sync.RWMutex
	assignments []masterdata.TariffAssignment
	err         error
}

// NewAssignmentRepository constructs a repository.
func NewAssignmentRepository(assignments ...masterdata.TariffAssignment) *AssignmentRepository {
	return &AssignmentRepository{assignments: append([]masterdata.TariffAssignment(nil), assignments...)}
}

// FailWith makes every call return err.
func (r *AssignmentRepository) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// ListBillingAssignments returns distinct assignments.
func (r *AssignmentRepository) ListBillingAssignments(ctx context.Context) ([]masterdata.TariffAssignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.err != nil {
		return nil, r.err
	}
	return masterdata.Dedupe(r.assignments), nil
}

// AssignmentFor returns the first assignment of the station, or nil.
func (r *AssignmentRepository) AssignmentFor(ctx context.Context, stationCode string) (*masterdata.TariffAssignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, a := range r.assignments {
		if a.StationCode == stationCode {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}
