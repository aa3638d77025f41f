package application

import (
	"context"
	"time"

	accrual "solar-billing/internal/accrual/domain"
	masterdata "solar-billing/internal/masterdata/domain"
	tariff "solar-billing/internal/tariff/domain"
	telemetry "solar-billing/internal/telemetry/domain"
)

// AssignmentReader resolves station tariff assignments.
type AssignmentReader interface {
	ListBillingAssignments(ctx context.Context) ([]masterdata.TariffAssignment, error)
	AssignmentFor(ctx context.Context, stationCode string) (*masterdata.TariffAssignment, error)
}

// StationDirectory supplies the station profile and device list of a report.
type StationDirectory = masterdata.StationDirectory

// ConsumptionReader supplies daily station consumption.
type ConsumptionReader = telemetry.ConsumptionReader

// LedgerReader is the read side of the billing ledger.
type LedgerReader = accrual.LedgerReader

// TariffProvider resolves tariffs by name.
type TariffProvider = tariff.Provider

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
