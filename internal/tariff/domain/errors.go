package tariff

import "errors"

var (
	// ErrEmptyTariffName is returned when a tariff name is blank.
	ErrEmptyTariffName = errors.New("tariff: empty name")
	// ErrUnknownTariffType is returned when a name maps to no implemented tariff family.
	ErrUnknownTariffType = errors.New("tariff: unknown tariff type")
	// ErrTariffNotFound is returned when no configuration exists for a name.
	ErrTariffNotFound = errors.New("tariff: not found")
	// ErrInvalidTariff is returned when a configuration fails load-time validation.
	ErrInvalidTariff = errors.New("tariff: invalid configuration")
	// ErrInvalidWindows is returned when a window table does not tile the day.
	ErrInvalidWindows = errors.New("tariff: invalid window table")
	// ErrNegativeYield is returned when pricing a negative energy volume.
	ErrNegativeYield = errors.New("tariff: negative yield")
)
