package reporting

import "errors"

var (
	ErrEmptyStationCode    = errors.New("reporting: empty station code")
	ErrInvalidPeriod       = errors.New("reporting: invalid period")
	ErrNoLedgerEntries     = errors.New("reporting: no ledger entries in period")
	ErrUpstreamUnavailable = errors.New("reporting: upstream unavailable")
)

// ErrorKind classifies a per-station failure in a summary.
type ErrorKind string

const (
	ErrorConfigurationMissing ErrorKind = "configuration_missing"
	ErrorNoLedgerEntries      ErrorKind = "no_ledger_entries"
	ErrorUpstreamUnavailable  ErrorKind = "upstream_unavailable"
	ErrorUnknownTariffType    ErrorKind = "unknown_tariff_type"
)

// StationError is an inline failure entry of a summary.
type StationError struct {
	StationCode string    `json:"station_code"`
	Kind        ErrorKind `json:"kind"`
	Message     string    `json:"message"`
}
