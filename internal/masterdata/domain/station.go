package masterdata

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Station is the billing profile of a site.
type Station struct {
	Code     string
	Name     string
	Capacity decimal.Decimal // kWp
}

// Validate checks station invariants.
func (s Station) Validate() error {
	if strings.TrimSpace(s.Code) == "" {
		return errors.New("station: empty code")
	}
	if s.Capacity.IsNegative() {
		return errors.New("station: negative capacity")
	}
	return nil
}

// Device is one piece of equipment installed at a station.
type Device struct {
	Name            string
	ESN             string
	DeviceType      string
	WarrantyExpires *time.Time
}

// StationDirectory reads station profiles and their installed devices.
// Station returns nil without error when the code is unknown.
type StationDirectory interface {
	Station(ctx context.Context, stationCode string) (*Station, error)
	Devices(ctx context.Context, stationCode string) ([]Device, error)
}
