package memory

import (
	"context"
	"sync"

	masterdata "solar-billing/internal/masterdata/domain"
)

// StationDirectory is an in-memory station directory for tests and demos.
type StationDirectory struct {
	mu       sync.RWMutex
	stations map[string]masterdata.Station
	devices  map[string][]masterdata.Device
	err      error
}

// NewStationDirectory constructs a directory.
func NewStationDirectory() *StationDirectory {
	return &StationDirectory{
		stations: make(map[string]masterdata.Station),
		devices:  make(map[string][]masterdata.Device),
	}
}

// PutStation registers a station profile.
func (d *StationDirectory) PutStation(station masterdata.Station) error {
	if err := station.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stations[station.Code] = station
	return nil
}

// AddDevices appends devices to a station.
func (d *StationDirectory) AddDevices(stationCode string, devices ...masterdata.Device) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.devices[stationCode] = append(d.devices[stationCode], devices...)
}

// FailWith makes every call return err.
func (d *StationDirectory) FailWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

// Station returns the profile of the station, or nil.
func (d *StationDirectory) Station(ctx context.Context, stationCode string) (*masterdata.Station, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.err != nil {
		return nil, d.err
	}
	station, ok := d.stations[stationCode]
	if !ok {
		return nil, nil
	}
	return &station, nil
}

// Devices returns a copy of the station's devices.
func (d *StationDirectory) Devices(ctx context.Context, stationCode string) ([]masterdata.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.err != nil {
		return nil, d.err
	}
	return append([]masterdata.Device(nil), d.devices[stationCode]...), nil
}
