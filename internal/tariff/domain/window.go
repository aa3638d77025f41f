package tariff

import (
	"fmt"
	"time"
)

// WindowKind classifies a pricing window.
type WindowKind string

const (
	WindowOffPeak  WindowKind = "off_peak"
	WindowOnPeak   WindowKind = "on_peak"
	WindowWholeDay WindowKind = "whole_day"
)

// Default window names.
const (
	WindowMorningOffPeak = "morning_off_peak"
	WindowMiddayOnPeak   = "midday_on_peak"
	WindowEveningOffPeak = "evening_off_peak"
	WindowWholeDayName   = "whole_day"
)

const hoursPerDay = 24

// Window is a named [StartHour, EndHour) interval measured from local midnight.
type Window struct {
	Name      string     `json:"name" yaml:"name"`
	Kind      WindowKind `json:"kind" yaml:"kind"`
	StartHour int        `json:"start_hour" yaml:"start_hour"`
	EndHour   int        `json:"end_hour" yaml:"end_hour"`
}

// ExpectedSamples returns the nominal number of hourly samples a complete window holds.
func (w Window) ExpectedSamples() int { return w.EndHour - w.StartHour }

// SamplesOn returns the number of hourly samples the window holds on the given
// local day. It differs from ExpectedSamples when a DST change falls inside the window.
func (w Window) SamplesOn(day time.Time) int {
	start, end := w.Bounds(day)
	return int(end.Sub(start) / time.Hour)
}

// Bounds returns the window interval on the given local day.
// EndHour 24 resolves to the next midnight.
func (w Window) Bounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), w.StartHour, 0, 0, 0, day.Location())
	end := time.Date(day.Year(), day.Month(), day.Day(), w.EndHour, 0, 0, 0, day.Location())
	return start, end
}

// WindowTable is an ordered set of windows covering one day.
type WindowTable []Window

// Validate checks that the table tiles [0,24) in order without gaps or overlaps.
func (t WindowTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidWindows)
	}
	seen := make(map[string]struct{}, len(t))
	next := 0
	for _, w := range t {
		if w.Name == "" {
			return fmt.Errorf("%w: unnamed window", ErrInvalidWindows)
		}
		if _, ok := seen[w.Name]; ok {
			return fmt.Errorf("%w: duplicate window %q", ErrInvalidWindows, w.Name)
		}
		seen[w.Name] = struct{}{}
		switch w.Kind {
		case WindowOffPeak, WindowOnPeak, WindowWholeDay:
		default:
			return fmt.Errorf("%w: window %q has unknown kind %q", ErrInvalidWindows, w.Name, w.Kind)
		}
		if w.StartHour != next {
			return fmt.Errorf("%w: window %q starts at %d, want %d", ErrInvalidWindows, w.Name, w.StartHour, next)
		}
		if w.EndHour <= w.StartHour || w.EndHour > hoursPerDay {
			return fmt.Errorf("%w: window %q has bad end hour %d", ErrInvalidWindows, w.Name, w.EndHour)
		}
		next = w.EndHour
	}
	if next != hoursPerDay {
		return fmt.Errorf("%w: table ends at %d", ErrInvalidWindows, next)
	}
	return nil
}

// ExpectedSamples returns the number of samples a complete day holds.
func (t WindowTable) ExpectedSamples() int {
	total := 0
	for _, w := range t {
		total += w.ExpectedSamples()
	}
	return total
}

// DefaultFixedWindows is the boundary table of the fixed-time flat period tariff.
func DefaultFixedWindows() WindowTable {
	return WindowTable{
		{Name: WindowMorningOffPeak, Kind: WindowOffPeak, StartHour: 0, EndHour: 9},
		{Name: WindowMiddayOnPeak, Kind: WindowOnPeak, StartHour: 9, EndHour: 22},
		{Name: WindowEveningOffPeak, Kind: WindowOffPeak, StartHour: 22, EndHour: hoursPerDay},
	}
}

// OnPeakWindows builds a table with on-peak hours [fromHour, toHour) and off-peak elsewhere.
func OnPeakWindows(fromHour, toHour int) (WindowTable, error) {
	if fromHour < 0 || toHour > hoursPerDay || fromHour >= toHour {
		return nil, fmt.Errorf("%w: on-peak hours %d-%d", ErrInvalidWindows, fromHour, toHour)
	}
	table := make(WindowTable, 0, 3)
	if fromHour > 0 {
		table = append(table, Window{Name: WindowMorningOffPeak, Kind: WindowOffPeak, StartHour: 0, EndHour: fromHour})
	}
	table = append(table, Window{Name: WindowMiddayOnPeak, Kind: WindowOnPeak, StartHour: fromHour, EndHour: toHour})
	if toHour < hoursPerDay {
		table = append(table, Window{Name: WindowEveningOffPeak, Kind: WindowOffPeak, StartHour: toHour, EndHour: hoursPerDay})
	}
	return table, nil
}

// WholeDayWindows is the single-window table used by volume-priced tariffs.
func WholeDayWindows() WindowTable {
	return WindowTable{{Name: WindowWholeDayName, Kind: WindowWholeDay, StartHour: 0, EndHour: hoursPerDay}}
}
