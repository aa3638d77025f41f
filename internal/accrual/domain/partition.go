package accrual

import (
	"github.com/shopspring/decimal"

	tariff "solar-billing/internal/tariff/domain"
	telemetry "solar-billing/internal/telemetry/domain"
)

// WindowSamples pairs a pricing window with the samples fetched for it.
// Expected is the hour count of the window on its day; zero means the nominal count.
type WindowSamples struct {
	Window   tariff.Window
	Samples  []telemetry.GenerationSample
	Expected int
}

// WindowYield is the summed yield of one complete window.
type WindowYield struct {
	Window tariff.Window
	Yield  decimal.Decimal
}

// DayPartition is the result of partitioning one day.
type DayPartition struct {
	Windows []WindowYield
	Yields  tariff.Yields
}

// CheckWindow enforces one sample per hour of the window.
func CheckWindow(ws WindowSamples) error {
	expected := ws.Expected
	if expected == 0 {
		expected = ws.Window.ExpectedSamples()
	}
	if len(ws.Samples) != expected {
		return &IncompleteWindowError{Window: ws.Window.Name, Expected: expected, Got: len(ws.Samples)}
	}
	return nil
}

// Partition gates every window, then sums yields per window and per kind.
// Nothing is summed if any window is incomplete.
func Partition(windows []WindowSamples) (DayPartition, error) {
	for _, ws := range windows {
		if err := CheckWindow(ws); err != nil {
			return DayPartition{}, err
		}
	}

	result := DayPartition{
		Windows: make([]WindowYield, 0, len(windows)),
		Yields: tariff.Yields{
			OffPeak:  decimal.Zero,
			OnPeak:   decimal.Zero,
			WholeDay: decimal.Zero,
		},
	}
	for _, ws := range windows {
		sum := decimal.Zero
		for _, sample := range ws.Samples {
			sum = sum.Add(sample.Yield())
		}
		result.Windows = append(result.Windows, WindowYield{Window: ws.Window, Yield: sum})
		switch ws.Window.Kind {
		case tariff.WindowOffPeak:
			result.Yields.OffPeak = result.Yields.OffPeak.Add(sum)
		case tariff.WindowOnPeak:
			result.Yields.OnPeak = result.Yields.OnPeak.Add(sum)
		case tariff.WindowWholeDay:
			result.Yields.WholeDay = result.Yields.WholeDay.Add(sum)
		}
	}
	return result, nil
}
