package tariff

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Name identifies a tariff configuration and doubles as the device tariff type.
type Name string

const (
	// NameFlatPeriodFixed is the flat on/off-peak tariff with the built-in window table.
	NameFlatPeriodFixed Name = "TOU_FIX_TIME"
	// NameFlatPeriod is the flat on/off-peak tariff with configured on-peak hours.
	NameFlatPeriod Name = "TOU"
	// NameProgressiveVolume is the volume-tiered tariff.
	NameProgressiveVolume Name = "TOD"
)

// Family groups tariffs that share a pricing calculator and ledger shape.
type Family string

const (
	FamilyFlatPeriod  Family = "flat_period"
	FamilyProgressive Family = "progressive_volume"
)

// ParseName validates a tariff type string.
func ParseName(value string) (Name, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrEmptyTariffName
	}
	name := Name(value)
	if _, err := name.Family(); err != nil {
		return "", err
	}
	return name, nil
}

// Family returns the pricing family of the name.
func (n Name) Family() (Family, error) {
	switch n {
	case NameFlatPeriodFixed, NameFlatPeriod:
		return FamilyFlatPeriod, nil
	case NameProgressiveVolume:
		return FamilyProgressive, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTariffType, string(n))
	}
}

// String returns the raw name.
func (n Name) String() string { return string(n) }

// Provider resolves tariff configurations by name.
type Provider interface {
	Tariff(ctx context.Context, name Name) (Tariff, error)
}

// Tariff is implemented by *FlatPeriodTariff and *ProgressiveTariff only.
type Tariff interface {
	TariffName() Name
	Family() Family
	Adjustment() Adjustment
	Windows() WindowTable
	sealed()
}

var one = decimal.NewFromInt(1)

// Adjustment carries the discount applied to base rates and the per-unit surcharge.
type Adjustment struct {
	Discount  decimal.Decimal
	Surcharge decimal.Decimal
}

// Validate checks discount in [0,1] and a non-negative surcharge.
func (a Adjustment) Validate() error {
	if a.Discount.IsNegative() || a.Discount.GreaterThan(one) {
		return fmt.Errorf("%w: discount %s outside [0,1]", ErrInvalidTariff, a.Discount)
	}
	if a.Surcharge.IsNegative() {
		return fmt.Errorf("%w: negative surcharge %s", ErrInvalidTariff, a.Surcharge)
	}
	return nil
}

// DiscountedRate returns rate × (1 − discount).
func (a Adjustment) DiscountedRate(rate decimal.Decimal) decimal.Decimal {
	return rate.Mul(one.Sub(a.Discount))
}

// FlatPeriodTariff prices off-peak and on-peak yield at flat rates.
type FlatPeriodTariff struct {
	name        Name
	adjustment  Adjustment
	offPeakRate decimal.Decimal
	onPeakRate  decimal.Decimal
	windows     WindowTable
}

// NewFlatPeriodTariff validates and builds a flat period tariff.
func NewFlatPeriodTariff(name Name, adjustment Adjustment, offPeakRate, onPeakRate decimal.Decimal, windows WindowTable) (*FlatPeriodTariff, error) {
	family, err := name.Family()
	if err != nil {
		return nil, err
	}
	if family != FamilyFlatPeriod {
		return nil, fmt.Errorf("%w: %s is not a flat period tariff", ErrInvalidTariff, name)
	}
	if err := adjustment.Validate(); err != nil {
		return nil, err
	}
	if offPeakRate.IsNegative() || onPeakRate.IsNegative() {
		return nil, fmt.Errorf("%w: negative rate", ErrInvalidTariff)
	}
	if err := windows.Validate(); err != nil {
		return nil, err
	}
	hasOnPeak := false
	for _, w := range windows {
		if w.Kind == WindowWholeDay {
			return nil, fmt.Errorf("%w: whole day window in flat period table", ErrInvalidWindows)
		}
		if w.Kind == WindowOnPeak {
			hasOnPeak = true
		}
	}
	if !hasOnPeak {
		return nil, fmt.Errorf("%w: no on-peak window", ErrInvalidWindows)
	}
	copied := make(WindowTable, len(windows))
	copy(copied, windows)
	return &FlatPeriodTariff{
		name:        name,
		adjustment:  adjustment,
		offPeakRate: offPeakRate,
		onPeakRate:  onPeakRate,
		windows:     copied,
	}, nil
}

func (t *FlatPeriodTariff) TariffName() Name       { return t.name }
func (t *FlatPeriodTariff) Family() Family         { return FamilyFlatPeriod }
func (t *FlatPeriodTariff) Adjustment() Adjustment { return t.adjustment }
func (t *FlatPeriodTariff) sealed()                {}

// Windows returns a copy of the boundary table.
func (t *FlatPeriodTariff) Windows() WindowTable {
	copied := make(WindowTable, len(t.windows))
	copy(copied, t.windows)
	return copied
}

// OffPeakRate returns the undiscounted off-peak rate.
func (t *FlatPeriodTariff) OffPeakRate() decimal.Decimal { return t.offPeakRate }

// OnPeakRate returns the undiscounted on-peak rate.
func (t *FlatPeriodTariff) OnPeakRate() decimal.Decimal { return t.onPeakRate }

// ProgressiveTariff prices a day's total yield across three cumulative tiers.
type ProgressiveTariff struct {
	name       Name
	adjustment Adjustment
	tierRates  [TierCount]decimal.Decimal
}

// NewProgressiveTariff validates and builds a progressive volume tariff.
func NewProgressiveTariff(name Name, adjustment Adjustment, tier1, tier2, tier3 decimal.Decimal) (*ProgressiveTariff, error) {
	family, err := name.Family()
	if err != nil {
		return nil, err
	}
	if family != FamilyProgressive {
		return nil, fmt.Errorf("%w: %s is not a progressive tariff", ErrInvalidTariff, name)
	}
	if err := adjustment.Validate(); err != nil {
		return nil, err
	}
	if tier1.IsNegative() || tier2.IsNegative() || tier3.IsNegative() {
		return nil, fmt.Errorf("%w: negative tier rate", ErrInvalidTariff)
	}
	return &ProgressiveTariff{
		name:       name,
		adjustment: adjustment,
		tierRates:  [TierCount]decimal.Decimal{tier1, tier2, tier3},
	}, nil
}

func (t *ProgressiveTariff) TariffName() Name       { return t.name }
func (t *ProgressiveTariff) Family() Family         { return FamilyProgressive }
func (t *ProgressiveTariff) Adjustment() Adjustment { return t.adjustment }
func (t *ProgressiveTariff) Windows() WindowTable   { return WholeDayWindows() }
func (t *ProgressiveTariff) sealed()                {}

// TierRates returns the undiscounted tier rates, lowest tier first.
func (t *ProgressiveTariff) TierRates() [TierCount]decimal.Decimal { return t.tierRates }

// Definition is the untyped, storage-facing shape of a tariff row.
// Build turns it into the validated tagged union.
type Definition struct {
	Name           string
	Discount       decimal.Decimal
	Surcharge      decimal.Decimal
	OffPeakRate    decimal.NullDecimal
	OnPeakRate     decimal.NullDecimal
	OnPeakFromHour *int
	OnPeakToHour   *int
	TierRates      []decimal.Decimal
	Windows        WindowTable
}

// Build validates the definition against its family.
func (d Definition) Build() (Tariff, error) {
	name, err := ParseName(d.Name)
	if err != nil {
		return nil, err
	}
	family, _ := name.Family()
	adjustment := Adjustment{Discount: d.Discount, Surcharge: d.Surcharge}

	switch family {
	case FamilyFlatPeriod:
		if !d.OffPeakRate.Valid || !d.OnPeakRate.Valid {
			return nil, fmt.Errorf("%w: %s requires off_peak_rate and on_peak_rate", ErrInvalidTariff, name)
		}
		windows, err := d.flatWindows(name)
		if err != nil {
			return nil, err
		}
		return NewFlatPeriodTariff(name, adjustment, d.OffPeakRate.Decimal, d.OnPeakRate.Decimal, windows)
	case FamilyProgressive:
		if len(d.TierRates) != TierCount {
			return nil, fmt.Errorf("%w: %s requires %d tier rates, got %d", ErrInvalidTariff, name, TierCount, len(d.TierRates))
		}
		return NewProgressiveTariff(name, adjustment, d.TierRates[0], d.TierRates[1], d.TierRates[2])
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTariffType, d.Name)
}

func (d Definition) flatWindows(name Name) (WindowTable, error) {
	if len(d.Windows) > 0 {
		return d.Windows, nil
	}
	if d.OnPeakFromHour != nil && d.OnPeakToHour != nil {
		return OnPeakWindows(*d.OnPeakFromHour, *d.OnPeakToHour)
	}
	if name == NameFlatPeriodFixed {
		return DefaultFixedWindows(), nil
	}
	return nil, fmt.Errorf("%w: %s requires on-peak hours", ErrInvalidTariff, name)
}
