package tariff

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TierCount is the number of progressive volume tiers.
const TierCount = 3

var (
	// Tier1Limit is the cumulative yield covered by the first tier.
	Tier1Limit = decimal.NewFromInt(150)
	// Tier2Limit is the cumulative yield covered by the first two tiers.
	Tier2Limit = decimal.NewFromInt(400)
)

// Charge is the priced amount for one volume at one rate.
type Charge struct {
	Yield          decimal.Decimal `json:"yield"`
	Rate           decimal.Decimal `json:"rate"`
	DiscountedRate decimal.Decimal `json:"discounted_rate"`
	Amount         decimal.Decimal `json:"amount"`
}

// FlatPeriodQuote is the priced result of a flat period day.
type FlatPeriodQuote struct {
	OffPeak Charge          `json:"off_peak"`
	OnPeak  Charge          `json:"on_peak"`
	Revenue decimal.Decimal `json:"revenue"`
}

// ProgressiveQuote is the priced result of a progressive volume day.
type ProgressiveQuote struct {
	Tiers   [TierCount]Charge `json:"tiers"`
	Revenue decimal.Decimal   `json:"revenue"`
}

// Charge prices yield at rate: yield × discounted rate plus yield × surcharge.
// The surcharge applies to raw volume, never to the discounted rate.
func (a Adjustment) Charge(yield, rate decimal.Decimal) Charge {
	discounted := a.DiscountedRate(rate)
	return Charge{
		Yield:          yield,
		Rate:           rate,
		DiscountedRate: discounted,
		Amount:         yield.Mul(discounted).Add(yield.Mul(a.Surcharge)),
	}
}

// PriceFlatPeriod prices off-peak and on-peak yields under a flat period tariff.
func PriceFlatPeriod(offPeakYield, onPeakYield decimal.Decimal, t *FlatPeriodTariff) (FlatPeriodQuote, error) {
	if t == nil {
		return FlatPeriodQuote{}, ErrTariffNotFound
	}
	if offPeakYield.IsNegative() || onPeakYield.IsNegative() {
		return FlatPeriodQuote{}, ErrNegativeYield
	}
	off := t.adjustment.Charge(offPeakYield, t.offPeakRate)
	on := t.adjustment.Charge(onPeakYield, t.onPeakRate)
	return FlatPeriodQuote{
		OffPeak: off,
		OnPeak:  on,
		Revenue: off.Amount.Add(on.Amount),
	}, nil
}

// SplitTiers partitions a total yield into cumulative, non-overlapping tiers:
// min(y,150), min(max(y-150,0),250), max(y-400,0).
func SplitTiers(total decimal.Decimal) [TierCount]decimal.Decimal {
	var tiers [TierCount]decimal.Decimal
	if total.IsNegative() {
		return tiers
	}
	tiers[0] = decimal.Min(total, Tier1Limit)
	tiers[1] = decimal.Min(decimal.Max(total.Sub(Tier1Limit), decimal.Zero), Tier2Limit.Sub(Tier1Limit))
	tiers[2] = decimal.Max(total.Sub(Tier2Limit), decimal.Zero)
	return tiers
}

// PriceProgressive prices a day's total yield under a progressive tariff.
func PriceProgressive(totalYield decimal.Decimal, t *ProgressiveTariff) (ProgressiveQuote, error) {
	if t == nil {
		return ProgressiveQuote{}, ErrTariffNotFound
	}
	if totalYield.IsNegative() {
		return ProgressiveQuote{}, ErrNegativeYield
	}
	var quote ProgressiveQuote
	revenue := decimal.Zero
	for i, volume := range SplitTiers(totalYield) {
		quote.Tiers[i] = t.adjustment.Charge(volume, t.tierRates[i])
		revenue = revenue.Add(quote.Tiers[i].Amount)
	}
	quote.Revenue = revenue
	return quote, nil
}

// Yields are the per-kind window sums of a day.
type Yields struct {
	OffPeak  decimal.Decimal
	OnPeak   decimal.Decimal
	WholeDay decimal.Decimal
}

// Total returns the sum over all window kinds.
func (y Yields) Total() decimal.Decimal {
	return y.OffPeak.Add(y.OnPeak).Add(y.WholeDay)
}

// Quote is the family-independent view of a priced day.
type Quote struct {
	Family       Family
	YieldOffPeak decimal.Decimal
	YieldOnPeak  decimal.Decimal
	YieldTotal   decimal.Decimal
	Revenue      decimal.Decimal
}

// Price dispatches to the calculator of the tariff's family.
func Price(t Tariff, yields Yields) (Quote, error) {
	switch typed := t.(type) {
	case *FlatPeriodTariff:
		if !yields.WholeDay.IsZero() {
			return Quote{}, fmt.Errorf("%w: whole day yield under flat period tariff", ErrInvalidWindows)
		}
		q, err := PriceFlatPeriod(yields.OffPeak, yields.OnPeak, typed)
		if err != nil {
			return Quote{}, err
		}
		return Quote{
			Family:       FamilyFlatPeriod,
			YieldOffPeak: yields.OffPeak,
			YieldOnPeak:  yields.OnPeak,
			YieldTotal:   yields.Total(),
			Revenue:      q.Revenue,
		}, nil
	case *ProgressiveTariff:
		total := yields.Total()
		q, err := PriceProgressive(total, typed)
		if err != nil {
			return Quote{}, err
		}
		return Quote{Family: FamilyProgressive, YieldTotal: total, Revenue: q.Revenue}, nil
	case nil:
		return Quote{}, ErrTariffNotFound
	}
	return Quote{}, fmt.Errorf("%w: %T", ErrUnknownTariffType, t)
}
