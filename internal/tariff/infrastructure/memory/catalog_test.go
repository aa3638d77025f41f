package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	tariff "solar-billing/internal/tariff/domain"
)

func TestCatalog(t *testing.T) {
	tod, err := tariff.NewProgressiveTariff(tariff.NameProgressiveVolume, tariff.Adjustment{},
		decimal.NewFromInt(3), decimal.NewFromInt(3), decimal.NewFromInt(4))
	if err != nil {
		t.Fatalf("tariff: %v", err)
	}
	catalog, err := NewCatalog(tod)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	got, err := catalog.Tariff(context.Background(), tariff.NameProgressiveVolume)
	if err != nil || got != tod {
		t.Fatalf("lookup: got=%v err=%v", got, err)
	}
	if _, err := catalog.Tariff(context.Background(), tariff.NameFlatPeriod); !errors.Is(err, tariff.ErrTariffNotFound) {
		t.Fatalf("expected ErrTariffNotFound, got %v", err)
	}
	if err := catalog.Put(tod); !errors.Is(err, tariff.ErrInvalidTariff) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
	if err := catalog.Put(nil); !errors.Is(err, tariff.ErrInvalidTariff) {
		t.Fatalf("expected nil rejection, got %v", err)
	}
	if names := catalog.Names(); len(names) != 1 || names[0] != tariff.NameProgressiveVolume {
		t.Fatalf("names: %v", names)
	}
}
