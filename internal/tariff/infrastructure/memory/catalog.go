package memory

import (
	"context"
	"fmt"
	"sync"

	tariff "solar-billing/internal/tariff/domain"
)

// Catalog is an in-memory tariff provider for tests and file-based configuration.
type Catalog struct {
	mu      sync.RWMutex
	tariffs map[tariff.Name]tariff.Tariff
}

// NewCatalog constructs a catalog. Duplicate names are rejected.
func NewCatalog(tariffs ...tariff.Tariff) (*Catalog, error) {
	c := &Catalog{tariffs: make(map[tariff.Name]tariff.Tariff, len(tariffs))}
	for _, t := range tariffs {
		if err := c.Put(t); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Put registers a tariff.
func (c *Catalog) Put(t tariff.Tariff) error {
	if t == nil {
		return fmt.Errorf("%w: nil tariff", tariff.ErrInvalidTariff)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tariffs[t.TariffName()]; ok {
		return fmt.Errorf("%w: duplicate tariff %s", tariff.ErrInvalidTariff, t.TariffName())
	}
	c.tariffs[t.TariffName()] = t
	return nil
}

// Tariff returns the tariff configured under name.
func (c *Catalog) Tariff(ctx context.Context, name tariff.Name) (tariff.Tariff, error) {
	_ = ctx
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tariffs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", tariff.ErrTariffNotFound, name)
	}
	return t, nil
}

// Names lists the configured tariff names.
func (c *Catalog) Names() []tariff.Name {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]tariff.Name, 0, len(c.tariffs))
	for name := range c.tariffs {
		names = append(names, name)
	}
	return names
}
