package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	tariff "solar-billing/internal/tariff/domain"
	"solar-billing/internal/tariff/infrastructure/memory"
)

// File is the YAML tariff catalogue.
type File struct {
	Tariffs []Entry `yaml:"tariffs"`
}

// Entry describes one tariff in the catalogue.
type Entry struct {
	Name           string          `yaml:"name"`
	Discount       float64         `yaml:"discount"`
	Surcharge      float64         `yaml:"surcharge"`
	OffPeakRate    *float64        `yaml:"off_peak_rate"`
	OnPeakRate     *float64        `yaml:"on_peak_rate"`
	OnPeakFromHour *int            `yaml:"on_peak_from_hour"`
	OnPeakToHour   *int            `yaml:"on_peak_to_hour"`
	TierRates      []float64       `yaml:"tier_rates"`
	Windows        []tariff.Window `yaml:"windows"`
}

// LoadCatalog reads and validates a catalogue file.
func LoadCatalog(path string) (*memory.Catalog, error) {
	if path == "" {
		return nil, errors.New("tariff config: empty path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tariff config: read %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes YAML and builds every tariff. Any invalid entry fails the load.
func ParseCatalog(data []byte) (*memory.Catalog, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("tariff config: decode: %w", err)
	}
	if len(file.Tariffs) == 0 {
		return nil, errors.New("tariff config: no tariffs defined")
	}
	built := make([]tariff.Tariff, 0, len(file.Tariffs))
	for i, entry := range file.Tariffs {
		t, err := entry.Definition().Build()
		if err != nil {
			return nil, fmt.Errorf("tariff config: entry %d (%s): %w", i, entry.Name, err)
		}
		built = append(built, t)
	}
	return memory.NewCatalog(built...)
}

// Definition converts the entry into the storage-neutral definition.
func (e Entry) Definition() tariff.Definition {
	def := tariff.Definition{
		Name:           e.Name,
		Discount:       decimal.NewFromFloat(e.Discount),
		Surcharge:      decimal.NewFromFloat(e.Surcharge),
		OnPeakFromHour: e.OnPeakFromHour,
		OnPeakToHour:   e.OnPeakToHour,
		Windows:        tariff.WindowTable(e.Windows),
	}
	if e.OffPeakRate != nil {
		def.OffPeakRate = decimal.NewNullDecimal(decimal.NewFromFloat(*e.OffPeakRate))
	}
	if e.OnPeakRate != nil {
		def.OnPeakRate = decimal.NewNullDecimal(decimal.NewFromFloat(*e.OnPeakRate))
	}
	for _, rate := range e.TierRates {
		def.TierRates = append(def.TierRates, decimal.NewFromFloat(rate))
	}
	return def
}
