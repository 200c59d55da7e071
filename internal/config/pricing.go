package config

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed pricing/pricing.yaml
var pricingFiles embed.FS

// ModelPricing holds per-million-token unit prices for one model.
type ModelPricing struct {
	ID               string  `yaml:"id"`
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// PricingTable is the process-wide pricing configuration. Immutable within a
// process lifetime.
type PricingTable struct {
	USDPerCredit float64        `yaml:"usd_per_credit"`
	Models       []ModelPricing `yaml:"models"`
	Default      ModelPricing   `yaml:"default"`
}

// PricingRegistry resolves model pricing. Built once at startup and never
// mutated, so concurrent reads need no locking.
type PricingRegistry struct {
	table *PricingTable
	index map[string]*ModelPricing
}

// NewPricingRegistry loads the pricing table. An empty path loads the
// embedded default table; otherwise the file at path overrides it.
func NewPricingRegistry(path string) (*PricingRegistry, error) {
	var data []byte
	var err error
	if path == "" {
		data, err = pricingFiles.ReadFile("pricing/pricing.yaml")
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read pricing table: %w", err)
	}

	var table PricingTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("unmarshal pricing table: %w", err)
	}
	if table.USDPerCredit <= 0 {
		return nil, fmt.Errorf("pricing table: usd_per_credit must be positive")
	}

	r := &PricingRegistry{
		table: &table,
		index: make(map[string]*ModelPricing, len(table.Models)),
	}
	for i := range table.Models {
		r.index[table.Models[i].ID] = &table.Models[i]
	}
	return r, nil
}

// USDPerCredit returns the credit unit price.
func (r *PricingRegistry) USDPerCredit() float64 {
	return r.table.USDPerCredit
}

// ModelPricing returns the pricing for a model, falling back to the table's
// default entry for unknown models.
func (r *PricingRegistry) ModelPricing(model string) ModelPricing {
	if p, ok := r.index[model]; ok {
		return *p
	}
	return r.table.Default
}
