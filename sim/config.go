package sim

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ShockRawCut halves every raw-material firm's production factor.
const ShockRawCut = "raw_cut"

// FirmParams are the fields every firm parameter bag carries.
type FirmParams struct {
	BaseWage            float64 `yaml:"base_wage"`
	NumEmployees        int     `yaml:"num_employees"`
	ProfitabilityFactor float64 `yaml:"profitability_factor"`
	MaxCapacity         int     `yaml:"max_capacity"`
}

// RawFirmParams configures raw-material firms.
type RawFirmParams struct {
	FirmParams       `yaml:",inline"`
	ProductionFactor float64 `yaml:"production_factor"`
	MaterialPrice    float64 `yaml:"material_price"`
	MinEmployees     int     `yaml:"min_employees"`
}

// ManufacturerFirmParams configures manufacturer firms.
type ManufacturerFirmParams struct {
	FirmParams   `yaml:",inline"`
	SalePrice    float64 `yaml:"sale_price"`
	MaterialCost float64 `yaml:"material_cost"`
	MinEmployees int     `yaml:"min_employees"`
}

// RetailFirmParams configures retail firms.
type RetailFirmParams struct {
	FirmParams     `yaml:",inline"`
	WholesalePrice float64 `yaml:"wholesale_price"`
	RetailPrice    float64 `yaml:"retail_price"`
	MinEmployees   int     `yaml:"min_employees"`
}

// EnvConfig is the immutable-per-episode configuration of a CityEnvironment.
// Field names in YAML follow the environment's parameter names.
type EnvConfig struct {
	NumHouseholds   int `yaml:"num_households"`
	NumRawFirms     int `yaml:"num_raw_firms"`
	NumManuFirms    int `yaml:"num_manu_firms"`
	NumRetailFirms  int `yaml:"num_retail_firms"`
	NumGenericFirms int `yaml:"num_generic_firms"`
	EpisodeLength   int `yaml:"episode_length"`

	InfraDecayRate    float64 `yaml:"infra_decay_rate"`
	ShockProbability  float64 `yaml:"shock_probability"`
	ShockType         string  `yaml:"shock_type"`
	DemandSensitivity float64 `yaml:"demand_sensitivity"` // accepted and recorded; no goods market reads it
	InflationRate     float64 `yaml:"inflation_rate"`

	HouseholdCostOfLiving float64 `yaml:"household_cost_of_living"`
	HouseholdWageMin      int     `yaml:"household_wage_min"`
	HouseholdWageMax      int     `yaml:"household_wage_max"`
	HouseholdHappiness    float64 `yaml:"household_happiness"`
	EssentialGoodsDemand  float64 `yaml:"essential_goods_demand"`
	StartingCapital       float64 `yaml:"starting_capital"`

	RewardMode    string             `yaml:"reward_mode"`
	CustomWeights map[string]float64 `yaml:"custom_weights,omitempty"`

	RawFirmParams     RawFirmParams          `yaml:"raw_firm_params"`
	ManuFirmParams    ManufacturerFirmParams `yaml:"manu_firm_params"`
	RetailFirmParams  RetailFirmParams       `yaml:"retail_firm_params"`
	GenericFirmParams FirmParams             `yaml:"generic_firm_params"`

	TaxRateValues         []float64 `yaml:"tax_rate_values"`
	InfraFractionValues   []float64 `yaml:"infra_fraction_values"`
	SubsidyFractionValues []float64 `yaml:"subsidy_fraction_values"`
}

// DefaultEnvConfig returns the configuration used when nothing is overridden.
func DefaultEnvConfig() EnvConfig {
	return EnvConfig{
		NumHouseholds:   50,
		NumRawFirms:     2,
		NumManuFirms:    1,
		NumRetailFirms:  1,
		NumGenericFirms: 0,
		EpisodeLength:   60,

		InfraDecayRate:    0.01,
		ShockProbability:  0,
		ShockType:         ShockRawCut,
		DemandSensitivity: 0.35,
		InflationRate:     0,

		HouseholdCostOfLiving: 7,
		HouseholdWageMin:      13,
		HouseholdWageMax:      17,
		HouseholdHappiness:    defaultHappiness,
		EssentialGoodsDemand:  1,
		StartingCapital:       100,

		RewardMode: "basic_happiness",

		RawFirmParams: RawFirmParams{
			FirmParams:       FirmParams{BaseWage: 8, NumEmployees: 5, ProfitabilityFactor: 1, MaxCapacity: 50},
			ProductionFactor: 2,
			MaterialPrice:    4,
			MinEmployees:     2,
		},
		ManuFirmParams: ManufacturerFirmParams{
			FirmParams:   FirmParams{BaseWage: 10, NumEmployees: 5, ProfitabilityFactor: 1.2, MaxCapacity: 50},
			SalePrice:    16,
			MaterialCost: 3.5,
			MinEmployees: 2,
		},
		RetailFirmParams: RetailFirmParams{
			FirmParams:     FirmParams{BaseWage: 8, NumEmployees: 5, ProfitabilityFactor: 1, MaxCapacity: 50},
			WholesalePrice: 8,
			RetailPrice:    12,
			MinEmployees:   2,
		},
		GenericFirmParams: FirmParams{BaseWage: 10, NumEmployees: 5, ProfitabilityFactor: 1, MaxCapacity: 50},

		TaxRateValues:         DefaultTaxRates(),
		InfraFractionValues:   DefaultInfraFractions(),
		SubsidyFractionValues: DefaultSubsidyFractions(),
	}
}

// LoadEnvConfig reads a YAML configuration file on top of DefaultEnvConfig.
// Keys absent from the file keep their defaults. Uses strict parsing:
// unrecognized keys (typos) are rejected.
func LoadEnvConfig(path string) (EnvConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EnvConfig{}, fmt.Errorf("reading env config: %w", err)
	}
	return ParseEnvConfig(data)
}

// ParseEnvConfig decodes YAML bytes on top of DefaultEnvConfig. An empty
// document yields the defaults.
func ParseEnvConfig(data []byte) (EnvConfig, error) {
	cfg := DefaultEnvConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return EnvConfig{}, fmt.Errorf("parsing env config: %w", err)
	}
	return cfg, nil
}

// Normalize repairs values the environment tolerates silently: a reversed
// wage range is swapped. It returns the repaired copy.
func (c EnvConfig) Normalize() EnvConfig {
	if c.HouseholdWageMin > c.HouseholdWageMax {
		logrus.Warnf("household wage range [%d, %d] reversed; swapping", c.HouseholdWageMin, c.HouseholdWageMax)
		c.HouseholdWageMin, c.HouseholdWageMax = c.HouseholdWageMax, c.HouseholdWageMin
	}
	if c.ShockType != ShockRawCut {
		logrus.Warnf("shock_type %q has no effect; only %q degrades production", c.ShockType, ShockRawCut)
	}
	return c
}

// Validate rejects configurations the environment cannot run. Values that
// are merely odd (reversed wage range, unknown reward mode) are normalized
// elsewhere and pass.
func (c *EnvConfig) Validate() error {
	counts := []struct {
		name string
		v    int
	}{
		{"num_households", c.NumHouseholds},
		{"num_raw_firms", c.NumRawFirms},
		{"num_manu_firms", c.NumManuFirms},
		{"num_retail_firms", c.NumRetailFirms},
		{"num_generic_firms", c.NumGenericFirms},
	}
	for _, n := range counts {
		if n.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", n.name, n.v)
		}
	}
	if c.EpisodeLength <= 0 {
		return fmt.Errorf("episode_length must be positive, got %d", c.EpisodeLength)
	}
	for name, p := range map[string]float64{
		"infra_decay_rate":  c.InfraDecayRate,
		"shock_probability": c.ShockProbability,
	} {
		if err := validateUnit(name, p); err != nil {
			return err
		}
	}
	if err := validateFinite("inflation_rate", c.InflationRate); err != nil {
		return err
	}
	if c.HouseholdCostOfLiving < 0 {
		return fmt.Errorf("household_cost_of_living must be non-negative, got %f", c.HouseholdCostOfLiving)
	}
	if c.HouseholdWageMin <= 0 || c.HouseholdWageMax <= 0 {
		return fmt.Errorf("household wage bounds must be positive, got [%d, %d]", c.HouseholdWageMin, c.HouseholdWageMax)
	}
	if c.HouseholdHappiness < 0 || c.HouseholdHappiness > maxHappiness {
		return fmt.Errorf("household_happiness must be in [0, 100], got %f", c.HouseholdHappiness)
	}
	if err := validateFirm("raw_firm_params", c.RawFirmParams.FirmParams, c.RawFirmParams.MinEmployees); err != nil {
		return err
	}
	if err := validateFirm("manu_firm_params", c.ManuFirmParams.FirmParams, c.ManuFirmParams.MinEmployees); err != nil {
		return err
	}
	if err := validateFirm("retail_firm_params", c.RetailFirmParams.FirmParams, c.RetailFirmParams.MinEmployees); err != nil {
		return err
	}
	if err := validateFirm("generic_firm_params", c.GenericFirmParams, 0); err != nil {
		return err
	}
	grids := []struct {
		name string
		vals []float64
	}{
		{"tax_rate_values", c.TaxRateValues},
		{"infra_fraction_values", c.InfraFractionValues},
		{"subsidy_fraction_values", c.SubsidyFractionValues},
	}
	for _, g := range grids {
		if len(g.vals) == 0 {
			return fmt.Errorf("%s must not be empty", g.name)
		}
		for i, v := range g.vals {
			if err := validateUnit(fmt.Sprintf("%s[%d]", g.name, i), v); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateFirm(prefix string, p FirmParams, minEmployees int) error {
	if p.MaxCapacity < 0 {
		return fmt.Errorf("%s.max_capacity must be non-negative, got %d", prefix, p.MaxCapacity)
	}
	if minEmployees < 0 {
		return fmt.Errorf("%s.min_employees must be non-negative, got %d", prefix, minEmployees)
	}
	if minEmployees > p.MaxCapacity {
		return fmt.Errorf("%s.min_employees (%d) exceeds max_capacity (%d)", prefix, minEmployees, p.MaxCapacity)
	}
	if err := validateFinite(prefix+".base_wage", p.BaseWage); err != nil {
		return err
	}
	return validateFinite(prefix+".profitability_factor", p.ProfitabilityFactor)
}

func validateFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", name, v)
	}
	return nil
}

func validateUnit(name string, v float64) error {
	if err := validateFinite(name, v); err != nil {
		return err
	}
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be in [0, 1], got %f", name, v)
	}
	return nil
}
