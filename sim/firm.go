package sim

import "math/rand"

// FirmKind names one of the four firm variants.
type FirmKind string

const (
	FirmKindGeneric      FirmKind = "generic"
	FirmKindRaw          FirmKind = "raw"
	FirmKindManufacturer FirmKind = "manufacturer"
	FirmKindRetail       FirmKind = "retail"
)

// BankruptcyThreshold is the capital level below which a firm is removed.
const BankruptcyThreshold = -300.0

// Firm is the capability set every firm variant implements. The environment
// keeps one typed collection per variant and drives them through this
// interface for the shared settle-and-remove bookkeeping.
type Firm interface {
	Kind() FirmKind
	// Core exposes the numeric fields shared by every variant.
	Core() *FirmCore
	// BeginStep clears per-step quantities. Capital is the only state that
	// survives from one step to the next.
	BeginStep()
	WagesPaid() float64
	Revenue() float64
	Profit() float64
	// AdjustEmployment performs one stochastic hire/fire step driven by the
	// variant's profit thresholds.
	AdjustEmployment(rng *rand.Rand)
}

// FirmCore holds the fields shared by every firm variant.
type FirmCore struct {
	BaseWage            float64
	NumEmployees        int // within [MinEmployees, MaxCapacity]
	ProfitabilityFactor float64
	MaxCapacity         int
	MinEmployees        int
	Capital             float64 // may go negative; see BankruptcyThreshold
}

func newFirmCore(p FirmParams, minEmployees int, capital float64) FirmCore {
	c := FirmCore{
		BaseWage:            p.BaseWage,
		NumEmployees:        p.NumEmployees,
		ProfitabilityFactor: p.ProfitabilityFactor,
		MaxCapacity:         p.MaxCapacity,
		MinEmployees:        minEmployees,
		Capital:             capital,
	}
	c.NumEmployees = min(max(c.NumEmployees, c.MinEmployees), c.MaxCapacity)
	return c
}

func (c *FirmCore) Core() *FirmCore { return c }

// WagesPaid is base wage times head count.
func (c *FirmCore) WagesPaid() float64 {
	return c.BaseWage * float64(c.NumEmployees)
}

// Bankrupt reports whether capital has fallen below BankruptcyThreshold.
func (c *FirmCore) Bankrupt() bool {
	return c.Capital < BankruptcyThreshold
}

// employmentRule parameterizes the hire/fire hill-climb of one variant.
type employmentRule struct {
	hireAbove float64
	hireProb  float64
	fireBelow float64
	fireProb  float64
	// hireDelta draws the number of hires once hiring is decided; nil means 1.
	hireDelta func(rng *rand.Rand) int
}

// adjust applies rule to the firm given the profit it expects this step.
// A coin flip is drawn only when a threshold is crossed and there is room
// to move.
func (c *FirmCore) adjust(rng *rand.Rand, profit float64, rule employmentRule) {
	switch {
	case profit > rule.hireAbove && c.NumEmployees < c.MaxCapacity:
		if rng.Float64() < rule.hireProb {
			delta := 1
			if rule.hireDelta != nil {
				delta = rule.hireDelta(rng)
			}
			c.NumEmployees = min(c.NumEmployees+delta, c.MaxCapacity)
		}
	case profit < rule.fireBelow && c.NumEmployees > c.MinEmployees:
		if rng.Float64() < rule.fireProb {
			c.NumEmployees = max(c.MinEmployees, c.NumEmployees-1)
		}
	}
}

// === Generic firm ===

var genericRule = employmentRule{hireAbove: 10, hireProb: 0.5, fireBelow: 0, fireProb: 0.5}

// GenericFirm earns a flat amount per employee scaled by profitability.
type GenericFirm struct {
	FirmCore
}

// NewGenericFirm builds a generic firm with a floor of zero employees.
func NewGenericFirm(p FirmParams, capital float64) *GenericFirm {
	return &GenericFirm{FirmCore: newFirmCore(p, 0, capital)}
}

func (f *GenericFirm) Kind() FirmKind { return FirmKindGeneric }
func (f *GenericFirm) BeginStep()     {}

func (f *GenericFirm) Revenue() float64 {
	return f.ProfitabilityFactor * float64(f.NumEmployees) * 20
}

func (f *GenericFirm) Profit() float64 {
	return f.Revenue() - f.WagesPaid()
}

func (f *GenericFirm) AdjustEmployment(rng *rand.Rand) {
	f.adjust(rng, f.Profit(), genericRule)
}
