package sim

import "math/rand"

const (
	minMaterialPrice    = 0.5
	maxMaterialPrice    = 20.0
	minProductionFactor = 0.5
)

var rawRule = employmentRule{
	hireAbove: 8, hireProb: 0.4,
	fireBelow: -8, fireProb: 0.4,
	hireDelta: func(rng *rand.Rand) int {
		if rng.Float64() < 0.7 {
			return 1
		}
		return 2
	},
}

// RawMaterialFirm extracts materials in proportion to head count and sells
// them at a drifting market price.
type RawMaterialFirm struct {
	FirmCore
	ProductionFactor float64
	MaterialPrice    float64 // within [0.5, 20.0]
}

// NewRawMaterialFirm builds a raw-material firm from its parameter bag.
func NewRawMaterialFirm(p RawFirmParams, capital float64) *RawMaterialFirm {
	return &RawMaterialFirm{
		FirmCore:         newFirmCore(p.FirmParams, p.MinEmployees, capital),
		ProductionFactor: p.ProductionFactor,
		MaterialPrice:    clamp(p.MaterialPrice, minMaterialPrice, maxMaterialPrice),
	}
}

func (f *RawMaterialFirm) Kind() FirmKind { return FirmKindRaw }
func (f *RawMaterialFirm) BeginStep()     {}

// MaterialsProduced is this step's output at the current head count.
func (f *RawMaterialFirm) MaterialsProduced() float64 {
	return float64(f.NumEmployees) * f.ProductionFactor
}

func (f *RawMaterialFirm) Revenue() float64 {
	return f.MaterialsProduced() * f.MaterialPrice * f.ProfitabilityFactor
}

func (f *RawMaterialFirm) Profit() float64 {
	return f.Revenue() - f.WagesPaid()
}

func (f *RawMaterialFirm) AdjustEmployment(rng *rand.Rand) {
	f.adjust(rng, f.Profit(), rawRule)
}

// FluctuatePrice moves the material price by a factor drawn from
// [0.99, 1.01] and clamps it to [0.5, 20.0].
func (f *RawMaterialFirm) FluctuatePrice(rng *rand.Rand) {
	f.MaterialPrice = clamp(f.MaterialPrice*uniformFloat(rng, 0.99, 1.01), minMaterialPrice, maxMaterialPrice)
}

// ApplyRawCut halves the production factor, floored at 0.5.
func (f *RawMaterialFirm) ApplyRawCut() {
	f.ProductionFactor = max(f.ProductionFactor*0.5, minProductionFactor)
}
