package sim

import "math/rand"

var manufacturerRule = employmentRule{hireAbove: 12, hireProb: 0.5, fireBelow: -12, fireProb: 0.5}

// ManufacturerFirm buys raw materials, turns at most one unit per employee
// per step into final goods, and sells them at SalePrice.
type ManufacturerFirm struct {
	FirmCore
	SalePrice    float64
	MaterialCost float64
	Inventory    float64 // never negative

	// Per-step quantities, cleared by BeginStep.
	MaterialsBought      float64
	MaterialCostThisStep float64
	LastProduced         float64
}

// NewManufacturerFirm builds a manufacturer from its parameter bag.
func NewManufacturerFirm(p ManufacturerFirmParams, capital float64) *ManufacturerFirm {
	return &ManufacturerFirm{
		FirmCore:     newFirmCore(p.FirmParams, p.MinEmployees, capital),
		SalePrice:    p.SalePrice,
		MaterialCost: p.MaterialCost,
	}
}

func (f *ManufacturerFirm) Kind() FirmKind { return FirmKindManufacturer }

func (f *ManufacturerFirm) BeginStep() {
	f.MaterialsBought = 0
	f.MaterialCostThisStep = 0
	f.LastProduced = 0
}

// BuyMaterials records this step's purchase and adds it to inventory.
func (f *ManufacturerFirm) BuyMaterials(share float64) {
	f.MaterialsBought = share
	f.MaterialCostThisStep = share * f.MaterialCost
	f.Inventory += share
}

// produce converts up to one unit per employee of inventory into goods.
// Every call consumes, so a step that evaluates profit twice produces twice.
func (f *ManufacturerFirm) produce() float64 {
	f.LastProduced = min(f.Inventory, float64(f.NumEmployees))
	f.Inventory -= f.LastProduced
	return f.LastProduced
}

// Revenue is zero when nothing was bought this step. Otherwise it produces
// from inventory.
func (f *ManufacturerFirm) Revenue() float64 {
	if f.MaterialsBought <= 0 {
		return 0
	}
	return f.produce() * f.SalePrice * f.ProfitabilityFactor
}

func (f *ManufacturerFirm) Profit() float64 {
	return f.Revenue() - f.WagesPaid() - f.MaterialCostThisStep
}

// AdjustEmployment decides on the profit it computes, which consumes
// inventory ahead of settlement.
func (f *ManufacturerFirm) AdjustEmployment(rng *rand.Rand) {
	f.adjust(rng, f.Profit(), manufacturerRule)
}
