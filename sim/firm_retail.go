package sim

import "math/rand"

var retailRule = employmentRule{hireAbove: 8, hireProb: 0.4, fireBelow: -8, fireProb: 0.3}

// RetailFirm buys final goods wholesale and sells them to households.
type RetailFirm struct {
	FirmCore
	WholesalePrice float64
	RetailPrice    float64
	Inventory      float64 // never negative

	// Per-step quantities, cleared by BeginStep.
	GoodsBought   float64
	WholesaleCost float64
	GoodsSold     float64
}

// NewRetailFirm builds a retailer from its parameter bag.
func NewRetailFirm(p RetailFirmParams, capital float64) *RetailFirm {
	return &RetailFirm{
		FirmCore:       newFirmCore(p.FirmParams, p.MinEmployees, capital),
		WholesalePrice: p.WholesalePrice,
		RetailPrice:    p.RetailPrice,
	}
}

func (f *RetailFirm) Kind() FirmKind { return FirmKindRetail }

func (f *RetailFirm) BeginStep() {
	f.GoodsBought = 0
	f.WholesaleCost = 0
	f.GoodsSold = 0
}

// BuyFinalGoods stocks amount units at the wholesale price and returns amount.
func (f *RetailFirm) BuyFinalGoods(amount float64) float64 {
	f.GoodsBought = amount
	f.WholesaleCost = amount * f.WholesalePrice
	f.Inventory += amount
	return amount
}

// SellToHouseholds sells up to demand units from inventory and returns the
// amount sold.
func (f *RetailFirm) SellToHouseholds(demand float64) float64 {
	sold := max(0, min(f.Inventory, demand))
	f.Inventory -= sold
	f.GoodsSold = sold
	return sold
}

func (f *RetailFirm) Revenue() float64 {
	return f.GoodsSold * f.RetailPrice * f.ProfitabilityFactor
}

func (f *RetailFirm) Profit() float64 {
	return f.Revenue() - f.WagesPaid() - f.WholesaleCost
}

func (f *RetailFirm) AdjustEmployment(rng *rand.Rand) {
	f.adjust(rng, f.Profit(), retailRule)
}
