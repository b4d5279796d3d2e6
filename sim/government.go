package sim

// infraConversionRate is the share of invested budget that becomes
// infrastructure.
const infraConversionRate = 0.07

// Government holds the city's fiscal state.
type Government struct {
	TaxRate          float64   // always one of PossibleTaxRates
	Budget           float64   // unbounded; negative is a deficit
	Infrastructure   float64   // never negative
	PossibleTaxRates []float64 // candidate rates, in action-table order
}

// NewGovernment returns a government with zero tax, budget and
// infrastructure that may choose among possibleTaxRates.
func NewGovernment(possibleTaxRates []float64) *Government {
	return &Government{PossibleTaxRates: possibleTaxRates}
}

// SetTaxRate assigns the rate chosen by the action decoder.
func (g *Government) SetTaxRate(rate float64) {
	g.TaxRate = rate
}

// CollectTaxes levies the current rate on wages and profits, adds the
// proceeds to the budget and returns them.
func (g *Government) CollectTaxes(totalWages, totalProfit float64) float64 {
	collected := g.TaxRate*totalWages + g.TaxRate*totalProfit
	g.Budget += collected
	return collected
}
