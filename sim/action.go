package sim

import (
	"fmt"
	"math"
)

// Action is one row of the joint policy-lever table.
type Action struct {
	TaxRate         float64 `json:"tax_rate" yaml:"tax_rate"`
	InfraFraction   float64 `json:"infra_fraction" yaml:"infra_fraction"`
	SubsidyFraction float64 `json:"subsidy_fraction" yaml:"subsidy_fraction"`
}

// String renders the action's lever values.
func (a Action) String() string {
	return fmt.Sprintf("tax=%.2f infra=%.2f subsidy=%.2f", a.TaxRate, a.InfraFraction, a.SubsidyFraction)
}

// DefaultTaxRates returns {0, 0.02, ..., 0.74} followed by 0.75.
func DefaultTaxRates() []float64 {
	rates := make([]float64, 0, 39)
	for i := 0; i < 38; i++ {
		rates = append(rates, math.Round(float64(i)*0.02*100)/100)
	}
	return append(rates, 0.75)
}

// DefaultInfraFractions returns the default infrastructure-investment grid.
func DefaultInfraFractions() []float64 {
	return []float64{0, 0.05, 0.1, 0.15, 0.2}
}

// DefaultSubsidyFractions returns the default subsidy grid.
func DefaultSubsidyFractions() []float64 {
	return []float64{0, 0.05, 0.1, 0.15}
}

// ActionTable is the cartesian product of the three lever grids, iterated
// tax-major then infrastructure then subsidy. Index i maps to exactly one
// combination and every combination has exactly one index.
type ActionTable struct {
	actions []Action
	nInfra  int
	nSub    int
}

// NewActionTable builds the table from the three grids.
func NewActionTable(taxRates, infraFractions, subsidyFractions []float64) *ActionTable {
	t := &ActionTable{
		actions: make([]Action, 0, len(taxRates)*len(infraFractions)*len(subsidyFractions)),
		nInfra:  len(infraFractions),
		nSub:    len(subsidyFractions),
	}
	for _, tax := range taxRates {
		for _, infra := range infraFractions {
			for _, sub := range subsidyFractions {
				t.actions = append(t.actions, Action{TaxRate: tax, InfraFraction: infra, SubsidyFraction: sub})
			}
		}
	}
	return t
}

// Len is the number of actions.
func (t *ActionTable) Len() int { return len(t.actions) }

// Valid reports whether idx is a row of the table.
func (t *ActionTable) Valid(idx int) bool { return idx >= 0 && idx < len(t.actions) }

// Decode returns the lever values for idx. Callers check Valid first.
func (t *ActionTable) Decode(idx int) Action { return t.actions[idx] }

// Index is the inverse of Decode on grid positions.
func (t *ActionTable) Index(taxPos, infraPos, subsidyPos int) int {
	return (taxPos*t.nInfra+infraPos)*t.nSub + subsidyPos
}

// Actions returns a copy of every row in index order.
func (t *ActionTable) Actions() []Action {
	out := make([]Action, len(t.actions))
	copy(out, t.actions)
	return out
}
