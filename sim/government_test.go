package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGovernment_StartsEmpty(t *testing.T) {
	g := NewGovernment(DefaultTaxRates())
	assert.Equal(t, 0.0, g.TaxRate)
	assert.Equal(t, 0.0, g.Budget)
	assert.Equal(t, 0.0, g.Infrastructure)
	assert.Len(t, g.PossibleTaxRates, 39)
}

func TestGovernment_CollectTaxes(t *testing.T) {
	// GIVEN a government at 20% tax with an existing budget
	g := NewGovernment(DefaultTaxRates())
	g.Budget = 10
	g.SetTaxRate(0.2)

	// WHEN it taxes 100 wages and -30 profits
	got := g.CollectTaxes(100, -30)

	// THEN it levies the rate on the sum, negative profits included
	assert.InDelta(t, 14.0, got, 1e-9)
	assert.InDelta(t, 24.0, g.Budget, 1e-9)
}

func TestGovernment_ZeroTaxCollectsNothing(t *testing.T) {
	g := NewGovernment(DefaultTaxRates())
	assert.Equal(t, 0.0, g.CollectTaxes(500, 500))
	assert.Equal(t, 0.0, g.Budget)
}
