package sim

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/city-sim/city-sim/sim/trace"
)

const (
	shortfallBasePenalty = -0.5
	subsidyHappinessRate = 0.02
	immigrantHappiness   = 50.0
	immigrationThreshold = 50.0
	epsilon              = 1e-6
)

var (
	// ErrInvalidAction is returned by Step for an index outside the action table.
	ErrInvalidAction = errors.New("action index out of range")
	// ErrNotReset is returned by Step before the first Reset.
	ErrNotReset = errors.New("environment stepped before reset")
)

// Observation is the fixed-scale encoding
// [budget/200, infrastructure/50, avg_happiness/100, population/200].
// Values are not clipped.
type Observation [4]float64

// StepInfo carries the per-step diagnostics returned alongside the reward.
type StepInfo struct {
	AvgHappiness      float64 `json:"avg_happiness"`
	DailyProfits      float64 `json:"daily_profits"`
	CumulativeProfits float64 `json:"cumulative_profits"`
	LeftoverSpend     float64 `json:"leftover_spend"`
}

// StepResult is the outcome of one Step.
type StepResult struct {
	Observation Observation
	Reward      float64
	Done        bool
	Info        StepInfo
}

// CityEnvironment owns the government, households and firms of one city and
// advances them through a fixed per-step pipeline. A single environment is
// not safe for concurrent use; run parallel episodes on separate instances.
type CityEnvironment struct {
	cfg     EnvConfig
	mode    RewardMode
	actions *ActionTable
	rng     *PartitionedRNG

	gov          *Government
	households   []*Household
	rawFirms     []*RawMaterialFirm
	manuFirms    []*ManufacturerFirm
	retailFirms  []*RetailFirm
	genericFirms []*GenericFirm

	costOfLiving     float64
	currentStep      int
	cumulativeProfit float64
	trace            *trace.EpisodeTrace
}

// NewCityEnvironment validates cfg and builds an environment whose every
// random draw derives from key. Call Reset before Step.
func NewCityEnvironment(cfg EnvConfig, key SimulationKey) (*CityEnvironment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid env config: %w", err)
	}
	cfg = cfg.Normalize()
	mode := ParseRewardMode(cfg.RewardMode, cfg.CustomWeights)
	return &CityEnvironment{
		cfg:     cfg,
		mode:    mode,
		actions: NewActionTable(cfg.TaxRateValues, cfg.InfraFractionValues, cfg.SubsidyFractionValues),
		rng:     NewPartitionedRNG(key),
		trace:   trace.NewEpisodeTrace(mode.Name()),
	}, nil
}

// Reset starts a new episode: fresh government, a seeded household
// population and freshly capitalized firms. Random streams continue from
// the previous episode, so successive episodes differ while the sequence
// as a whole stays reproducible from the key.
func (e *CityEnvironment) Reset() Observation {
	e.currentStep = 0
	e.cumulativeProfit = 0
	e.trace = trace.NewEpisodeTrace(e.mode.Name())
	e.costOfLiving = e.cfg.HouseholdCostOfLiving

	e.gov = NewGovernment(e.cfg.TaxRateValues)

	hmode := happinessModeFor(e.mode)
	e.households = make([]*Household, 0, e.cfg.NumHouseholds)
	for i := 0; i < e.cfg.NumHouseholds; i++ {
		e.households = append(e.households, &Household{
			Wage:         e.drawWage(),
			Happiness:    e.cfg.HouseholdHappiness,
			Employed:     true,
			CostOfLiving: e.costOfLiving,
			Mode:         hmode,
		})
	}

	capital := e.cfg.StartingCapital
	e.rawFirms = make([]*RawMaterialFirm, 0, e.cfg.NumRawFirms)
	for i := 0; i < e.cfg.NumRawFirms; i++ {
		e.rawFirms = append(e.rawFirms, NewRawMaterialFirm(e.cfg.RawFirmParams, capital))
	}
	e.manuFirms = make([]*ManufacturerFirm, 0, e.cfg.NumManuFirms)
	for i := 0; i < e.cfg.NumManuFirms; i++ {
		e.manuFirms = append(e.manuFirms, NewManufacturerFirm(e.cfg.ManuFirmParams, capital))
	}
	e.retailFirms = make([]*RetailFirm, 0, e.cfg.NumRetailFirms)
	for i := 0; i < e.cfg.NumRetailFirms; i++ {
		e.retailFirms = append(e.retailFirms, NewRetailFirm(e.cfg.RetailFirmParams, capital))
	}
	e.genericFirms = make([]*GenericFirm, 0, e.cfg.NumGenericFirms)
	for i := 0; i < e.cfg.NumGenericFirms; i++ {
		e.genericFirms = append(e.genericFirms, NewGenericFirm(e.cfg.GenericFirmParams, capital))
	}

	logrus.Debugf("[step %03d] reset: %d households, firms raw=%d manu=%d retail=%d generic=%d",
		e.currentStep, len(e.households), len(e.rawFirms), len(e.manuFirms), len(e.retailFirms), len(e.genericFirms))
	return e.observe()
}

// stepLedger accumulates the firm-sector aggregates of one step.
type stepLedger struct {
	wages    float64
	profits  float64
	bankrupt int
}

// Step applies the action at actionIdx and advances the city by one step.
// Stages run in a fixed order; later stages read what earlier ones wrote.
func (e *CityEnvironment) Step(actionIdx int) (StepResult, error) {
	if e.gov == nil {
		return StepResult{}, ErrNotReset
	}
	if !e.actions.Valid(actionIdx) {
		return StepResult{}, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidAction, actionIdx, e.actions.Len())
	}
	act := e.actions.Decode(actionIdx)
	e.gov.SetTaxRate(act.TaxRate)

	rec := trace.StepRecord{
		Step:          e.currentStep + 1,
		ActionIndex:   actionIdx,
		ChosenTax:     act.TaxRate,
		ChosenInfra:   act.InfraFraction,
		ChosenSubsidy: act.SubsidyFraction,
	}
	var ledger stepLedger

	materials := e.stepRawFirms(&ledger, &rec)
	e.stepManufacturers(materials, &ledger, &rec)
	e.stepRetailers(&ledger, &rec)
	e.stepGenericFirms(&ledger, &rec)

	rec.TaxCollected = e.gov.CollectTaxes(ledger.wages, ledger.profits)
	e.investInfrastructure(act.InfraFraction)
	e.paySubsidy(act.SubsidyFraction)
	e.applyInflation()
	e.decayInfrastructure()
	rec.ShockTriggered = e.maybeShock()

	leftover := e.totalLeftover()
	rec.Departures = e.updateHouseholds(e.shortfallPenalty())

	avgHap := e.AvgHappiness()
	rec.Immigrated = e.maybeImmigrate(avgHap)

	e.currentStep++
	done := e.currentStep >= e.cfg.EpisodeLength
	e.cumulativeProfit += ledger.profits

	reward := Reward(e.mode, RewardInputs{
		AvgHappiness:   avgHap,
		Budget:         e.gov.Budget,
		Population:     len(e.households),
		TotalProfits:   ledger.profits,
		TotalWages:     ledger.wages,
		Infrastructure: e.gov.Infrastructure,
	})

	rec.BankruptCount = ledger.bankrupt
	rec.DailyProfitsSum = ledger.profits
	rec.TotalWages = ledger.wages
	rec.LeftoverSpend = leftover
	rec.GovBudget = e.gov.Budget
	rec.Infrastructure = e.gov.Infrastructure
	rec.AvgHappiness = avgHap
	rec.Population = len(e.households)
	rec.Reward = reward
	e.trace.Record(rec)

	logrus.Debugf("[step %03d] %s reward=%.3f hap=%.2f pop=%d budget=%.2f bankrupt=%d",
		e.currentStep, act, reward, avgHap, len(e.households), e.gov.Budget, ledger.bankrupt)

	return StepResult{
		Observation: e.observe(),
		Reward:      reward,
		Done:        done,
		Info: StepInfo{
			AvgHappiness:      avgHap,
			DailyProfits:      ledger.profits,
			CumulativeProfits: e.cumulativeProfit,
			LeftoverSpend:     leftover,
		},
	}, nil
}

// === Firm stages ===

// stepRawFirms moves prices, produces materials and settles raw-material
// firms. It returns the pooled materials produced this step.
func (e *CityEnvironment) stepRawFirms(l *stepLedger, rec *trace.StepRecord) float64 {
	prices := e.rng.ForSubsystem(SubsystemPrices)
	for _, f := range e.rawFirms {
		f.FluctuatePrice(prices)
	}

	emp := e.rng.ForSubsystem(SubsystemEmployment)
	pool := 0.0
	for _, f := range e.rawFirms {
		f.BeginStep()
		pool += f.MaterialsProduced()
		f.AdjustEmployment(emp)
		l.wages += f.WagesPaid()
	}
	e.rawFirms, rec.RawProfits = settle(e.rawFirms, l)
	return pool
}

// stepManufacturers splits the material pool evenly and settles
// manufacturers.
func (e *CityEnvironment) stepManufacturers(materials float64, l *stepLedger, rec *trace.StepRecord) {
	for _, f := range e.manuFirms {
		f.BeginStep()
	}
	if len(e.manuFirms) > 0 && materials > 0 {
		share := materials / float64(len(e.manuFirms))
		for _, f := range e.manuFirms {
			f.BuyMaterials(share)
		}
	}

	emp := e.rng.ForSubsystem(SubsystemEmployment)
	for _, f := range e.manuFirms {
		f.AdjustEmployment(emp)
		l.wages += f.WagesPaid()
	}
	e.manuFirms, rec.ManuProfits = settle(e.manuFirms, l)
}

// stepRetailers stocks and staffs retailers, then settles them in a second
// pass. No goods flow to retail yet: stock purchases are zero and nothing is
// sold to households.
func (e *CityEnvironment) stepRetailers(l *stepLedger, rec *trace.StepRecord) {
	emp := e.rng.ForSubsystem(SubsystemEmployment)
	for _, f := range e.retailFirms {
		f.BeginStep()
		f.BuyFinalGoods(0)
		f.AdjustEmployment(emp)
		l.wages += f.WagesPaid()
	}
	e.retailFirms, rec.RetailProfits = settle(e.retailFirms, l)
}

func (e *CityEnvironment) stepGenericFirms(l *stepLedger, rec *trace.StepRecord) {
	emp := e.rng.ForSubsystem(SubsystemEmployment)
	for _, f := range e.genericFirms {
		f.BeginStep()
		f.AdjustEmployment(emp)
		l.wages += f.WagesPaid()
	}
	e.genericFirms, rec.GenericProfits = settle(e.genericFirms, l)
}

// settle credits each firm's profit to its capital, then drops the firms
// that went bankrupt. Removals are collected during the pass and filtered
// afterwards.
func settle[F Firm](firms []F, l *stepLedger) ([]F, []float64) {
	profits := make([]float64, 0, len(firms))
	var bankrupt []int
	for i, f := range firms {
		p := f.Profit()
		l.profits += p
		core := f.Core()
		core.Capital += p
		profits = append(profits, p)
		if core.Bankrupt() {
			bankrupt = append(bankrupt, i)
		}
	}
	if len(bankrupt) == 0 {
		return firms, profits
	}

	survivors := make([]F, 0, len(firms)-len(bankrupt))
	next := 0
	for i, f := range firms {
		if next < len(bankrupt) && bankrupt[next] == i {
			next++
			logrus.Debugf("%s firm bankrupt (capital %.2f)", f.Kind(), f.Core().Capital)
			continue
		}
		survivors = append(survivors, f)
	}
	l.bankrupt += len(bankrupt)
	return survivors, profits
}

// === Fiscal stages ===

func (e *CityEnvironment) investInfrastructure(fraction float64) {
	if e.gov.Budget > 0 && fraction > 0 {
		invest := fraction * e.gov.Budget
		e.gov.Budget -= invest
		e.gov.Infrastructure += infraConversionRate * invest
	}
}

func (e *CityEnvironment) paySubsidy(fraction float64) {
	if fraction > 0 && e.gov.Budget > 0 {
		total := fraction * e.gov.Budget
		e.gov.Budget -= total
		share := total / (float64(len(e.households)) + epsilon)
		for _, h := range e.households {
			h.Happiness += subsidyHappinessRate * share
		}
	}
}

func (e *CityEnvironment) applyInflation() {
	if e.cfg.InflationRate > 0 {
		e.costOfLiving *= 1 + e.cfg.InflationRate
		for _, h := range e.households {
			h.CostOfLiving = e.costOfLiving
		}
	}
}

func (e *CityEnvironment) decayInfrastructure() {
	if e.cfg.InfraDecayRate > 0 {
		e.gov.Infrastructure = max(0, e.gov.Infrastructure*(1-e.cfg.InfraDecayRate))
	}
}

// maybeShock draws once per step and reports whether a shock fired.
func (e *CityEnvironment) maybeShock() bool {
	if e.rng.ForSubsystem(SubsystemShock).Float64() >= e.cfg.ShockProbability {
		return false
	}
	if e.cfg.ShockType == ShockRawCut {
		for _, f := range e.rawFirms {
			f.ApplyRawCut()
		}
	}
	logrus.Debugf("[step %03d] shock %q triggered", e.currentStep+1, e.cfg.ShockType)
	return true
}

// === Household stages ===

func (e *CityEnvironment) totalLeftover() float64 {
	total := 0.0
	for _, h := range e.households {
		total += h.Leftover(e.gov.TaxRate)
	}
	return total
}

// shortfallPenalty scales the base penalty by the unmet share of essential
// goods demand. No goods reach households yet, so the share is always 1.
func (e *CityEnvironment) shortfallPenalty() float64 {
	goodsPerHousehold := 0.0
	shortfall := 1 - min(1, goodsPerHousehold/(e.cfg.EssentialGoodsDemand+epsilon))
	return shortfallBasePenalty * shortfall
}

// updateHouseholds applies happiness effects and the shortfall penalty,
// then removes the households that decide to leave. It returns how many left.
func (e *CityEnvironment) updateHouseholds(penalty float64) int {
	exit := e.rng.ForSubsystem(SubsystemExit)
	var leaving []int
	for i, h := range e.households {
		h.UpdateHappiness(e.gov.Infrastructure, e.gov.TaxRate)
		h.Happiness += penalty
		h.clampHappiness()
		if h.DecideIfLeave(exit) {
			leaving = append(leaving, i)
		}
	}
	if len(leaving) == 0 {
		return 0
	}

	stay := make([]*Household, 0, len(e.households)-len(leaving))
	next := 0
	for i, h := range e.households {
		if next < len(leaving) && leaving[next] == i {
			next++
			continue
		}
		stay = append(stay, h)
	}
	e.households = stay
	return len(leaving)
}

// maybeImmigrate admits one unemployed household when the city is happy
// enough and the mode's immigration draw succeeds.
func (e *CityEnvironment) maybeImmigrate(avgHappiness float64) bool {
	if avgHappiness <= immigrationThreshold {
		return false
	}
	if e.rng.ForSubsystem(SubsystemImmigration).Float64() >= immigrationChance(e.mode) {
		return false
	}
	e.households = append(e.households, &Household{
		Wage:         e.drawWage(),
		Happiness:    immigrantHappiness,
		Employed:     false,
		CostOfLiving: e.costOfLiving,
		Mode:         happinessModeFor(e.mode),
	})
	return true
}

func (e *CityEnvironment) drawWage() float64 {
	return float64(uniformInt(e.rng.ForSubsystem(SubsystemWages), e.cfg.HouseholdWageMin, e.cfg.HouseholdWageMax))
}

// === Accessors ===

// AvgHappiness is the mean happiness of current households, or 0 if none.
func (e *CityEnvironment) AvgHappiness() float64 {
	if len(e.households) == 0 {
		return 0
	}
	sum := 0.0
	for _, h := range e.households {
		sum += h.Happiness
	}
	return sum / float64(len(e.households))
}

func (e *CityEnvironment) observe() Observation {
	return Observation{
		e.gov.Budget / 200,
		e.gov.Infrastructure / 50,
		e.AvgHappiness() / 100,
		float64(len(e.households)) / 200,
	}
}

// Key returns the SimulationKey every random stream derives from.
func (e *CityEnvironment) Key() SimulationKey { return e.rng.Key() }

// ActionCount is the size of the action table.
func (e *CityEnvironment) ActionCount() int { return e.actions.Len() }

// Actions returns the action table.
func (e *CityEnvironment) Actions() *ActionTable { return e.actions }

// Config returns the normalized configuration.
func (e *CityEnvironment) Config() EnvConfig { return e.cfg }

// Mode returns the parsed reward mode.
func (e *CityEnvironment) Mode() RewardMode { return e.mode }

// CurrentStep is the number of steps taken since Reset.
func (e *CityEnvironment) CurrentStep() int { return e.currentStep }

// Population is the number of current households.
func (e *CityEnvironment) Population() int { return len(e.households) }

// Budget is the government budget, or 0 before Reset.
func (e *CityEnvironment) Budget() float64 {
	if e.gov == nil {
		return 0
	}
	return e.gov.Budget
}

// Infrastructure is the government infrastructure stock, or 0 before Reset.
func (e *CityEnvironment) Infrastructure() float64 {
	if e.gov == nil {
		return 0
	}
	return e.gov.Infrastructure
}

// CumulativeProfit is the sum of daily firm profits since Reset.
func (e *CityEnvironment) CumulativeProfit() float64 { return e.cumulativeProfit }

// Trace returns the current episode's debug records.
func (e *CityEnvironment) Trace() *trace.EpisodeTrace { return e.trace }

// FirmCounts reports the surviving firms per variant.
func (e *CityEnvironment) FirmCounts() map[FirmKind]int {
	return map[FirmKind]int{
		FirmKindRaw:          len(e.rawFirms),
		FirmKindManufacturer: len(e.manuFirms),
		FirmKindRetail:       len(e.retailFirms),
		FirmKindGeneric:      len(e.genericFirms),
	}
}
