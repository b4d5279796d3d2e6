// Package trace provides per-step debug recording for episode analysis.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// StepRecord is the structured snapshot taken at the end of one step.
// JSON keys match the debug-step schema consumed by reporting front ends.
type StepRecord struct {
	Step        int `json:"step"`
	ActionIndex int `json:"action"`

	// Per-sector profits of every firm processed this step, including firms
	// that went bankrupt in it.
	RawProfits     []float64 `json:"raw_profits"`
	ManuProfits    []float64 `json:"manu_profits"`
	RetailProfits  []float64 `json:"retail_profits"`
	GenericProfits []float64 `json:"generic_profits"`

	ChosenTax     float64 `json:"chosen_tax"`
	ChosenInfra   float64 `json:"chosen_infra"`
	ChosenSubsidy float64 `json:"chosen_subsidy"`

	BankruptCount  int  `json:"bankrupt_count"`
	ShockTriggered bool `json:"shock_triggered"`

	DailyProfitsSum float64 `json:"daily_profits_sum"`
	TotalWages      float64 `json:"total_wages"`
	TaxCollected    float64 `json:"tax_collected"`
	LeftoverSpend   float64 `json:"leftover_spend"`
	GovBudget       float64 `json:"gov_budget"`
	Infrastructure  float64 `json:"infrastructure"`
	AvgHappiness    float64 `json:"avg_happiness"`
	Population      int     `json:"population"`
	Departures      int     `json:"departures"`
	Immigrated      bool    `json:"immigrated"`
	Reward          float64 `json:"reward"`
}

// FirmCount is the number of firms that reported a profit this step.
func (r *StepRecord) FirmCount() int {
	return len(r.RawProfits) + len(r.ManuProfits) + len(r.RetailProfits) + len(r.GenericProfits)
}
