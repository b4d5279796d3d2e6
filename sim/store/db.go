// Package store provides SQLite storage for completed runs: their final
// statistics and per-step records. Live simulation state is never stored.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/city-sim/city-sim/sim/report"
	"github.com/city-sim/city-sim/sim/trace"
)

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		reward_mode TEXT NOT NULL,
		seed INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		total_reward REAL NOT NULL,
		final_happiness REAL NOT NULL,
		final_population INTEGER NOT NULL,
		final_budget REAL NOT NULL,
		cumulative_profit REAL NOT NULL,
		total_bankruptcies INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_steps (
		run_id TEXT NOT NULL REFERENCES runs(id),
		step INTEGER NOT NULL,
		action INTEGER NOT NULL,
		chosen_tax REAL NOT NULL,
		chosen_infra REAL NOT NULL,
		chosen_subsidy REAL NOT NULL,
		bankrupt_count INTEGER NOT NULL,
		shock_triggered INTEGER NOT NULL,
		daily_profits_sum REAL NOT NULL,
		gov_budget REAL NOT NULL,
		infrastructure REAL NOT NULL,
		avg_happiness REAL NOT NULL,
		population INTEGER NOT NULL,
		reward REAL NOT NULL,
		record_json TEXT NOT NULL,
		PRIMARY KEY (run_id, step)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// RunRow is one stored run.
type RunRow struct {
	ID                string  `db:"id"`
	CreatedAt         string  `db:"created_at"`
	RewardMode        string  `db:"reward_mode"`
	Seed              int64   `db:"seed"`
	Steps             int     `db:"steps"`
	TotalReward       float64 `db:"total_reward"`
	FinalHappiness    float64 `db:"final_happiness"`
	FinalPopulation   int     `db:"final_population"`
	FinalBudget       float64 `db:"final_budget"`
	CumulativeProfit  float64 `db:"cumulative_profit"`
	TotalBankruptcies int     `db:"total_bankruptcies"`
}

type stepRow struct {
	RunID           string  `db:"run_id"`
	Step            int     `db:"step"`
	Action          int     `db:"action"`
	ChosenTax       float64 `db:"chosen_tax"`
	ChosenInfra     float64 `db:"chosen_infra"`
	ChosenSubsidy   float64 `db:"chosen_subsidy"`
	BankruptCount   int     `db:"bankrupt_count"`
	ShockTriggered  bool    `db:"shock_triggered"`
	DailyProfitsSum float64 `db:"daily_profits_sum"`
	GovBudget       float64 `db:"gov_budget"`
	Infrastructure  float64 `db:"infrastructure"`
	AvgHappiness    float64 `db:"avg_happiness"`
	Population      int     `db:"population"`
	Reward          float64 `db:"reward"`
	RecordJSON      string  `db:"record_json"`
}

// SaveRun stores run and its step records in one transaction and returns
// the new run's id.
func (db *DB) SaveRun(ctx context.Context, run *report.Run) (string, error) {
	id := uuid.NewString()
	summary := run.Summary
	if summary == nil {
		summary = &trace.EpisodeSummary{}
	}
	row := RunRow{
		ID:                id,
		CreatedAt:         time.Now().UTC().Format(time.RFC3339),
		RewardMode:        run.RewardMode,
		Seed:              run.Seed,
		Steps:             len(run.DebugSteps),
		TotalReward:       run.TotalReward,
		FinalHappiness:    run.FinalStats.FinalHappiness,
		FinalPopulation:   run.FinalStats.FinalPopulation,
		FinalBudget:       run.FinalStats.FinalBudget,
		CumulativeProfit:  summary.CumulativeProfit,
		TotalBankruptcies: summary.TotalBankruptcies,
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, `INSERT INTO runs
		(id, created_at, reward_mode, seed, steps, total_reward, final_happiness,
		 final_population, final_budget, cumulative_profit, total_bankruptcies)
		VALUES (:id, :created_at, :reward_mode, :seed, :steps, :total_reward, :final_happiness,
		 :final_population, :final_budget, :cumulative_profit, :total_bankruptcies)`, row); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, r := range run.DebugSteps {
		b, err := json.Marshal(r)
		if err != nil {
			return "", fmt.Errorf("encode step %d: %w", r.Step, err)
		}
		sr := stepRow{
			RunID:           id,
			Step:            r.Step,
			Action:          r.ActionIndex,
			ChosenTax:       r.ChosenTax,
			ChosenInfra:     r.ChosenInfra,
			ChosenSubsidy:   r.ChosenSubsidy,
			BankruptCount:   r.BankruptCount,
			ShockTriggered:  r.ShockTriggered,
			DailyProfitsSum: r.DailyProfitsSum,
			GovBudget:       r.GovBudget,
			Infrastructure:  r.Infrastructure,
			AvgHappiness:    r.AvgHappiness,
			Population:      r.Population,
			Reward:          r.Reward,
			RecordJSON:      string(b),
		}
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO run_steps
			(run_id, step, action, chosen_tax, chosen_infra, chosen_subsidy, bankrupt_count,
			 shock_triggered, daily_profits_sum, gov_budget, infrastructure, avg_happiness,
			 population, reward, record_json)
			VALUES (:run_id, :step, :action, :chosen_tax, :chosen_infra, :chosen_subsidy, :bankrupt_count,
			 :shock_triggered, :daily_profits_sum, :gov_budget, :infrastructure, :avg_happiness,
			 :population, :reward, :record_json)`, sr); err != nil {
			return "", fmt.Errorf("insert step %d: %w", r.Step, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// ListRuns returns stored runs, newest first.
func (db *DB) ListRuns(ctx context.Context) ([]RunRow, error) {
	var rows []RunRow
	err := db.conn.SelectContext(ctx, &rows, `SELECT id, created_at, reward_mode, seed, steps,
		total_reward, final_happiness, final_population, final_budget, cumulative_profit,
		total_bankruptcies FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return rows, nil
}

// LoadSteps returns the step records of runID in step order.
func (db *DB) LoadSteps(ctx context.Context, runID string) ([]trace.StepRecord, error) {
	var blobs []string
	err := db.conn.SelectContext(ctx, &blobs,
		`SELECT record_json FROM run_steps WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, fmt.Errorf("load steps: %w", err)
	}
	records := make([]trace.StepRecord, 0, len(blobs))
	for _, b := range blobs {
		var r trace.StepRecord
		if err := json.Unmarshal([]byte(b), &r); err != nil {
			return nil, fmt.Errorf("decode step of run %s: %w", runID, err)
		}
		records = append(records, r)
	}
	return records, nil
}
