// Package sim provides the city-economy environment: a discrete-time,
// episodic simulation in which households work and consume, a raw-material →
// manufacturer → retail firm chain (plus generic firms) produces and trades,
// and a government chooses tax, infrastructure and subsidy levers each step.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - environment.go: Reset, the Step pipeline, observation encoding
//   - firm.go: the Firm capability set and the shared hire/fire hill-climb
//   - household.go: happiness update and exit decision
//   - reward.go: the closed set of reward modes
//
// # Step pipeline
//
// Each Step runs, in order: decode action and set tax; raw-material prices,
// production and settlement; manufacturer purchases and settlement; retail and
// generic settlement; tax collection; infrastructure investment; subsidies;
// inflation; infrastructure decay; shock; household happiness and exits;
// immigration; reward; debug record. Later stages read aggregates written by
// earlier ones, so the order is part of the contract.
//
// # Randomness
//
// Every stochastic call site draws from its own stream of a PartitionedRNG
// derived from one SimulationKey, so a key and a configuration reproduce an
// entire sequence of episodes exactly.
//
// Sub-packages:
//   - sim/trace/: per-step debug records and episode summaries
//   - sim/policy/: the trainer-facing environment contract and policies
//   - sim/report/: episode rollout into time series, trace export
//   - sim/store/: SQLite storage of completed runs
package sim
