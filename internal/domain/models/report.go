package models

import "time"

// SymbolStatus is the per-symbol outcome of a pipeline step.
type SymbolStatus string

const (
	StatusSuccess SymbolStatus = "success"
	StatusSkipped SymbolStatus = "skipped"
	StatusFailed  SymbolStatus = "failed"
)

// SymbolResult reports how one symbol fared in a step.
type SymbolResult struct {
	Symbol string       `json:"symbol"`
	Status SymbolStatus `json:"status"`
	Rows   int          `json:"rows"`
	Error  string       `json:"error,omitempty"`
}

// StageStat is the row count and latency of one stage.
type StageStat struct {
	Stage    string        `json:"stage"`
	Rows     int           `json:"rows"`
	Duration time.Duration `json:"duration_ns"`
}

// GridStats describes what grid reconciliation changed.
type GridStats struct {
	GridPoints int `json:"grid_points"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	OffGrid    int `json:"off_grid"`
}

// RunReport summarises one pipeline run.
type RunReport struct {
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	Start          time.Time      `json:"range_start"`
	End            time.Time      `json:"range_end"`
	Fetch          []SymbolResult `json:"fetch"`
	Features       []SymbolResult `json:"features"`
	Stages         []StageStat    `json:"stages"`
	EpochFallbacks int            `json:"epoch_fallbacks"`
	Grid           GridStats      `json:"grid"`
	Rows           int            `json:"rows"`
	Error          string         `json:"error,omitempty"`
}

// AddStage appends a stage stat.
func (r *RunReport) AddStage(stage string, rows int, d time.Duration) {
	r.Stages = append(r.Stages, StageStat{Stage: stage, Rows: rows, Duration: d})
}

// FailedSymbols lists symbols whose fetch failed.
func (r *RunReport) FailedSymbols() []string {
	var out []string
	for _, f := range r.Fetch {
		if f.Status == StatusFailed {
			out = append(out, f.Symbol)
		}
	}
	return out
}
