package server

import (
	"fizzysim/internal/generator"
	"fizzysim/internal/oracle"
	"fizzysim/internal/repo"
	"fizzysim/internal/simulation"
)

// Request payloads

type CreateSimulationRequest struct {
	Preset        string               `json:"preset,omitempty" doc:"Preset name; empty picks the configured default"`
	DurationDays  *int                 `json:"duration_days,omitempty" minimum:"1" maximum:"3650"`
	Seed          *uint64              `json:"seed,omitempty" doc:"0 derives a seed from the clock"`
	Agents        []string             `json:"agents,omitempty" doc:"Subset of sarah, greg, alex, maya, chris"`
	Generator     *generator.Overrides `json:"generator,omitempty"`
	IncludeResult bool                 `json:"include_result,omitempty" doc:"Embed the full result in the response"`
}

type AskRequest struct {
	Query     string               `json:"query" minLength:"1" example:"show me all real blockers"`
	Preset    string               `json:"preset,omitempty"`
	Seed      *uint64              `json:"seed,omitempty"`
	Days      int                  `json:"days,omitempty" minimum:"0" maximum:"365" doc:"Simulated days to run before asking"`
	Generator *generator.Overrides `json:"generator,omitempty"`
}

// Response payloads

type RunResponse struct {
	Run    repo.Run           `json:"run"`
	Result *simulation.Result `json:"result,omitempty"`
}

type RunMetricsResponse struct {
	RunID string                    `json:"run_id"`
	Days  []simulation.DailyMetrics `json:"days"`
}

type AuditListResponse struct {
	RunID  string         `json:"run_id"`
	Audits []oracle.Audit `json:"audits"`
}

type AskResponse struct {
	Seed       uint64        `json:"seed"`
	Day        int           `json:"day"`
	TotalCards int           `json:"total_cards"`
	Category   string        `json:"category"`
	Answer     oracle.Answer `json:"answer"`
	Outcome    string        `json:"outcome"`
	Detail     string        `json:"detail,omitempty"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	Archive       bool   `json:"archive"`
	SchemaVersion int    `json:"schema_version,omitempty"`
}

type paginatedRuns struct {
	Items      []repo.Run `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}
