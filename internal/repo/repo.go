package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"fizzysim/internal/domain"
	"fizzysim/internal/oracle"
	"fizzysim/internal/simulation"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// Run is the archived summary row of one completed simulation.
type Run struct {
	ID           string `json:"id"`
	Seed         uint64 `json:"seed"`
	Preset       string `json:"preset,omitempty"`
	RequestedBy  string `json:"requested_by,omitempty"`
	DurationDays int    `json:"duration_days"`
	TotalCards   int    `json:"total_cards"`
	Survived     bool   `json:"survived"`
	SurvivalDays int    `json:"survival_days"`
	QueryCount   int    `json:"query_count"`
	Fabrications int    `json:"fabrications"`
	Fallbacks    int    `json:"graceful_fallbacks"`
	CreatedAt    string `json:"created_at"`
}

type RunFilters struct {
	Preset          string
	RequestedBy     string
	Survived        *bool
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

const runColumns = `id,seed,preset,requested_by,duration_days,total_cards,survived,survival_days,query_count,fabrications,fallbacks,created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var seed string
	var survived int
	err := row.Scan(&run.ID, &seed, &run.Preset, &run.RequestedBy, &run.DurationDays, &run.TotalCards,
		&survived, &run.SurvivalDays, &run.QueryCount, &run.Fabrications, &run.Fallbacks, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return run, ErrNotFound
	}
	if err != nil {
		return run, err
	}
	run.Survived = survived == 1
	run.Seed, err = strconv.ParseUint(seed, 10, 64)
	if err != nil {
		return run, fmt.Errorf("run %s: bad seed %q: %w", run.ID, seed, err)
	}
	return run, nil
}

// NewRun builds the summary row for a result. An empty id gets a fresh uuid.
func NewRun(id, preset, requestedBy string, res simulation.Result, now time.Time) Run {
	if id == "" {
		id = uuid.NewString()
	}
	return Run{
		ID:           id,
		Seed:         res.Seed,
		Preset:       preset,
		RequestedBy:  requestedBy,
		DurationDays: res.DurationDays,
		TotalCards:   res.TotalCards,
		Survived:     res.JanitorMetrics.Survived,
		SurvivalDays: res.JanitorMetrics.SurvivalDays,
		QueryCount:   res.JanitorMetrics.QueryCount,
		Fabrications: res.JanitorMetrics.FabricationCount,
		Fallbacks:    res.JanitorMetrics.FallbackCount,
		CreatedAt:    now.UTC().Format(time.RFC3339Nano),
	}
}

// InsertRun archives the run row, its daily metrics and its audit trail in
// one transaction.
func (r Repo) InsertRun(ctx context.Context, run Run, res simulation.Result) error {
	blob, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO runs(`+runColumns+`,result_json) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID, strconv.FormatUint(run.Seed, 10), run.Preset, run.RequestedBy, run.DurationDays, run.TotalCards,
		boolInt(run.Survived), run.SurvivalDays, run.QueryCount, run.Fabrications, run.Fallbacks, run.CreatedAt, string(blob)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for _, m := range res.DailyMetrics {
		byStatus, err := json.Marshal(m.CardsByStatus)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO daily_metrics(run_id,day,total_cards,cards_by_status,total_comments,cards_reassigned,blocker_links,fabrications,graceful_fallbacks,queries,successful_responses) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			run.ID, m.Day, m.TotalCards, string(byStatus), m.TotalComments, m.CardsReassigned, m.BlockerLinks,
			m.Fabrications, m.GracefulFallbacks, m.Queries, m.SuccessfulResponses); err != nil {
			return fmt.Errorf("insert daily metrics day %d: %w", m.Day, err)
		}
	}
	for _, a := range res.Audits {
		if _, err := tx.ExecContext(ctx, `INSERT INTO audits(run_id,seq,day,ts,query,category,outcome,confidence,detail) VALUES (?,?,?,?,?,?,?,?,?)`,
			run.ID, a.Seq, a.Day, a.At.UTC().Format(time.RFC3339Nano), a.Query, a.Category.String(), string(a.Outcome), a.Confidence, a.Detail); err != nil {
			return fmt.Errorf("insert audit %d: %w", a.Seq, err)
		}
	}
	return tx.Commit()
}

func (r Repo) GetRun(ctx context.Context, id string) (Run, error) {
	return scanRun(r.DB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=?`, id))
}

// GetRunResult decodes the full archived result.
func (r Repo) GetRunResult(ctx context.Context, id string) (simulation.Result, error) {
	var blob string
	err := r.DB.QueryRowContext(ctx, `SELECT result_json FROM runs WHERE id=?`, id).Scan(&blob)
	if err == sql.ErrNoRows {
		return simulation.Result{}, ErrNotFound
	}
	if err != nil {
		return simulation.Result{}, err
	}
	var res simulation.Result
	if err := json.Unmarshal([]byte(blob), &res); err != nil {
		return simulation.Result{}, fmt.Errorf("decode result %s: %w", id, err)
	}
	return res, nil
}

// ListRuns returns runs newest first, paging with a (created_at, id) cursor.
func (r Repo) ListRuns(ctx context.Context, f RunFilters) ([]Run, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.Preset != "" {
		clauses = append(clauses, "preset=?")
		args = append(args, f.Preset)
	}
	if f.RequestedBy != "" {
		clauses = append(clauses, "requested_by=?")
		args = append(args, f.RequestedBy)
	}
	if f.Survived != nil {
		clauses = append(clauses, "survived=?")
		args = append(args, boolInt(*f.Survived))
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	query := `SELECT ` + runColumns + ` FROM runs WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, run)
	}
	return res, rows.Err()
}

// DailyMetrics returns the per-day snapshots of a run in day order.
func (r Repo) DailyMetrics(ctx context.Context, runID string) ([]simulation.DailyMetrics, error) {
	if _, err := r.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT day,total_cards,cards_by_status,total_comments,cards_reassigned,blocker_links,fabrications,graceful_fallbacks,queries,successful_responses FROM daily_metrics WHERE run_id=? ORDER BY day ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []simulation.DailyMetrics
	for rows.Next() {
		var m simulation.DailyMetrics
		var byStatus string
		if err := rows.Scan(&m.Day, &m.TotalCards, &byStatus, &m.TotalComments, &m.CardsReassigned, &m.BlockerLinks,
			&m.Fabrications, &m.GracefulFallbacks, &m.Queries, &m.SuccessfulResponses); err != nil {
			return nil, err
		}
		m.CardsByStatus = map[domain.Status]int{}
		if err := json.Unmarshal([]byte(byStatus), &m.CardsByStatus); err != nil {
			return nil, fmt.Errorf("decode cards_by_status day %d: %w", m.Day, err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// ListAudits returns a run's audit trail, optionally filtered by outcome.
func (r Repo) ListAudits(ctx context.Context, runID string, outcome oracle.Outcome) ([]oracle.Audit, error) {
	clauses := []string{"run_id=?"}
	args := []any{runID}
	if outcome != "" {
		clauses = append(clauses, "outcome=?")
		args = append(args, string(outcome))
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT seq,day,ts,query,category,outcome,confidence,detail FROM audits WHERE `+strings.Join(clauses, " AND ")+` ORDER BY seq ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []oracle.Audit
	for rows.Next() {
		var a oracle.Audit
		var ts, category, outcome string
		if err := rows.Scan(&a.Seq, &a.Day, &ts, &a.Query, &category, &outcome, &a.Confidence, &a.Detail); err != nil {
			return nil, err
		}
		if a.At, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, err
		}
		if a.Category, err = oracle.ParseCategory(category); err != nil {
			return nil, err
		}
		a.Outcome = oracle.Outcome(outcome)
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) DeleteRun(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM runs WHERE id=?`, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
