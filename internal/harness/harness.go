package harness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/splitwrite/internal/decode"
	"github.com/roach88/splitwrite/internal/engine"
	"github.com/roach88/splitwrite/internal/ir"
	"github.com/roach88/splitwrite/internal/metrics"
	"github.com/roach88/splitwrite/internal/runner"
	"github.com/roach88/splitwrite/internal/store"
)

// Option configures a scenario run.
type Option func(*config)

type config struct {
	driver    string
	dsn       string
	logger    *slog.Logger
	metrics   *metrics.Collector
	isolation *sql.IsolationLevel
	batchMode *engine.BatchMode
}

// WithDatabase runs the scenario against dsn instead of a private in-memory
// SQLite database. The scenario's setup must create whatever it needs.
// An empty driver keeps the scenario's driver.
func WithDatabase(driver, dsn string) Option {
	return func(c *config) {
		if driver != "" {
			c.driver = driver
		}
		c.dsn = dsn
	}
}

// WithLogger sets the logger handed to each step's engine.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records engine and statement metrics into m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithIsolation overrides the scenario's default isolation level.
// Per-step levels still win.
func WithIsolation(level sql.IsolationLevel) Option {
	return func(c *config) {
		c.isolation = &level
	}
}

// WithBatchMode overrides the scenario's batch mode.
func WithBatchMode(m engine.BatchMode) Option {
	return func(c *config) {
		c.batchMode = &m
	}
}

// Harness executes one scenario against one database.
type Harness struct {
	store     *store.Store
	scenario  *Scenario
	cfg       config
	isolation sql.IsolationLevel
	batchMode engine.BatchMode
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database unless WithDatabase is
// given. Operation IDs are derived from the scenario name and step number,
// so traces are reproducible.
//
// Execution flow:
// 1. Open the database and run the setup script
// 2. Run each step in its own transaction and check its expect clause
// 3. Evaluate final-state assertions
//
// A returned error means the scenario could not be executed at all (bad
// setup, unreachable database). Failed expectations are reported in the
// Result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{
		driver: scenario.Driver,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &Harness{scenario: scenario, cfg: cfg}
	if err := h.resolveSettings(); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.driver, cfg.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()
	h.store = st

	if scenario.Setup != "" {
		if err := st.Exec(ctx, scenario.Setup); err != nil {
			return nil, fmt.Errorf("failed to execute setup: %w", err)
		}
	}

	result := NewResult()
	for i := range scenario.Steps {
		if err := h.runStep(ctx, i, result); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func (h *Harness) resolveSettings() error {
	level, err := store.ParseIsolation(h.scenario.Isolation)
	if err != nil {
		return err
	}
	if h.cfg.isolation != nil {
		level = *h.cfg.isolation
	}
	h.isolation = level

	mode, err := engine.ParseBatchMode(h.scenario.BatchMode)
	if err != nil {
		return err
	}
	if h.cfg.batchMode != nil {
		mode = *h.cfg.batchMode
	}
	h.batchMode = mode
	return nil
}

// stepOutcome is what one engine call produced.
type stepOutcome struct {
	rows    int64
	counts  []int64
	records []ir.Record
	err     error
}

// runStep executes step i, records its trace event and checks its expect
// clause. Only infrastructure failures (begin, commit) are returned.
func (h *Harness) runStep(ctx context.Context, i int, result *Result) error {
	step := h.scenario.Steps[i]
	ev := TraceEvent{Step: i + 1, Name: step.Name, Kind: step.Kind()}

	if ev.Kind == KindExec {
		if err := h.store.Exec(ctx, step.Exec); err != nil {
			return fmt.Errorf("exec: %w", err)
		}
		result.AddTrace(ev)
		return nil
	}

	var conn runner.Conn = h.store.DB()
	var tx *store.Tx
	if !step.NoTransaction {
		level := h.isolation
		if step.Isolation != "" {
			parsed, err := store.ParseIsolation(step.Isolation)
			if err != nil {
				return err
			}
			level = parsed
		}
		begun, err := h.store.Begin(ctx, level)
		if err != nil {
			return err
		}
		tx = begun
		conn = tx
		ctx = engine.WithTransaction(ctx, tx)
	}

	eng := h.newEngine(conn, i)
	out, buildErr := h.execute(ctx, eng, step)
	if buildErr != nil {
		if tx != nil {
			_ = tx.Rollback()
		}
		return buildErr
	}

	if tx != nil {
		ev.RollbackOnly = tx.IsRollbackOnly()
		if out.err == nil && !ev.RollbackOnly {
			if err := tx.Commit(); err != nil {
				return err
			}
			ev.Committed = true
		} else if err := tx.Rollback(); err != nil {
			return err
		}
	}

	if out.err == nil {
		switch ev.Kind {
		case KindSplit:
			rows := out.rows
			ev.Rows = &rows
		case KindBatch:
			ev.Counts = out.counts
		case KindMerge:
			ev.Records = out.records
		}
	}
	ev.Error = newTraceError(out.err)
	result.AddTrace(ev)

	for _, msg := range checkExpect(step, out, ev.RollbackOnly) {
		result.AddError(fmt.Sprintf("steps[%d] (%s): %s", i, stepLabel(step, i), msg))
	}
	return nil
}

func (h *Harness) newEngine(conn runner.Conn, i int) *engine.Engine {
	var runnerOpts []runner.Option
	engineOpts := []engine.EngineOption{
		engine.WithLogger(h.cfg.logger),
		engine.WithOpIDGenerator(engine.NewFixedGenerator(fmt.Sprintf("%s/%d", h.scenario.Name, i+1))),
		engine.WithBatchMode(h.batchMode),
	}
	if h.cfg.metrics != nil {
		runnerOpts = append(runnerOpts, runner.WithObserver(h.cfg.metrics))
		engineOpts = append(engineOpts, engine.WithMetrics(h.cfg.metrics))
	}
	if h.scenario.StrictVersioning {
		engineOpts = append(engineOpts, engine.WithStrictVersioning())
	}
	return engine.New(runner.New(conn, runnerOpts...), engineOpts...)
}

// execute translates the step into carriers and calls the engine. The
// returned error is a scenario-file problem; the engine's own error is in
// the outcome.
func (h *Harness) execute(ctx context.Context, eng *engine.Engine, step Step) (stepOutcome, error) {
	var out stepOutcome
	switch {
	case step.Split != nil:
		p, err := step.Split.pair()
		if err != nil {
			return out, err
		}
		out.rows, out.err = eng.ExecuteSplit(ctx, p)
	case step.Batch != nil:
		p, err := step.Batch.pair()
		if err != nil {
			return out, err
		}
		out.counts, out.err = eng.ExecuteBatchSplit(ctx, p)
	case step.Merge != nil:
		base, err := step.Merge.Base.carrier()
		if err != nil {
			return out, err
		}
		ext, err := step.Merge.Extension.carrier()
		if err != nil {
			return out, err
		}
		out.records, out.err = eng.MergeReturning(ctx, base, ext, step.Merge.Identity)
	default:
		return out, errors.New("step has no operation")
	}
	return out, nil
}

func (c CarrierSpec) carrier() (ir.Carrier, error) {
	cols := make([]ir.Column, 0, len(c.Columns))
	for _, col := range c.Columns {
		fn, err := decode.Lookup(col.Type)
		if err != nil {
			return ir.Carrier{}, fmt.Errorf("column %q: %w", col.Name, err)
		}
		cols = append(cols, ir.Column{Name: col.Name, Field: col.Field, Decode: fn})
	}
	return ir.Carrier{
		Label:     c.Label,
		SQL:       c.SQL,
		Params:    c.Params,
		Groups:    c.Groups,
		Versioned: c.Versioned,
		Columns:   cols,
	}, nil
}

func (p PairSpec) pair() (ir.Pair, error) {
	order, err := ir.ParseOrder(p.Order)
	if err != nil {
		return ir.Pair{}, err
	}
	base, err := p.Base.carrier()
	if err != nil {
		return ir.Pair{}, err
	}
	ext, err := p.Extension.carrier()
	if err != nil {
		return ir.Pair{}, err
	}
	return ir.Pair{Base: base, Extension: ext, Order: order}, nil
}

func (p BatchSpec) pair() (ir.BatchPair, error) {
	order, err := ir.ParseOrder(p.Order)
	if err != nil {
		return ir.BatchPair{}, err
	}
	base, err := p.Base.carrier()
	if err != nil {
		return ir.BatchPair{}, err
	}
	ext, err := p.Extension.carrier()
	if err != nil {
		return ir.BatchPair{}, err
	}
	return ir.BatchPair{Base: base, Extension: ext, Order: order, Identities: p.Identities}, nil
}

func stepLabel(step Step, i int) string {
	if step.Name != "" {
		return step.Name
	}
	return fmt.Sprintf("%s #%d", step.Kind(), i+1)
}
