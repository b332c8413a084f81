package engine

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/splitwrite/internal/decode"
	"github.com/roach88/splitwrite/internal/ir"
	"github.com/roach88/splitwrite/internal/runner"
)

// Operation names used in logs, metrics and errors.
const (
	OpSplit = "split"
	OpBatch = "batch"
	OpMerge = "merge"
)

// OutcomeOK is the metrics outcome of a successful operation. Failed
// operations report their error code.
const OutcomeOK = "ok"

// Metrics receives per-operation observations.
// Implemented by metrics.Collector; the default discards everything.
type Metrics interface {
	ObserveOperation(operation, outcome string, elapsed time.Duration)
	ObserveRollbackOnly(operation string)
	ObserveLockFailure(operation string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, string, time.Duration) {}
func (noopMetrics) ObserveRollbackOnly(string)                     {}
func (noopMetrics) ObserveLockFailure(string)                      {}

// BatchMode selects how first-pass lock failures of a batch are gathered.
type BatchMode int

const (
	// BatchCollect runs the whole first batch and reports every failing index.
	BatchCollect BatchMode = iota

	// BatchFailFast stops the first batch at the first failing index.
	BatchFailFast
)

// String returns the flag spelling of the mode.
func (m BatchMode) String() string {
	switch m {
	case BatchCollect:
		return "collect"
	case BatchFailFast:
		return "fail_fast"
	default:
		return fmt.Sprintf("batch_mode(%d)", int(m))
	}
}

// ParseBatchMode parses "collect" or "fail_fast". Empty means BatchCollect.
func ParseBatchMode(s string) (BatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "collect":
		return BatchCollect, nil
	case "fail_fast", "fail-fast", "failfast":
		return BatchFailFast, nil
	default:
		return BatchCollect, fmt.Errorf("unknown batch mode %q: must be collect or fail_fast", s)
	}
}

// Engine coordinates split writes and returning reads.
//
// An Engine holds configuration and concurrency-safe collaborators only.
// The ambient transaction is read from the context on every call, so one
// Engine may serve many goroutines as long as each brings its own
// transaction and a runner bound to it.
type Engine struct {
	runner           runner.Runner
	decoder          ir.Decoder
	logger           *slog.Logger
	metrics          Metrics
	opIDs            OpIDGenerator
	batchMode        BatchMode
	strictVersioning bool
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) EngineOption {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithOpIDGenerator replaces the UUIDv7 operation ID generator.
// Use NewFixedGenerator in tests for deterministic IDs.
func WithOpIDGenerator(g OpIDGenerator) EngineOption {
	return func(e *Engine) {
		if g != nil {
			e.opIDs = g
		}
	}
}

// WithBatchMode sets how first-pass batch lock failures are gathered.
//
// Default: BatchCollect.
func WithBatchMode(m BatchMode) EngineOption {
	return func(e *Engine) {
		e.batchMode = m
	}
}

// WithStrictVersioning rejects pairs where exactly one side carries a
// version predicate, before any statement runs. Without it each carrier is
// verified by its own Versioned flag.
func WithStrictVersioning() EngineOption {
	return func(e *Engine) {
		e.strictVersioning = true
	}
}

// WithDecoder replaces the row decoder used by MergeReturning.
// Default: decode.Columns.
func WithDecoder(d ir.Decoder) EngineOption {
	return func(e *Engine) {
		if d != nil {
			e.decoder = d
		}
	}
}

// New creates an Engine executing statements through r.
func New(r runner.Runner, opts ...EngineOption) *Engine {
	e := &Engine{
		runner:    r,
		decoder:   decode.Columns{},
		logger:    slog.Default(),
		metrics:   noopMetrics{},
		opIDs:     UUIDv7Generator{},
		batchMode: BatchCollect,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BatchMode returns the configured batch mode.
func (e *Engine) BatchMode() BatchMode {
	return e.batchMode
}
