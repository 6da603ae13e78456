// Package executor is the facade every statement passes through: it
// consults the result cache, acquires a session, executes, updates the
// schema catalog, and returns a structured response with a running history
// of statements and timings.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/agentlake/sqlgate/internal/cache"
	"github.com/agentlake/sqlgate/internal/catalog"
	"github.com/agentlake/sqlgate/internal/metrics"
	"github.com/agentlake/sqlgate/internal/session"
)

// Timing is one history entry as exposed to the caller, serialized as a
// [statementText, durationSeconds] pair.
type Timing struct {
	Statement string
	Seconds   float64
}

func (t Timing) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{t.Statement, t.Seconds})
}

// Result is the structured response for one statement. Execution failures
// are carried in Error, never raised; the catalog snapshot and full history
// are always included so the caller can reason from accumulated knowledge
// without a separate query.
type Result struct {
	QueryResult any                      `json:"query_result,omitempty"`
	Error       string                   `json:"error,omitempty"`
	Schema      map[string]catalog.Table `json:"schema"`
	AllQueries  []Timing                 `json:"all_queries"`
}

type Config struct {
	Logger   *slog.Logger
	Clock    clockwork.Clock
	Sessions *session.Manager
	Cache    *cache.Cache
	Catalog  *catalog.Catalog
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Clock == nil {
		return errors.New("clock is required")
	}
	if c.Sessions == nil {
		return errors.New("session manager is required")
	}
	if c.Cache == nil {
		return errors.New("result cache is required")
	}
	if c.Catalog == nil {
		return errors.New("schema catalog is required")
	}
	return nil
}

type record struct {
	statement string
	seconds   float64
	timestamp time.Time
}

type Executor struct {
	log *slog.Logger
	cfg *Config

	mu      sync.Mutex
	history []record
}

func New(cfg *Config) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid executor config: %w", err)
	}
	return &Executor{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// Run executes one statement and returns a structured result. It never
// returns an error: connection and statement failures are captured in
// Result.Error. At most one execution attempt is made per call.
func (e *Executor) Run(ctx context.Context, statement string) Result {
	start := e.cfg.Clock.Now()

	if payload, ok := e.cfg.Cache.Lookup(statement); ok {
		e.log.Debug("executor: cache hit", "statement", statement)
		metrics.StatementsTotal.WithLabelValues("cached").Inc()
		e.appendHistory(statement, e.cfg.Clock.Since(start))
		return Result{
			QueryResult: json.RawMessage(payload),
			Schema:      e.cfg.Catalog.Snapshot(),
			AllQueries:  e.timings(),
		}
	}

	var res Result
	err := e.cfg.Sessions.Do(ctx, func(ctx context.Context, conn session.Conn) error {
		res = e.execute(ctx, conn, statement, start)
		return nil
	})
	if err != nil {
		return e.fail(statement, start, err)
	}
	return res
}

// execute runs one statement on an already-acquired session. The payload
// branches on whether the execution actually produced rows, not on the
// statement's leading keyword, so row-producing statements like
// WITH ... SELECT or INSERT ... RETURNING serialize their result set rather
// than collapsing into a rows-affected message.
func (e *Executor) execute(ctx context.Context, conn session.Conn, statement string, start time.Time) Result {
	rows, err := conn.Query(ctx, statement)
	if err != nil {
		return e.fail(statement, start, err)
	}

	if len(rows.Columns()) == 0 {
		return e.finishCommand(statement, start, rows)
	}
	return e.finishRows(statement, start, rows)
}

func (e *Executor) finishRows(statement string, start time.Time, rows session.Rows) Result {
	docs, err := collectRows(rows)
	if err != nil {
		return e.fail(statement, start, err)
	}
	payload, err := json.Marshal(docs)
	if err != nil {
		return e.fail(statement, start, err)
	}

	var sample map[string]any
	if len(docs) > 0 {
		sample = docs[0]
	}
	e.cfg.Catalog.Observe(statement, sample)
	e.cfg.Cache.Store(statement, payload)

	duration := e.cfg.Clock.Since(start)
	e.appendHistory(statement, duration)
	metrics.StatementsTotal.WithLabelValues("success").Inc()
	metrics.StatementDuration.Observe(duration.Seconds())
	e.log.Info("executor: statement executed", "statement", statement, "rows", len(docs), "duration", duration)

	return Result{
		QueryResult: json.RawMessage(payload),
		Schema:      e.cfg.Catalog.Snapshot(),
		AllQueries:  e.timings(),
	}
}

func (e *Executor) finishCommand(statement string, start time.Time, rows session.Rows) Result {
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return e.fail(statement, start, err)
	}
	rows.Close()
	affected := rows.RowsAffected()

	e.cfg.Catalog.Observe(statement, nil)

	duration := e.cfg.Clock.Since(start)
	e.appendHistory(statement, duration)
	metrics.StatementsTotal.WithLabelValues("success").Inc()
	metrics.StatementDuration.Observe(duration.Seconds())
	e.log.Info("executor: statement executed", "statement", statement, "rowsAffected", affected, "duration", duration)

	return Result{
		QueryResult: fmt.Sprintf("Query executed successfully. Rows affected: %d", affected),
		Schema:      e.cfg.Catalog.Snapshot(),
		AllQueries:  e.timings(),
	}
}

func (e *Executor) fail(statement string, start time.Time, err error) Result {
	duration := e.cfg.Clock.Since(start)
	e.appendHistory(statement, duration)
	metrics.StatementsTotal.WithLabelValues("error").Inc()
	metrics.StatementDuration.Observe(duration.Seconds())
	e.log.Error("executor: statement failed", "statement", statement, "error", err, "duration", duration)

	return Result{
		Error:      err.Error(),
		Schema:     e.cfg.Catalog.Snapshot(),
		AllQueries: e.timings(),
	}
}

func (e *Executor) appendHistory(statement string, duration time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, record{
		statement: statement,
		seconds:   duration.Seconds(),
		timestamp: e.cfg.Clock.Now(),
	})
}

func (e *Executor) timings() []Timing {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Timing, len(e.history))
	for i, r := range e.history {
		out[i] = Timing{Statement: r.statement, Seconds: r.seconds}
	}
	return out
}

// collectRows drains a result set into row documents, converting byte
// slices to strings so the payload serializes as readable JSON.
func collectRows(rows session.Rows) ([]map[string]any, error) {
	defer rows.Close()

	columns := rows.Columns()
	docs := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		doc := make(map[string]any, len(columns))
		for i, col := range columns {
			if i >= len(values) {
				break
			}
			switch v := values[i].(type) {
			case []byte:
				doc[col] = string(v)
			default:
				doc[col] = values[i]
			}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return docs, nil
}
