// Package catalog accumulates best-effort knowledge of the database's
// table/column structure by parsing executed statements and sampling query
// results. The catalog is persisted to a JSON file after every mutation so
// it survives process restarts.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/agentlake/sqlgate/internal/metrics"
)

// PlaceholderType labels columns whose type was inferred from sampled row
// data rather than declared by DDL.
const PlaceholderType = "unknown"

// Column is one column's accumulated knowledge. Declared types (from
// CREATE/ALTER parsing) take precedence and are never overwritten by
// inferred ones.
type Column struct {
	Type     string `json:"type"`
	Inferred bool   `json:"inferred,omitempty"`
}

// Table is the catalog entry for one table.
type Table struct {
	Columns       map[string]Column `json:"columns"`
	Relationships []string          `json:"relationships"`
}

type Config struct {
	Logger *slog.Logger

	// Path is the JSON file holding the serialized catalog. Loaded at
	// startup if present, overwritten wholesale after each mutation.
	Path string
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Path == "" {
		return errors.New("path is required")
	}
	return nil
}

type Catalog struct {
	log  *slog.Logger
	path string

	mu     sync.Mutex
	tables map[string]*Table
}

func New(cfg *Config) (*Catalog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog config: %w", err)
	}
	c := &Catalog{
		log:    cfg.Logger,
		path:   cfg.Path,
		tables: make(map[string]*Table),
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

// Observe updates the catalog from an executed statement and, for read-only
// statements, an optional first-row sample. Parse failures are logged and
// swallowed; they must never affect the caller's statement execution.
func (c *Catalog) Observe(statement string, sample map[string]any) {
	obs, err := parseStatement(statement, sample)
	if err != nil {
		c.log.Warn("catalog: failed to parse statement", "error", err)
		return
	}
	if obs == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.mergeLocked(obs)
	metrics.CatalogTables.Set(float64(len(c.tables)))

	if err := c.persistLocked(); err != nil {
		metrics.CatalogPersistFailuresTotal.Inc()
		c.log.Error("catalog: failed to persist", "error", err, "path", c.path)
	}
}

// Snapshot returns a deep copy of the current catalog.
func (c *Catalog) Snapshot() map[string]Table {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]Table, len(c.tables))
	for name, table := range c.tables {
		columns := make(map[string]Column, len(table.Columns))
		for col, info := range table.Columns {
			columns[col] = info
		}
		relationships := make([]string, len(table.Relationships))
		copy(relationships, table.Relationships)
		out[name] = Table{Columns: columns, Relationships: relationships}
	}
	return out
}

// mergeLocked unions an observation into the catalog. New columns are
// added; an existing column's type is only replaced when a declared type
// arrives for a previously inferred column, never the other way around.
func (c *Catalog) mergeLocked(obs *observation) {
	table := c.tables[obs.table]
	if table == nil {
		if obs.requireExisting {
			c.log.Debug("catalog: skipping observation for unknown table", "table", obs.table)
			return
		}
		table = &Table{
			Columns:       make(map[string]Column),
			Relationships: []string{},
		}
		c.tables[obs.table] = table
	}

	for name, col := range obs.columns {
		existing, ok := table.Columns[name]
		if !ok {
			table.Columns[name] = col
			continue
		}
		if existing.Inferred && !col.Inferred {
			table.Columns[name] = col
		}
	}

	for _, rel := range obs.relationships {
		if !contains(table.Relationships, rel) {
			table.Relationships = append(table.Relationships, rel)
		}
	}
}

func (c *Catalog) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read catalog file: %w", err)
	}
	var tables map[string]*Table
	if err := json.Unmarshal(data, &tables); err != nil {
		// A corrupt file is not fatal; the catalog is best-effort and will
		// be rebuilt and rewritten on the next observation.
		c.log.Warn("catalog: ignoring unparseable catalog file", "error", err, "path", c.path)
		return nil
	}
	for name, table := range tables {
		if table == nil {
			continue
		}
		if table.Columns == nil {
			table.Columns = make(map[string]Column)
		}
		if table.Relationships == nil {
			table.Relationships = []string{}
		}
		c.tables[name] = table
	}
	c.log.Info("catalog: loaded", "path", c.path, "tables", len(c.tables))
	return nil
}

// persistLocked writes the whole catalog atomically via a temp file rename,
// so a crash mid-write cannot corrupt the previous state.
func (c *Catalog) persistLocked() error {
	data, err := json.Marshal(c.tables)
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create catalog directory: %w", err)
	}
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp catalog file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename catalog file: %w", err)
	}
	return nil
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
