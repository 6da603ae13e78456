package catalog

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newCatalogForTest(t *testing.T) *Catalog {
	t.Helper()
	return newCatalogAt(t, filepath.Join(t.TempDir(), "catalog.json"))
}

func newCatalogAt(t *testing.T, path string) *Catalog {
	t.Helper()
	c, err := New(&Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Path:   path,
	})
	require.NoError(t, err)
	return c
}

func TestSQLGate_Catalog_ConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	require.Error(t, cfg.Validate())

	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	require.Error(t, cfg.Validate())

	cfg.Path = filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, cfg.Validate())
}

func TestSQLGate_Catalog_ObserveCreateTable(t *testing.T) {
	t.Parallel()

	c := newCatalogForTest(t)
	c.Observe("CREATE TABLE users (id INT PRIMARY KEY, name TEXT, balance NUMERIC(10,2))", nil)

	snap := c.Snapshot()
	require.Contains(t, snap, "users")
	require.Equal(t, Column{Type: "INT"}, snap["users"].Columns["id"])
	require.Equal(t, Column{Type: "TEXT"}, snap["users"].Columns["name"])
	require.Equal(t, Column{Type: "NUMERIC(10,2)"}, snap["users"].Columns["balance"])
}

func TestSQLGate_Catalog_ObserveCreateTableSkipsConstraints(t *testing.T) {
	t.Parallel()

	c := newCatalogForTest(t)
	c.Observe(`CREATE TABLE orders (
		id INT,
		user_id INT REFERENCES users(id),
		PRIMARY KEY (id),
		FOREIGN KEY (user_id) REFERENCES users(id),
		CHECK (id > 0)
	)`, nil)

	snap := c.Snapshot()
	require.Contains(t, snap, "orders")
	require.Len(t, snap["orders"].Columns, 2)
	require.Equal(t, "INT", snap["orders"].Columns["id"].Type)
	require.Contains(t, snap["orders"].Relationships, "user_id references users")
}

func TestSQLGate_Catalog_ObserveAlterTable(t *testing.T) {
	t.Parallel()

	c := newCatalogForTest(t)
	c.Observe("CREATE TABLE users (id INT)", nil)
	c.Observe("ALTER TABLE users ADD COLUMN email VARCHAR(255)", nil)

	snap := c.Snapshot()
	require.Equal(t, "VARCHAR(255)", snap["users"].Columns["email"].Type)
	require.Equal(t, "INT", snap["users"].Columns["id"].Type)
}

func TestSQLGate_Catalog_AlterBeforeCreateIsNoOp(t *testing.T) {
	t.Parallel()

	c := newCatalogForTest(t)
	c.Observe("ALTER TABLE ghosts ADD COLUMN name TEXT", nil)

	require.Empty(t, c.Snapshot())
}

func TestSQLGate_Catalog_DeclaredTypesTakePrecedence(t *testing.T) {
	t.Parallel()

	c := newCatalogForTest(t)
	c.Observe("CREATE TABLE t (id INT)", nil)
	c.Observe("SELECT * FROM t", map[string]any{"id": "5", "name": "x"})

	snap := c.Snapshot()
	require.Equal(t, Column{Type: "INT"}, snap["t"].Columns["id"])
	require.Equal(t, Column{Type: PlaceholderType, Inferred: true}, snap["t"].Columns["name"])

	// And a later declaration upgrades a previously inferred column.
	c.Observe("ALTER TABLE t ADD COLUMN name TEXT", nil)
	snap = c.Snapshot()
	require.Equal(t, Column{Type: "TEXT"}, snap["t"].Columns["name"])
}

func TestSQLGate_Catalog_InferenceSynthesizesUnknownTable(t *testing.T) {
	t.Parallel()

	c := newCatalogForTest(t)
	c.Observe("SELECT id, name FROM customers WHERE id = 1", map[string]any{"id": int64(1), "name": "a"})

	snap := c.Snapshot()
	require.Contains(t, snap, "customers")
	require.Equal(t, Column{Type: PlaceholderType, Inferred: true}, snap["customers"].Columns["id"])
	require.Equal(t, Column{Type: PlaceholderType, Inferred: true}, snap["customers"].Columns["name"])
}

func TestSQLGate_Catalog_SelectWithoutSampleIsNoOp(t *testing.T) {
	t.Parallel()

	c := newCatalogForTest(t)
	c.Observe("SELECT * FROM empty_table", nil)
	require.Empty(t, c.Snapshot())
}

func TestSQLGate_Catalog_NonDDLStatementsIgnored(t *testing.T) {
	t.Parallel()

	c := newCatalogForTest(t)
	c.Observe("INSERT INTO users VALUES (1, 'a')", nil)
	c.Observe("DROP TABLE users", nil)
	c.Observe("CREATE INDEX idx_users ON users (id)", nil)
	require.Empty(t, c.Snapshot())
}

func TestSQLGate_Catalog_UnparseableCreateDoesNotPanic(t *testing.T) {
	t.Parallel()

	c := newCatalogForTest(t)
	c.Observe("CREATE TABLE broken", nil)
	require.Empty(t, c.Snapshot())
}

func TestSQLGate_Catalog_PersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.json")

	first := newCatalogAt(t, path)
	first.Observe("CREATE TABLE users (id INT, name TEXT)", nil)

	second := newCatalogAt(t, path)
	snap := second.Snapshot()
	require.Contains(t, snap, "users")
	require.Equal(t, "INT", snap["users"].Columns["id"].Type)
	require.Equal(t, "TEXT", snap["users"].Columns["name"].Type)
}

func TestSQLGate_Catalog_CorruptFileStartsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	c := newCatalogAt(t, path)
	require.Empty(t, c.Snapshot())

	// The next observation rewrites a valid file.
	c.Observe("CREATE TABLE t (id INT)", nil)
	reloaded := newCatalogAt(t, path)
	require.Contains(t, reloaded.Snapshot(), "t")
}

func TestSQLGate_Catalog_SnapshotIsACopy(t *testing.T) {
	t.Parallel()

	c := newCatalogForTest(t)
	c.Observe("CREATE TABLE t (id INT)", nil)

	snap := c.Snapshot()
	snap["t"].Columns["id"] = Column{Type: "HACKED"}
	delete(snap, "t")

	require.Equal(t, "INT", c.Snapshot()["t"].Columns["id"].Type)
}
