package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agentlake/sqlgate/internal/sqltext"
)

// observation is the result of one best-effort parse pass, fed into the
// catalog merge.
type observation struct {
	table         string
	columns       map[string]Column
	relationships []string

	// requireExisting skips the merge when the table is not yet known
	// (ALTER before CREATE is not recovered).
	requireExisting bool
}

var (
	createTableRe = regexp.MustCompile(`(?is)^\s*CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?([A-Za-z0-9_."]+)`)
	alterTableRe  = regexp.MustCompile(`(?is)^\s*ALTER\s+TABLE\s+(?:ONLY\s+)?([A-Za-z0-9_."]+)\s+ADD\s+(?:COLUMN\s+)?(?:IF\s+NOT\s+EXISTS\s+)?("?[A-Za-z0-9_]+"?)\s+([A-Za-z0-9_()\[\],]+)`)
	selectFromRe  = regexp.MustCompile(`(?is)\bFROM\s+([A-Za-z0-9_."]+)`)
	referencesRe  = regexp.MustCompile(`(?is)\bREFERENCES\s+([A-Za-z0-9_."]+)`)
	foreignKeyRe  = regexp.MustCompile(`(?is)^\s*FOREIGN\s+KEY\s*\(([^)]*)\)\s*REFERENCES\s+([A-Za-z0-9_."]+)`)
)

// constraintKeywords begin table-level fragments that are not column
// definitions.
var constraintKeywords = map[string]bool{
	"PRIMARY":    true,
	"FOREIGN":    true,
	"UNIQUE":     true,
	"CONSTRAINT": true,
	"CHECK":      true,
	"EXCLUDE":    true,
	"KEY":        true,
	"INDEX":      true,
	"LIKE":       true,
}

func parseStatement(statement string, sample map[string]any) (*observation, error) {
	switch sqltext.LeadingKeyword(statement) {
	case "CREATE":
		return parseCreateTable(statement)
	case "ALTER":
		return parseAlterTable(statement)
	case "SELECT":
		return inferFromSample(statement, sample), nil
	default:
		return nil, nil
	}
}

// parseCreateTable extracts the table name and column definitions from a
// CREATE TABLE statement. Fragments that don't scan as a column definition
// are skipped, not fatal.
func parseCreateTable(statement string) (*observation, error) {
	m := createTableRe.FindStringSubmatch(statement)
	if m == nil {
		// CREATE INDEX, CREATE VIEW, etc.
		return nil, nil
	}
	table := normalizeIdentifier(m[1])

	open := strings.Index(statement, "(")
	clos := strings.LastIndex(statement, ")")
	if open < 0 || clos < open {
		return nil, fmt.Errorf("create table %q: no column definition list", table)
	}
	body := statement[open+1 : clos]

	obs := &observation{
		table:   table,
		columns: make(map[string]Column),
	}
	for _, fragment := range splitTopLevel(body) {
		fields := strings.Fields(fragment)
		if len(fields) < 2 {
			continue
		}
		if fk := foreignKeyRe.FindStringSubmatch(fragment); fk != nil {
			for _, col := range strings.Split(fk[1], ",") {
				obs.relationships = append(obs.relationships,
					fmt.Sprintf("%s references %s", normalizeIdentifier(col), normalizeIdentifier(fk[2])))
			}
			continue
		}
		if constraintKeywords[strings.ToUpper(fields[0])] {
			continue
		}
		name := normalizeIdentifier(fields[0])
		obs.columns[name] = Column{Type: strings.ToUpper(fields[1])}
		if ref := referencesRe.FindStringSubmatch(fragment); ref != nil {
			obs.relationships = append(obs.relationships,
				fmt.Sprintf("%s references %s", name, normalizeIdentifier(ref[1])))
		}
	}
	return obs, nil
}

// parseAlterTable extracts a single added column from an ALTER TABLE ...
// ADD COLUMN statement. Other ALTER forms are ignored.
func parseAlterTable(statement string) (*observation, error) {
	m := alterTableRe.FindStringSubmatch(statement)
	if m == nil {
		return nil, nil
	}
	return &observation{
		table: normalizeIdentifier(m[1]),
		columns: map[string]Column{
			normalizeIdentifier(m[2]): {Type: strings.ToUpper(m[3])},
		},
		requireExisting: true,
	}, nil
}

// inferFromSample synthesizes inferred columns for the statement's FROM
// table using the field names of a sampled result row. Inference always
// carries the placeholder type and never overtakes a declared column.
func inferFromSample(statement string, sample map[string]any) *observation {
	if len(sample) == 0 {
		return nil
	}
	m := selectFromRe.FindStringSubmatch(statement)
	if m == nil {
		return nil
	}
	obs := &observation{
		table:   normalizeIdentifier(m[1]),
		columns: make(map[string]Column, len(sample)),
	}
	for name := range sample {
		obs.columns[name] = Column{Type: PlaceholderType, Inferred: true}
	}
	return obs
}

// splitTopLevel splits a column definition list on commas that are not
// nested inside parentheses, so types like NUMERIC(10,2) stay intact.
func splitTopLevel(body string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range body {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, body[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, body[start:])
	return parts
}

func normalizeIdentifier(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	s = strings.TrimSuffix(s, ";")
	return strings.ToLower(s)
}
