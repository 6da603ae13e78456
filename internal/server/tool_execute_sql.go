package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentlake/sqlgate/internal/metrics"
)

const executeSQLDescription = `
	PURPOSE:
	Execute a SQL statement against the configured PostgreSQL database and return the result.

	USAGE RULES:
	- Explore the database structure before writing queries: the 'schema' field of every
	  response carries the accumulated table/column knowledge, and the 'schema' tool
	  returns it on its own. Do not guess column names.
	- Prefer single, well-constructed queries that return summarized results.
	- Aggregate with 'GROUP BY' and apply 'LIMIT' to keep result sets small.

	RESPONSE:
	A JSON document: 'query_result' (rows for statements that return a result set, a
	rows-affected message otherwise, or 'error'), 'schema' (accumulated catalog), and
	'all_queries' (statement/duration history for this process).

	Identical SELECT statements repeated within a short window are answered from a
	result cache without a database round trip.
`

type ExecuteSQLInput struct {
	SQL string `json:"sql"`
}

func RegisterExecuteSQLTool(log *slog.Logger, server *mcp.Server, runner StatementRunner) error {
	req, err := jsonschema.For[ExecuteSQLInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create execute_sql input schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "execute_sql",
		Description: executeSQLDescription,
		InputSchema: req,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, req ExecuteSQLInput) (*mcp.CallToolResult, any, error) {
		startTime := time.Now()

		log.Debug("mcp/tool: handling execute_sql", "sql", req.SQL)

		payload, status, err := handleExecuteSQL(ctx, runner, req)
		duration := time.Since(startTime).Seconds()

		metrics.ToolCallsTotal.WithLabelValues("execute_sql", status).Inc()
		metrics.ToolCallDuration.WithLabelValues("execute_sql").Observe(duration)

		if err != nil {
			return nil, nil, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
		}, nil, nil
	})
	return nil
}

func handleExecuteSQL(ctx context.Context, runner StatementRunner, req ExecuteSQLInput) ([]byte, string, error) {
	res := runner.Run(ctx, req.SQL)

	status := "success"
	if res.Error != "" {
		status = "error"
	}

	payload, err := json.Marshal(res)
	if err != nil {
		return nil, "error", fmt.Errorf("failed to serialize result: %w", err)
	}
	return payload, status, nil
}
