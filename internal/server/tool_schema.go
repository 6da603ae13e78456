package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentlake/sqlgate/internal/catalog"
	"github.com/agentlake/sqlgate/internal/metrics"
)

type SchemaInput struct{}

type SchemaOutput struct {
	Schema map[string]catalog.Table `json:"schema"`
}

// RegisterSchemaTool registers a tool that returns the current schema
// catalog, so the agent can discover table structure without re-running
// exploratory queries.
func RegisterSchemaTool(log *slog.Logger, server *mcp.Server, snapshotter SchemaSnapshotter) error {
	req, err := jsonschema.For[SchemaInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create schema input schema: %w", err)
	}

	res, err := jsonschema.For[SchemaOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create schema output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         "schema",
		Description:  "Return the accumulated table/column knowledge of the database, learned from executed statements.",
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ SchemaInput) (*mcp.CallToolResult, SchemaOutput, error) {
		startTime := time.Now()

		log.Debug("mcp/tool: handling schema")

		out := SchemaOutput{Schema: snapshotter.Snapshot()}
		duration := time.Since(startTime).Seconds()

		metrics.ToolCallsTotal.WithLabelValues("schema", "success").Inc()
		metrics.ToolCallDuration.WithLabelValues("schema").Observe(duration)
		return nil, out, nil
	})
	return nil
}
