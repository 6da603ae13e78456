package server

import (
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/agentlake/sqlgate/internal/catalog"
)

func TestSQLGate_Server_ToolSchema_Register(t *testing.T) {
	t.Parallel()

	err := RegisterSchemaTool(testLogger(t), mcp.NewServer(&mcp.Implementation{
		Name:    "Test Server",
		Version: "1.0.0",
	}, nil), &fakeSnapshotter{
		tables: map[string]catalog.Table{
			"users": {
				Columns:       map[string]catalog.Column{"id": {Type: "INT"}},
				Relationships: []string{},
			},
		},
	})
	require.NoError(t, err)
}
