package sqltext

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSQLGate_SQLText_LeadingKeyword(t *testing.T) {
	t.Parallel()

	require.Equal(t, "SELECT", LeadingKeyword("select * from users"))
	require.Equal(t, "INSERT", LeadingKeyword("  INSERT INTO t VALUES (1)"))
	require.Equal(t, "CREATE", LeadingKeyword("\n\tcreate table t (id int)"))
	require.Equal(t, "", LeadingKeyword(""))
	require.Equal(t, "", LeadingKeyword("   \t\n"))
}

func TestSQLGate_SQLText_ReadOnly(t *testing.T) {
	t.Parallel()

	require.True(t, ReadOnly("SELECT 1"))
	require.True(t, ReadOnly("  select count(*) from users"))
	require.True(t, ReadOnly("SeLeCt * FROM t"))

	require.False(t, ReadOnly("INSERT INTO t VALUES (1)"))
	require.False(t, ReadOnly("UPDATE t SET a = 1"))
	require.False(t, ReadOnly("DELETE FROM t"))
	require.False(t, ReadOnly("CREATE TABLE t (id INT)"))
	require.False(t, ReadOnly("WITH x AS (SELECT 1) SELECT * FROM x"))
	require.False(t, ReadOnly(""))
}
