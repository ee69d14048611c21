package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionsCounter(t *testing.T) {
	before := testutil.ToFloat64(TransitionsTotal.WithLabelValues("Active", "success"))
	TransitionsTotal.WithLabelValues("Active", "success").Inc()
	after := testutil.ToFloat64(TransitionsTotal.WithLabelValues("Active", "success"))

	assert.Equal(t, before+1, after)
}

func TestWriteTextfile(t *testing.T) {
	CooldownsTotal.Inc()
	SnapshotArtifacts.Set(14)

	path := filepath.Join(t.TempDir(), "elementstates.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.Contains(text, "elementstates_cooldowns_total"))
	assert.True(t, strings.Contains(text, "elementstates_snapshot_artifacts 14"))
}

