package prompt

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/elementstates/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotOptions(t *testing.T) {
	ids := []types.SnapshotID{
		types.NewSnapshotID(time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)),
		types.NewSnapshotID(time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)),
	}
	assert.Equal(t, []string{"2024-01-02 03:04:05", "2024-01-01 00:00:00"}, SnapshotOptions(ids))
}

func TestAgentOptions(t *testing.T) {
	agents := []*types.Agent{
		{ID: 1, Name: "dma-a", IsFailover: true},
		{ID: 7, Name: ""},
	}
	options, selected := AgentOptions(agents)
	require.Len(t, options, 2)
	assert.Equal(t, []int{1, 7}, selected)
	assert.Equal(t, "dma-a (1) [failover]", options[0].Key)
	assert.Equal(t, "agent (7)", options[1].Key)
	assert.Equal(t, 7, options[1].Value)
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantErr bool
	}{
		{"valid", "2024-01-01 00:00:00", "2024-01-02 00:00:00", false},
		{"bad start", "yesterday", "2024-01-02 00:00:00", true},
		{"bad end", "2024-01-01 00:00:00", "2024-01-02", true},
		{"inverted", "2024-01-02 00:00:00", "2024-01-01 00:00:00", true},
		{"empty", "2024-01-01 00:00:00", "2024-01-01 00:00:00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := ParseWindow(tt.from, tt.to, []int{2, 1})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []int{1, 2}, w.AgentIDs())
			assert.Equal(t, 24*time.Hour, w.End.Sub(w.Start))
		})
	}
}

func TestRenderResult(t *testing.T) {
	out := RenderResult("Element states dump completed.")
	assert.Contains(t, out, "Element states dump completed.")
	assert.Contains(t, out, "Element states")
}

func TestShowResult(t *testing.T) {
	var buf bytes.Buffer
	p := NewHuhPrompter(nil, &buf, true)
	p.ShowResult("No agents were selected")
	assert.Contains(t, buf.String(), "No agents were selected")
}

func TestChooseSnapshot_NoArtifacts(t *testing.T) {
	p := NewHuhPrompter(nil, &bytes.Buffer{}, true)
	_, ok, err := p.ChooseSnapshot(nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInteractive_RegularFile(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "stdin"))
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, Interactive(f))
}
