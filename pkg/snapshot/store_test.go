package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/elementstates/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ElementStates")

	s, err := NewStore(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultRetention, s.Retention())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewStore_InvalidRetention(t *testing.T) {
	_, err := NewStore(t.TempDir(), WithRetention(0))
	assert.Error(t, err)
}

func TestWriteAndLoadRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 5, 7, 8, 9, 500, time.Local)
	s, err := NewStore(t.TempDir(), WithClock(fixedClock(now)))
	require.NoError(t, err)

	elements := []*types.Element{
		{Name: "R1", State: types.ElementStateActive},
		{Name: "R2", State: types.ElementStateStopped},
	}

	id, err := s.Write(elements)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05 07#08#09.csv", id.FileName())
	assert.Equal(t, "2024-03-05 07:08:09", id.Display())

	data, err := os.ReadFile(s.Path(id))
	require.NoError(t, err)
	assert.Equal(t, "R1;Active\nR2;Stopped\n", string(data))

	records, err := s.Records(id)
	require.NoError(t, err)
	assert.Equal(t, []types.StateRecord{
		{Name: "R1", State: "Active"},
		{Name: "R2", State: "Stopped"},
	}, records)
}

func TestLoad_SplitsOnFirstDelimiter(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	id := types.NewSnapshotID(time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local))
	content := "enc;oder;Active\nno-delimiter\n\ndecoder;Paused\r\n"
	require.NoError(t, os.WriteFile(s.Path(id), []byte(content), 0644))

	requests, err := s.Load(id)
	require.NoError(t, err)
	require.Len(t, requests, 3)

	assert.Equal(t, "enc", requests[0].Name)
	assert.Equal(t, "oder;Active", requests[0].DesiredState)

	assert.True(t, requests[1].Malformed())
	assert.Equal(t, "no-delimiter", requests[1].Source)

	assert.Equal(t, "decoder", requests[2].Name)
	assert.Equal(t, "Paused", requests[2].DesiredState)
}

func TestLoad_NotFound(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Load(types.NewSnapshotID(time.Now()))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_EmptyDirectory(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	ids, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = s.Latest()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_NewestFirst(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	for _, name := range []string{
		"2024-01-02 00#00#00.csv",
		"2023-12-31 23#59#59.csv",
		"2024-01-01 12#00#00.csv",
		"notes.txt",
		"garbage.csv",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	ids, err := s.List()
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.Equal(t, "2024-01-02 00:00:00", ids[0].Display())
	assert.Equal(t, "2024-01-01 12:00:00", ids[1].Display())
	assert.Equal(t, "2023-12-31 23:59:59", ids[2].Display())

	latest, err := s.Latest()
	require.NoError(t, err)
	assert.Equal(t, ids[0], latest)
}

// Fourteen artifacts exist; dumping a fifteenth deletes exactly the oldest
func TestPrune_RetentionBoundary(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 14; i++ {
		name := time.Date(2024, 1, 1, 0, 0, i, 0, time.Local).Format(types.SnapshotLayout) + ".csv"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x;Active\n"), 0644))
	}

	newest := time.Date(2024, 1, 1, 0, 0, 13, 0, time.Local)
	s, err := NewStore(dir, WithClock(fixedClock(time.Date(2024, 1, 2, 0, 0, 0, 0, time.Local))))
	require.NoError(t, err)

	_, err = s.Write([]*types.Element{{Name: "x", State: types.ElementStateActive}})
	require.NoError(t, err)

	deleted, errs, err := s.Prune()
	require.NoError(t, err)
	assert.Empty(t, errs)
	require.Len(t, deleted, 1)
	assert.Equal(t, "2024-01-01 00#00#00.csv", deleted[0].FileName())

	ids, err := s.List()
	require.NoError(t, err)
	assert.Len(t, ids, 14)

	_, err = os.Stat(filepath.Join(dir, "2024-01-01 00#00#00.csv"))
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(filepath.Join(dir, types.NewSnapshotID(newest).FileName()))
	require.NoError(t, err)
	assert.Equal(t, "x;Active\n", string(data), "newest pre-existing artifact is untouched")
}

func TestPrune_UnderRetention(t *testing.T) {
	s, err := NewStore(t.TempDir(), WithClock(fixedClock(time.Now())))
	require.NoError(t, err)

	_, err = s.Write(nil)
	require.NoError(t, err)

	deleted, errs, err := s.Prune()
	require.NoError(t, err)
	assert.Empty(t, deleted)
	assert.Empty(t, errs)
}

func TestPrune_FailureDoesNotStopSweep(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		name := time.Date(2024, 1, 1, 0, 0, i, 0, time.Local).Format(types.SnapshotLayout) + ".csv"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	s, err := NewStore(dir, WithRetention(2))
	require.NoError(t, err)

	var attempted []string
	s.remove = func(path string) error {
		attempted = append(attempted, filepath.Base(path))
		if filepath.Base(path) == "2024-01-01 00#00#00.csv" {
			return errors.New("permission denied")
		}
		return os.Remove(path)
	}

	deleted, errs, err := s.Prune()
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Len(t, deleted, 2)
	assert.Equal(t, []string{
		"2024-01-01 00#00#00.csv",
		"2024-01-01 00#00#01.csv",
		"2024-01-01 00#00#02.csv",
	}, attempted, "deletion is oldest first, one at a time")
}

func TestPrune_UnreadableDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")
	s, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	deleted, errs, err := s.Prune()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read snapshot directory")
	assert.Empty(t, deleted)
	assert.Empty(t, errs)
}

func TestParseRecord(t *testing.T) {
	tests := []struct {
		line      string
		name      string
		state     string
		malformed bool
	}{
		{"encoder;Active", "encoder", "Active", false},
		{"encoder;", "encoder", "", false},
		{";Active", "", "", true},
		{"encoder", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			r := ParseRecord(tt.line)
			assert.Equal(t, tt.malformed, r.Malformed())
			assert.Equal(t, tt.name, r.Name)
			assert.Equal(t, tt.state, r.DesiredState)
			assert.Equal(t, tt.line, r.Source)
		})
	}
}
