package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linksweep/linksweep/pkg/linksweep/report"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRun(cycle, orphans int) *report.RunReport {
	return &report.RunReport{
		Cycle:    cycle,
		Started:  time.Now().UTC(),
		Finished: time.Now().UTC(),
		DryRun:   true,
		Instances: []*report.InstanceReport{
			{Instance: "radarr", Orphans: orphans},
		},
	}
}

func TestSaveAndRecent(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveRun(sampleRun(1, 3)))
	time.Sleep(2 * time.Millisecond) // distinct timestamps in keys
	require.NoError(t, s.SaveRun(sampleRun(2, 0)))

	records, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	assert.Equal(t, 2, records[0].Run.Cycle)
	assert.Equal(t, 1, records[1].Run.Cycle)
	assert.Equal(t, 3, records[1].Run.TotalOrphans())
	assert.NotEmpty(t, records[0].ID)
}

func TestRecentLimit(t *testing.T) {
	s := openTestStore(t)

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.SaveRun(sampleRun(i, 0)))
		time.Sleep(2 * time.Millisecond)
	}

	records, err := s.Recent(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 5, records[0].Run.Cycle)
}

func TestRecentEmptyStore(t *testing.T) {
	s := openTestStore(t)
	records, err := s.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPruneKeepsFreshRecords(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveRun(sampleRun(1, 0)))

	deleted, err := s.Prune(30)
	require.NoError(t, err)
	assert.Zero(t, deleted, "fresh records must survive pruning")

	records, err := s.Recent(10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestPruneDisabled(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveRun(sampleRun(1, 0)))

	deleted, err := s.Prune(0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
