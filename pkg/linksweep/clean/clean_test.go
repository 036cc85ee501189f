package clean

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linksweep/linksweep/pkg/linksweep/alldebrid"
	"github.com/linksweep/linksweep/pkg/linksweep/group"
)

func set(paths ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		m[p] = struct{}{}
	}
	return m
}

// fakeDeleter scripts per-unit results: each call pops the next error from
// the unit's queue (nil = success); an exhausted queue keeps succeeding.
type fakeDeleter struct {
	mu      sync.Mutex
	scripts map[string][]error
	calls   []string
}

func (f *fakeDeleter) DeleteUnit(_ context.Context, unit string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, unit)
	queue := f.scripts[unit]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	f.scripts[unit] = queue[1:]
	return err
}

func (f *fakeDeleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func transientErr() error {
	return &alldebrid.APIError{Op: "magnet/delete", Status: 502, Transient: true}
}

func permanentErr() error {
	return &alldebrid.APIError{Op: "magnet/delete", Code: "AUTH_BAD_APIKEY", Message: "bad key"}
}

func fastOpts(retries int, backoff float64) Options {
	return Options{
		RetryAttempts: retries,
		RetryBackoff:  backoff,
		delayUnit:     time.Millisecond,
	}
}

func TestExecuteDryRunMakesNoCalls(t *testing.T) {
	orphans := set("/m/A/1.mkv", "/m/B/1.mkv")
	g := group.Group(orphans, "/m")
	d := &fakeDeleter{scripts: map[string][]error{}}

	outcomes := New(d, fastOpts(3, 2.0)).Execute(context.Background(), g, orphans, true)

	assert.Zero(t, d.callCount(), "dry-run must issue zero external calls")
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Equal(t, StatusSkipped, o.Status)
		assert.Equal(t, "dry-run", o.Reason)
	}
}

func TestExecuteDeletesCompleteUnits(t *testing.T) {
	orphans := set("/m/A/2.mkv", "/m/B/1.mkv")
	mount := set("/m/A/1.mkv", "/m/A/2.mkv", "/m/B/1.mkv")
	g := group.Group(orphans, "/m")
	d := &fakeDeleter{scripts: map[string][]error{}}

	outcomes := New(d, fastOpts(0, 1.0)).Execute(context.Background(), g, mount, false)

	require.Len(t, outcomes, 2)
	// Sorted unit order: A then B.
	assert.Equal(t, "A", outcomes[0].Unit)
	assert.Equal(t, StatusSkipped, outcomes[0].Status, "A is partially linked")
	assert.Equal(t, "partially linked", outcomes[0].Reason)

	assert.Equal(t, "B", outcomes[1].Unit)
	assert.Equal(t, StatusSuccess, outcomes[1].Status)
	assert.Equal(t, []string{"B"}, d.calls, "only the complete unit is deleted")
}

// TestRetryArithmetic verifies retry_attempts=3 means at most 4 calls total.
func TestRetryArithmetic(t *testing.T) {
	orphans := set("/m/A/1.mkv")
	g := group.Group(orphans, "/m")

	t.Run("succeeds on final attempt", func(t *testing.T) {
		d := &fakeDeleter{scripts: map[string][]error{
			"A": {transientErr(), transientErr(), transientErr()},
		}}
		outcomes := New(d, fastOpts(3, 2.0)).Execute(context.Background(), g, orphans, false)
		require.Len(t, outcomes, 1)
		assert.Equal(t, StatusSuccess, outcomes[0].Status)
		assert.Equal(t, 4, outcomes[0].Attempts, "1 initial + 3 retries")
	})

	t.Run("fails when all attempts exhausted", func(t *testing.T) {
		d := &fakeDeleter{scripts: map[string][]error{
			"A": {transientErr(), transientErr(), transientErr(), transientErr()},
		}}
		outcomes := New(d, fastOpts(3, 2.0)).Execute(context.Background(), g, orphans, false)
		require.Len(t, outcomes, 1)
		assert.Equal(t, StatusFailed, outcomes[0].Status)
		assert.Equal(t, 4, d.callCount(), "must stop after 4 total attempts")
	})
}

func TestPermanentErrorNotRetried(t *testing.T) {
	orphans := set("/m/A/1.mkv")
	g := group.Group(orphans, "/m")
	d := &fakeDeleter{scripts: map[string][]error{
		"A": {permanentErr()},
	}}

	outcomes := New(d, fastOpts(3, 2.0)).Execute(context.Background(), g, orphans, false)

	require.Len(t, outcomes, 1)
	assert.Equal(t, StatusFailed, outcomes[0].Status)
	assert.Equal(t, 1, d.callCount(), "permanent failure must not be retried")
}

func TestNotFoundUpstreamIsSkipped(t *testing.T) {
	orphans := set("/m/A/1.mkv")
	g := group.Group(orphans, "/m")
	d := &fakeDeleter{scripts: map[string][]error{
		"A": {ErrNotFound},
	}}

	outcomes := New(d, fastOpts(3, 2.0)).Execute(context.Background(), g, orphans, false)

	require.Len(t, outcomes, 1)
	assert.Equal(t, StatusSkipped, outcomes[0].Status)
	assert.Equal(t, "not found upstream", outcomes[0].Reason)
	assert.Equal(t, 1, d.callCount())
}

func TestFailureIsolation(t *testing.T) {
	orphans := set("/m/A/1.mkv", "/m/B/1.mkv", "/m/C/1.mkv")
	g := group.Group(orphans, "/m")
	d := &fakeDeleter{scripts: map[string][]error{
		"A": {permanentErr()},
	}}

	outcomes := New(d, fastOpts(0, 1.0)).Execute(context.Background(), g, orphans, false)

	require.Len(t, outcomes, 3)
	assert.Equal(t, StatusFailed, outcomes[0].Status)
	assert.Equal(t, StatusSuccess, outcomes[1].Status, "failure on A must not abort B")
	assert.Equal(t, StatusSuccess, outcomes[2].Status, "failure on A must not abort C")
}

func TestCancellationRecordsRemainingUnits(t *testing.T) {
	orphans := set("/m/A/1.mkv", "/m/B/1.mkv", "/m/C/1.mkv")
	g := group.Group(orphans, "/m")

	ctx, cancel := context.WithCancel(context.Background())
	d := &fakeDeleter{scripts: map[string][]error{}}

	// Cancel during the first unit's call; the call itself completes.
	cancelling := &cancelOnFirstCall{inner: d, cancel: cancel}
	outcomes := New(cancelling, fastOpts(0, 1.0)).Execute(ctx, g, orphans, false)

	require.Len(t, outcomes, 3, "every unit must have an outcome")
	assert.Equal(t, StatusSuccess, outcomes[0].Status, "in-flight call finishes")
	for _, o := range outcomes[1:] {
		assert.Equal(t, StatusFailed, o.Status)
		assert.Equal(t, "cancelled", o.Reason)
	}
	assert.Equal(t, 1, d.callCount(), "no new calls after cancellation")
}

type cancelOnFirstCall struct {
	inner  *fakeDeleter
	cancel context.CancelFunc
	once   sync.Once
}

func (c *cancelOnFirstCall) DeleteUnit(ctx context.Context, unit string) error {
	err := c.inner.DeleteUnit(ctx, unit)
	c.once.Do(c.cancel)
	return err
}

func TestRateLimitSpacesCalls(t *testing.T) {
	orphans := set("/m/A/1.mkv", "/m/B/1.mkv", "/m/C/1.mkv")
	g := group.Group(orphans, "/m")
	d := &fakeDeleter{scripts: map[string][]error{}}

	opts := fastOpts(0, 1.0)
	opts.RateLimit = 0.05 // 50ms between calls

	start := time.Now()
	New(d, opts).Execute(context.Background(), g, orphans, false)
	elapsed := time.Since(start)

	// Three calls with 50ms spacing need at least ~100ms.
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond,
		"calls must be spaced by the rate limit")
}

func TestMagnetDeleter(t *testing.T) {
	api := &fakeMagnetAPI{
		magnets: []alldebrid.Magnet{
			{ID: 7, Filename: "Some.Torrent"},
		},
	}
	d := &MagnetDeleter{api: api}

	t.Run("deletes matched unit", func(t *testing.T) {
		require.NoError(t, d.DeleteUnit(context.Background(), "Some.Torrent"))
		assert.Equal(t, []int64{7}, api.deleted)
	})

	t.Run("unknown unit", func(t *testing.T) {
		err := d.DeleteUnit(context.Background(), "Nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("magnet list fetched once", func(t *testing.T) {
		_ = d.DeleteUnit(context.Background(), "Some.Torrent")
		assert.Equal(t, 1, api.listCalls)
	})
}

type fakeMagnetAPI struct {
	magnets   []alldebrid.Magnet
	listCalls int
	deleted   []int64
}

func (f *fakeMagnetAPI) Magnets(context.Context) ([]alldebrid.Magnet, error) {
	f.listCalls++
	return f.magnets, nil
}

func (f *fakeMagnetAPI) DeleteMagnet(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func TestNetworkErrorClassifiedTransient(t *testing.T) {
	assert.True(t, alldebrid.IsTransient(transientErr()))
	assert.False(t, alldebrid.IsTransient(permanentErr()))
	assert.False(t, alldebrid.IsTransient(errors.New("plain error")))
}
