package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/extrahours/auth"
	"github.com/warp/extrahours/generic"
	"github.com/warp/extrahours/overtime"
	"github.com/warp/extrahours/store/memory"
	"github.com/warp/extrahours/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var created = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

func session(id string, user overtime.UserID, date, start, end, desc string) overtime.WorkSession {
	d, _ := generic.ParseDate(date)
	s, _ := generic.ParseClockTime(start)
	e, _ := generic.ParseClockTime(end)
	return overtime.WorkSession{
		ID: id, UserID: user, Date: d, Start: s, End: e, Description: desc,
		CreatedAt: created, UpdatedAt: created,
	}
}

func usage(id string, user overtime.UserID, date, hours string) overtime.UsageRecord {
	d, _ := generic.ParseDate(date)
	return overtime.UsageRecord{
		ID: id, UserID: user, Date: d, HoursUsed: generic.MustParseHours(hours),
		BankID: overtime.BankSentinel, CreatedAt: created, UpdatedAt: created,
	}
}

// =============================================================================
// WORK SESSIONS
// =============================================================================

func TestSessions_RoundTripAndOrdering(t *testing.T) {
	// GIVEN: Two sessions on different days
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, session("s1", "alice", "2024-01-01", "09:00", "18:30", "Release")))
	require.NoError(t, store.CreateSession(ctx, session("s2", "alice", "2024-01-03", "08:00", "17:00", "")))

	// WHEN: Listing them
	got, err := store.ListSessions(ctx, "alice", overtime.Filter{})
	require.NoError(t, err)

	// THEN: Newest date first, every field survives
	require.Len(t, got, 2)
	assert.Equal(t, "s2", got[0].ID)
	assert.Equal(t, "s1", got[1].ID)
	assert.Equal(t, "2024-01-01", got[1].Date.String())
	assert.Equal(t, "09:00", got[1].Start.String())
	assert.Equal(t, "18:30", got[1].End.String())
	assert.Equal(t, "Release", got[1].Description)
	assert.True(t, got[1].CreatedAt.Equal(created))
}

func TestSessions_Filter(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, session("s1", "alice", "2024-01-01", "09:00", "18:00", "Quarter CLOSE")))
	require.NoError(t, store.CreateSession(ctx, session("s2", "alice", "2024-01-02", "09:00", "18:00", "standup")))

	byDesc, err := store.ListSessions(ctx, "alice", overtime.Filter{Description: "close"})
	require.NoError(t, err)
	require.Len(t, byDesc, 1)
	assert.Equal(t, "s1", byDesc[0].ID)

	day := generic.NewDate(2024, time.January, 2)
	byDate, err := store.ListSessions(ctx, "alice", overtime.Filter{Date: &day})
	require.NoError(t, err)
	require.Len(t, byDate, 1)
	assert.Equal(t, "s2", byDate[0].ID)

	// LIKE wildcards are matched literally
	none, err := store.ListSessions(ctx, "alice", overtime.Filter{Description: "%"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFilter_FoldsUnicodeLikeMemoryStore(t *testing.T) {
	ctx := context.Background()
	stores := map[string]overtime.Store{
		"sqlite": newStore(t),
		"memory": memory.New(),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.CreateSession(ctx, session("s1", "alice", "2024-01-01", "09:00", "18:00", "REUNIÃO de equipe")))
			require.NoError(t, store.CreateUsage(ctx, usage("u1", "alice", "2024-01-02", "1")))

			sessions, err := store.ListSessions(ctx, "alice", overtime.Filter{Description: "reunião"})
			require.NoError(t, err)
			assert.Len(t, sessions, 1)

			// Records without a description never match
			usages, err := store.ListUsage(ctx, "alice", overtime.Filter{Description: "reunião"})
			require.NoError(t, err)
			assert.Empty(t, usages)
		})
	}
}

func TestScan_RejectsCorruptTimestamps(t *testing.T) {
	// GIVEN: A file database with one session and one usage record
	path := filepath.Join(t.TempDir(), "extrahours.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.CreateSession(ctx, session("s1", "alice", "2024-01-01", "09:00", "18:00", "")))
	require.NoError(t, store.CreateUsage(ctx, usage("u1", "alice", "2024-01-02", "1")))

	// WHEN: Their timestamps are overwritten out of band
	raw, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.Exec(`UPDATE work_sessions SET created_at = 'yesterday'`)
	require.NoError(t, err)
	_, err = raw.Exec(`UPDATE extra_hours_usage SET updated_at = ''`)
	require.NoError(t, err)

	// THEN: Reads fail instead of returning zero times
	_, err = store.ListSessions(ctx, "alice", overtime.Filter{})
	assert.ErrorContains(t, err, "created_at")
	_, err = store.ListUsage(ctx, "alice", overtime.Filter{})
	assert.ErrorContains(t, err, "updated_at")
}

func TestSessions_OwnershipScoping(t *testing.T) {
	// GIVEN: A session owned by alice
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateSession(ctx, session("s1", "alice", "2024-01-01", "09:00", "18:00", "")))

	// THEN: Bob can neither read, update nor delete it
	got, err := store.GetSession(ctx, "bob", "s1")
	require.NoError(t, err)
	assert.Nil(t, got)

	hijack := session("s1", "bob", "2024-01-01", "09:00", "23:00", "")
	ok, err := store.UpdateSession(ctx, hijack)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.DeleteSession(ctx, "bob", "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := store.ListSessions(ctx, "bob", overtime.Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	// AND: Alice still can
	ok, err = store.DeleteSession(ctx, "alice", "s1")
	require.NoError(t, err)
	assert.True(t, ok)
}

// =============================================================================
// USAGE RECORDS
// =============================================================================

func TestUsage_DecimalRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUsage(ctx, usage("u1", "alice", "2024-02-01", "4.65")))

	got, err := store.GetUsage(ctx, "alice", "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.HoursUsed.Equal(generic.MustParseHours("4.65")), "got %s", got.HoursUsed.Value)
	assert.Equal(t, overtime.BankSentinel, got.BankID)
}

func TestUsage_UpdateAndDelete(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateUsage(ctx, usage("u1", "alice", "2024-02-01", "1")))

	edited := usage("u1", "alice", "2024-02-02", "0.5")
	edited.Description = "dentist"
	ok, err := store.UpdateUsage(ctx, edited)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := store.ListUsage(ctx, "alice", overtime.Filter{Description: "DENT"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "2024-02-02", list[0].Date.String())

	ok, err = store.DeleteUsage(ctx, "alice", "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.DeleteUsage(ctx, "alice", "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

// =============================================================================
// SCOPED EXECUTION
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that writes and then fails
	store := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx overtime.Store) error {
		if err := tx.CreateUsage(ctx, usage("u1", "alice", "2024-02-01", "1")); err != nil {
			return err
		}
		return boom
	})

	// THEN: The error surfaces and nothing was written
	assert.ErrorIs(t, err, boom)
	got, err := store.GetUsage(ctx, "alice", "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestWithTx_NestedRunsInSameScope(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx overtime.Store) error {
		return tx.(overtime.TxStore).WithTx(ctx, func(inner overtime.Store) error {
			return inner.CreateSession(ctx, session("s1", "alice", "2024-01-01", "09:00", "18:00", ""))
		})
	})
	require.NoError(t, err)

	got, err := store.GetSession(ctx, "alice", "s1")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestBatch_ReleasesConnection(t *testing.T) {
	// GIVEN: Single-connection in-memory pool
	store := newStore(t)
	ctx := context.Background()

	// WHEN: A batch fails midway
	err := store.Batch(ctx, func(st overtime.Store) error {
		_, err := st.Owners(ctx)
		require.NoError(t, err)
		return errors.New("interrupted")
	})
	require.Error(t, err)

	// THEN: The connection is back in the pool and usable
	require.NoError(t, store.CreateSession(ctx, session("s1", "alice", "2024-01-01", "09:00", "18:00", "")))
}

// =============================================================================
// MAINTENANCE
// =============================================================================

func TestOwnersNormalizeAndHeartbeat(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, session("s1", "carol", "2024-01-01", "09:00", "18:00", "")))
	stray := usage("u1", "alice", "2024-01-02", "1")
	stray.BankID = "bank-legacy-7"
	require.NoError(t, store.CreateUsage(ctx, stray))
	require.NoError(t, store.CreateUsage(ctx, usage("u2", "carol", "2024-01-02", "1")))

	owners, err := store.Owners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []overtime.UserID{"alice", "carol"}, owners)

	n, err := store.NormalizeBankIDs(ctx, overtime.BankSentinel)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	fixed, err := store.GetUsage(ctx, "alice", "u1")
	require.NoError(t, err)
	assert.Equal(t, overtime.BankSentinel, fixed.BankID)

	missing, err := store.LastHeartbeat(ctx, "job")
	require.NoError(t, err)
	assert.Nil(t, missing)

	first := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.TouchHeartbeat(ctx, "job", first))
	require.NoError(t, store.TouchHeartbeat(ctx, "job", first.Add(time.Hour)))

	last, err := store.LastHeartbeat(ctx, "job")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(first.Add(time.Hour)))
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestConcurrentUsage_CannotOverdraw(t *testing.T) {
	// GIVEN: A file database and 1.5h available (09:00-18:30)
	store, err := sqlite.New(filepath.Join(t.TempDir(), "extrahours.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.CreateSession(ctx, session("s1", "alice", "2024-01-01", "09:00", "18:30", "")))

	svc := overtime.NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	alice := auth.Principal{UserID: "alice"}

	// WHEN: Two requests race to spend 1h each
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateUsageRecord(ctx, alice, overtime.UsageInput{
				Date:      "2024-01-05",
				HoursUsed: generic.NewHours(1),
			})
		}(i)
	}
	wg.Wait()

	// THEN: Exactly one wins, the other is told hours are insufficient
	var insufficient *overtime.InsufficientHoursError
	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorAs(t, err, &insufficient)
	}
	assert.Equal(t, 1, succeeded)

	snap, err := svc.AvailableExtraHours(ctx, alice)
	require.NoError(t, err)
	assert.True(t, snap.Available.Equal(generic.NewHours(0.5)), "got %s", snap.Available)
}
