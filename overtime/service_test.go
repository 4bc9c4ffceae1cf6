package overtime_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/extrahours/auth"
	"github.com/warp/extrahours/generic"
	"github.com/warp/extrahours/overtime"
	"github.com/warp/extrahours/store/memory"
)

var (
	alice = auth.Principal{UserID: "alice", Email: "alice@example.com"}
	bob   = auth.Principal{UserID: "bob"}
)

func newService(t *testing.T) (*overtime.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return overtime.NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func logSession(t *testing.T, svc *overtime.Service, p auth.Principal, date, start, end string) overtime.WorkSession {
	t.Helper()
	s, err := svc.CreateWorkSession(context.Background(), p, overtime.SessionInput{
		Date: date, StartTime: start, EndTime: end,
	})
	require.NoError(t, err)
	return s
}

func spend(svc *overtime.Service, p auth.Principal, date string, hours float64) (overtime.UsageResult, error) {
	return svc.CreateUsageRecord(context.Background(), p, overtime.UsageInput{
		Date: date, HoursUsed: generic.NewHours(hours),
	})
}

// =============================================================================
// END TO END
// =============================================================================

func TestLedger_EndToEnd(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	// GIVEN: A 9.5h day and an 8h day
	logSession(t, svc, alice, "2024-01-01", "09:00", "18:30")
	logSession(t, svc, alice, "2024-01-02", "09:00", "17:00")

	// THEN: 1.5h generated, all from the first day
	snap, err := svc.AvailableExtraHours(ctx, alice)
	require.NoError(t, err)
	assert.True(t, snap.TotalGenerated.Equal(generic.NewHours(1.5)))
	assert.True(t, snap.TotalUsed.IsZero())
	assert.True(t, snap.Available.Equal(generic.NewHours(1.5)))
	require.Len(t, snap.Breakdown, 1)
	assert.True(t, snap.Breakdown[generic.NewDate(2024, 1, 1)].Equal(generic.NewHours(1.5)))

	// WHEN: Spending all of it
	res, err := spend(svc, alice, "2024-01-03", 1.5)
	require.NoError(t, err)
	assert.True(t, res.AvailableBefore.Equal(generic.NewHours(1.5)))
	assert.Equal(t, overtime.BankSentinel, res.Record.BankID)

	// THEN: Nothing is left
	snap, err = svc.AvailableExtraHours(ctx, alice)
	require.NoError(t, err)
	assert.True(t, snap.Available.IsZero())

	// AND: Any further usage is rejected citing 0h 0min
	_, err = spend(svc, alice, "2024-01-04", 0.1)
	require.ErrorIs(t, err, generic.ErrValidation)
	assert.Contains(t, err.Error(), "0h 0min")
}

func TestDeleteUsage_RestoresExactAmount(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	logSession(t, svc, alice, "2024-01-01", "08:00", "20:00") // 4h extra

	res, err := spend(svc, alice, "2024-01-05", 2.75)
	require.NoError(t, err)

	before, err := svc.AvailableExtraHours(ctx, alice)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUsageRecord(ctx, alice, res.Record.ID))

	after, err := svc.AvailableExtraHours(ctx, alice)
	require.NoError(t, err)
	assert.True(t, after.Available.Sub(before.Available).Equal(generic.NewHours(2.75)))

	// Deleting again is a not-found
	err = svc.DeleteUsageRecord(ctx, alice, res.Record.ID)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestUpdateUsage_ExcludesItselfFromUsed(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	logSession(t, svc, alice, "2024-01-01", "09:00", "19:00") // 2h extra

	res, err := spend(svc, alice, "2024-01-05", 2)
	require.NoError(t, err)

	// WHEN: Re-saving the same record at the full 2h
	updated, err := svc.UpdateUsageRecord(ctx, alice, res.Record.ID, overtime.UsageInput{
		Date: "2024-01-06", HoursUsed: generic.NewHours(2), Description: "moved",
	})

	// THEN: It fits, because its own 2h aren't counted against it
	require.NoError(t, err)
	assert.Equal(t, "2024-01-06", updated.Record.Date.String())
	assert.True(t, updated.AvailableBefore.Equal(generic.NewHours(2)))

	// BUT: Growing beyond what was generated fails
	_, err = svc.UpdateUsageRecord(ctx, alice, res.Record.ID, overtime.UsageInput{
		Date: "2024-01-06", HoursUsed: generic.NewHours(2.5),
	})
	var insufficient *overtime.InsufficientHoursError
	assert.ErrorAs(t, err, &insufficient)
}

// =============================================================================
// VALIDATION AND ACCESS
// =============================================================================

func TestCreateUsage_InputValidation(t *testing.T) {
	svc, _ := newService(t)
	logSession(t, svc, alice, "2024-01-01", "09:00", "19:00")

	_, err := spend(svc, alice, "", 1)
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = spend(svc, alice, "2024-01-02", 0)
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = spend(svc, alice, "2024-01-02", -1)
	assert.ErrorIs(t, err, generic.ErrValidation)
	assert.Contains(t, err.Error(), "positive")

	_, err = spend(svc, alice, "not-a-date", 1)
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestCreateWorkSession_RequiresFields(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateWorkSession(ctx, alice, overtime.SessionInput{Date: "2024-01-01", StartTime: "09:00"})
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = svc.CreateWorkSession(ctx, alice, overtime.SessionInput{Date: "2024-01-01", StartTime: "9am", EndTime: "17:00"})
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestCrossUserAccess_IsNotFound(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	s := logSession(t, svc, alice, "2024-01-01", "09:00", "19:00")
	res, err := spend(svc, alice, "2024-01-02", 1)
	require.NoError(t, err)

	_, err = svc.UpdateWorkSession(ctx, bob, s.ID, overtime.SessionInput{
		Date: "2024-01-01", StartTime: "09:00", EndTime: "23:00",
	})
	assert.ErrorIs(t, err, generic.ErrNotFound)

	assert.ErrorIs(t, svc.DeleteWorkSession(ctx, bob, s.ID), generic.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteUsageRecord(ctx, bob, res.Record.ID), generic.ErrNotFound)

	_, err = svc.UpdateUsageRecord(ctx, bob, res.Record.ID, overtime.UsageInput{
		Date: "2024-01-02", HoursUsed: generic.NewHours(1),
	})
	assert.ErrorIs(t, err, generic.ErrNotFound)

	// Bob's ledger is his own
	snap, err := svc.AvailableExtraHours(ctx, bob)
	require.NoError(t, err)
	assert.True(t, snap.TotalGenerated.IsZero())
}

func TestEmptyPrincipal_IsUnauthenticated(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	nobody := auth.Principal{}

	_, err := svc.ListWorkSessions(ctx, nobody, overtime.Filter{})
	assert.ErrorIs(t, err, generic.ErrAuthentication)

	_, err = svc.AvailableExtraHours(ctx, nobody)
	assert.ErrorIs(t, err, generic.ErrAuthentication)

	_, err = spend(svc, nobody, "2024-01-01", 1)
	assert.ErrorIs(t, err, generic.ErrAuthentication)

	_, err = svc.DashboardStats(ctx, nobody)
	assert.ErrorIs(t, err, generic.ErrAuthentication)
}

func TestUpdateWorkSession_ChangesLedger(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	s := logSession(t, svc, alice, "2024-01-01", "09:00", "17:00")

	updated, err := svc.UpdateWorkSession(ctx, alice, s.ID, overtime.SessionInput{
		Date: "2024-01-01", StartTime: "09:00", EndTime: "18:00", Description: " late deploy ",
	})
	require.NoError(t, err)
	assert.Equal(t, "late deploy", updated.Description)
	assert.True(t, updated.CreatedAt.Equal(s.CreatedAt))

	snap, err := svc.AvailableExtraHours(ctx, alice)
	require.NoError(t, err)
	assert.True(t, snap.Available.Equal(generic.NewHours(1)))

	list, err := svc.ListWorkSessions(ctx, alice, overtime.Filter{Description: "DEPLOY"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDashboardStats(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	logSession(t, svc, alice, "2024-01-01", "09:00", "19:00")
	logSession(t, svc, alice, "2024-01-02", "09:00", "15:00")
	_, err := spend(svc, alice, "2024-01-03", 0.5)
	require.NoError(t, err)

	stats, err := svc.DashboardStats(ctx, alice)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalWorkDays)
	assert.True(t, stats.TotalWorkHours.Equal(generic.NewHours(16)))
	assert.True(t, stats.AverageHoursPerDay.Equal(generic.NewHours(8)))
	assert.True(t, stats.Ledger.Available.Equal(generic.NewHours(1.5)))
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestConcurrentUsage_NeverOverdraws(t *testing.T) {
	// GIVEN: 2h available
	svc, _ := newService(t)
	ctx := context.Background()
	logSession(t, svc, alice, "2024-01-01", "09:00", "19:00")

	// WHEN: Ten tabs each try to spend 1h
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := spend(svc, alice, "2024-01-05", 1); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// THEN: Exactly two succeed and the balance lands on zero
	assert.Equal(t, 2, ok)
	snap, err := svc.AvailableExtraHours(ctx, alice)
	require.NoError(t, err)
	assert.True(t, snap.Available.IsZero())
	assert.True(t, snap.TotalUsed.Equal(generic.NewHours(2)))
}

// =============================================================================
// RECALCULATION
// =============================================================================

func TestRecalculate(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	logSession(t, svc, alice, "2024-01-01", "09:00", "18:30")
	logSession(t, svc, bob, "2024-01-01", "09:00", "17:00")

	res, err := svc.Recalculate(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, 2, res.ProcessedUsers)
	assert.True(t, res.Generated["alice"].Equal(generic.NewHours(1.5)))
	assert.True(t, res.Generated["bob"].IsZero())

	at, ok := store.LastHeartbeat(overtime.HealthCheckClientID)
	require.True(t, ok)
	assert.True(t, at.Equal(res.Timestamp))
}
