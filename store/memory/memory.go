// Package memory provides an in-memory overtime.TxStore (for testing/dev).
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/warp/extrahours/overtime"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Store struct {
	mu sync.RWMutex
	data
}

type data struct {
	sessions   map[string]overtime.WorkSession
	usages     map[string]overtime.UsageRecord
	heartbeats map[string]time.Time
}

func New() *Store {
	return &Store{data: newData()}
}

func newData() data {
	return data{
		sessions:   make(map[string]overtime.WorkSession),
		usages:     make(map[string]overtime.UsageRecord),
		heartbeats: make(map[string]time.Time),
	}
}

var _ overtime.TxStore = (*Store)(nil)

func (m *Store) ListSessions(ctx context.Context, userID overtime.UserID, f overtime.Filter) ([]overtime.WorkSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.ListSessions(ctx, userID, f)
}

func (m *Store) GetSession(ctx context.Context, userID overtime.UserID, id string) (*overtime.WorkSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.GetSession(ctx, userID, id)
}

func (m *Store) CreateSession(ctx context.Context, s overtime.WorkSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.CreateSession(ctx, s)
}

func (m *Store) UpdateSession(ctx context.Context, s overtime.WorkSession) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.UpdateSession(ctx, s)
}

func (m *Store) DeleteSession(ctx context.Context, userID overtime.UserID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.DeleteSession(ctx, userID, id)
}

func (m *Store) ListUsage(ctx context.Context, userID overtime.UserID, f overtime.Filter) ([]overtime.UsageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.ListUsage(ctx, userID, f)
}

func (m *Store) GetUsage(ctx context.Context, userID overtime.UserID, id string) (*overtime.UsageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.GetUsage(ctx, userID, id)
}

func (m *Store) CreateUsage(ctx context.Context, u overtime.UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.CreateUsage(ctx, u)
}

func (m *Store) UpdateUsage(ctx context.Context, u overtime.UsageRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.UpdateUsage(ctx, u)
}

func (m *Store) DeleteUsage(ctx context.Context, userID overtime.UserID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.DeleteUsage(ctx, userID, id)
}

func (m *Store) Owners(ctx context.Context) ([]overtime.UserID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.Owners(ctx)
}

func (m *Store) NormalizeBankIDs(ctx context.Context, bankID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.NormalizeBankIDs(ctx, bankID)
}

func (m *Store) TouchHeartbeat(ctx context.Context, clientID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.TouchHeartbeat(ctx, clientID, at)
}

// LastHeartbeat returns the recorded ping time for clientID.
func (m *Store) LastHeartbeat(clientID string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.heartbeats[clientID]
	return at, ok
}

// =============================================================================
// SCOPED EXECUTION
// =============================================================================

// WithTx runs fn with the store locked exclusively. If fn fails, every
// change it made is rolled back.
func (m *Store) WithTx(ctx context.Context, fn func(overtime.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.clone()
	if err := fn(&view{d: &m.data}); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

// Batch runs fn with the store locked exclusively, without rollback.
func (m *Store) Batch(ctx context.Context, fn func(overtime.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&view{d: &m.data})
}

func (d data) clone() data {
	c := newData()
	for k, v := range d.sessions {
		c.sessions[k] = v
	}
	for k, v := range d.usages {
		c.usages[k] = v
	}
	for k, v := range d.heartbeats {
		c.heartbeats[k] = v
	}
	return c
}

// view is the Store handed to WithTx/Batch callbacks. The lock is already
// held, so it calls straight into data.
type view struct {
	d *data
}

func (v *view) ListSessions(ctx context.Context, userID overtime.UserID, f overtime.Filter) ([]overtime.WorkSession, error) {
	return v.d.ListSessions(ctx, userID, f)
}
func (v *view) GetSession(ctx context.Context, userID overtime.UserID, id string) (*overtime.WorkSession, error) {
	return v.d.GetSession(ctx, userID, id)
}
func (v *view) CreateSession(ctx context.Context, s overtime.WorkSession) error {
	return v.d.CreateSession(ctx, s)
}
func (v *view) UpdateSession(ctx context.Context, s overtime.WorkSession) (bool, error) {
	return v.d.UpdateSession(ctx, s)
}
func (v *view) DeleteSession(ctx context.Context, userID overtime.UserID, id string) (bool, error) {
	return v.d.DeleteSession(ctx, userID, id)
}
func (v *view) ListUsage(ctx context.Context, userID overtime.UserID, f overtime.Filter) ([]overtime.UsageRecord, error) {
	return v.d.ListUsage(ctx, userID, f)
}
func (v *view) GetUsage(ctx context.Context, userID overtime.UserID, id string) (*overtime.UsageRecord, error) {
	return v.d.GetUsage(ctx, userID, id)
}
func (v *view) CreateUsage(ctx context.Context, u overtime.UsageRecord) error {
	return v.d.CreateUsage(ctx, u)
}
func (v *view) UpdateUsage(ctx context.Context, u overtime.UsageRecord) (bool, error) {
	return v.d.UpdateUsage(ctx, u)
}
func (v *view) DeleteUsage(ctx context.Context, userID overtime.UserID, id string) (bool, error) {
	return v.d.DeleteUsage(ctx, userID, id)
}
func (v *view) Owners(ctx context.Context) ([]overtime.UserID, error) {
	return v.d.Owners(ctx)
}
func (v *view) NormalizeBankIDs(ctx context.Context, bankID string) (int, error) {
	return v.d.NormalizeBankIDs(ctx, bankID)
}
func (v *view) TouchHeartbeat(ctx context.Context, clientID string, at time.Time) error {
	return v.d.TouchHeartbeat(ctx, clientID, at)
}

// =============================================================================
// UNLOCKED OPERATIONS
// =============================================================================

func matches(date string, description string, f overtime.Filter) bool {
	if f.Date != nil && f.Date.String() != date {
		return false
	}
	if f.Description != "" && !strings.Contains(strings.ToLower(description), strings.ToLower(f.Description)) {
		return false
	}
	return true
}

func (d *data) ListSessions(_ context.Context, userID overtime.UserID, f overtime.Filter) ([]overtime.WorkSession, error) {
	result := []overtime.WorkSession{}
	for _, s := range d.sessions {
		if s.UserID == userID && matches(s.Date.String(), s.Description, f) {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (d *data) GetSession(_ context.Context, userID overtime.UserID, id string) (*overtime.WorkSession, error) {
	s, ok := d.sessions[id]
	if !ok || s.UserID != userID {
		return nil, nil
	}
	return &s, nil
}

func (d *data) CreateSession(_ context.Context, s overtime.WorkSession) error {
	d.sessions[s.ID] = s
	return nil
}

func (d *data) UpdateSession(_ context.Context, s overtime.WorkSession) (bool, error) {
	existing, ok := d.sessions[s.ID]
	if !ok || existing.UserID != s.UserID {
		return false, nil
	}
	d.sessions[s.ID] = s
	return true, nil
}

func (d *data) DeleteSession(_ context.Context, userID overtime.UserID, id string) (bool, error) {
	existing, ok := d.sessions[id]
	if !ok || existing.UserID != userID {
		return false, nil
	}
	delete(d.sessions, id)
	return true, nil
}

func (d *data) ListUsage(_ context.Context, userID overtime.UserID, f overtime.Filter) ([]overtime.UsageRecord, error) {
	result := []overtime.UsageRecord{}
	for _, u := range d.usages {
		if u.UserID == userID && matches(u.Date.String(), u.Description, f) {
			result = append(result, u)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (d *data) GetUsage(_ context.Context, userID overtime.UserID, id string) (*overtime.UsageRecord, error) {
	u, ok := d.usages[id]
	if !ok || u.UserID != userID {
		return nil, nil
	}
	return &u, nil
}

func (d *data) CreateUsage(_ context.Context, u overtime.UsageRecord) error {
	d.usages[u.ID] = u
	return nil
}

func (d *data) UpdateUsage(_ context.Context, u overtime.UsageRecord) (bool, error) {
	existing, ok := d.usages[u.ID]
	if !ok || existing.UserID != u.UserID {
		return false, nil
	}
	d.usages[u.ID] = u
	return true, nil
}

func (d *data) DeleteUsage(_ context.Context, userID overtime.UserID, id string) (bool, error) {
	existing, ok := d.usages[id]
	if !ok || existing.UserID != userID {
		return false, nil
	}
	delete(d.usages, id)
	return true, nil
}

func (d *data) Owners(_ context.Context) ([]overtime.UserID, error) {
	seen := make(map[overtime.UserID]bool)
	for _, s := range d.sessions {
		seen[s.UserID] = true
	}
	for _, u := range d.usages {
		seen[u.UserID] = true
	}
	owners := make([]overtime.UserID, 0, len(seen))
	for id := range seen {
		owners = append(owners, id)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })
	return owners, nil
}

func (d *data) NormalizeBankIDs(_ context.Context, bankID string) (int, error) {
	n := 0
	for id, u := range d.usages {
		if u.BankID != bankID {
			u.BankID = bankID
			d.usages[id] = u
			n++
		}
	}
	return n, nil
}

func (d *data) TouchHeartbeat(_ context.Context, clientID string, at time.Time) error {
	d.heartbeats[clientID] = at
	return nil
}
