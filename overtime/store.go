/*
store.go - Persistence contract for sessions, usage records and heartbeats

PURPOSE:
  Defines what the service needs from a relational store. Every read and
  write is scoped by user; a record that exists under another user is
  indistinguishable from one that does not exist.

KEY INTERFACES:
  Store:   CRUD over work_sessions and extra_hours_usage, plus the
           maintenance queries used by the recalculation job
  TxStore: Store plus two scoped-execution helpers

SCOPED EXECUTION:
  WithTx(fn): fn runs inside a single serialized transaction. Used for the
              read-validate-write of usage records so two concurrent
              requests cannot both spend the same hours.
  Batch(fn):  fn runs on one connection taken from the pool, released when
              fn returns, on every path. Used by the recalculation job.

  The Store handed to fn is only valid until fn returns. Calling WithTx or
  Batch on it runs the callback in the same scope.

IMPLEMENTATIONS:
  - store/sqlite: mattn/go-sqlite3
  - store/memory: in-memory, for tests and dev
*/
package overtime

import (
	"context"
	"time"
)

type Store interface {
	// Sessions, ordered by date descending.
	ListSessions(ctx context.Context, userID UserID, f Filter) ([]WorkSession, error)

	// GetSession returns nil, nil when the session is absent or not owned.
	GetSession(ctx context.Context, userID UserID, id string) (*WorkSession, error)
	CreateSession(ctx context.Context, s WorkSession) error

	// UpdateSession and DeleteSession report whether a row owned by the user
	// was affected.
	UpdateSession(ctx context.Context, s WorkSession) (bool, error)
	DeleteSession(ctx context.Context, userID UserID, id string) (bool, error)

	// Usage records, ordered by date descending.
	ListUsage(ctx context.Context, userID UserID, f Filter) ([]UsageRecord, error)
	GetUsage(ctx context.Context, userID UserID, id string) (*UsageRecord, error)
	CreateUsage(ctx context.Context, u UsageRecord) error
	UpdateUsage(ctx context.Context, u UsageRecord) (bool, error)
	DeleteUsage(ctx context.Context, userID UserID, id string) (bool, error)

	// Owners lists every user with at least one session or usage record.
	Owners(ctx context.Context) ([]UserID, error)

	// NormalizeBankIDs rewrites bank_id to bankID wherever it differs and
	// returns how many rows changed.
	NormalizeBankIDs(ctx context.Context, bankID string) (int, error)

	// TouchHeartbeat upserts the last ping time for a client.
	TouchHeartbeat(ctx context.Context, clientID string, at time.Time) error
}

type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
	Batch(ctx context.Context, fn func(Store) error) error
}
