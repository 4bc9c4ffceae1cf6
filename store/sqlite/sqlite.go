/*
Package sqlite provides a SQLite-backed implementation of overtime.TxStore.

PURPOSE:
  Persists work sessions, extra-hours usage records and job heartbeats.
  The ledger itself is never stored; it is derived from these rows.

KEY TABLES:
  work_sessions:         date + start/end time of day per user
  extra_hours_usage:     hours spent per user (bank_id kept for compatibility)
  connection_heartbeats: last run of the recalculation job per client

INDEXES:
  - idx_work_sessions_user_date: every ledger read (hot path)
  - idx_usage_user_date:         every ledger read (hot path)

CONCURRENCY:
  The DSN sets _txlock=immediate, so every BeginTx issues BEGIN IMMEDIATE
  and takes the write lock up front. Two WithTx calls therefore run one
  after the other, and the second one reads what the first committed.
  _busy_timeout makes the waiting side block instead of failing.

  ":memory:" databases live inside a single connection, so the pool is
  capped at one connection for them.

WAL MODE:
  File databases are opened with WAL: readers don't block the writer.

USAGE:
  store, err := sqlite.New("./data/extrahours.db")
  if err != nil {
      return err
  }
  defer store.Close()

  svc := overtime.NewService(store, logger)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - overtime/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/extrahours/generic"
	"github.com/warp/extrahours/overtime"
)

// dbtx is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ dbtx = (*sql.DB)(nil)
	_ dbtx = (*sql.Tx)(nil)
	_ dbtx = (*sql.Conn)(nil)
)

// Store implements overtime.TxStore using SQLite.
type Store struct {
	db *sql.DB
	q  dbtx

	// scoped is true for the Store handed to WithTx/Batch callbacks.
	scoped bool
}

var _ overtime.TxStore = (*Store)(nil)

const timeLayout = time.RFC3339Nano

// driverName is go-sqlite3 with a Unicode-aware fold() SQL function on
// every connection. SQLite's own lower() only folds ASCII.
const driverName = "sqlite3_extrahours"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", strings.ToLower, true)
		},
	})
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, q: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.scoped {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS work_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		description TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_work_sessions_user_date
		ON work_sessions(user_id, date DESC);

	-- bank_id is always 'auto-calculated'; kept for schema compatibility
	CREATE TABLE IF NOT EXISTS extra_hours_usage (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		bank_id TEXT NOT NULL DEFAULT 'auto-calculated',
		date TEXT NOT NULL,
		hours_used TEXT NOT NULL,
		description TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_usage_user_date
		ON extra_hours_usage(user_id, date DESC);

	CREATE TABLE IF NOT EXISTS connection_heartbeats (
		client_id TEXT PRIMARY KEY,
		last_ping_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SCOPED EXECUTION (overtime.TxStore)
// =============================================================================

// WithTx executes fn within a BEGIN IMMEDIATE transaction. If fn returns
// an error the transaction is rolled back.
func (s *Store) WithTx(ctx context.Context, fn func(store overtime.Store) error) error {
	if s.scoped {
		return fn(s)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Store{db: s.db, q: sqlTx, scoped: true}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Batch executes fn on a single pooled connection. The connection goes
// back to the pool when fn returns, whatever the outcome.
func (s *Store) Batch(ctx context.Context, fn func(store overtime.Store) error) error {
	if s.scoped {
		return fn(s)
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	return fn(&Store{db: s.db, q: conn, scoped: true})
}

// =============================================================================
// WORK SESSIONS
// =============================================================================

const sessionColumns = `id, user_id, date, start_time, end_time, description, created_at, updated_at`

// ListSessions returns a user's sessions, newest date first.
func (s *Store) ListSessions(ctx context.Context, userID overtime.UserID, f overtime.Filter) ([]overtime.WorkSession, error) {
	where, args := filterClause(userID, f)
	query := `SELECT ` + sessionColumns + ` FROM work_sessions WHERE ` + where +
		` ORDER BY date DESC, created_at DESC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query work sessions: %w", err)
	}
	defer rows.Close()

	sessions := []overtime.WorkSession{}
	for rows.Next() {
		ws, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, ws)
	}
	return sessions, rows.Err()
}

// GetSession returns nil if the session doesn't exist or isn't owned by userID.
func (s *Store) GetSession(ctx context.Context, userID overtime.UserID, id string) (*overtime.WorkSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM work_sessions WHERE id = ? AND user_id = ?`

	rows, err := s.q.QueryContext(ctx, query, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get work session: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	ws, err := scanSession(rows)
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

func (s *Store) CreateSession(ctx context.Context, ws overtime.WorkSession) error {
	query := `INSERT INTO work_sessions (` + sessionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.q.ExecContext(ctx, query,
		ws.ID,
		ws.UserID,
		ws.Date.String(),
		ws.Start.String(),
		ws.End.String(),
		nullString(ws.Description),
		ws.CreatedAt.UTC().Format(timeLayout),
		ws.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert work session: %w", err)
	}
	return nil
}

func (s *Store) UpdateSession(ctx context.Context, ws overtime.WorkSession) (bool, error) {
	query := `
		UPDATE work_sessions
		SET date = ?, start_time = ?, end_time = ?, description = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`
	res, err := s.q.ExecContext(ctx, query,
		ws.Date.String(),
		ws.Start.String(),
		ws.End.String(),
		nullString(ws.Description),
		ws.UpdatedAt.UTC().Format(timeLayout),
		ws.ID,
		ws.UserID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update work session: %w", err)
	}
	return affected(res)
}

func (s *Store) DeleteSession(ctx context.Context, userID overtime.UserID, id string) (bool, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM work_sessions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete work session: %w", err)
	}
	return affected(res)
}

func scanSession(rows *sql.Rows) (overtime.WorkSession, error) {
	var (
		ws                   overtime.WorkSession
		userID, date         string
		start, end           string
		description          sql.NullString
		createdAt, updatedAt string
	)
	if err := rows.Scan(&ws.ID, &userID, &date, &start, &end, &description, &createdAt, &updatedAt); err != nil {
		return overtime.WorkSession{}, fmt.Errorf("failed to scan work session: %w", err)
	}

	var err error
	ws.UserID = overtime.UserID(userID)
	ws.Description = description.String
	if ws.Date, err = generic.ParseDate(date); err != nil {
		return overtime.WorkSession{}, fmt.Errorf("work session %s: %w", ws.ID, err)
	}
	if ws.Start, err = generic.ParseClockTime(start); err != nil {
		return overtime.WorkSession{}, fmt.Errorf("work session %s: %w", ws.ID, err)
	}
	if ws.End, err = generic.ParseClockTime(end); err != nil {
		return overtime.WorkSession{}, fmt.Errorf("work session %s: %w", ws.ID, err)
	}
	if ws.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return overtime.WorkSession{}, fmt.Errorf("work session %s: created_at: %w", ws.ID, err)
	}
	if ws.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return overtime.WorkSession{}, fmt.Errorf("work session %s: updated_at: %w", ws.ID, err)
	}
	return ws, nil
}

// =============================================================================
// EXTRA HOURS USAGE
// =============================================================================

const usageColumns = `id, user_id, bank_id, date, hours_used, description, created_at, updated_at`

// ListUsage returns a user's usage records, newest date first.
func (s *Store) ListUsage(ctx context.Context, userID overtime.UserID, f overtime.Filter) ([]overtime.UsageRecord, error) {
	where, args := filterClause(userID, f)
	query := `SELECT ` + usageColumns + ` FROM extra_hours_usage WHERE ` + where +
		` ORDER BY date DESC, created_at DESC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	usages := []overtime.UsageRecord{}
	for rows.Next() {
		u, err := scanUsage(rows)
		if err != nil {
			return nil, err
		}
		usages = append(usages, u)
	}
	return usages, rows.Err()
}

func (s *Store) GetUsage(ctx context.Context, userID overtime.UserID, id string) (*overtime.UsageRecord, error) {
	query := `SELECT ` + usageColumns + ` FROM extra_hours_usage WHERE id = ? AND user_id = ?`

	rows, err := s.q.QueryContext(ctx, query, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get usage record: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	u, err := scanUsage(rows)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUsage(ctx context.Context, u overtime.UsageRecord) error {
	query := `INSERT INTO extra_hours_usage (` + usageColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.q.ExecContext(ctx, query,
		u.ID,
		u.UserID,
		bankID(u.BankID),
		u.Date.String(),
		u.HoursUsed.Value.String(),
		nullString(u.Description),
		u.CreatedAt.UTC().Format(timeLayout),
		u.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

func (s *Store) UpdateUsage(ctx context.Context, u overtime.UsageRecord) (bool, error) {
	query := `
		UPDATE extra_hours_usage
		SET bank_id = ?, date = ?, hours_used = ?, description = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`
	res, err := s.q.ExecContext(ctx, query,
		bankID(u.BankID),
		u.Date.String(),
		u.HoursUsed.Value.String(),
		nullString(u.Description),
		u.UpdatedAt.UTC().Format(timeLayout),
		u.ID,
		u.UserID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update usage record: %w", err)
	}
	return affected(res)
}

func (s *Store) DeleteUsage(ctx context.Context, userID overtime.UserID, id string) (bool, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM extra_hours_usage WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete usage record: %w", err)
	}
	return affected(res)
}

func scanUsage(rows *sql.Rows) (overtime.UsageRecord, error) {
	var (
		u                    overtime.UsageRecord
		userID, date, hours  string
		description          sql.NullString
		createdAt, updatedAt string
	)
	if err := rows.Scan(&u.ID, &userID, &u.BankID, &date, &hours, &description, &createdAt, &updatedAt); err != nil {
		return overtime.UsageRecord{}, fmt.Errorf("failed to scan usage record: %w", err)
	}

	var err error
	u.UserID = overtime.UserID(userID)
	u.Description = description.String
	if u.Date, err = generic.ParseDate(date); err != nil {
		return overtime.UsageRecord{}, fmt.Errorf("usage record %s: %w", u.ID, err)
	}
	if u.HoursUsed, err = generic.ParseHours(hours); err != nil {
		return overtime.UsageRecord{}, fmt.Errorf("usage record %s: %w", u.ID, err)
	}
	if u.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return overtime.UsageRecord{}, fmt.Errorf("usage record %s: created_at: %w", u.ID, err)
	}
	if u.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return overtime.UsageRecord{}, fmt.Errorf("usage record %s: updated_at: %w", u.ID, err)
	}
	return u, nil
}

// =============================================================================
// MAINTENANCE (recalculation job)
// =============================================================================

func (s *Store) Owners(ctx context.Context) ([]overtime.UserID, error) {
	query := `
		SELECT user_id FROM work_sessions
		UNION
		SELECT user_id FROM extra_hours_usage
		ORDER BY user_id
	`
	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	defer rows.Close()

	var owners []overtime.UserID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan owner: %w", err)
		}
		owners = append(owners, overtime.UserID(id))
	}
	return owners, rows.Err()
}

func (s *Store) NormalizeBankIDs(ctx context.Context, bank string) (int, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE extra_hours_usage SET bank_id = ? WHERE bank_id IS NOT ?`, bank, bank)
	if err != nil {
		return 0, fmt.Errorf("failed to normalize bank ids: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *Store) TouchHeartbeat(ctx context.Context, clientID string, at time.Time) error {
	query := `
		INSERT INTO connection_heartbeats (client_id, last_ping_at) VALUES (?, ?)
		ON CONFLICT(client_id) DO UPDATE SET last_ping_at = excluded.last_ping_at
	`
	if _, err := s.q.ExecContext(ctx, query, clientID, at.UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("failed to upsert heartbeat: %w", err)
	}
	return nil
}

// LastHeartbeat returns the last ping time for clientID, or nil if none.
func (s *Store) LastHeartbeat(ctx context.Context, clientID string) (*time.Time, error) {
	var raw string
	err := s.q.QueryRowContext(ctx,
		`SELECT last_ping_at FROM connection_heartbeats WHERE client_id = ?`, clientID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get heartbeat: %w", err)
	}
	at, err := time.Parse(timeLayout, raw)
	if err != nil {
		return nil, err
	}
	return &at, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// filterClause builds the WHERE clause shared by both list queries.
func filterClause(userID overtime.UserID, f overtime.Filter) (string, []any) {
	clauses := []string{"user_id = ?"}
	args := []any{userID}

	if f.Date != nil {
		clauses = append(clauses, "date = ?")
		args = append(args, f.Date.String())
	}
	if f.Description != "" {
		// instr avoids escaping LIKE wildcards in user input
		clauses = append(clauses, "instr(fold(coalesce(description, '')), fold(?)) > 0")
		args = append(args, f.Description)
	}
	return strings.Join(clauses, " AND "), args
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func bankID(id string) string {
	if id == "" {
		return overtime.BankSentinel
	}
	return id
}
