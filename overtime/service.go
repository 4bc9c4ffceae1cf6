/*
service.go - Boundary operations over sessions, usage and the ledger

PURPOSE:
  The single entry point the API (and CLI) call into. Each operation takes
  an explicit auth.Principal resolved once per request, validates input,
  talks to the store and returns domain values or typed errors.

REQUEST FLOW (usage create/update):
  1. Resolve user from principal (401 if absent)
  2. Validate date and hours
  3. WithTx:
     a. Load the record under edit (404 if not owned)
     b. Load all sessions and usages, Derive excluding the edited record
     c. ValidateUsage against the snapshot
     d. Write
  4. Return the record and the balance it was checked against

  Step 3 runs in one serialized transaction, so two tabs racing to spend
  the same hours cannot both succeed.

ERRORS:
  generic.ErrAuthentication, generic.ErrNotFound, generic.ErrValidation
  (including InsufficientHoursError) pass through; anything else from the
  store is wrapped as generic.InternalError.
*/
package overtime

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/extrahours/auth"
	"github.com/warp/extrahours/generic"
)

type Service struct {
	store  TxStore
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewService(store TxStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
}

func requireUser(p auth.Principal) (UserID, error) {
	if p.IsZero() {
		return "", generic.ErrAuthentication
	}
	return UserID(p.UserID), nil
}

// =============================================================================
// WORK SESSIONS
// =============================================================================

func (s *Service) ListWorkSessions(ctx context.Context, p auth.Principal, f Filter) ([]WorkSession, error) {
	userID, err := requireUser(p)
	if err != nil {
		return nil, err
	}
	sessions, err := s.store.ListSessions(ctx, userID, f)
	if err != nil {
		return nil, generic.Internal("list work sessions", err)
	}
	return sessions, nil
}

func parseSessionInput(in SessionInput) (generic.Date, generic.ClockTime, generic.ClockTime, error) {
	if strings.TrimSpace(in.Date) == "" || strings.TrimSpace(in.StartTime) == "" || strings.TrimSpace(in.EndTime) == "" {
		return generic.Date{}, 0, 0, generic.NewValidationError("date", "date, start_time and end_time are required")
	}
	date, err := generic.ParseDate(in.Date)
	if err != nil {
		return generic.Date{}, 0, 0, generic.NewValidationError("date", "%v", err)
	}
	start, err := generic.ParseClockTime(in.StartTime)
	if err != nil {
		return generic.Date{}, 0, 0, generic.NewValidationError("start_time", "%v", err)
	}
	end, err := generic.ParseClockTime(in.EndTime)
	if err != nil {
		return generic.Date{}, 0, 0, generic.NewValidationError("end_time", "%v", err)
	}
	return date, start, end, nil
}

func (s *Service) CreateWorkSession(ctx context.Context, p auth.Principal, in SessionInput) (WorkSession, error) {
	userID, err := requireUser(p)
	if err != nil {
		return WorkSession{}, err
	}
	date, start, end, err := parseSessionInput(in)
	if err != nil {
		return WorkSession{}, err
	}

	now := s.now()
	session := WorkSession{
		ID:          s.newID(),
		UserID:      userID,
		Date:        date,
		Start:       start,
		End:         end,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return WorkSession{}, generic.Internal("create work session", err)
	}

	s.logger.InfoContext(ctx, "work session created",
		"user_id", userID, "session_id", session.ID, "date", date.String())
	return session, nil
}

func (s *Service) UpdateWorkSession(ctx context.Context, p auth.Principal, id string, in SessionInput) (WorkSession, error) {
	userID, err := requireUser(p)
	if err != nil {
		return WorkSession{}, err
	}
	date, start, end, err := parseSessionInput(in)
	if err != nil {
		return WorkSession{}, err
	}

	var updated WorkSession
	err = s.store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.GetSession(ctx, userID, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return sessionNotFound(id)
		}

		updated = *existing
		updated.Date = date
		updated.Start = start
		updated.End = end
		updated.Description = strings.TrimSpace(in.Description)
		updated.UpdatedAt = s.now()

		ok, err := tx.UpdateSession(ctx, updated)
		if err != nil {
			return err
		}
		if !ok {
			return sessionNotFound(id)
		}
		return nil
	})
	if err != nil {
		return WorkSession{}, generic.Internal("update work session", err)
	}
	return updated, nil
}

func (s *Service) DeleteWorkSession(ctx context.Context, p auth.Principal, id string) error {
	userID, err := requireUser(p)
	if err != nil {
		return err
	}
	ok, err := s.store.DeleteSession(ctx, userID, id)
	if err != nil {
		return generic.Internal("delete work session", err)
	}
	if !ok {
		return sessionNotFound(id)
	}
	return nil
}

// =============================================================================
// LEDGER
// =============================================================================

// snapshot loads every session and usage for the user and derives the ledger.
func snapshot(ctx context.Context, st Store, userID UserID, excludeID string) (Snapshot, error) {
	sessions, err := st.ListSessions(ctx, userID, Filter{})
	if err != nil {
		return Snapshot{}, err
	}
	usages, err := st.ListUsage(ctx, userID, Filter{})
	if err != nil {
		return Snapshot{}, err
	}
	return Derive(sessions, usages, excludeID), nil
}

func (s *Service) AvailableExtraHours(ctx context.Context, p auth.Principal) (Snapshot, error) {
	userID, err := requireUser(p)
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := snapshot(ctx, s.store, userID, "")
	if err != nil {
		return Snapshot{}, generic.Internal("compute extra hours", err)
	}
	return snap, nil
}

func (s *Service) DashboardStats(ctx context.Context, p auth.Principal) (Stats, error) {
	userID, err := requireUser(p)
	if err != nil {
		return Stats{}, err
	}
	sessions, err := s.store.ListSessions(ctx, userID, Filter{})
	if err != nil {
		return Stats{}, generic.Internal("dashboard stats", err)
	}
	usages, err := s.store.ListUsage(ctx, userID, Filter{})
	if err != nil {
		return Stats{}, generic.Internal("dashboard stats", err)
	}
	return ComputeStats(sessions, Derive(sessions, usages, "")), nil
}

// =============================================================================
// USAGE RECORDS
// =============================================================================

func (s *Service) ListUsageRecords(ctx context.Context, p auth.Principal, f Filter) ([]UsageRecord, error) {
	userID, err := requireUser(p)
	if err != nil {
		return nil, err
	}
	usages, err := s.store.ListUsage(ctx, userID, f)
	if err != nil {
		return nil, generic.Internal("list usage records", err)
	}
	return usages, nil
}

func parseUsageInput(in UsageInput) (generic.Date, error) {
	if strings.TrimSpace(in.Date) == "" || in.HoursUsed.IsZero() {
		return generic.Date{}, generic.NewValidationError("hours_used", "date and hours_used are required; hours_used must be a number")
	}
	date, err := generic.ParseDate(in.Date)
	if err != nil {
		return generic.Date{}, generic.NewValidationError("date", "%v", err)
	}
	if !in.HoursUsed.IsPositive() {
		return generic.Date{}, generic.NewValidationError("hours_used", "hours_used must be a positive number")
	}
	return date, nil
}

func (s *Service) CreateUsageRecord(ctx context.Context, p auth.Principal, in UsageInput) (UsageResult, error) {
	userID, err := requireUser(p)
	if err != nil {
		return UsageResult{}, err
	}
	date, err := parseUsageInput(in)
	if err != nil {
		return UsageResult{}, err
	}

	var result UsageResult
	err = s.store.WithTx(ctx, func(tx Store) error {
		snap, err := snapshot(ctx, tx, userID, "")
		if err != nil {
			return err
		}
		if err := ValidateUsage(snap, in.HoursUsed); err != nil {
			return err
		}

		now := s.now()
		record := UsageRecord{
			ID:          s.newID(),
			UserID:      userID,
			Date:        date,
			HoursUsed:   in.HoursUsed,
			Description: strings.TrimSpace(in.Description),
			BankID:      BankSentinel,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.CreateUsage(ctx, record); err != nil {
			return err
		}
		result = UsageResult{Record: record, AvailableBefore: snap.Available}
		return nil
	})
	if err != nil {
		return UsageResult{}, generic.Internal("create usage record", err)
	}

	s.logger.InfoContext(ctx, "extra hours used",
		"user_id", userID, "usage_id", result.Record.ID,
		"hours", result.Record.HoursUsed.String(), "available_before", result.AvailableBefore.String())
	return result, nil
}

func (s *Service) UpdateUsageRecord(ctx context.Context, p auth.Principal, id string, in UsageInput) (UsageResult, error) {
	userID, err := requireUser(p)
	if err != nil {
		return UsageResult{}, err
	}
	date, err := parseUsageInput(in)
	if err != nil {
		return UsageResult{}, err
	}

	var result UsageResult
	err = s.store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.GetUsage(ctx, userID, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return usageNotFound(id)
		}

		snap, err := snapshot(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if err := ValidateUsage(snap, in.HoursUsed); err != nil {
			return err
		}

		record := *existing
		record.Date = date
		record.HoursUsed = in.HoursUsed
		record.Description = strings.TrimSpace(in.Description)
		record.BankID = BankSentinel
		record.UpdatedAt = s.now()

		ok, err := tx.UpdateUsage(ctx, record)
		if err != nil {
			return err
		}
		if !ok {
			return usageNotFound(id)
		}
		result = UsageResult{Record: record, AvailableBefore: snap.Available}
		return nil
	})
	if err != nil {
		return UsageResult{}, generic.Internal("update usage record", err)
	}
	return result, nil
}

func (s *Service) DeleteUsageRecord(ctx context.Context, p auth.Principal, id string) error {
	userID, err := requireUser(p)
	if err != nil {
		return err
	}
	ok, err := s.store.DeleteUsage(ctx, userID, id)
	if err != nil {
		return generic.Internal("delete usage record", err)
	}
	if !ok {
		return usageNotFound(id)
	}
	return nil
}
