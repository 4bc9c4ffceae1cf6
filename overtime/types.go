/*
Package overtime implements the extra-hours ledger.

PURPOSE:
  Users log work sessions; every calendar day worked beyond the standard
  8-hour day generates extra hours. Users spend those hours through usage
  records. The balance is never stored: it is derived from the two tables
  on every read.

KEY CONCEPTS IN THIS FILE (types.go):
  - WorkSession: one start/end interval on a calendar day
  - UsageRecord: hours spent out of the extra-hours pool
  - Snapshot: the derived ledger (generated, used, available, breakdown)
  - Filter: the optional date / description search on list operations

SEE ALSO:
  - ledger.go: derivation and usage validation
  - service.go: boundary operations
  - store.go: persistence contract
*/
package overtime

import (
	"time"

	"github.com/warp/extrahours/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string

// BankSentinel is the only bank_id ever written. Discrete banks of hours are
// gone; the column survives for schema compatibility.
const BankSentinel = "auto-calculated"

// =============================================================================
// SOURCE RECORDS
// =============================================================================

type WorkSession struct {
	ID          string
	UserID      UserID
	Date        generic.Date
	Start       generic.ClockTime
	End         generic.ClockTime
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type UsageRecord struct {
	ID          string
	UserID      UserID
	Date        generic.Date
	HoursUsed   generic.Hours
	Description string
	BankID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Filter narrows list operations. Zero value matches everything.
type Filter struct {
	Date        *generic.Date
	Description string // case-insensitive substring
}

// =============================================================================
// DERIVED VIEWS (never persisted)
// =============================================================================

// Snapshot is the ledger for one user at read time.
type Snapshot struct {
	TotalGenerated generic.Hours
	TotalUsed      generic.Hours
	Available      generic.Hours

	// Only days with positive extra hours appear.
	Breakdown map[generic.Date]generic.Hours
}

func (s Snapshot) Balance() generic.Balance {
	return generic.Balance{Generated: s.TotalGenerated, Used: s.TotalUsed}
}

// Stats is what the dashboard shows.
type Stats struct {
	TotalWorkHours     generic.Hours
	TotalWorkDays      int
	AverageHoursPerDay generic.Hours
	Ledger             Snapshot
}

// =============================================================================
// INPUTS
// =============================================================================

// SessionInput is the raw, unvalidated payload of a create or update.
type SessionInput struct {
	Date        string
	StartTime   string
	EndTime     string
	Description string
}

// UsageInput carries hours already normalised to a decimal value.
type UsageInput struct {
	Date        string
	HoursUsed   generic.Hours
	Description string
}

// UsageResult is a saved usage record plus the balance it was checked against.
type UsageResult struct {
	Record UsageRecord

	// Available balance before this record was applied.
	AvailableBefore generic.Hours
}

// RecalcResult summarises one run of the recalculation job.
type RecalcResult struct {
	ProcessedUsers int
	UpdatedRecords int
	Generated      map[UserID]generic.Hours
	Timestamp      time.Time
}
