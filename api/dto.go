/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Hours go out as JSON
  numbers; the decimal value in the domain is only converted here.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Work sessions:
    WorkSessionDTO, WorkSessionRequest

  Extra hours:
    SnapshotDTO, UsageDTO, BankDTO, UsageRequest

  Dashboard:
    StatsDTO

  Maintenance:
    CronResponse

HOURS INPUT:
  hours_used is accepted either as a number (1.5) or as a string in
  decimal or clock notation ("1.5", "1:30"). See decodeHours.

SEE ALSO:
  - handlers.go: Uses these types
  - overtime/types.go: Domain types
*/
package api

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/extrahours/generic"
	"github.com/warp/extrahours/overtime"
)

// =============================================================================
// WORK SESSIONS
// =============================================================================

// WorkSessionDTO represents a work session in API responses.
type WorkSessionDTO struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	Date        string  `json:"date"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	Description *string `json:"description"`
	Hours       float64 `json:"hours"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// WorkSessionRequest is the body of a create or update.
type WorkSessionRequest struct {
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Description string `json:"description"`
}

// =============================================================================
// EXTRA HOURS
// =============================================================================

// SnapshotDTO is the derived ledger.
type SnapshotDTO struct {
	TotalGenerated  float64            `json:"total_generated"`
	TotalUsed       float64            `json:"total_used"`
	Available       float64            `json:"available"`
	AvailableText   string             `json:"available_formatted"`
	BreakdownByDate map[string]float64 `json:"breakdown_by_date"`
}

// BankDTO is the legacy bank object clients still expect on usage records.
// There is a single implicit bank per user.
type BankDTO struct {
	ID          string  `json:"id"`
	TotalHours  float64 `json:"total_hours"`
	Description string  `json:"description"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

const bankDescription = "Automatically calculated extra hours"

// UsageDTO represents an extra-hours usage record in API responses.
type UsageDTO struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	BankID      string  `json:"bank_id"`
	Date        string  `json:"date"`
	HoursUsed   float64 `json:"hours_used"`
	Description *string `json:"description"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
	Bank        BankDTO `json:"bank"`
}

// UsageRequest is the body of a usage create or update.
type UsageRequest struct {
	Date        string          `json:"date"`
	HoursUsed   json.RawMessage `json:"hours_used"`
	Description string          `json:"description"`
}

// =============================================================================
// DASHBOARD
// =============================================================================

type StatsDTO struct {
	TotalWorkHours      float64 `json:"total_work_hours"`
	TotalWorkDays       int     `json:"total_work_days"`
	AverageHoursPerDay  float64 `json:"average_hours_per_day"`
	TotalExtraGenerated float64 `json:"total_extra_generated"`
	TotalExtraUsed      float64 `json:"total_extra_used"`
	AvailableExtraHours float64 `json:"available_extra_hours"`
	AvailableText       string  `json:"available_formatted"`
}

// =============================================================================
// MAINTENANCE
// =============================================================================

type CronResponse struct {
	OK          bool         `json:"ok"`
	Message     string       `json:"message,omitempty"`
	Error       string       `json:"error,omitempty"`
	CronResults *CronResults `json:"cron_results,omitempty"`
}

type CronResults struct {
	ExtraHoursRecalculation RecalculationDTO `json:"extra_hours_recalculation"`
	UsageUpdates            UsageUpdatesDTO  `json:"usage_updates"`
	Timestamp               string           `json:"timestamp"`
}

type RecalculationDTO struct {
	Success        bool `json:"success"`
	ProcessedUsers int  `json:"processed_users"`
}

type UsageUpdatesDTO struct {
	Success        bool `json:"success"`
	UpdatedRecords int  `json:"updated_records"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// InsufficientDetails accompanies a rejected usage.
type InsufficientDetails struct {
	Available          float64 `json:"available"`
	AvailableFormatted string  `json:"available_formatted"`
	Requested          float64 `json:"requested"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

const jsonTime = time.RFC3339

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toWorkSessionDTO(s overtime.WorkSession) WorkSessionDTO {
	return WorkSessionDTO{
		ID:          s.ID,
		UserID:      string(s.UserID),
		Date:        s.Date.String(),
		StartTime:   s.Start.String(),
		EndTime:     s.End.String(),
		Description: optional(s.Description),
		Hours:       overtime.SessionDuration(s).Float64(),
		CreatedAt:   s.CreatedAt.Format(jsonTime),
		UpdatedAt:   s.UpdatedAt.Format(jsonTime),
	}
}

func toWorkSessionDTOs(sessions []overtime.WorkSession) []WorkSessionDTO {
	out := make([]WorkSessionDTO, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toWorkSessionDTO(s))
	}
	return out
}

func toSnapshotDTO(s overtime.Snapshot) SnapshotDTO {
	breakdown := make(map[string]float64, len(s.Breakdown))
	for day, h := range s.Breakdown {
		breakdown[day.String()] = h.Float64()
	}
	return SnapshotDTO{
		TotalGenerated:  s.TotalGenerated.Float64(),
		TotalUsed:       s.TotalUsed.Float64(),
		Available:       s.Available.Float64(),
		AvailableText:   overtime.FormatHours(s.Available),
		BreakdownByDate: breakdown,
	}
}

// toUsageDTO embeds the legacy bank. totalHours is the balance the record
// was checked against, or zero on plain listings.
func toUsageDTO(u overtime.UsageRecord, totalHours generic.Hours) UsageDTO {
	return UsageDTO{
		ID:          u.ID,
		UserID:      string(u.UserID),
		BankID:      u.BankID,
		Date:        u.Date.String(),
		HoursUsed:   u.HoursUsed.Float64(),
		Description: optional(u.Description),
		CreatedAt:   u.CreatedAt.Format(jsonTime),
		UpdatedAt:   u.UpdatedAt.Format(jsonTime),
		Bank: BankDTO{
			ID:          overtime.BankSentinel,
			TotalHours:  totalHours.Float64(),
			Description: bankDescription,
			CreatedAt:   u.CreatedAt.Format(jsonTime),
			UpdatedAt:   u.UpdatedAt.Format(jsonTime),
		},
	}
}

func toUsageDTOs(usages []overtime.UsageRecord) []UsageDTO {
	out := make([]UsageDTO, 0, len(usages))
	for _, u := range usages {
		out = append(out, toUsageDTO(u, generic.SumHours()))
	}
	return out
}

func toStatsDTO(s overtime.Stats) StatsDTO {
	return StatsDTO{
		TotalWorkHours:      s.TotalWorkHours.Float64(),
		TotalWorkDays:       s.TotalWorkDays,
		AverageHoursPerDay:  s.AverageHoursPerDay.Float64(),
		TotalExtraGenerated: s.Ledger.TotalGenerated.Float64(),
		TotalExtraUsed:      s.Ledger.TotalUsed.Float64(),
		AvailableExtraHours: s.Ledger.Available.Float64(),
		AvailableText:       overtime.FormatHours(s.Ledger.Available),
	}
}

func toCronResponse(r overtime.RecalcResult) CronResponse {
	return CronResponse{
		OK:      true,
		Message: "Heartbeat executed successfully",
		CronResults: &CronResults{
			ExtraHoursRecalculation: RecalculationDTO{Success: true, ProcessedUsers: r.ProcessedUsers},
			UsageUpdates:            UsageUpdatesDTO{Success: true, UpdatedRecords: r.UpdatedRecords},
			Timestamp:               r.Timestamp.Format(time.RFC3339Nano),
		},
	}
}

// decodeHours accepts a JSON number or a string in decimal or H:MM form.
// A missing value decodes to zero, which the service rejects as required.
func decodeHours(raw json.RawMessage) (generic.Hours, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return generic.SumHours(), nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return generic.Hours{}, generic.NewValidationError("hours_used", "hours_used must be a number")
		}
		return overtime.ParseHoursInput(s), nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return generic.Hours{}, generic.NewValidationError("hours_used", "hours_used must be a number")
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return generic.Hours{}, generic.NewValidationError("hours_used", "hours_used must be a number")
	}
	return generic.NewHoursFromDecimal(d), nil
}
