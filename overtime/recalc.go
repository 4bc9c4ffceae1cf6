package overtime

import (
	"context"
	"fmt"

	"github.com/warp/extrahours/generic"
)

// HealthCheckClientID is the heartbeat row written by scheduled runs.
const HealthCheckClientID = "server-health-check"

// Recalculate is the scheduled maintenance job. On one pooled connection it
// recomputes every owner's generated extra hours (logging each), rewrites
// stray bank_id values to BankSentinel and records a heartbeat for
// clientID. Nothing it computes is persisted except the heartbeat.
func (s *Service) Recalculate(ctx context.Context, clientID string) (RecalcResult, error) {
	if clientID == "" {
		clientID = HealthCheckClientID
	}
	log := s.logger.With("component", "recalculate")
	log.InfoContext(ctx, "starting scheduled tasks")

	result := RecalcResult{Generated: make(map[UserID]generic.Hours)}
	err := s.store.Batch(ctx, func(st Store) error {
		owners, err := st.Owners(ctx)
		if err != nil {
			return fmt.Errorf("list owners: %w", err)
		}
		for _, owner := range owners {
			sessions, err := st.ListSessions(ctx, owner, Filter{})
			if err != nil {
				return fmt.Errorf("load sessions for %s: %w", owner, err)
			}
			_, generated := ExtraHours(sessions)
			result.Generated[owner] = generated
			result.ProcessedUsers++
			log.InfoContext(ctx, "extra hours generated", "user_id", owner, "hours", generated.String())
		}

		updated, err := st.NormalizeBankIDs(ctx, BankSentinel)
		if err != nil {
			return fmt.Errorf("normalize bank ids: %w", err)
		}
		result.UpdatedRecords = updated

		result.Timestamp = s.now()
		if err := st.TouchHeartbeat(ctx, clientID, result.Timestamp); err != nil {
			return fmt.Errorf("heartbeat: %w", err)
		}
		return nil
	})
	if err != nil {
		log.ErrorContext(ctx, "scheduled tasks failed", "error", err)
		return RecalcResult{}, generic.Internal("recalculate", err)
	}

	log.InfoContext(ctx, "scheduled tasks completed",
		"processed_users", result.ProcessedUsers, "updated_records", result.UpdatedRecords)
	return result, nil
}
