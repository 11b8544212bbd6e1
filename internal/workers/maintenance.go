package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/schedadmin/schedadmin/internal/tasks"
)

// RevocationPurger removes revocations whose credential expired anyway
type RevocationPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// AccessLogPruner removes old access events
type AccessLogPruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// HandlePurgeRevoked processes a purge task
func HandlePurgeRevoked(ctx context.Context, t *asynq.Task, purger RevocationPurger, logger zerolog.Logger) error {
	payload, err := tasks.ParseMaintenancePayload(t)
	if err != nil {
		// a malformed payload will never succeed
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	n, err := purger.PurgeExpired(ctx, payload.Cutoff)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to purge revoked credentials")
		return err
	}

	logger.Info().
		Int64("purged", n).
		Time("cutoff", payload.Cutoff).
		Msg("Purged expired credential revocations")
	return nil
}

// HandlePruneAccessLog processes a prune task
func HandlePruneAccessLog(ctx context.Context, t *asynq.Task, pruner AccessLogPruner, logger zerolog.Logger) error {
	payload, err := tasks.ParseMaintenancePayload(t)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	n, err := pruner.Prune(ctx, payload.Cutoff)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to prune access log")
		return err
	}

	logger.Info().
		Int64("pruned", n).
		Time("cutoff", payload.Cutoff).
		Msg("Pruned access log")
	return nil
}
