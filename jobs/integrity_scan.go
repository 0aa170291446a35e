package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/clubforge/clubforge/internal/access"
	jobmetrics "github.com/clubforge/clubforge/internal/jobs"
	"github.com/clubforge/clubforge/internal/users"
)

// UserLister enumerates the users an access scan should visit.
type UserLister interface {
	List(ctx context.Context) ([]users.User, error)
}

// AccessScanner resolves permission state per user.
type AccessScanner interface {
	EffectivePermissions(ctx context.Context, userID int64) (access.EffectivePermissions, error)
	EffectiveNames(ctx context.Context, userID int64) ([]string, error)
}

func scanTargets(ctx context.Context, lister UserLister, payload AccessScanPayload) ([]int64, error) {
	if len(payload.UserIDs) > 0 {
		return payload.UserIDs, nil
	}
	all, err := lister.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(all))
	for _, u := range all {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

// NewAccessIntegrityScanHandler resolves every user's permissions and reports
// dangling role or permission references without repairing them.
func NewAccessIntegrityScanHandler(lister UserLister, scanner AccessScanner, logger *slog.Logger) asynq.HandlerFunc {
	metrics := jobmetrics.NewMetrics(nil)
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("access_integrity_scan")
		var payload AccessScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		ids, err := scanTargets(ctx, lister, payload)
		if err != nil {
			return tracker.End(err)
		}
		corrupted := 0
		for _, id := range ids {
			if _, err := scanner.EffectivePermissions(ctx, id); err != nil {
				var integrity *access.IntegrityError
				if errors.As(err, &integrity) {
					corrupted++
					metrics.AddIntegrityViolations(integrity.Entity, 1)
					logger.Error("access integrity violation",
						slog.Int64("user_id", id),
						slog.String("entity", integrity.Entity),
						slog.Int64("entity_id", integrity.ID))
					continue
				}
				return tracker.End(err)
			}
		}
		logger.Info("access integrity scan finished",
			slog.Int("users", len(ids)),
			slog.Int("corrupted", corrupted))
		return tracker.End(nil)
	}
}

// NewAccessCacheWarmHandler refreshes the flattened permission cache per user.
func NewAccessCacheWarmHandler(lister UserLister, scanner AccessScanner, logger *slog.Logger) asynq.HandlerFunc {
	metrics := jobmetrics.NewMetrics(nil)
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("access_cache_warm")
		var payload AccessScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		ids, err := scanTargets(ctx, lister, payload)
		if err != nil {
			return tracker.End(err)
		}
		warmed := 0
		for _, id := range ids {
			if _, err := scanner.EffectiveNames(ctx, id); err != nil {
				logger.Warn("cache warm skipped user",
					slog.Int64("user_id", id),
					slog.Any("error", err))
				continue
			}
			warmed++
		}
		logger.Info("access cache warmed", slog.Int("users", warmed))
		return tracker.End(nil)
	}
}
