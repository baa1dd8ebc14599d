package services

import (
	"context"
	"math/rand"
	"time"

	"lootledger/domain/entities"
	"lootledger/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

const baseRetryDelay = 10 * time.Millisecond

// runWithRetry re-runs fn while it fails with a StorageConflictError, up to
// maxRetries extra attempts. fn must run a complete unit of work each time.
func runWithRetry(ctx context.Context, maxRetries int, metrics interfaces.Metrics, operation string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !entities.IsRetryable(err) || attempt >= maxRetries {
			return err
		}

		metrics.RecordConflictRetry(operation)
		delay := time.Duration(attempt+1)*baseRetryDelay + time.Duration(rand.Int63n(int64(baseRetryDelay)))
		log.WithFields(log.Fields{
			"operation": operation,
			"attempt":   attempt + 1,
			"delay":     delay,
		}).WithError(err).Warn("Storage conflict, retrying unit of work")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
