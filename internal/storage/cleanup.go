package storage

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/iterator"

	"github.com/dgellow/vetfront/internal/log"
)

// StalePurger is implemented by stores that accumulate abandoned sessions
type StalePurger interface {
	PurgeStale(ctx context.Context, maxAge time.Duration) (int, error)
}

var _ StalePurger = (*FirestoreStore)(nil)

// PurgeStale deletes session documents not touched within maxAge. Browsers
// that never come back leave sessions behind forever otherwise.
func (s *FirestoreStore) PurgeStale(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	iter := s.client.Collection(s.collection).
		Where("updated_at", "<", cutoff).
		Documents(ctx)
	defer iter.Stop()

	deleted := 0
	bulk := s.client.BulkWriter(ctx)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return deleted, fmt.Errorf("iterating stale sessions: %w", err)
		}
		if _, err := bulk.Delete(doc.Ref); err != nil {
			return deleted, fmt.Errorf("deleting stale session: %w", err)
		}
		deleted++
	}
	bulk.End()

	if deleted > 0 {
		log.LogInfoWithFields("storage", "Purged stale sessions", map[string]any{
			"count":   deleted,
			"max_age": maxAge.String(),
		})
	}
	return deleted, nil
}

// RunPurgeLoop periodically purges stale sessions until ctx is cancelled
func RunPurgeLoop(ctx context.Context, store Store, interval, maxAge time.Duration) {
	purger, ok := store.(StalePurger)
	if !ok {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := purger.PurgeStale(ctx, maxAge); err != nil {
				log.LogWarnWithFields("storage", "Stale session purge failed", map[string]any{
					"error": err.Error(),
				})
			}
		}
	}
}
