package outbox

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lps-games/lastplayer/go/internal/sqlutil"
)

// Repository persists outbox events in Postgres. Methods take the
// querier explicitly; inserts belong in the same transaction as the
// state change they describe.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

const insertEventSQL = `
INSERT INTO outbox (id, game_code, event_type, payload)
VALUES ($1, $2, $3, $4)`

// InsertEvent queues an event for publication. Call inside the same
// transaction as the state change so the two commit or abort together.
func (r *Repository) InsertEvent(ctx context.Context, q sqlutil.DBTX, gameCode, eventType string, payload []byte) error {
	if _, err := q.Exec(ctx, insertEventSQL, uuid.New(), gameCode, eventType, payload); err != nil {
		return fmt.Errorf("failed to insert %s outbox event: %w", eventType, err)
	}
	return nil
}

const fetchUnsentSQL = `
SELECT id, game_code, event_type, payload, created_at
FROM outbox
WHERE sent_at IS NULL
ORDER BY created_at
LIMIT $1
FOR UPDATE SKIP LOCKED`

// FetchUnsent returns up to limit unpublished events, locking them so
// concurrent workers do not double-publish.
func (r *Repository) FetchUnsent(ctx context.Context, q sqlutil.DBTX, limit int32) ([]Event, error) {
	rows, err := q.Query(ctx, fetchUnsentSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.GameCode, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

const markSentSQL = `
UPDATE outbox SET sent_at = now() WHERE id = ANY($1)`

// MarkSent flags the given events as published.
func (r *Repository) MarkSent(ctx context.Context, q sqlutil.DBTX, ids []uuid.UUID) error {
	if _, err := q.Exec(ctx, markSentSQL, ids); err != nil {
		return fmt.Errorf("failed to mark outbox events as sent: %w", err)
	}
	return nil
}
