package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"trackfeed/internal/domain"
)

// Repo is the last-known-good store: one feed snapshot per viewer, plus a
// log of enrichment misses for offline inspection. Snapshots are what the
// aggregator serves when a pass fails for a non-connectivity reason.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// anonViewer keys snapshots for requests without a viewer id.
const anonViewer = "anon"

func viewerKey(viewerID string) string {
	if viewerID == "" {
		return anonViewer
	}
	return viewerID
}

func (r *Repo) SaveFeed(ctx context.Context, viewerID string, items []domain.EnrichedReview) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = r.db.ExecContext(ctx, upsertSnapshotSQL, viewerKey(viewerID), string(payload))
	return err
}

func (r *Repo) GetFeed(ctx context.Context, viewerID string) ([]domain.EnrichedReview, time.Time, error) {
	row := r.db.QueryRowContext(ctx, getSnapshotSQL, viewerKey(viewerID))

	var payload []byte
	var updatedAt time.Time
	if err := row.Scan(&payload, &updatedAt); err != nil {
		return nil, time.Time{}, err
	}
	var items []domain.EnrichedReview
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, time.Time{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return items, updatedAt, nil
}

func (r *Repo) LogMiss(ctx context.Context, reviewID, facet string, status int, reason string) error {
	if len(reason) > 255 {
		reason = reason[:255]
	}
	_, err := r.db.ExecContext(ctx, insertMissSQL, reviewID, facet, status, reason)
	return err
}
