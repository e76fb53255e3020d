package domain

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by the gateway adapters and the engine. Adapters
// translate upstream HTTP statuses into these; the engine only ever
// branches on errors.Is.
var (
	ErrNotFound     = errors.New("upstream: not found")
	ErrUnauthorized = errors.New("upstream: unauthorized")
	ErrForbidden    = errors.New("upstream: forbidden")
	ErrConflict     = errors.New("upstream: conflict")
	ErrUnavailable  = errors.New("upstream: unreachable")
)

type ReviewStore interface {
	// ListReviews returns the raw stub payloads. Records are duck-typed
	// maps; normalization happens once, at ingestion.
	ListReviews(ctx context.Context) ([]map[string]any, error)
	// GetReviewDetails is the gateway aggregate endpoint: a single round
	// trip covering author, content and counts for one review.
	GetReviewDetails(ctx context.Context, id string) (map[string]any, error)
}

type UserProfile struct {
	ID       string
	Username string
	Avatar   string
}

type IdentityService interface {
	GetUser(ctx context.Context, id string) (UserProfile, error)
}

type ReactionService interface {
	CountReactions(ctx context.Context, reviewID string) (int, error)
	// CreateReaction returns the new reaction id. A reaction that already
	// exists for (reviewID, viewerID) yields ErrConflict.
	CreateReaction(ctx context.Context, reviewID, viewerID string) (string, error)
	DeleteReaction(ctx context.Context, reactionID string) error
	// DeleteReactionByPair removes the viewer's own reaction on a review.
	// The service scopes deletion to the viewer, so a foreign reaction can
	// never be removed through this path.
	DeleteReactionByPair(ctx context.Context, reviewID, viewerID string) error
}

type Comment struct {
	ID        string
	AuthorID  string
	Text      string
	CreatedAt time.Time
}

type CommentService interface {
	ListComments(ctx context.Context, reviewID string) ([]Comment, error)
}

type CatalogEntry struct {
	Title      string
	Artist     string
	Image      string
	InternalID string
}

type ContentCatalog interface {
	// Resolve looks a reference up by external id, minting the catalog
	// entry when the catalog does not know it yet.
	Resolve(ctx context.Context, ct ContentType, externalID string) (CatalogEntry, error)
}

// Cache is the durable client cache: namespaced string keys, JSON values.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// SnapshotStore keeps the last feed that aggregated successfully per
// viewer, served instead of fabricated data when a pass fails outright.
type SnapshotStore interface {
	SaveFeed(ctx context.Context, viewerID string, items []EnrichedReview) error
	GetFeed(ctx context.Context, viewerID string) ([]EnrichedReview, time.Time, error)
	LogMiss(ctx context.Context, reviewID, facet string, status int, reason string) error
}
