package app_test

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"trackfeed/internal/domain"
)

// ---- fakes ----

// fakeCache stores JSON bytes so values round-trip exactly like the redis
// adapter's do.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	sets  int
	fail  bool
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return false, context.DeadlineExceeded
	}
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return context.DeadlineExceeded
	}
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	c.sets++
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.store[key]
	return ok
}

type fakeCatalog struct {
	mu      sync.Mutex
	entries map[string]domain.CatalogEntry // keyed by externalID
	err     error
	calls   int
}

func (f *fakeCatalog) Resolve(ctx context.Context, ct domain.ContentType, externalID string) (domain.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return domain.CatalogEntry{}, f.err
	}
	return f.entries[externalID], nil
}

type fakeStore struct {
	raws    []map[string]any
	listErr error

	details    map[string]map[string]any
	detailsErr error
	onList     func() // test hook, runs at ListReviews entry
}

func (f *fakeStore) ListReviews(ctx context.Context) ([]map[string]any, error) {
	if f.onList != nil {
		f.onList()
	}
	return f.raws, f.listErr
}

func (f *fakeStore) GetReviewDetails(ctx context.Context, id string) (map[string]any, error) {
	if f.detailsErr != nil {
		return nil, f.detailsErr
	}
	if d, ok := f.details[id]; ok {
		return d, nil
	}
	return nil, domain.ErrNotFound
}

type fakeIdentity struct {
	users map[string]domain.UserProfile
	err   error
}

func (f *fakeIdentity) GetUser(ctx context.Context, id string) (domain.UserProfile, error) {
	if f.err != nil {
		return domain.UserProfile{}, f.err
	}
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return domain.UserProfile{}, domain.ErrNotFound
}

type fakeReactions struct {
	mu     sync.Mutex
	counts map[string]int
	owners map[string]string // reaction id -> "reviewID/viewerID"
	nextID int

	countErr  error
	createErr error
	deleteErr error
}

func (f *fakeReactions) CountReactions(ctx context.Context, reviewID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.counts[reviewID], nil
}

func (f *fakeReactions) CreateReaction(ctx context.Context, reviewID, viewerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	for _, pair := range f.owners {
		if pair == reviewID+"/"+viewerID {
			return "", domain.ErrConflict
		}
	}
	f.nextID++
	id := "r" + strconv.Itoa(f.nextID)
	if f.owners == nil {
		f.owners = map[string]string{}
	}
	if f.counts == nil {
		f.counts = map[string]int{}
	}
	f.owners[id] = reviewID + "/" + viewerID
	f.counts[reviewID]++
	return id, nil
}

func (f *fakeReactions) DeleteReaction(ctx context.Context, reactionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	pair, ok := f.owners[reactionID]
	if !ok {
		return domain.ErrNotFound
	}
	delete(f.owners, reactionID)
	reviewID := pair[:strings.IndexByte(pair, '/')]
	if f.counts[reviewID] > 0 {
		f.counts[reviewID]--
	}
	return nil
}

func (f *fakeReactions) DeleteReactionByPair(ctx context.Context, reviewID, viewerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for id, pair := range f.owners {
		if pair == reviewID+"/"+viewerID {
			delete(f.owners, id)
			if f.counts[reviewID] > 0 {
				f.counts[reviewID]--
			}
			return nil
		}
	}
	return domain.ErrNotFound
}

type fakeComments struct {
	lists map[string][]domain.Comment
	err   error
}

func (f *fakeComments) ListComments(ctx context.Context, reviewID string) ([]domain.Comment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.lists[reviewID], nil
}

type fakeSnaps struct {
	mu     sync.Mutex
	feeds  map[string][]domain.EnrichedReview
	saved  int
	misses []string
	getErr error
}

func (f *fakeSnaps) SaveFeed(ctx context.Context, viewerID string, items []domain.EnrichedReview) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.feeds == nil {
		f.feeds = map[string][]domain.EnrichedReview{}
	}
	f.feeds[viewerID] = items
	f.saved++
	return nil
}

func (f *fakeSnaps) GetFeed(ctx context.Context, viewerID string) ([]domain.EnrichedReview, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, time.Time{}, f.getErr
	}
	items, ok := f.feeds[viewerID]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	return items, time.Now(), nil
}

func (f *fakeSnaps) LogMiss(ctx context.Context, reviewID, facet string, status int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.misses = append(f.misses, reviewID+"/"+facet)
	return nil
}

// ---- tiny helpers ----

func ptr[T any](v T) *T { return &v }
