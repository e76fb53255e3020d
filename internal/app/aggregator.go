package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"trackfeed/internal/adapters/observability"
	"trackfeed/internal/domain"
)

// FeedService runs one aggregation pass: fetch stubs, normalize, enrich
// concurrently under a bounded worker pool, order, and remember the result
// as the viewer's last-known-good feed.
type FeedService struct {
	store    domain.ReviewStore
	resolver *Resolver
	snaps    domain.SnapshotStore

	workers     int64
	stubTimeout time.Duration

	seq atomic.Uint64 // pass sequencing; stale passes must not overwrite fresher ones
}

// FeedResult carries one pass's outcome. Stale means a newer pass started
// before this one finished; callers should discard stale results.
type FeedResult struct {
	Items        []domain.EnrichedReview
	Seq          uint64
	Stale        bool
	FromSnapshot bool
}

func NewFeedService(store domain.ReviewStore, resolver *Resolver, snaps domain.SnapshotStore, workers int, stubTimeout time.Duration) *FeedService {
	if workers <= 0 {
		workers = 8
	}
	if stubTimeout <= 0 {
		stubTimeout = 5 * time.Second
	}
	return &FeedService{
		store:       store,
		resolver:    resolver,
		snaps:       snaps,
		workers:     int64(workers),
		stubTimeout: stubTimeout,
	}
}

// Aggregate never returns an error to render as a broken feed: connectivity
// failures yield an empty feed, anything else falls back to the viewer's
// last snapshot.
func (s *FeedService) Aggregate(ctx context.Context, viewerID string, sort domain.FeedSort) (FeedResult, error) {
	seq := s.seq.Add(1)
	res := FeedResult{Seq: seq}

	sctx, cancel := context.WithTimeout(ctx, s.stubTimeout)
	raws, err := s.store.ListReviews(sctx)
	cancel()
	if err != nil {
		if isConnectivity(err) {
			// Store unreachable: an empty feed, never an error banner.
			log.Warn().Err(err).Msg("review store unreachable, serving empty feed")
			observability.ObserveFeedPass("empty_connectivity")
			res.Items = []domain.EnrichedReview{}
			return res, nil
		}
		// Anything else: serve the viewer's last-known-good snapshot.
		items, at, serr := s.snaps.GetFeed(ctx, viewerID)
		if serr != nil {
			log.Warn().Err(err).AnErr("snapshot_err", serr).Msg("feed failed and no snapshot available")
			observability.ObserveFeedPass("empty_failure")
			res.Items = []domain.EnrichedReview{}
			return res, nil
		}
		log.Warn().Err(err).Time("snapshot_at", at).Msg("feed failed, serving last-known-good snapshot")
		observability.ObserveFeedPass("snapshot")
		res.Items = Order(items, sort)
		res.FromSnapshot = true
		return res, nil
	}

	stubs := s.normalize(raws)

	enriched := make([]*domain.EnrichedReview, len(stubs))
	sem := semaphore.NewWeighted(s.workers)
	var wg sync.WaitGroup
	for i, stub := range stubs {
		i, stub := i, stub
		if err := sem.Acquire(ctx, 1); err != nil {
			break // pass context dead; partial results are discarded below
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			defer func() {
				if p := recover(); p != nil {
					// A single bad record must not take the pass down.
					log.Error().Interface("panic", p).Str("review", stub.ID).Msg("enrichment panicked, excluding review")
				}
			}()
			if ev, ok := s.resolver.Enrich(ctx, viewerID, stub); ok {
				enriched[i] = &ev
			}
		}()
	}
	wg.Wait() // single barrier: the feed renders atomically, never incrementally

	items := make([]domain.EnrichedReview, 0, len(enriched))
	for _, ev := range enriched {
		if ev != nil {
			items = append(items, *ev)
		}
	}
	res.Items = Order(items, sort)

	if s.seq.Load() != seq {
		// A newer pass started while this one ran; do not let it
		// overwrite fresher state.
		res.Stale = true
		observability.ObserveFeedPass("stale")
		return res, nil
	}

	if err := s.snaps.SaveFeed(ctx, viewerID, res.Items); err != nil {
		log.Debug().Err(err).Msg("snapshot save failed")
	}
	observability.ObserveFeedPass("ok")
	return res, nil
}

// normalize maps raw records to stubs, dropping unnormalizable ids and
// deduplicating by id while preserving input order.
func (s *FeedService) normalize(raws []map[string]any) []domain.ReviewStub {
	stubs := make([]domain.ReviewStub, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for _, m := range raws {
		stub, ok := mapStub(m)
		if !ok {
			log.Debug().Msg("dropping stub with unnormalizable id")
			continue
		}
		if _, dup := seen[stub.ID]; dup {
			continue
		}
		seen[stub.ID] = struct{}{}
		stubs = append(stubs, stub)
	}
	return stubs
}

// isConnectivity classifies gateway/transport failures, which degrade the
// same way timeouts do.
func isConnectivity(err error) bool {
	return errors.Is(err, domain.ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
