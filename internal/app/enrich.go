package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"trackfeed/internal/domain"
)

// Resolver enriches a single stub: author, like count, comment count and
// content descriptor, each facet with its own timeout and a two-tier
// fallback (gateway aggregate endpoint, then the direct per-service one).
// A facet that exhausts its chain degrades to a documented default and
// never fails the review.
type Resolver struct {
	store       domain.ReviewStore
	identity    domain.IdentityService
	reactions   domain.ReactionService
	comments    domain.CommentService
	descriptors *DescriptorService
	cache       domain.Cache
	snaps       domain.SnapshotStore

	facetTimeout time.Duration
}

func NewResolver(
	store domain.ReviewStore,
	identity domain.IdentityService,
	reactions domain.ReactionService,
	comments domain.CommentService,
	descriptors *DescriptorService,
	cache domain.Cache,
	snaps domain.SnapshotStore,
	facetTimeout time.Duration,
) *Resolver {
	if facetTimeout <= 0 {
		facetTimeout = 2 * time.Second
	}
	return &Resolver{
		store:        store,
		identity:     identity,
		reactions:    reactions,
		comments:     comments,
		descriptors:  descriptors,
		cache:        cache,
		snaps:        snaps,
		facetTimeout: facetTimeout,
	}
}

// Enrich resolves every facet for one stub. The bool is false only when the
// pass context is already dead; facet failures degrade instead.
func (r *Resolver) Enrich(ctx context.Context, viewerID string, stub domain.ReviewStub) (domain.EnrichedReview, bool) {
	if ctx.Err() != nil {
		return domain.EnrichedReview{}, false
	}

	out := domain.EnrichedReview{ReviewStub: stub}

	// One aggregate round trip first; whatever it covers, the direct
	// fallbacks skip.
	var d reviewDetails
	{
		dctx, cancel := context.WithTimeout(ctx, r.facetTimeout)
		raw, err := r.store.GetReviewDetails(dctx, stub.ID)
		cancel()
		if err != nil {
			log.Debug().Err(err).Str("review", stub.ID).Msg("aggregate details unavailable, using direct fallbacks")
		} else {
			d = mapDetails(raw)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		out.AuthorName, out.AuthorAvatar = r.resolveAuthor(gctx, stub, d)
		return nil
	})
	g.Go(func() error {
		out.LikeCount = r.resolveLikes(gctx, stub, d)
		return nil
	})
	g.Go(func() error {
		out.CommentCount = r.resolveComments(gctx, stub, d)
		return nil
	})
	g.Go(func() error {
		out.ContentName, out.ArtistName, out.ContentType, out.ContentImage = r.resolveContent(gctx, stub, d)
		return nil
	})

	// Facet funcs never return errors; the group is only the join barrier.
	_ = g.Wait()

	// Local state only. A cache read error renders as "not liked", never
	// as an enrichment failure.
	out.ViewerHasLiked = r.viewerHasLiked(ctx, viewerID, stub.ID)

	return out, true
}

func (r *Resolver) resolveAuthor(ctx context.Context, stub domain.ReviewStub, d reviewDetails) (name, avatar string) {
	if d.AuthorName != "" {
		return d.AuthorName, orDefault(d.AuthorAvatar, domain.DefaultAvatar)
	}
	fctx, cancel := context.WithTimeout(ctx, r.facetTimeout)
	defer cancel()
	u, err := r.identity.GetUser(fctx, stub.AuthorID)
	if err != nil {
		r.logMiss(ctx, stub.ID, "author", err)
		return fallbackAuthorName(stub.AuthorID), domain.DefaultAvatar
	}
	return orDefault(u.Username, fallbackAuthorName(stub.AuthorID)), orDefault(u.Avatar, domain.DefaultAvatar)
}

func (r *Resolver) resolveLikes(ctx context.Context, stub domain.ReviewStub, d reviewDetails) int {
	if d.Likes != nil {
		return clampNonNegative(*d.Likes)
	}
	fctx, cancel := context.WithTimeout(ctx, r.facetTimeout)
	defer cancel()
	n, err := r.reactions.CountReactions(fctx, stub.ID)
	if err != nil {
		r.logMiss(ctx, stub.ID, "likes", err)
		return 0
	}
	return clampNonNegative(n)
}

func (r *Resolver) resolveComments(ctx context.Context, stub domain.ReviewStub, d reviewDetails) int {
	if d.Comments != nil {
		return clampNonNegative(*d.Comments)
	}
	fctx, cancel := context.WithTimeout(ctx, r.facetTimeout)
	defer cancel()
	cs, err := r.comments.ListComments(fctx, stub.ID)
	if err != nil {
		r.logMiss(ctx, stub.ID, "comments", err)
		return 0
	}
	return len(cs)
}

func (r *Resolver) resolveContent(ctx context.Context, stub domain.ReviewStub, d reviewDetails) (name, artist string, ct domain.ContentType, image string) {
	ref, refType, ok := stub.ContentRef()
	if !ok {
		// No reference at all: the aggregate payload is the only source,
		// then the generic song placeholder.
		if d.ContentName != "" {
			return d.ContentName, orDefault(d.Artist, domain.PlaceholderArtist), domain.ContentSong, orDefault(d.Image, domain.DefaultCoverImage)
		}
		return domain.PlaceholderSong, domain.PlaceholderArtist, domain.ContentSong, domain.DefaultCoverImage
	}
	fctx, cancel := context.WithTimeout(ctx, r.facetTimeout)
	defer cancel()
	desc := r.descriptors.Resolve(fctx, stub.ID, refType, ref)
	return desc.Name, desc.Artist, desc.Type, desc.Image
}

func (r *Resolver) viewerHasLiked(ctx context.Context, viewerID, reviewID string) bool {
	if viewerID == "" {
		return false
	}
	var mark domain.PendingReactionMark
	if ok, err := r.cache.Get(ctx, reactionKey(reviewID, viewerID), &mark); err == nil && ok {
		return true
	}
	var liked bool
	if ok, err := r.cache.Get(ctx, likedKey(reviewID, viewerID), &liked); err == nil && ok && liked {
		return true
	}
	return false
}

func (r *Resolver) logMiss(ctx context.Context, reviewID, facet string, err error) {
	if r.snaps == nil {
		return
	}
	status := 0
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = 404
	case errors.Is(err, domain.ErrUnauthorized):
		status = 401
	case errors.Is(err, domain.ErrForbidden):
		status = 403
	}
	if lerr := r.snaps.LogMiss(ctx, reviewID, facet, status, err.Error()); lerr != nil {
		log.Debug().Err(lerr).Str("review", reviewID).Str("facet", facet).Msg("miss log failed")
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
