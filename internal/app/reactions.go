package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"trackfeed/internal/adapters/observability"
	"trackfeed/internal/domain"
)

// Durable mark keys. The liked flag renders the icon before any network
// call returns; the reaction mark additionally stores the reaction id so a
// later unlike can address the reaction without a lookup.
func reactionKey(reviewID, viewerID string) string { return "reaction:" + reviewID + ":" + viewerID }
func likedKey(reviewID, viewerID string) string    { return "liked:" + reviewID + ":" + viewerID }

// ReactionController toggles a viewer's like on a review: the optimistic
// state goes out through notify immediately, the mutation runs, and the
// returned view is the reconciled (or rolled-back) state.
type ReactionController struct {
	reactions   domain.ReactionService
	cache       domain.Cache
	markTTLSec  int // 0 keeps marks until explicitly cleared
	callTimeout time.Duration
}

func NewReactionController(reactions domain.ReactionService, cache domain.Cache, markTTLSec int, callTimeout time.Duration) *ReactionController {
	if callTimeout <= 0 {
		callTimeout = 3 * time.Second
	}
	return &ReactionController{
		reactions:   reactions,
		cache:       cache,
		markTTLSec:  markTTLSec,
		callTimeout: callTimeout,
	}
}

// Toggle flips the like state for (viewerID, reviewID). current is the
// state the viewer is looking at; notify (optional) receives the optimistic
// flip before the network round trip and the reconciled state after it.
func (c *ReactionController) Toggle(ctx context.Context, viewerID, reviewID string, current domain.LikeView, notify func(domain.LikeView)) (domain.LikeView, error) {
	if current.Liked {
		return c.unlike(ctx, viewerID, reviewID, current, notify)
	}
	return c.like(ctx, viewerID, reviewID, current, notify)
}

func (c *ReactionController) like(ctx context.Context, viewerID, reviewID string, current domain.LikeView, notify func(domain.LikeView)) (domain.LikeView, error) {
	optimistic := domain.LikeView{ReviewID: reviewID, Count: current.Count + 1, Liked: true}
	emit(notify, optimistic)

	// Persist the liked flag first so a reload mid-flight still renders
	// the optimistic state.
	if err := c.cache.Set(ctx, likedKey(reviewID, viewerID), true, c.markTTLSec); err != nil {
		log.Warn().Err(err).Str("review", reviewID).Msg("liked flag write failed")
	}

	rctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	reactionID, err := c.reactions.CreateReaction(rctx, reviewID, viewerID)
	cancel()

	switch {
	case err == nil:
		// Overwrites any previous mark for the pair: at most one exists.
		mark := domain.PendingReactionMark{ReactionID: reactionID, MarkedAt: time.Now().UTC()}
		if werr := c.cache.Set(ctx, reactionKey(reviewID, viewerID), mark, c.markTTLSec); werr != nil {
			log.Warn().Err(werr).Str("review", reviewID).Msg("reaction mark write failed")
		}
		observability.ObserveReaction("like", "ok")
		final := c.refreshCount(ctx, optimistic)
		emit(notify, final)
		return final, nil

	case errors.Is(err, domain.ErrConflict):
		// The reaction already exists upstream. Compensate with the
		// viewer-scoped pair delete, so only the viewer's own reaction
		// can ever be removed.
		dctx, cancel := context.WithTimeout(ctx, c.callTimeout)
		derr := c.reactions.DeleteReactionByPair(dctx, reviewID, viewerID)
		cancel()
		c.clearMarks(ctx, viewerID, reviewID)
		if derr != nil {
			log.Warn().Err(derr).Str("review", reviewID).Msg("conflict compensation failed")
			observability.ObserveReaction("like", "conflict_failed")
			final := domain.LikeView{ReviewID: reviewID, Count: current.Count, Liked: false}
			emit(notify, final)
			return final, derr
		}
		observability.ObserveReaction("like", "conflict_compensated")
		final := c.refreshCount(ctx, domain.LikeView{ReviewID: reviewID, Count: current.Count, Liked: false})
		emit(notify, final)
		return final, nil

	default:
		// Roll back: clear the marker, revert the count, unset the icon.
		c.clearMarks(ctx, viewerID, reviewID)
		observability.ObserveReaction("like", "rollback")
		final := domain.LikeView{ReviewID: reviewID, Count: clampNonNegative(current.Count), Liked: false}
		emit(notify, final)
		return final, err
	}
}

func (c *ReactionController) unlike(ctx context.Context, viewerID, reviewID string, current domain.LikeView, notify func(domain.LikeView)) (domain.LikeView, error) {
	optimistic := domain.LikeView{ReviewID: reviewID, Count: clampNonNegative(current.Count - 1), Liked: false}
	emit(notify, optimistic)

	var mark domain.PendingReactionMark
	hasMark, gerr := c.cache.Get(ctx, reactionKey(reviewID, viewerID), &mark)
	if gerr != nil {
		log.Warn().Err(gerr).Str("review", reviewID).Msg("reaction mark read failed")
	}
	c.clearMarks(ctx, viewerID, reviewID)

	dctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	var err error
	if hasMark && mark.ReactionID != "" {
		err = c.reactions.DeleteReaction(dctx, mark.ReactionID)
	} else {
		err = c.reactions.DeleteReactionByPair(dctx, reviewID, viewerID)
	}
	cancel()

	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		// Roll back the visual flip and restore the marks.
		if werr := c.cache.Set(ctx, likedKey(reviewID, viewerID), true, c.markTTLSec); werr != nil {
			log.Warn().Err(werr).Str("review", reviewID).Msg("liked flag restore failed")
		}
		if hasMark {
			if werr := c.cache.Set(ctx, reactionKey(reviewID, viewerID), mark, c.markTTLSec); werr != nil {
				log.Warn().Err(werr).Str("review", reviewID).Msg("reaction mark restore failed")
			}
		}
		observability.ObserveReaction("unlike", "rollback")
		final := domain.LikeView{ReviewID: reviewID, Count: current.Count, Liked: true}
		emit(notify, final)
		return final, err
	}

	// An ErrNotFound delete means the server never had the reaction;
	// the unliked state is already correct.
	observability.ObserveReaction("unlike", "ok")
	final := c.refreshCount(ctx, optimistic)
	emit(notify, final)
	return final, nil
}

// refreshCount replaces the optimistic count with the authoritative one.
// Concurrent likers may have moved it; the server count always wins. When
// the refresh itself fails the optimistic count stands until the next pass.
func (c *ReactionController) refreshCount(ctx context.Context, view domain.LikeView) domain.LikeView {
	rctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	n, err := c.reactions.CountReactions(rctx, view.ReviewID)
	if err != nil {
		log.Debug().Err(err).Str("review", view.ReviewID).Msg("count refresh failed, keeping optimistic count")
		view.Count = clampNonNegative(view.Count)
		return view
	}
	view.Count = clampNonNegative(n)
	return view
}

func (c *ReactionController) clearMarks(ctx context.Context, viewerID, reviewID string) {
	if err := c.cache.Del(ctx, reactionKey(reviewID, viewerID)); err != nil {
		log.Debug().Err(err).Str("review", reviewID).Msg("reaction mark delete failed")
	}
	if err := c.cache.Del(ctx, likedKey(reviewID, viewerID)); err != nil {
		log.Debug().Err(err).Str("review", reviewID).Msg("liked flag delete failed")
	}
}

func emit(notify func(domain.LikeView), v domain.LikeView) {
	if notify != nil {
		notify(v)
	}
}
