package app

import (
	"sort"

	"trackfeed/internal/domain"
)

// Order returns a newly ordered slice: non-increasing CreatedAt for
// recent, non-increasing LikeCount for popular. Ties keep input order.
// Unknown modes fall back to popular, the feed default.
func Order(reviews []domain.EnrichedReview, mode domain.FeedSort) []domain.EnrichedReview {
	out := make([]domain.EnrichedReview, len(reviews))
	copy(out, reviews)
	switch mode {
	case domain.SortRecent:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].LikeCount > out[j].LikeCount
		})
	}
	return out
}
