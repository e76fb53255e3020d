package gateway

import (
	"context"
	"fmt"
)

// ---- Review Store (tries modern endpoints first, falls back to legacy variants) ----

func (c *Client) ListReviews(ctx context.Context) ([]map[string]any, error) {
	candidates := []string{
		fmt.Sprintf("%s/reviews", c.base), // preferred
		fmt.Sprintf("%s/api/reviews", c.base),
	}
	var out []map[string]any
	return out, c.getFirst(ctx, "reviews", candidates, &out)
}

// GetReviewDetails hits the aggregate endpoint covering author, content and
// counts in one round trip. It runs through the circuit breaker; an open
// breaker surfaces as an error and the caller degrades to the direct
// per-service fallbacks.
func (c *Client) GetReviewDetails(ctx context.Context, id string) (map[string]any, error) {
	return c.breaker.Execute(func() (map[string]any, error) {
		candidates := []string{
			fmt.Sprintf("%s/review-details/%s", c.base, id), // preferred
			fmt.Sprintf("%s/reviews/%s/details", c.base, id),
		}
		var out map[string]any
		return out, c.getFirst(ctx, "review-details", candidates, &out)
	})
}
