package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// ---- Reaction Service ----

func (c *Client) CountReactions(ctx context.Context, reviewID string) (int, error) {
	candidates := []string{
		fmt.Sprintf("%s/reviews/%s/reactions/count", c.base, reviewID), // preferred
		fmt.Sprintf("%s/reactions/count/%s", c.base, reviewID),
	}
	// The count endpoint has shipped both a bare integer and a wrapper
	// object; accept either.
	var raw any
	if err := c.getFirst(ctx, "reactions", candidates, &raw); err != nil {
		return 0, err
	}
	switch v := raw.(type) {
	case float64:
		return int(v), nil
	case map[string]any:
		for _, k := range []string{"count", "Count", "likes", "total"} {
			if n, ok := v[k].(float64); ok {
				return int(n), nil
			}
		}
	}
	return 0, fmt.Errorf("reactions: unrecognized count payload %T", raw)
}

func (c *Client) CreateReaction(ctx context.Context, reviewID, viewerID string) (string, error) {
	u := fmt.Sprintf("%s/reviews/%s/reactions", c.base, reviewID)
	body := map[string]string{"viewerId": viewerID, "reviewId": reviewID}
	var out struct {
		ReactionID string `json:"reactionId"`
		ID         string `json:"id"` // legacy casing
	}
	if err := c.do(ctx, http.MethodPost, "reactions", u, body, &out); err != nil {
		return "", err
	}
	if out.ReactionID != "" {
		return out.ReactionID, nil
	}
	return out.ID, nil
}

func (c *Client) DeleteReaction(ctx context.Context, reactionID string) error {
	u := fmt.Sprintf("%s/reactions/%s", c.base, reactionID)
	return c.do(ctx, http.MethodDelete, "reactions", u, nil, nil)
}

// DeleteReactionByPair removes the viewer's own reaction on a review. The
// service resolves the pair viewer-side, so this can never touch another
// user's reaction.
func (c *Client) DeleteReactionByPair(ctx context.Context, reviewID, viewerID string) error {
	u := fmt.Sprintf("%s/reviews/%s/reactions?viewerId=%s", c.base, reviewID, url.QueryEscape(viewerID))
	return c.do(ctx, http.MethodDelete, "reactions", u, nil, nil)
}
