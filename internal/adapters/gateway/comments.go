package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trackfeed/internal/domain"
)

// ---- Comment Service ----

func (c *Client) ListComments(ctx context.Context, reviewID string) ([]domain.Comment, error) {
	candidates := []string{
		fmt.Sprintf("%s/reviews/%s/comments", c.base, reviewID), // preferred
		fmt.Sprintf("%s/comments/review/%s", c.base, reviewID),
	}
	var raw []map[string]any
	if err := c.getFirst(ctx, "comments", candidates, &raw); err != nil {
		return nil, err
	}
	out := make([]domain.Comment, 0, len(raw))
	for _, m := range raw {
		var cm domain.Comment
		for _, k := range []string{"id", "commentId", "_id"} {
			if s, ok := m[k].(string); ok && s != "" {
				cm.ID = s
				break
			}
		}
		for _, k := range []string{"userId", "UserId", "authorId"} {
			if s, ok := m[k].(string); ok && s != "" {
				cm.AuthorID = s
				break
			}
		}
		for _, k := range []string{"text", "content", "body"} {
			if s, ok := m[k].(string); ok && s != "" {
				cm.Text = s
				break
			}
		}
		for _, k := range []string{"createdAt", "created_at", "date"} {
			if s, ok := m[k].(string); ok && s != "" {
				if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(s)); err == nil {
					cm.CreatedAt = ts
				}
				break
			}
		}
		out = append(out, cm)
	}
	return out, nil
}
