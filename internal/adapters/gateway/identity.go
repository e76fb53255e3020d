package gateway

import (
	"context"
	"fmt"

	"trackfeed/internal/domain"
)

// ---- Identity Service ----

func (c *Client) GetUser(ctx context.Context, id string) (domain.UserProfile, error) {
	candidates := []string{
		fmt.Sprintf("%s/users/%s", c.base, id), // preferred
		fmt.Sprintf("%s/api/users/%s", c.base, id),
	}
	var out struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		UserName string `json:"userName"` // legacy casing
		Avatar   string `json:"avatar"`
	}
	if err := c.getFirst(ctx, "identity", candidates, &out); err != nil {
		return domain.UserProfile{}, err
	}
	name := out.Username
	if name == "" {
		name = out.UserName
	}
	return domain.UserProfile{ID: id, Username: name, Avatar: out.Avatar}, nil
}
