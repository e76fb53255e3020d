package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"trackfeed/internal/domain"
)

// ---- Content Catalog ----

// Resolve looks a song or album up by its external source id. A GET miss
// falls through to the minting POST, which creates the catalog entry from
// the external source and returns it.
func (c *Client) Resolve(ctx context.Context, ct domain.ContentType, externalID string) (domain.CatalogEntry, error) {
	u := fmt.Sprintf("%s/content/%s/%s", c.base, string(ct), externalID)

	var out struct {
		Title      string `json:"title"`
		Name       string `json:"name"` // legacy casing
		Artist     string `json:"artist"`
		Image      string `json:"image"`
		InternalID string `json:"internalId"`
	}
	err := c.do(ctx, http.MethodGet, "catalog", u, nil, &out)
	if errors.Is(err, domain.ErrNotFound) {
		err = c.do(ctx, http.MethodPost, "catalog", u, nil, &out)
	}
	if err != nil {
		return domain.CatalogEntry{}, err
	}

	title := out.Title
	if title == "" {
		title = out.Name
	}
	return domain.CatalogEntry{
		Title:      title,
		Artist:     out.Artist,
		Image:      out.Image,
		InternalID: out.InternalID,
	}, nil
}
