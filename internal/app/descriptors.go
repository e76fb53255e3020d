package app

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"trackfeed/internal/domain"
)

// DescriptorService resolves content metadata for a review through a
// three-tier fallback: durable cache, then the content catalog, then
// placeholders. Successful resolutions persist so later passes (and other
// surfaces, like the top-content view) skip the catalog entirely.
type DescriptorService struct {
	catalog domain.ContentCatalog
	cache   domain.Cache
	ttlSec  int
	flight  singleflight.Group
}

func NewDescriptorService(catalog domain.ContentCatalog, cache domain.Cache, ttlSec int) *DescriptorService {
	return &DescriptorService{catalog: catalog, cache: cache, ttlSec: ttlSec}
}

func contentKey(reviewID string) string { return "content:" + reviewID }

// Resolve never fails: the worst outcome is a placeholder descriptor the
// caller may retry on a later pass.
func (s *DescriptorService) Resolve(ctx context.Context, reviewID string, ct domain.ContentType, externalID string) domain.ContentDescriptor {
	key := contentKey(reviewID)

	var cached domain.ContentDescriptor
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		log.Warn().Err(err).Str("review", reviewID).Msg("descriptor cache read failed")
	}
	if hit && cached.HasRealName() {
		return cached
	}

	// Several reviews of the same song trigger a single catalog round trip.
	v, cerr, _ := s.flight.Do(string(ct)+":"+externalID, func() (any, error) {
		return s.catalog.Resolve(ctx, ct, externalID)
	})
	if cerr != nil {
		log.Debug().Err(cerr).Str("review", reviewID).Str("ref", externalID).Msg("catalog lookup failed")
		if hit {
			return cached // partial entry beats a bare placeholder
		}
		return domain.PlaceholderDescriptor(ct, externalID)
	}

	entry := v.(domain.CatalogEntry)
	fresh := domain.ContentDescriptor{
		Type:       ct,
		Name:       entry.Title,
		Artist:     entry.Artist,
		ExternalID: externalID,
		Image:      entry.Image,
	}
	merged := mergeDescriptors(cached, fresh, ct, externalID)
	merged.Rev = cached.Rev + 1

	// Accept-if-more-complete: a concurrent writer may have stored a better
	// entry between the first read and now; never regress it.
	var latest domain.ContentDescriptor
	if ok, _ := s.cache.Get(ctx, key, &latest); ok && latest.Completeness() > merged.Completeness() {
		return latest
	}
	if err := s.cache.Set(ctx, key, merged, s.ttlSec); err != nil {
		log.Warn().Err(err).Str("review", reviewID).Msg("descriptor cache write failed")
	}
	return merged
}

// mergeDescriptors keeps the most complete value per field. A placeholder
// name never replaces a stored real name; a real image survives even when
// the name stays unresolved.
func mergeDescriptors(old, fresh domain.ContentDescriptor, ct domain.ContentType, externalID string) domain.ContentDescriptor {
	out := domain.PlaceholderDescriptor(ct, externalID)
	if fresh.HasRealName() {
		out.Name = fresh.Name
	} else if old.HasRealName() {
		out.Name = old.Name
	}
	if fresh.Artist != "" && fresh.Artist != domain.PlaceholderArtist {
		out.Artist = fresh.Artist
	} else if old.Artist != "" && old.Artist != domain.PlaceholderArtist {
		out.Artist = old.Artist
	}
	if fresh.Image != "" {
		out.Image = fresh.Image
	} else if old.Image != "" && old.Image != domain.DefaultCoverImage {
		out.Image = old.Image
	}
	return out
}
