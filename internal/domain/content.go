package domain

// Placeholder labels used when the catalog cannot resolve a reference.
// The feed keeps rendering with these; a later pass may retry.
const (
	PlaceholderSong   = "Canción"
	PlaceholderAlbum  = "Álbum"
	PlaceholderArtist = "Artista desconocido"
	DefaultCoverImage = "/img/default-cover.png"
	DefaultAvatar     = "/img/default-avatar.png"
)

// ContentDescriptor is the resolved metadata for a review's song or album.
// Once cached for a review id it is treated as authoritative for the rest
// of the session; writes never replace a real name with a placeholder.
type ContentDescriptor struct {
	Type       ContentType `json:"type"`
	Name       string      `json:"name"`
	Artist     string      `json:"artist"`
	ExternalID string      `json:"external_id"`
	Image      string      `json:"image"`
	Rev        int64       `json:"rev"` // bumped on every merge; newer wins on equal completeness
}

// HasRealName reports whether Name carries actual catalog data rather
// than a placeholder.
func (d ContentDescriptor) HasRealName() bool {
	return d.Name != "" && d.Name != PlaceholderSong && d.Name != PlaceholderAlbum
}

// Completeness orders descriptors for merge decisions: a real name beats
// a placeholder, a real artist breaks ties, then an image.
func (d ContentDescriptor) Completeness() int {
	n := 0
	if d.HasRealName() {
		n += 4
	}
	if d.Artist != "" && d.Artist != PlaceholderArtist {
		n += 2
	}
	if d.Image != "" && d.Image != DefaultCoverImage {
		n++
	}
	return n
}

// PlaceholderDescriptor builds the degraded descriptor for a reference
// the catalog could not resolve.
func PlaceholderDescriptor(ct ContentType, externalID string) ContentDescriptor {
	name := PlaceholderSong
	if ct == ContentAlbum {
		name = PlaceholderAlbum
	}
	return ContentDescriptor{
		Type:       ct,
		Name:       name,
		Artist:     PlaceholderArtist,
		ExternalID: externalID,
		Image:      DefaultCoverImage,
	}
}
