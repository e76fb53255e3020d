package domain

import "time"

type ContentType string

const (
	ContentSong  ContentType = "song"
	ContentAlbum ContentType = "album"
)

// FeedSort selects the feed ordering strategy.
type FeedSort string

const (
	SortRecent  FeedSort = "recent"
	SortPopular FeedSort = "popular"
)

// ReviewStub is the raw review record from the review store, after the
// single ingestion-time normalization pass.
type ReviewStub struct {
	ID        string
	AuthorID  string
	SongRef   *string
	AlbumRef  *string
	Rating    int // 1..5
	Title     string
	Text      string
	CreatedAt time.Time
	RawJSON   []byte `json:"-"` // full store payload, never rendered
}

// ContentRef returns whichever of SongRef/AlbumRef is set, with its type.
func (s ReviewStub) ContentRef() (string, ContentType, bool) {
	if s.SongRef != nil && *s.SongRef != "" {
		return *s.SongRef, ContentSong, true
	}
	if s.AlbumRef != nil && *s.AlbumRef != "" {
		return *s.AlbumRef, ContentAlbum, true
	}
	return "", "", false
}

// EnrichedReview is a stub plus every resolved facet. Built fresh on each
// aggregation pass; only the interaction controller's local count/flag flip
// mutates one afterwards, and the next pass discards that.
type EnrichedReview struct {
	ReviewStub

	AuthorName     string
	AuthorAvatar   string
	ContentName    string
	ArtistName     string
	ContentType    ContentType
	ContentImage   string
	LikeCount      int
	CommentCount   int
	ViewerHasLiked bool
}
