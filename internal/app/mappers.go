package app

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"trackfeed/internal/domain"
)

/********** alias registries (single source of truth) **********/

// The review store has shipped both lowerCamel and UpperCamel field names
// over time. Every known spelling lives here, and nowhere else: records are
// normalized exactly once, at ingestion.

var stubAliases = map[string][]string{
	"id":      {"id", "reviewId", "ReviewId", "review_id", "_id"},
	"author":  {"userId", "UserId", "user_id", "authorId", "AuthorId", "author_id"},
	"song":    {"songId", "SongId", "song_id", "songRef", "song.id"},
	"album":   {"albumId", "AlbumId", "album_id", "albumRef", "album.id"},
	"title":   {"title", "Title", "headline"},
	"text":    {"text", "Text", "content", "body", "comment"},
	"rating":  {"rating", "Rating", "stars", "score"},
	"created": {"createdAt", "CreatedAt", "created_at", "date", "timestamp"},
}

var detailAliases = map[string][]string{
	"author_name":   {"username", "userName", "user.username", "user.name", "author.username", "author.name"},
	"author_avatar": {"avatar", "avatarUrl", "user.avatar", "user.avatarUrl", "author.avatar", "profilePic"},
	"likes":         {"likes", "likeCount", "likesCount", "likes_count", "reactions.count", "reactionCount"},
	"comments":      {"commentCount", "commentsCount", "comments_count", "comments"},
	"content_name":  {"songName", "albumName", "contentName", "song.name", "album.name", "content.title", "title"},
	"artist":        {"artistName", "artist", "song.artist", "album.artist", "content.artist"},
	"image":         {"image", "cover", "coverUrl", "song.image", "album.image", "content.image"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns the string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		switch s := v.(type) {
		case string:
			return s
		case float64:
			// ids occasionally arrive as JSON numbers
			return strconv.FormatFloat(s, 'f', -1, 64)
		}
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) string {
	for _, p := range aliases[key] {
		if s := lookupStr(m, p); s != "" {
			return s
		}
	}
	return ""
}

// firstIntFlexible: integer from several paths (float64/int/string).
func firstIntFlexible(m map[string]any, paths ...string) (int, bool) {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			return int(v), true
		case int:
			return v, true
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			if n, err := strconv.Atoi(s); err == nil {
				return n, true
			}
		case []any:
			// a comments facet may arrive as the full list; count it
			return len(v), true
		}
	}
	return 0, false
}

func ptrStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

/********** id normalization **********/

const zeroID = "00000000-0000-0000-0000-000000000000"

// NormalizeID trims an opaque identifier and rejects the known sentinels
// the store is known to emit for broken rows.
func NormalizeID(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return "", false
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "null", "undefined":
		return "", false
	}
	if s == zeroID || strings.Trim(s, "0") == "" {
		return "", false
	}
	return s, true
}

/********** timestamps **********/

// parseWhen accepts RFC3339 strings, unix seconds and unix millis.
// Absent or unparseable timestamps default to now.
func parseWhen(v any) time.Time {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			break
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return fromUnixFlexible(n)
		}
	case float64:
		return fromUnixFlexible(int64(t))
	}
	return time.Now().UTC()
}

func fromUnixFlexible(n int64) time.Time {
	if n > 1e12 { // millis
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

/********** stub mapper **********/

// mapStub normalizes one raw store record. The second return is false when
// the id fails normalization; such records are dropped, never rendered.
func mapStub(m map[string]any) (domain.ReviewStub, bool) {
	var st domain.ReviewStub

	var rawID any
	for _, p := range stubAliases["id"] {
		if v := lookupAny(m, p); v != nil {
			rawID = v
			break
		}
	}
	id, ok := NormalizeID(rawID)
	if !ok {
		return st, false
	}
	st.ID = id

	if a, ok := NormalizeID(firstNonEmptyAlias(m, stubAliases, "author")); ok {
		st.AuthorID = a
	}
	st.SongRef = ptrStr(firstNonEmptyAlias(m, stubAliases, "song"))
	st.AlbumRef = ptrStr(firstNonEmptyAlias(m, stubAliases, "album"))
	st.Title = firstNonEmptyAlias(m, stubAliases, "title")
	st.Text = firstNonEmptyAlias(m, stubAliases, "text")

	if r, ok := firstIntFlexible(m, stubAliases["rating"]...); ok {
		if r < 1 {
			r = 1
		}
		if r > 5 {
			r = 5
		}
		st.Rating = r
	}

	var when any
	for _, p := range stubAliases["created"] {
		if v := lookupAny(m, p); v != nil {
			when = v
			break
		}
	}
	st.CreatedAt = parseWhen(when)

	raw, err := json.Marshal(m)
	if err != nil {
		log.Error().Err(err).Str("context", "mapStub").Msg("failed to marshal stub payload")
	}
	st.RawJSON = raw

	return st, true
}

/********** aggregate detail mapper **********/

// reviewDetails is what the gateway aggregate endpoint yields for one
// review, with absent facets left as zero values / nil.
type reviewDetails struct {
	AuthorName   string
	AuthorAvatar string
	Likes        *int
	Comments     *int
	ContentName  string
	Artist       string
	Image        string
}

func mapDetails(m map[string]any) reviewDetails {
	var d reviewDetails
	d.AuthorName = firstNonEmptyAlias(m, detailAliases, "author_name")
	d.AuthorAvatar = firstNonEmptyAlias(m, detailAliases, "author_avatar")
	if n, ok := firstIntFlexible(m, detailAliases["likes"]...); ok {
		d.Likes = &n
	}
	if n, ok := firstIntFlexible(m, detailAliases["comments"]...); ok {
		d.Comments = &n
	}
	d.ContentName = firstNonEmptyAlias(m, detailAliases, "content_name")
	d.Artist = firstNonEmptyAlias(m, detailAliases, "artist")
	d.Image = firstNonEmptyAlias(m, detailAliases, "image")
	return d
}

/********** fallback author name **********/

// fallbackAuthorName synthesizes a display name from the author id when
// both identity lookups fail.
func fallbackAuthorName(authorID string) string {
	if authorID == "" {
		return "Usuario"
	}
	if len(authorID) > 8 {
		return "Usuario " + authorID[:8]
	}
	return "Usuario " + authorID
}
