// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"trackfeed/internal/app"
	"trackfeed/internal/domain"
)

type Handlers struct {
	Feed      *app.FeedService
	Reactions *app.ReactionController
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/feed", h.getFeed)
	s.mux.Post("/v1/reviews/{id}/reactions/toggle", h.toggleReaction)
}

func selectSort(q string) domain.FeedSort {
	if q == string(domain.SortRecent) {
		return domain.SortRecent
	}
	return domain.SortPopular
}

func viewerID(r *http.Request) string {
	return r.Header.Get("X-Viewer-ID")
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

type feedResponse struct {
	Items        []domain.EnrichedReview `json:"items"`
	Sort         domain.FeedSort         `json:"sort"`
	FromSnapshot bool                    `json:"from_snapshot,omitempty"`
}

// getFeed runs a full aggregation pass. A sort change re-aggregates from
// scratch: counts may have moved since the last load, so this is a reload,
// never a client-side re-sort.
func (h *Handlers) getFeed(w http.ResponseWriter, r *http.Request) {
	sort := selectSort(r.URL.Query().Get("sort"))
	res, err := h.Feed.Aggregate(r.Context(), viewerID(r), sort)
	if err != nil {
		// Aggregate absorbs its own failures; anything surfacing here is a
		// programming error.
		writeProblem(w, http.StatusInternalServerError, "Feed Failed", err.Error())
		return
	}

	resp := feedResponse{Items: res.Items, Sort: sort, FromSnapshot: res.FromSnapshot}
	etag, body := calcETagAndBody(resp)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write feed body")
	}
}

type toggleRequest struct {
	Count int  `json:"count"`
	Liked bool `json:"liked"`
}

// toggleReaction flips the viewer's like. The response carries the
// reconciled state; a failed mutation answers with a problem the client
// renders as a toast over the rolled-back state.
func (h *Handlers) toggleReaction(w http.ResponseWriter, r *http.Request) {
	reviewID := chi.URLParam(r, "id")
	if _, ok := app.NormalizeID(reviewID); !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid Review", "review id failed normalization")
		return
	}
	viewer := viewerID(r)
	if viewer == "" {
		writeProblem(w, http.StatusBadRequest, "Missing Viewer", "X-Viewer-ID header is required")
		return
	}

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "expected {count, liked}")
		return
	}

	current := domain.LikeView{ReviewID: reviewID, Count: req.Count, Liked: req.Liked}
	final, err := h.Reactions.Toggle(r.Context(), viewer, reviewID, current, nil)
	if err != nil {
		writeProblem(w, http.StatusBadGateway, "Reaction Failed", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(final); err != nil {
		log.Error().Err(err).Msg("failed to write toggle body")
	}
}
