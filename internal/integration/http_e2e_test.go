//go:build integration || !unit

package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"trackfeed/internal/adapters/gateway"
	httpserver "trackfeed/internal/adapters/http_server"
	redisad "trackfeed/internal/adapters/redis"
	"trackfeed/internal/app"
	"trackfeed/internal/domain"
	mysqlrepo "trackfeed/internal/storage/mysql"
)

// ---------- helpers ----------

func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/sql)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

// ---------- fake upstream gateway ----------

// upstream is a minimal stand-in for the review platform: the review list,
// the aggregate details endpoint, and the reaction mutations.
type upstream struct {
	mu     sync.Mutex
	likes  map[string]int    // review id -> count
	owners map[string]string // "reviewID/viewerID" -> reaction id
	nextID int
}

func newUpstream() *upstream {
	return &upstream{
		likes:  map[string]int{"r-1": 3, "r-2": 11},
		owners: map[string]string{},
	}
}

func (u *upstream) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /reviews", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"id":"r-1","userId":"u-1","songId":"s-1","rating":5,"title":"Brutal","createdAt":"2026-04-02T10:00:00Z"},
			{"id":"r-2","UserId":"u-2","albumId":"a-1","rating":3,"createdAt":"2026-04-01T10:00:00Z"},
			{"id":"null","userId":"u-3","songId":"s-9","rating":4,"createdAt":"2026-04-03T10:00:00Z"}
		]`)
	})

	mux.HandleFunc("GET /review-details/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		u.mu.Lock()
		likes := u.likes[id]
		u.mu.Unlock()
		details := map[string]any{
			"username":     "user-" + id,
			"avatar":       "/av/" + id + ".png",
			"likes":        likes,
			"commentCount": 2,
			"songName":     "Track " + id,
			"artistName":   "Artist " + id,
			"image":        "/cover/" + id + ".jpg",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(details)
	})

	mux.HandleFunc("GET /reviews/{id}/reactions/count", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		n := u.likes[r.PathValue("id")]
		u.mu.Unlock()
		fmt.Fprintf(w, "%d", n)
	})

	mux.HandleFunc("POST /reviews/{id}/reactions", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ViewerID string `json:"viewerId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		id := r.PathValue("id")
		u.mu.Lock()
		defer u.mu.Unlock()
		pair := id + "/" + body.ViewerID
		if _, dup := u.owners[pair]; dup {
			w.WriteHeader(http.StatusConflict)
			return
		}
		u.nextID++
		rid := fmt.Sprintf("rx-%d", u.nextID)
		u.owners[pair] = rid
		u.likes[id]++
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"reactionId":%q}`, rid)
	})

	mux.HandleFunc("DELETE /reactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		rid := r.PathValue("id")
		u.mu.Lock()
		defer u.mu.Unlock()
		for pair, owned := range u.owners {
			if owned == rid {
				delete(u.owners, pair)
				review := pair[:strings.IndexByte(pair, '/')]
				u.likes[review]--
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})

	mux.HandleFunc("DELETE /reviews/{id}/reactions", func(w http.ResponseWriter, r *http.Request) {
		pair := r.PathValue("id") + "/" + r.URL.Query().Get("viewerId")
		u.mu.Lock()
		defer u.mu.Unlock()
		if _, ok := u.owners[pair]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(u.owners, pair)
		u.likes[r.PathValue("id")]--
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

// ---------- the test ----------

func TestHTTP_EndToEnd_FeedAndToggle(t *testing.T) {
	// Start isolated MySQL container
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=trackfeed",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "trackfeed")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)

	// Fake upstream + miniredis + full wiring, same shape as cmd/api.
	up := newUpstream()
	upstreamSrv := httptest.NewServer(up.handler())
	defer upstreamSrv.Close()

	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0, "tf:")
	snaps := mysqlrepo.New(db)

	gw, err := gateway.New(upstreamSrv.URL, "e2e-key", 100)
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	descriptors := app.NewDescriptorService(gw, cache, 3600)
	resolver := app.NewResolver(gw, gw, gw, gw, descriptors, cache, snaps, 2*time.Second)
	feed := app.NewFeedService(gw, resolver, snaps, 4, 5*time.Second)
	reactions := app.NewReactionController(gw, cache, 0, 3*time.Second)

	srv := httpserver.New()
	srv.MountHandlers(&httpserver.Handlers{Feed: feed, Reactions: reactions})
	api := httptest.NewServer(srv.Mux())
	defer api.Close()

	viewer := "viewer-e2e"
	doReq := func(method, path string, body []byte) *http.Response {
		t.Helper()
		req, err := http.NewRequest(method, api.URL+path, bytes.NewReader(body))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		req.Header.Set("X-Viewer-ID", viewer)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
		return res
	}

	// 1. Full feed load: the broken third stub is dropped, the rest come
	// back enriched and popular-ordered.
	res := doReq(http.MethodGet, "/v1/feed", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("feed status %d", res.StatusCode)
	}
	etag := res.Header.Get("ETag")
	if etag == "" {
		t.Fatal("feed response missing ETag")
	}
	var body struct {
		Items []domain.EnrichedReview `json:"items"`
		Sort  domain.FeedSort         `json:"sort"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode feed: %v", err)
	}
	res.Body.Close()
	if len(body.Items) != 2 {
		t.Fatalf("expected 2 feed items, got %d", len(body.Items))
	}
	if body.Items[0].ID != "r-2" {
		t.Fatalf("popular default should put r-2 first: %+v", body.Items)
	}
	if body.Items[0].AuthorName != "user-r-2" || body.Items[0].ContentName != "Track r-2" {
		t.Fatalf("enrichment incomplete: %+v", body.Items[0])
	}

	// 2. Conditional reload with the same content answers 304.
	req, _ := http.NewRequest(http.MethodGet, api.URL+"/v1/feed", nil)
	req.Header.Set("X-Viewer-ID", viewer)
	req.Header.Set("If-None-Match", etag)
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("conditional GET: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", res.StatusCode)
	}

	// 3. The successful pass persisted a last-known-good snapshot.
	snapItems, _, err := snaps.GetFeed(context.Background(), viewer)
	if err != nil || len(snapItems) != 2 {
		t.Fatalf("snapshot missing: len=%d err=%v", len(snapItems), err)
	}

	// 4. Like r-1, then unlike it.
	res = doReq(http.MethodPost, "/v1/reviews/r-1/reactions/toggle", []byte(`{"count":3,"liked":false}`))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("toggle status %d", res.StatusCode)
	}
	var view domain.LikeView
	if err := json.NewDecoder(res.Body).Decode(&view); err != nil {
		t.Fatalf("decode toggle: %v", err)
	}
	res.Body.Close()
	if !view.Liked || view.Count != 4 {
		t.Fatalf("like view: %+v", view)
	}

	res = doReq(http.MethodPost, "/v1/reviews/r-1/reactions/toggle", []byte(`{"count":4,"liked":true}`))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("unlike status %d", res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(&view); err != nil {
		t.Fatalf("decode unlike: %v", err)
	}
	res.Body.Close()
	if view.Liked || view.Count != 3 {
		t.Fatalf("unlike view: %+v", view)
	}
	up.mu.Lock()
	leftover := len(up.owners)
	up.mu.Unlock()
	if leftover != 0 {
		t.Fatalf("reactions left upstream after unlike: %d", leftover)
	}

	// 5. Malformed review ids and missing viewer headers are rejected
	// before any upstream call.
	res = doReq(http.MethodPost, "/v1/reviews/null/reactions/toggle", []byte(`{"count":0,"liked":false}`))
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("sentinel id should 400, got %d", res.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodPost, api.URL+"/v1/reviews/r-1/reactions/toggle", bytes.NewReader([]byte(`{"count":0,"liked":false}`)))
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("no-viewer toggle: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing viewer should 400, got %d", res.StatusCode)
	}
}
