// internal/adapters/gateway/client.go
package gateway

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"trackfeed/internal/adapters/observability"
	"trackfeed/internal/domain"
)

// Client is the shared HTTP plumbing for every upstream service behind the
// gateway: client-side rate limiting, retries with backoff, Retry-After
// handling, and status-to-sentinel mapping. Per-service endpoints live in
// the sibling files.
type Client struct {
	base    string
	hc      *http.Client
	key     string
	rl      *rate.Limiter
	breaker *gobreaker.CircuitBreaker[map[string]any]
}

func New(base, key string, rps int) (*Client, error) {
	if base == "" {
		return nil, fmt.Errorf("gateway base URL is required")
	}
	if rps <= 0 {
		rps = 10
	}
	c := &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 5 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}
	// Only the aggregate details endpoint sits behind a breaker: when the
	// gateway flaps, enrichment should degrade straight to the direct
	// per-service fallbacks instead of burning a timeout per review.
	c.breaker = gobreaker.NewCircuitBreaker[map[string]any](gobreaker.Settings{
		Name:        "review-details",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
	})
	return c, nil
}

// ---- Internals ----

// getFirst walks candidate URL patterns (modern first, legacy second),
// moving on only on 404.
func (c *Client) getFirst(ctx context.Context, service string, urls []string, out any) error {
	var last error
	for _, u := range urls {
		if err := c.do(ctx, http.MethodGet, service, u, nil, out); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				last = err
				continue // try next pattern
			}
			return err // non-404: stop early
		}
		return nil // success
	}
	if last != nil {
		return last
	}
	return errors.New("no candidate URL succeeded")
}

// do performs one JSON round trip with client-side rate limiting and
// retries on 429 and transient 5xx, honoring Retry-After when provided.
func (c *Client) do(ctx context.Context, method, service, url string, body, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	start := time.Now()
	var lastErr error
	for i := 0; i < 4; i++ {
		// fresh request each attempt
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, rd)
		if err != nil {
			return err
		}
		if c.key != "" {
			req.Header.Set("X-API-Key", c.key)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "trackfeed/1.0")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			observability.ObserveExternal(service, method, 0, time.Since(start))
			return lastErr
		}

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted:
			observability.ObserveExternal(service, method, resp.StatusCode, time.Since(start))
			if out == nil {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				return nil
			}
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusNoContent:
			observability.ObserveExternal(service, method, resp.StatusCode, time.Since(start))
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			observability.ObserveExternal(service, method, resp.StatusCode, time.Since(start))
			return domain.ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			observability.ObserveExternal(service, method, resp.StatusCode, time.Since(start))
			return domain.ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			observability.ObserveExternal(service, method, resp.StatusCode, time.Since(start))
			return domain.ErrForbidden

		case http.StatusConflict:
			resp.Body.Close()
			observability.ObserveExternal(service, method, resp.StatusCode, time.Since(start))
			return domain.ErrConflict

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			code := resp.StatusCode
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = remoteErr(code)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			observability.ObserveExternal(service, method, code, time.Since(start))
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			code := resp.StatusCode
			resp.Body.Close()
			observability.ObserveExternal(service, method, code, time.Since(start))
			return fmt.Errorf("bad status %d: %s", code, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// remoteErr maps exhausted-retry statuses: gateway-shaped failures carry
// the connectivity sentinel, a plain 500 stays a generic error.
func remoteErr(code int) error {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("remote %d: %w", code, domain.ErrUnavailable)
	default:
		return fmt.Errorf("remote %d", code)
	}
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns an exponential backoff delay with concurrency-safe jitter.
// i = retry attempt (0,1,2,...). Base doubles each attempt (200ms, 400ms, 800ms...),
// with up to +50% random jitter to avoid thundering herds.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0                  // 0..1
	j := time.Duration(0.5 * f * float64(base)) // up to +50%
	return base + j
}
