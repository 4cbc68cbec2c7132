package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/xhad/radar/internal/types"
	"golang.org/x/time/rate"
)

const (
	defaultMaxAttempts = 6
	baseWait           = 1 * time.Second
	maxWait            = 30 * time.Second
)

// RetrievalError is returned after all attempts for a single request are
// exhausted. Terminal for that request, never fatal to the batch.
type RetrievalError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

type Config struct {
	RateLimit   float64 // requests per second per throttle key
	PerHost     bool    // throttle per URL host instead of one global key
	UserAgent   string
	Timeout     time.Duration
	MaxAttempts int
	Logger      *slog.Logger
}

// Fetcher performs HTTP retrieval with per-key throttling and retry.
// The limiter map is the only shared mutable state and is mutex-guarded, so
// callers may fetch from multiple goroutines.
type Fetcher struct {
	config   Config
	client   *http.Client
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	log      *slog.Logger
}

func NewWithConfig(config Config) *Fetcher {
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = defaultMaxAttempts
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Fetcher{
		config:   config,
		client:   &http.Client{Timeout: config.Timeout},
		limiters: make(map[string]*rate.Limiter),
		log:      config.Logger,
	}
}

// limitKey returns the throttle key for a URL: one shared key when the
// source has a single endpoint, the URL host when many independent hosts
// are polled (slowness on one IR domain must not starve the others).
func (f *Fetcher) limitKey(rawURL string) string {
	if !f.config.PerHost {
		return "global"
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "global"
	}
	return u.Host
}

func (f *Fetcher) limiter(key string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(f.config.RateLimit), 1)
		f.limiters[key] = l
	}
	return l
}

// Fetch retrieves a URL. Every request blocks on the rate gate for its key;
// failures retry with exponential backoff and jitter until MaxAttempts.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*types.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= f.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := backoffWait(attempt - 1)
			f.log.Warn("retrying fetch",
				slog.String("url", rawURL),
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
			)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, &RetrievalError{URL: rawURL, Attempts: attempt - 1, Err: ctx.Err()}
			}
		}

		resp, err := f.doOnce(ctx, rawURL)
		if err != nil {
			lastErr = err
			continue
		}
		return resp, nil
	}

	return nil, &RetrievalError{URL: rawURL, Attempts: f.config.MaxAttempts, Err: lastErr}
}

func (f *Fetcher) doOnce(ctx context.Context, rawURL string) (*types.Response, error) {
	if err := f.limiter(f.limitKey(rawURL)).Wait(ctx); err != nil {
		return nil, err
	}

	f.log.Debug("fetching", slog.String("url", rawURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if f.config.UserAgent != "" {
		req.Header.Set("User-Agent", f.config.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, rawURL)
	}

	return &types.Response{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		URL:        resp.Request.URL.String(),
	}, nil
}

// backoffWait doubles from baseWait, capped at maxWait, plus up to one second
// of jitter so parallel workers do not retry in lockstep.
func backoffWait(retries int) time.Duration {
	wait := baseWait << uint(retries-1)
	if wait > maxWait || wait <= 0 {
		wait = maxWait
	}
	return wait + time.Duration(rand.Int63n(int64(time.Second)))
}
