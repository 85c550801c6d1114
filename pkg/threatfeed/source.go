package threatfeed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Source supplies a list of flagged addresses.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]string, error)
}

const (
	maxFeedBytes   = 16 << 20
	defaultTimeout = 30 * time.Second
	userAgent      = "hostwatch-threatfeed/1.0"
)

// HTTPSource downloads a plain-text blocklist. Each fetch waits on the shared
// limiter, then runs up to three attempts with backoff inside a circuit breaker.
type HTTPSource struct {
	name    string
	url     string
	client  *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker

	attempts uint
	delay    time.Duration
}

// NewHTTPSource creates a source for url. limiter may be nil.
func NewHTTPSource(name, url string, timeout time.Duration, limiter *rate.Limiter) *HTTPSource {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "threatfeed-" + name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     10 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &HTTPSource{
		name:     name,
		url:      url,
		client:   &http.Client{Timeout: timeout},
		limiter:  limiter,
		cb:       cb,
		attempts: 3,
		delay:    time.Second,
	}
}

func (s *HTTPSource) Name() string {
	return s.name
}

// State reports the circuit breaker state.
func (s *HTTPSource) State() gobreaker.State {
	return s.cb.State()
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]string, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	result, err := s.cb.Execute(func() (interface{}, error) {
		var addrs []string
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(s.attempts),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				return s.delay << n
			}),
		)
		err := r.Do(func() error {
			var fetchErr error
			addrs, fetchErr = s.fetchOnce(ctx)
			return fetchErr
		})
		return addrs, err
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func (s *HTTPSource) fetchOnce(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, s.url)
	}
	return Parse(io.LimitReader(resp.Body, maxFeedBytes))
}

// FileSource reads a blocklist from a local file.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string {
	return "file:" + s.path
}

func (s *FileSource) Path() string {
	return s.path
}

func (s *FileSource) Fetch(ctx context.Context) ([]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(io.LimitReader(f, maxFeedBytes))
}
