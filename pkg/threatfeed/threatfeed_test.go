package threatfeed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lucid-vigil/hostwatch/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const dropList = `; Spamhaus DROP List 2026/10/19
; Last-Modified: Mon, 19 Oct 2026 06:00:00 GMT
1.10.16.0/20 ; SBL256894
203.0.113.50/32 ; SBL000001
# plain addresses
198.51.100.7
198.51.100.7
not-an-address
2001:db8::1/128
192.0.2.1  # trailing comment
`

func TestParse(t *testing.T) {
	addrs, err := Parse(strings.NewReader(dropList))
	require.NoError(t, err)
	assert.Equal(t, []string{"203.0.113.50", "198.51.100.7", "2001:db8::1", "192.0.2.1"}, addrs)
}

func TestParse_Empty(t *testing.T) {
	addrs, err := Parse(strings.NewReader("# nothing here\n\n;\n"))
	require.NoError(t, err)
	assert.Empty(t, addrs)
}

func TestHTTPSource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		fmt.Fprint(w, dropList)
	}))
	defer server.Close()

	src := NewHTTPSource("drop", server.URL, time.Second, rate.NewLimiter(rate.Inf, 1))
	addrs, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, addrs, 4)
	assert.Equal(t, "drop", src.Name())
}

func TestHTTPSource_RetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, "192.0.2.44")
	}))
	defer server.Close()

	src := NewHTTPSource("flaky", server.URL, time.Second, nil)
	src.delay = time.Millisecond

	addrs, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.44"}, addrs)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, gobreaker.StateClosed, src.State())
}

func TestHTTPSource_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	src := NewHTTPSource("down", server.URL, time.Second, nil)
	src.delay = time.Millisecond

	for i := 0; i < 3; i++ {
		_, err := src.Fetch(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, src.State())
	assert.Equal(t, int32(9), atomic.LoadInt32(&calls))

	_, err := src.Fetch(context.Background())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(9), atomic.LoadInt32(&calls), "open breaker short-circuits the request")
}

func TestFileSource_Fetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.txt")
	require.NoError(t, os.WriteFile(path, []byte("10.9.8.7\n"), 0644))

	src := NewFileSource(path)
	addrs, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"10.9.8.7"}, addrs)
	assert.Equal(t, "file:"+path, src.Name())

	_, err = NewFileSource(path + ".missing").Fetch(context.Background())
	assert.Error(t, err)
}

type fakeSource struct {
	name  string
	addrs []string
	err   error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(context.Context) ([]string, error) {
	return f.addrs, f.err
}

func TestPoller_RefreshKeepsLastGoodResult(t *testing.T) {
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	a := &fakeSource{name: "a", addrs: []string{"198.51.100.7", "192.0.2.1"}}
	b := &fakeSource{name: "b", addrs: []string{"192.0.2.1", "203.0.113.9"}}
	p := NewPoller([]Source{a, b}, metrics, zerolog.Nop())

	assert.Equal(t, []string{"192.0.2.1", "198.51.100.7", "203.0.113.9"}, p.Refresh(context.Background()))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.ThreatIndicators))

	b.addrs, b.err = nil, assert.AnError
	assert.Equal(t, []string{"192.0.2.1", "198.51.100.7", "203.0.113.9"}, p.Refresh(context.Background()))

	a.addrs = []string{"192.0.2.200"}
	assert.Equal(t, []string{"192.0.2.1", "192.0.2.200", "203.0.113.9"}, p.Refresh(context.Background()))
}

func TestPoller_RefreshNeverSucceeded(t *testing.T) {
	p := NewPoller([]Source{&fakeSource{name: "x", err: assert.AnError}}, nil, zerolog.Nop())
	assert.Empty(t, p.Refresh(context.Background()))
}

func TestPoller_WatchNoFileSources(t *testing.T) {
	p := NewPoller([]Source{&fakeSource{name: "x"}}, nil, zerolog.Nop())
	assert.NoError(t, p.Watch(context.Background(), func() {}))
}

func TestPoller_WatchFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blocklist.txt")
	require.NoError(t, os.WriteFile(path, []byte("192.0.2.1\n"), 0644))

	p := NewPoller([]Source{NewFileSource(path)}, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- p.Watch(ctx, func() { changed <- struct{}{} })
	}()

	// Unrelated files in the same directory are ignored.
	deadline := time.After(3 * time.Second)
	for {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644))
		require.NoError(t, os.WriteFile(path, []byte("192.0.2.1\n203.0.113.5\n"), 0644))
		select {
		case <-changed:
			cancel()
			assert.NoError(t, <-done)
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("no change notification for blocklist file")
		}
	}
}
