package threatfeed

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/lucid-vigil/hostwatch/pkg/errors"
	"github.com/lucid-vigil/hostwatch/pkg/telemetry"
	"github.com/rs/zerolog"
)

// Poller merges every source into one threat indicator set.
type Poller struct {
	sources []Source
	metrics *telemetry.Metrics
	logger  zerolog.Logger

	mu   sync.Mutex
	last map[string][]string // last good result per source
}

func NewPoller(sources []Source, metrics *telemetry.Metrics, logger zerolog.Logger) *Poller {
	return &Poller{
		sources: sources,
		metrics: metrics,
		logger:  logger.With().Str("component", "threatfeed").Logger(),
		last:    make(map[string][]string),
	}
}

// Refresh fetches every source and returns the sorted, de-duplicated union.
// A failing source contributes its last good result.
func (p *Poller) Refresh(ctx context.Context) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, src := range p.sources {
		addrs, err := src.Fetch(ctx)
		if hs, ok := src.(*HTTPSource); ok {
			p.metrics.SetBreakerState(src.Name(), int(hs.State()))
		}
		if err != nil {
			errors.NewFeedError(src.Name(), err).Log(p.logger)
			continue
		}
		p.last[src.Name()] = addrs
		p.logger.Debug().Str("source", src.Name()).Int("addresses", len(addrs)).Msg("Threat feed refreshed.")
	}

	seen := make(map[string]bool)
	var union []string
	for _, addrs := range p.last {
		for _, a := range addrs {
			if !seen[a] {
				seen[a] = true
				union = append(union, a)
			}
		}
	}
	sort.Strings(union)

	p.metrics.SetThreatIndicators(len(union))
	return union
}

// Watch calls onChange whenever a file source is written, created or renamed
// into place. It returns when ctx is done, or immediately if there are no
// file sources.
func (p *Poller) Watch(ctx context.Context, onChange func()) error {
	targets := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, src := range p.sources {
		if fs, ok := src.(*FileSource); ok {
			path := filepath.Clean(fs.Path())
			targets[path] = true
			dirs[filepath.Dir(path)] = true
		}
	}
	if len(targets) == 0 {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Directories survive editors and feed updaters that replace the file.
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			p.logger.Warn().Err(err).Str("dir", dir).Msg("Failed to watch blocklist directory.")
			continue
		}
		p.logger.Info().Str("dir", dir).Msg("Watching blocklist directory.")
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !targets[filepath.Clean(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				p.logger.Info().Str("file_path", event.Name).Str("op", event.Op.String()).Msg("Blocklist file changed.")
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Error().Err(err).Msg("Blocklist watcher error.")
		case <-ctx.Done():
			return nil
		}
	}
}
