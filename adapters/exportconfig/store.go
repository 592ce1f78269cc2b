// Package exportconfig loads ObsCore export configurations from local
// files, HTTP(S) URLs and S3 objects. Loaded configurations are cached by
// location; local files are watched and evicted when they change.
package exportconfig

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lsst-sqre/vo-siav2/domain/obscore"
	"github.com/lsst-sqre/vo-siav2/ports"
	"github.com/rs/zerolog"
)

// Source names used in logs and metrics.
const (
	SourceFile = "file"
	SourceHTTP = "http"
	SourceS3   = "s3"
)

// LoadRecorder observes configuration loads.
type LoadRecorder interface {
	RecordExportConfigLoad(source, result string)
}

// Options configures a Store.
type Options struct {
	HTTPTimeout time.Duration
	// Watch enables fsnotify eviction of local files.
	Watch bool
	// Objects serves s3:// locations. Nil disables them.
	Objects ObjectGetter
	Metrics LoadRecorder
}

// Store loads and caches export configurations.
type Store struct {
	logger     zerolog.Logger
	httpClient *http.Client
	objects    ObjectGetter
	metrics    LoadRecorder

	mu      sync.RWMutex
	cache   map[string]*obscore.ExporterConfig
	watcher *fsnotify.Watcher
	watched map[string]bool
	stopCh  chan struct{}
	stopped bool
}

// NewStore creates a store.
func NewStore(opts Options, logger zerolog.Logger) (*Store, error) {
	timeout := opts.HTTPTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	s := &Store{
		logger:     logger,
		httpClient: &http.Client{Timeout: timeout},
		objects:    opts.Objects,
		metrics:    opts.Metrics,
		cache:      make(map[string]*obscore.ExporterConfig),
		watched:    make(map[string]bool),
		stopCh:     make(chan struct{}),
	}

	if opts.Watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("create watcher: %w", err)
		}
		s.watcher = watcher
		go s.watchLoop()
	}
	return s, nil
}

// Load returns the configuration at location, fetching it on first use.
func (s *Store) Load(ctx context.Context, location string) (*obscore.ExporterConfig, error) {
	source, key, err := resolve(location)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	cfg, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return cfg, nil
	}

	data, err := s.fetch(ctx, source, key)
	if err == nil {
		cfg, err = obscore.ParseExporterConfig(data)
	}
	if err != nil {
		s.record(source, "error")
		return nil, fmt.Errorf("load export config %s: %w", location, err)
	}
	s.record(source, "ok")

	s.mu.Lock()
	s.cache[key] = cfg
	s.mu.Unlock()

	if source == SourceFile {
		s.watch(key)
	}
	s.logger.Debug().Str("source", source).Str("location", key).Msg("export config loaded")
	return cfg, nil
}

// Invalidate drops a cached configuration.
func (s *Store) Invalidate(location string) {
	_, key, err := resolve(location)
	if err != nil {
		return
	}
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
}

// Cached reports whether location is in the cache.
func (s *Store) Cached(location string) bool {
	_, key, err := resolve(location)
	if err != nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cache[key]
	return ok
}

// Close stops the file watcher.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.stopCh)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func (s *Store) fetch(ctx context.Context, source, key string) ([]byte, error) {
	switch source {
	case SourceHTTP:
		return s.fetchHTTP(ctx, key)
	case SourceS3:
		if s.objects == nil {
			return nil, fmt.Errorf("no object storage configured for %s", key)
		}
		bucket, object, err := ParseS3Location(key)
		if err != nil {
			return nil, err
		}
		return s.objects.GetObject(ctx, bucket, object)
	default:
		return os.ReadFile(key)
	}
}

func (s *Store) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

func (s *Store) record(source, result string) {
	if s.metrics != nil {
		s.metrics.RecordExportConfigLoad(source, result)
	}
}

// watch adds the file's directory to the watcher. Watching the directory
// survives editors that replace files on save.
func (s *Store) watch(path string) {
	if s.watcher == nil {
		return
	}
	dir := filepath.Dir(path)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watched[dir] || s.stopped {
		return
	}
	if err := s.watcher.Add(dir); err != nil {
		s.logger.Warn().Err(err).Str("dir", dir).Msg("cannot watch export config directory")
		return
	}
	s.watched[dir] = true
}

func (s *Store) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Clean(event.Name)

			s.mu.Lock()
			_, cached := s.cache[name]
			delete(s.cache, name)
			s.mu.Unlock()

			if cached {
				s.logger.Info().
					Str("event", event.Op.String()).
					Str("file", name).
					Msg("export config changed, evicted from cache")
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error().Err(err).Msg("export config watcher error")

		case <-s.stopCh:
			return
		}
	}
}

// resolve classifies a location and returns its cache key.
func resolve(location string) (source, key string, err error) {
	switch {
	case location == "":
		return "", "", fmt.Errorf("empty export config location")
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return SourceHTTP, location, nil
	case strings.HasPrefix(location, "s3://"):
		return SourceS3, location, nil
	default:
		path := strings.TrimPrefix(location, "file://")
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", "", fmt.Errorf("resolve %s: %w", location, err)
		}
		return SourceFile, abs, nil
	}
}

var _ ports.ExportConfigLoader = (*Store)(nil)
