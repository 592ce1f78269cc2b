package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lsst-sqre/vo-siav2/ports"
	"github.com/rs/zerolog"
)

var (
	// ErrNotInitialized is returned by Connect before Initialize.
	ErrNotInitialized = errors.New("remote factory not initialized")
	// ErrUnknownLabel is returned for a label with no repository binding.
	ErrUnknownLabel = errors.New("no repository bound to label")
)

// FactoryConfig configures a Factory.
type FactoryConfig struct {
	Timeout time.Duration
	Headers map[string]string
}

// Factory hands out per-request connections keyed by repository label.
// It shares one HTTP connection pool across requests and is safe for
// concurrent use after Initialize.
type Factory struct {
	logger     zerolog.Logger
	httpClient *http.Client
	headers    map[string]string

	mu       sync.RWMutex
	bindings map[string]string
}

// NewFactory creates an uninitialized factory.
func NewFactory(cfg FactoryConfig, logger zerolog.Logger) *Factory {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Factory{
		logger:     logger,
		httpClient: &http.Client{Timeout: timeout},
		headers:    cfg.Headers,
	}
}

// Initialize binds labels to repository locations.
func (f *Factory) Initialize(bindings map[string]string) {
	copied := make(map[string]string, len(bindings))
	for label, repo := range bindings {
		copied[label] = repo
	}

	f.mu.Lock()
	f.bindings = copied
	f.mu.Unlock()

	f.logger.Info().Strs("labels", f.Labels()).Msg("remote repository factory initialized")
}

// Initialized reports whether Initialize has run since the last Close.
func (f *Factory) Initialized() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bindings != nil
}

// Labels returns the bound labels in sorted order.
func (f *Factory) Labels() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.bindings))
	for label := range f.bindings {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Connect returns a connection for label authenticated with token.
func (f *Factory) Connect(ctx context.Context, label, token string) (ports.Connection, error) {
	f.mu.RLock()
	bindings := f.bindings
	repo, ok := f.bindings[label]
	f.mu.RUnlock()

	if bindings == nil {
		return nil, ErrNotInitialized
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLabel, label)
	}

	client := NewClient(ClientConfig{
		BaseURL:    RepositoryBase(repo),
		Token:      token,
		Headers:    f.headers,
		HTTPClient: f.httpClient,
	})
	return NewConnection(client), nil
}

// Close drops the bindings and idle connections.
func (f *Factory) Close() error {
	f.mu.Lock()
	f.bindings = nil
	f.mu.Unlock()
	f.httpClient.CloseIdleConnections()
	return nil
}

// RepositoryBase strips a trailing configuration file name from a
// repository URL, e.g. ".../repo/dp02/butler.yaml" becomes ".../repo/dp02".
func RepositoryBase(repository string) string {
	base := strings.TrimRight(repository, "/")
	if i := strings.LastIndex(base, "/"); i >= 0 {
		last := base[i+1:]
		if strings.HasSuffix(last, ".yaml") || strings.HasSuffix(last, ".yml") || strings.HasSuffix(last, ".json") {
			base = base[:i]
		}
	}
	return base
}

var _ ports.RemoteFactory = (*Factory)(nil)
