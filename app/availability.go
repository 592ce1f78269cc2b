package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lsst-sqre/vo-siav2/domain/collection"
	"github.com/lsst-sqre/vo-siav2/domain/sia"
	"github.com/lsst-sqre/vo-siav2/ports"
	"github.com/rs/zerolog"
)

// DefaultAvailabilityTimeout bounds a REMOTE availability probe.
const DefaultAvailabilityTimeout = 10 * time.Second

type availabilityCheck func(ctx context.Context, coll collection.DataCollection) sia.Availability

// AvailabilityConfig configures AvailabilityChecker.
type AvailabilityConfig struct {
	Timeout time.Duration
	// Transport is used by REMOTE probes. Each probe gets its own
	// client whose idle connections are closed when the probe ends.
	Transport http.RoundTripper
}

// AvailabilityChecker reports VOSI availability per backend kind. Checks
// never fail; problems are reported as notes.
type AvailabilityChecker struct {
	timeout   time.Duration
	transport http.RoundTripper
	metrics   ports.QueryMetrics
	logger    zerolog.Logger

	checks map[collection.BackendKind]availabilityCheck
}

// NewAvailabilityChecker creates an availability checker.
func NewAvailabilityChecker(cfg AvailabilityConfig, metrics ports.QueryMetrics, logger zerolog.Logger) *AvailabilityChecker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultAvailabilityTimeout
	}
	c := &AvailabilityChecker{
		timeout:   cfg.Timeout,
		transport: cfg.Transport,
		metrics:   metrics,
		logger:    logger,
	}
	c.checks = map[collection.BackendKind]availabilityCheck{
		collection.BackendDirect: c.checkDirect,
		collection.BackendRemote: c.checkRemote,
	}
	return c
}

// Check reports availability of coll reached through kind.
func (c *AvailabilityChecker) Check(ctx context.Context, coll collection.DataCollection, kind collection.BackendKind) sia.Availability {
	check, ok := c.checks[kind]
	var a sia.Availability
	if ok {
		a = check(ctx, coll)
	} else {
		a = sia.Availability{
			Available: false,
			Notes:     []string{fmt.Sprintf("Unknown backend kind %q; availability cannot be determined", kind)},
		}
	}
	if c.metrics != nil {
		c.metrics.RecordAvailabilityCheck(string(kind), a.Available)
	}
	return a
}

func (c *AvailabilityChecker) checkDirect(context.Context, collection.DataCollection) sia.Availability {
	return sia.Availability{Available: true}
}

func (c *AvailabilityChecker) checkRemote(ctx context.Context, coll collection.DataCollection) sia.Availability {
	transport := c.transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	client := &http.Client{Timeout: c.timeout, Transport: transport}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coll.Repository, nil)
	if err != nil {
		return c.unavailable(coll, err.Error())
	}
	resp, err := client.Do(req)
	if err != nil {
		return c.unavailable(coll, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.unavailable(coll, fmt.Sprintf("Repository %s returned status %d", coll.Repository, resp.StatusCode))
	}
	return sia.Availability{Available: true}
}

func (c *AvailabilityChecker) unavailable(coll collection.DataCollection, note string) sia.Availability {
	c.logger.Warn().
		Str("collection", coll.Name).
		Str("repository", coll.Repository).
		Str("note", note).
		Msg("repository unavailable")
	return sia.Availability{Available: false, Notes: []string{note}}
}
