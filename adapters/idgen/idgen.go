// Package idgen generates query identifiers.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/lsst-sqre/vo-siav2/ports"
)

// UUID generates random UUID v4 identifiers.
type UUID struct{}

// New returns a new UUID v4.
func (UUID) New() string {
	return uuid.NewString()
}

// Sequential generates predictable identifiers for tests.
type Sequential struct {
	prefix  string
	counter atomic.Uint64
}

// NewSequential creates a generator producing prefix1, prefix2, ...
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New returns the next identifier.
func (s *Sequential) New() string {
	return s.prefix + strconv.FormatUint(s.counter.Add(1), 10)
}

var (
	_ ports.IDGenerator = UUID{}
	_ ports.IDGenerator = (*Sequential)(nil)
)
