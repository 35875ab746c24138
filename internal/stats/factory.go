// internal/stats/factory.go
package stats

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/lobbyhost/internal/database"
)

const (
	BackendHTTP     = "http"
	BackendPostgres = "postgres"
	BackendRandom   = "random"
)

// Options selects and tunes a backend.
type Options struct {
	Backend      string
	BaseURL      string
	Timeout      time.Duration
	Seed         uint64
	RandomSpread float64
	CacheTTL     time.Duration // zero disables caching
}

// Deps carries the connections a backend may need. Unused fields may be nil.
type Deps struct {
	DB     database.Querier
	Redis  RedisStore
	Logger *logrus.Logger
}

// NewProvider builds the configured backend, wrapped in a Redis cache when
// a TTL and a Redis client are both present.
func NewProvider(opts Options, deps Deps) (Provider, error) {
	var p Provider
	switch opts.Backend {
	case BackendHTTP:
		if opts.BaseURL == "" {
			return nil, fmt.Errorf("stats backend %q needs a base URL", opts.Backend)
		}
		p = NewHTTPProvider(opts.BaseURL, opts.Timeout, deps.Logger)
	case BackendPostgres:
		if deps.DB == nil {
			return nil, fmt.Errorf("stats backend %q needs a database", opts.Backend)
		}
		p = NewPostgresProvider(deps.DB)
	case BackendRandom:
		p = NewRandomProvider(opts.Seed, opts.RandomSpread)
	default:
		return nil, fmt.Errorf("unknown stats backend %q", opts.Backend)
	}

	if opts.CacheTTL > 0 && deps.Redis != nil {
		p = NewCachedProvider(p, deps.Redis, opts.CacheTTL, deps.Logger)
	}
	return p, nil
}
