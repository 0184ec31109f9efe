package lap

import (
	"time"

	"github.com/mpapenbr/trackline/log"
)

const (
	DefaultMinLapMs = int64(10000)
	// share of non-start checkpoints needed when not all are required
	partialCheckpointShare = 0.6
)

type (
	Option func(*Config)
	Config struct {
		MinLapMs              int64 `json:"minLapMs"`
		RequireAllCheckpoints bool  `json:"requireAllCheckpoints"`
		// AllCrossings processes every checkpoint crossed by a movement segment
		// ordered by position along the segment instead of only the first one.
		AllCrossings bool `json:"allCrossings,omitempty"`
		l            *log.Logger
	}
)

func DefaultConfig() Config {
	return Config{
		MinLapMs:              DefaultMinLapMs,
		RequireAllCheckpoints: true,
	}
}

// NewConfig applies opts to the default config.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func WithMinLapMs(ms int64) Option {
	return func(c *Config) {
		c.MinLapMs = ms
	}
}

func WithMinLap(d time.Duration) Option {
	return func(c *Config) {
		c.MinLapMs = d.Milliseconds()
	}
}

func WithRequireAllCheckpoints(arg bool) Option {
	return func(c *Config) {
		c.RequireAllCheckpoints = arg
	}
}

func WithAllCrossings() Option {
	return func(c *Config) {
		c.AllCrossings = true
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Config) {
		c.l = l
	}
}

// WithConfig replaces the lap rules by the values of cfg.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		c.MinLapMs = cfg.MinLapMs
		c.RequireAllCheckpoints = cfg.RequireAllCheckpoints
		c.AllCrossings = cfg.AllCrossings
	}
}
