package checkpoint

import (
	"errors"
	"fmt"

	"github.com/mpapenbr/trackline/log"
)

const (
	DefaultN                 = 512
	DefaultStride            = 3
	DefaultValidationSamples = 7
	DefaultEdgeEps           = 1e-3

	MaxN                 = 4096
	MaxValidationSamples = 64
)

var ErrConfigOutOfRange = errors.New("checkpoint config out of range")

type (
	Option func(*Config)
	// Config holds the generator parameters. Zero values are replaced by defaults.
	Config struct {
		N                 int     `json:"n,omitempty"`
		Stride            int     `json:"stride,omitempty"`
		ValidationSamples int     `json:"validationSamples,omitempty"`
		Window            int     `json:"window,omitempty"` // DTW band half-width, N/8 if 0
		EdgeEps           float64 `json:"edgeEps,omitempty"`
		l                 *log.Logger
	}
)

func WithN(n int) Option {
	return func(c *Config) {
		c.N = n
	}
}

func WithStride(stride int) Option {
	return func(c *Config) {
		c.Stride = stride
	}
}

func WithValidationSamples(samples int) Option {
	return func(c *Config) {
		c.ValidationSamples = samples
	}
}

func WithWindow(window int) Option {
	return func(c *Config) {
		c.Window = window
	}
}

func WithEdgeEps(eps float64) Option {
	return func(c *Config) {
		c.EdgeEps = eps
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Config) {
		c.l = l
	}
}

// WithConfig copies the parameters of cfg. Zero values keep their defaults.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		if cfg.N > 0 {
			c.N = cfg.N
		}
		if cfg.Stride > 0 {
			c.Stride = cfg.Stride
		}
		if cfg.ValidationSamples > 0 {
			c.ValidationSamples = cfg.ValidationSamples
		}
		if cfg.Window > 0 {
			c.Window = cfg.Window
		}
		if cfg.EdgeEps > 0 {
			c.EdgeEps = cfg.EdgeEps
		}
	}
}

// Validate checks the parameters against their limits. Zero values are
// accepted since they are replaced by defaults. The DTW band must not be
// wider than half the ring.
func (c Config) Validate() error {
	n := c.N
	if n <= 0 {
		n = DefaultN
	}
	switch {
	case c.N < 0 || c.N > MaxN:
		return fmt.Errorf("%w: n %d not in [1,%d]", ErrConfigOutOfRange, c.N, MaxN)
	case c.Stride < 0 || c.Stride > n:
		return fmt.Errorf("%w: stride %d not in [1,%d]", ErrConfigOutOfRange, c.Stride, n)
	case c.ValidationSamples < 0 || c.ValidationSamples > MaxValidationSamples:
		return fmt.Errorf("%w: validationSamples %d not in [1,%d]",
			ErrConfigOutOfRange, c.ValidationSamples, MaxValidationSamples)
	case c.Window < 0 || c.Window > n/2:
		return fmt.Errorf("%w: window %d not in [1,%d]", ErrConfigOutOfRange, c.Window, n/2)
	case c.EdgeEps < 0:
		return fmt.Errorf("%w: edgeEps %g is negative", ErrConfigOutOfRange, c.EdgeEps)
	}
	return nil
}

func newConfig(opts ...Option) *Config {
	c := &Config{}
	for _, opt := range opts {
		opt(c)
	}
	if c.N <= 0 {
		c.N = DefaultN
	}
	if c.Stride <= 0 {
		c.Stride = DefaultStride
	}
	if c.ValidationSamples <= 0 {
		c.ValidationSamples = DefaultValidationSamples
	}
	if c.Window <= 0 {
		c.Window = c.N / 8
	}
	if c.EdgeEps <= 0 {
		c.EdgeEps = DefaultEdgeEps
	}
	if c.l == nil {
		c.l = log.Default().Named("checkpoint")
	}
	return c
}
