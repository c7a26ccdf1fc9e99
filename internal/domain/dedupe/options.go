package dedupe

import "time"

type config struct {
	sizeHint int
	clock    func() time.Time
}

// Option configures the in-memory deduper.
type Option func(*config)

// WithSizeHint presizes the registry for about n claims.
func WithSizeHint(n int) Option {
	return func(c *config) {
		c.sizeHint = n
	}
}

// WithClock overrides the time source used to stamp claims.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.clock = now
	}
}
