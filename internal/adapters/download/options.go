package download

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/lacunalabels/maskgen/pkg/logger"
)

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithRatePerSecond caps how many downloads start per second.
func WithRatePerSecond(perSec float64) Option {
	return func(f *Fetcher) {
		if perSec > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

// WithLogger sets the fetcher logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}
