package service

import (
	"github.com/lacunalabels/maskgen/internal/adapters/mq/worker"
	"github.com/lacunalabels/maskgen/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRasterizer replaces the three-class rasterizer, e.g. with a stub in
// tests. Field geometries are then not loaded.
func WithRasterizer(r worker.Rasterizer) Option {
	return func(s *Service) {
		s.rasterizer = r
	}
}

// WithRunIDFunc sets the run id generator.
func WithRunIDFunc(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newRunID = fn
		}
	}
}
