package raster

import "github.com/lacunalabels/maskgen/pkg/logger"

// Option configures a ThreeClass rasterizer.
type Option func(*ThreeClass)

// WithSourceColumn picks the assignment column naming the chip file,
// "image" (default) or "chip".
func WithSourceColumn(col string) Option {
	return func(t *ThreeClass) {
		t.srcCol = col
	}
}

// WithOverwrite replaces existing masks instead of skipping them.
func WithOverwrite(overwrite bool) Option {
	return func(t *ThreeClass) {
		t.overwrite = overwrite
	}
}

// WithVerbose logs every mask written.
func WithVerbose(verbose bool) Option {
	return func(t *ThreeClass) {
		t.verbose = verbose
	}
}

// WithLogger sets the rasterizer logger.
func WithLogger(l logger.Logger) Option {
	return func(t *ThreeClass) {
		if l != nil {
			t.logger = l
		}
	}
}
