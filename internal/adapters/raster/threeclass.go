// Package raster burns field polygons into per-site three-class masks
// aligned with image chips.
package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"golang.org/x/image/tiff"

	"github.com/lacunalabels/maskgen/internal/domain/model"
	"github.com/lacunalabels/maskgen/pkg/logger"
)

// Mask classes.
const (
	ClassBackground uint8 = 0
	ClassField      uint8 = 1
	ClassBoundary   uint8 = 2
)

// Source columns accepted by WithSourceColumn.
const (
	SourceImage = "image"
	SourceChip  = "chip"
)

// ThreeClass writes masks where field interiors are 1, pixels within half
// a pixel of a field edge are 2 and everything else is 0. Its configuration
// is fixed at construction and it is safe for concurrent use.
type ThreeClass struct {
	fields    *Fields
	chipDir   string
	maskDir   string
	srcCol    string
	overwrite bool
	verbose   bool

	logger logger.Logger
}

// NewThreeClass binds the field geometries and directories shared by every
// rasterization.
func NewThreeClass(fields *Fields, chipDir, maskDir string, opts ...Option) (*ThreeClass, error) {
	t := &ThreeClass{
		fields:  fields,
		chipDir: chipDir,
		maskDir: maskDir,
		srcCol:  SourceImage,
		logger:  logger.Get().Named("raster"),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.srcCol = strings.ToLower(strings.TrimSpace(t.srcCol))
	if t.srcCol != SourceImage && t.srcCol != SourceChip {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSourceColumn, t.srcCol)
	}
	return t, nil
}

// MaskPath returns where the mask of site is written.
func (t *ThreeClass) MaskPath(site string) string {
	return filepath.Join(t.maskDir, site+".tif")
}

// Rasterize produces the mask for a. Problems are reported in the result.
func (t *ThreeClass) Rasterize(ctx context.Context, index int, a model.Assignment) (res model.MaskResult) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = model.Failed(index, a, fmt.Errorf("rasterize %s: %v", a.Name, p))
		}
		res.Duration = time.Since(start)
	}()

	res = model.MaskResult{Assignment: a, Index: index}
	if a.Name == "" {
		return model.Failed(index, a, errors.New("assignment has no site name"))
	}
	maskPath := t.MaskPath(a.Name)
	res.MaskPath = maskPath

	if !t.overwrite {
		if _, err := os.Stat(maskPath); err == nil {
			res.Outcome = model.OutcomeSkipped
			return res
		}
	}

	src := a.Image
	if t.srcCol == SourceChip {
		src = a.Chip
	}
	if src == "" {
		return failedAt(index, a, maskPath, fmt.Errorf("%w: empty %s column", ErrChipUnreadable, t.srcCol))
	}

	grid, err := ReadGrid(filepath.Join(t.chipDir, src))
	if err != nil {
		return failedAt(index, a, maskPath, err)
	}

	polys := t.fields.Lookup(a.Name, a.AssignmentID)
	// NaN counts compare false, so an unknown count never demands fields.
	expectFields := a.NFlds > 0

	img, fieldPx, boundaryPx, err := burn(ctx, grid, polys)
	if err != nil {
		return failedAt(index, a, maskPath, err)
	}
	if expectFields && fieldPx+boundaryPx == 0 {
		return failedAt(index, a, maskPath, fmt.Errorf("%w: site %s, assignment %s, %d polygons",
			ErrNoFieldIntersection, a.Name, a.AssignmentID, len(polys)))
	}

	if err := writeMask(ctx, maskPath, img, grid); err != nil {
		return failedAt(index, a, maskPath, err)
	}

	res.Outcome = model.OutcomeOK
	res.FieldPixels = fieldPx
	res.BoundaryPixels = boundaryPx
	if t.verbose {
		t.logger.Info(ctx, "mask written",
			logger.String("site", a.Name),
			logger.String("path", maskPath),
			logger.Int("field_pixels", fieldPx),
			logger.Int("boundary_pixels", boundaryPx),
		)
	}
	return res
}

func failedAt(index int, a model.Assignment, maskPath string, err error) model.MaskResult {
	res := model.Failed(index, a, err)
	res.MaskPath = maskPath
	return res
}

// burn classifies every pixel center of grid against polys.
func burn(ctx context.Context, grid Grid, polys []orb.Polygon) (*image.Gray, int, int, error) {
	img := image.NewGray(image.Rect(0, 0, grid.Width, grid.Height))
	half := grid.HalfPixel()

	for _, poly := range polys {
		if err := ctx.Err(); err != nil {
			return nil, 0, 0, err
		}
		b := poly.Bound().Pad(half)
		col0, col1, row0, row1, ok := grid.window(b)
		if !ok {
			continue
		}
		for row := row0; row <= row1; row++ {
			for col := col0; col <= col1; col++ {
				i := img.PixOffset(col, row)
				if img.Pix[i] == ClassBoundary {
					continue
				}
				pt := grid.Center(col, row)
				if !b.Contains(pt) {
					continue
				}
				switch {
				case distanceToRings(poly, pt) <= half:
					img.Pix[i] = ClassBoundary
				case planar.PolygonContains(poly, pt):
					img.Pix[i] = ClassField
				}
			}
		}
	}

	var field, boundary int
	for _, v := range img.Pix {
		switch v {
		case ClassField:
			field++
		case ClassBoundary:
			boundary++
		}
	}
	return img, field, boundary, nil
}

// distanceToRings is the distance from pt to the nearest edge of any ring
// of poly, holes included.
func distanceToRings(poly orb.Polygon, pt orb.Point) float64 {
	best := -1.0
	for _, ring := range poly {
		for i := 0; i+1 < len(ring); i++ {
			d := planar.DistanceFromSegment(ring[i], ring[i+1], pt)
			if best < 0 || d < best {
				best = d
			}
		}
		if n := len(ring); n > 1 && !ring.Closed() {
			if d := planar.DistanceFromSegment(ring[n-1], ring[0], pt); d < best {
				best = d
			}
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

// writeMask stores img as an 8-bit TIFF plus world file, via temp files
// renamed into place. The world file lands first and the TIFF last, so a
// mask on disk always has its georeference. Nothing is renamed once ctx is
// done.
func writeMask(ctx context.Context, path string, img *image.Gray, grid Grid) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrMaskWrite, err)
	}

	tmp, err := os.CreateTemp(dir, ".mask-*.tif")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMaskWrite, err)
	}
	tmpName := tmp.Name()
	wfTmp := tmpName + ".tfw"
	defer func() {
		for _, name := range []string{tmpName, wfTmp} {
			if _, statErr := os.Stat(name); !errors.Is(statErr, fs.ErrNotExist) {
				_ = os.Remove(name)
			}
		}
	}()

	if err := tiff.Encode(tmp, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %s: %w", ErrMaskWrite, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMaskWrite, path, err)
	}
	if err := WriteWorldFile(wfTmp, grid); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMaskWrite, path, err)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMaskWrite, path, err)
	}
	wfPath := WorldFilePath(path)
	if err := os.Rename(wfTmp, wfPath); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMaskWrite, path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(wfPath)
		return fmt.Errorf("%w: %s: %w", ErrMaskWrite, path, err)
	}
	return nil
}
