package raster

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"golang.org/x/image/tiff"
)

// Grid is a north-up pixel grid in map coordinates. PixelH is negative
// for the usual top-down row order.
type Grid struct {
	Width, Height    int
	OriginX, OriginY float64 // outer corner of pixel (0, 0)
	PixelW, PixelH   float64
}

// Center returns the map coordinate of the center of pixel (col, row).
func (g Grid) Center(col, row int) orb.Point {
	return orb.Point{
		g.OriginX + (float64(col)+0.5)*g.PixelW,
		g.OriginY + (float64(row)+0.5)*g.PixelH,
	}
}

// Bound returns the map extent of the grid.
func (g Grid) Bound() orb.Bound {
	x1, y1 := g.OriginX, g.OriginY
	x2 := g.OriginX + float64(g.Width)*g.PixelW
	y2 := g.OriginY + float64(g.Height)*g.PixelH
	return orb.Bound{
		Min: orb.Point{math.Min(x1, x2), math.Min(y1, y2)},
		Max: orb.Point{math.Max(x1, x2), math.Max(y1, y2)},
	}
}

// HalfPixel is the boundary distance threshold.
func (g Grid) HalfPixel() float64 {
	return math.Min(math.Abs(g.PixelW), math.Abs(g.PixelH)) / 2
}

// window returns the clamped pixel ranges covering b.
func (g Grid) window(b orb.Bound) (col0, col1, row0, row1 int, ok bool) {
	c0 := (b.Min.X() - g.OriginX) / g.PixelW
	c1 := (b.Max.X() - g.OriginX) / g.PixelW
	r0 := (b.Min.Y() - g.OriginY) / g.PixelH
	r1 := (b.Max.Y() - g.OriginY) / g.PixelH

	col0 = clamp(int(math.Floor(math.Min(c0, c1))), 0, g.Width-1)
	col1 = clamp(int(math.Ceil(math.Max(c0, c1))), 0, g.Width-1)
	row0 = clamp(int(math.Floor(math.Min(r0, r1))), 0, g.Height-1)
	row1 = clamp(int(math.Ceil(math.Max(r0, r1))), 0, g.Height-1)
	return col0, col1, row0, row1, g.Bound().Intersects(b)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ReadGrid reads the size of a TIFF chip and its georeference, taken from
// the GeoTIFF tags or else from a world file next to the chip.
func ReadGrid(path string) (Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return Grid{}, fmt.Errorf("%w: %s: %w", ErrChipUnreadable, path, err)
	}
	defer f.Close()

	cfg, err := tiff.DecodeConfig(f)
	if err != nil {
		return Grid{}, fmt.Errorf("%w: %s: %w", ErrChipUnreadable, path, err)
	}
	g := Grid{Width: cfg.Width, Height: cfg.Height}
	if g.Width <= 0 || g.Height <= 0 {
		return Grid{}, fmt.Errorf("%w: %s: empty raster", ErrChipUnreadable, path)
	}

	if scale, tie, err := readGeoTags(f); err == nil {
		g.PixelW = scale[0]
		g.PixelH = -scale[1]
		g.OriginX = tie[3] - tie[0]*scale[0]
		g.OriginY = tie[4] + tie[1]*scale[1]
		return g, nil
	}

	wf, err := ReadWorldFile(WorldFilePath(path))
	if err != nil {
		return Grid{}, fmt.Errorf("%s: %w", path, err)
	}
	g.OriginX, g.OriginY, g.PixelW, g.PixelH = wf.OriginX, wf.OriginY, wf.PixelW, wf.PixelH
	return g, nil
}

// WorldFilePath returns the ESRI world file path paired with a TIFF path.
func WorldFilePath(tifPath string) string {
	return strings.TrimSuffix(tifPath, filepath.Ext(tifPath)) + ".tfw"
}

// ReadWorldFile parses the six-line ESRI world file at path. Only the
// origin and pixel size of the result are set.
func ReadWorldFile(path string) (Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Grid{}, fmt.Errorf("%w: no GeoTIFF tags and no world file at %s", ErrNoGeoreference, path)
		}
		return Grid{}, fmt.Errorf("%w: %w", ErrNoGeoreference, err)
	}
	defer f.Close()

	var v []float64
	sc := bufio.NewScanner(f)
	for sc.Scan() && len(v) < 6 {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		x, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return Grid{}, fmt.Errorf("%w: %s: %w", ErrNoGeoreference, path, err)
		}
		v = append(v, x)
	}
	if err := sc.Err(); err != nil {
		return Grid{}, fmt.Errorf("%w: %s: %w", ErrNoGeoreference, path, err)
	}
	if len(v) < 6 {
		return Grid{}, fmt.Errorf("%w: %s: want 6 values, got %d", ErrNoGeoreference, path, len(v))
	}
	a, d, b, e, c, fy := v[0], v[1], v[2], v[3], v[4], v[5]
	if d != 0 || b != 0 {
		return Grid{}, fmt.Errorf("%w: %s", ErrUnsupportedGeoreference, path)
	}
	if a == 0 || e == 0 {
		return Grid{}, fmt.Errorf("%w: %s: zero pixel size", ErrNoGeoreference, path)
	}
	// World files reference the center of the upper-left pixel.
	return Grid{OriginX: c - a/2, OriginY: fy - e/2, PixelW: a, PixelH: e}, nil
}

// WriteWorldFile writes the world file describing g to path.
func WriteWorldFile(path string, g Grid) error {
	body := fmt.Sprintf("%s\n0\n0\n%s\n%s\n%s\n",
		fmtFloat(g.PixelW), fmtFloat(g.PixelH),
		fmtFloat(g.OriginX+g.PixelW/2), fmtFloat(g.OriginY+g.PixelH/2))
	return os.WriteFile(path, []byte(body), 0o644)
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// GeoTIFF tag numbers and the TIFF DOUBLE field type.
const (
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tiffTypeDouble     = 12
	maxTagValues       = 6 * 1024
)

var errNoGeoTags = errors.New("no GeoTIFF georeference tags")

// readGeoTags returns the ModelPixelScale and first ModelTiepoint of the
// first IFD of a classic TIFF.
func readGeoTags(r io.ReaderAt) (scale, tie []float64, err error) {
	var hdr [8]byte
	if _, err := r.ReadAt(hdr[:], 0); err != nil {
		return nil, nil, err
	}
	var bo binary.ByteOrder
	switch string(hdr[:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return nil, nil, errNoGeoTags
	}
	if bo.Uint16(hdr[2:4]) != 42 {
		return nil, nil, errNoGeoTags
	}
	ifd := int64(bo.Uint32(hdr[4:8]))

	var cnt [2]byte
	if _, err := r.ReadAt(cnt[:], ifd); err != nil {
		return nil, nil, err
	}
	n := int(bo.Uint16(cnt[:]))
	entries := make([]byte, 12*n)
	if _, err := r.ReadAt(entries, ifd+2); err != nil {
		return nil, nil, err
	}

	for i := 0; i < n; i++ {
		e := entries[12*i : 12*i+12]
		tag := bo.Uint16(e[0:2])
		if tag != tagModelPixelScale && tag != tagModelTiepoint {
			continue
		}
		if bo.Uint16(e[2:4]) != tiffTypeDouble {
			continue
		}
		count := int(bo.Uint32(e[4:8]))
		if count <= 0 || count > maxTagValues {
			continue
		}
		vals, err := readDoubles(r, bo, int64(bo.Uint32(e[8:12])), count)
		if err != nil {
			return nil, nil, err
		}
		if tag == tagModelPixelScale {
			scale = vals
		} else {
			tie = vals
		}
	}
	if len(scale) < 2 || len(tie) < 6 || scale[0] == 0 || scale[1] == 0 {
		return nil, nil, errNoGeoTags
	}
	return scale, tie, nil
}

func readDoubles(r io.ReaderAt, bo binary.ByteOrder, off int64, count int) ([]float64, error) {
	buf := make([]byte, 8*count)
	if _, err := r.ReadAt(buf, off); err != nil {
		return nil, err
	}
	out := make([]float64, count)
	for i := range out {
		out[i] = math.Float64frombits(bo.Uint64(buf[8*i:]))
	}
	return out, nil
}
