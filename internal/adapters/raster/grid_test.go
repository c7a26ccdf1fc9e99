package raster

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
)

// geoTIFFHeader builds a little-endian TIFF prefix holding only the
// ModelPixelScale and ModelTiepoint tags.
func geoTIFFHeader(scale, tie []float64) []byte {
	var b bytes.Buffer
	le := binary.LittleEndian
	b.WriteString("II")
	_ = binary.Write(&b, le, uint16(42))
	_ = binary.Write(&b, le, uint32(8))

	const entries = 2
	dataOff := uint32(8 + 2 + entries*12 + 4)
	_ = binary.Write(&b, le, uint16(entries))
	for _, e := range []struct {
		tag  uint16
		vals []float64
	}{{tagModelPixelScale, scale}, {tagModelTiepoint, tie}} {
		_ = binary.Write(&b, le, e.tag)
		_ = binary.Write(&b, le, uint16(tiffTypeDouble))
		_ = binary.Write(&b, le, uint32(len(e.vals)))
		_ = binary.Write(&b, le, dataOff)
		dataOff += uint32(8 * len(e.vals))
	}
	_ = binary.Write(&b, le, uint32(0))
	for _, v := range append(append([]float64{}, scale...), tie...) {
		_ = binary.Write(&b, le, math.Float64bits(v))
	}
	return b.Bytes()
}

func TestReadGeoTags(t *testing.T) {
	raw := geoTIFFHeader([]float64{30, 30, 0}, []float64{0, 0, 0, 500000, 4000000, 0})

	scale, tie, err := readGeoTags(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("readGeoTags: %v", err)
	}
	if scale[0] != 30 || scale[1] != 30 {
		t.Errorf("unexpected scale %v", scale)
	}
	if tie[3] != 500000 || tie[4] != 4000000 {
		t.Errorf("unexpected tiepoint %v", tie)
	}

	if _, _, err := readGeoTags(bytes.NewReader([]byte("GIF89a..."))); err == nil {
		t.Error("expected an error for a non-TIFF header")
	}
}

func TestReadWorldFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "a.tfw")
	if err := os.WriteFile(path, []byte("2\n0\n0\n-2\n101\n199\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	g, err := ReadWorldFile(path)
	if err != nil {
		t.Fatalf("ReadWorldFile: %v", err)
	}
	if g.OriginX != 100 || g.OriginY != 200 || g.PixelW != 2 || g.PixelH != -2 {
		t.Errorf("unexpected grid %+v", g)
	}

	rotated := filepath.Join(dir, "r.tfw")
	if err := os.WriteFile(rotated, []byte("2\n0.1\n0\n-2\n101\n199\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadWorldFile(rotated); err == nil {
		t.Error("expected rotated world file to be rejected")
	}
}

func TestGridWindow(t *testing.T) {
	g := Grid{Width: 10, Height: 10, OriginX: 0, OriginY: 10, PixelW: 1, PixelH: -1}

	if c := g.Center(0, 0); c[0] != 0.5 || c[1] != 9.5 {
		t.Errorf("unexpected center %v", c)
	}
	if h := g.HalfPixel(); h != 0.5 {
		t.Errorf("unexpected half pixel %v", h)
	}

	b := g.Bound()
	if b.Min[0] != 0 || b.Min[1] != 0 || b.Max[0] != 10 || b.Max[1] != 10 {
		t.Errorf("unexpected bound %+v", b)
	}
}

func TestGridWindowClampsToBound(t *testing.T) {
	g := Grid{Width: 10, Height: 10, OriginX: 0, OriginY: 10, PixelW: 1, PixelH: -1}

	col0, col1, row0, row1, ok := g.window(orb.Bound{Min: orb.Point{2.2, 2.2}, Max: orb.Point{7.8, 7.8}})
	if !ok {
		t.Fatal("expected the bound to intersect the grid")
	}
	if col0 != 2 || col1 != 8 || row0 != 2 || row1 != 8 {
		t.Errorf("unexpected window cols %d..%d rows %d..%d", col0, col1, row0, row1)
	}

	col0, col1, row0, row1, ok = g.window(orb.Bound{Min: orb.Point{-5, 8}, Max: orb.Point{3, 20}})
	if !ok {
		t.Fatal("expected the partial bound to intersect the grid")
	}
	if col0 != 0 || col1 != 3 || row0 != 0 || row1 != 2 {
		t.Errorf("unexpected clamped window cols %d..%d rows %d..%d", col0, col1, row0, row1)
	}

	if _, _, _, _, ok := g.window(orb.Bound{Min: orb.Point{20, 20}, Max: orb.Point{30, 30}}); ok {
		t.Error("expected a disjoint bound to report no intersection")
	}
}
