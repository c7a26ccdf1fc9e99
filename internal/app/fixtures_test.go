package service_test

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/image/tiff"

	"github.com/lacunalabels/maskgen/internal/adapters/raster"
	"github.com/lacunalabels/maskgen/internal/config"
)

const annotationsCSV = `,name,Class,assignment_id,Labeller,status,Score,N,Area,Qscore,Rscore,x,y,farea,nflds
0,S1,field,1a,L1,Trusted,0.8,1,10,0.7,0.7,1.5,7.5,3.2,1
1,S2,field,1b,L1,Trusted,0.6,2,10,0.5,0.4,2.5,6.5,3.1,1
2,S2,field,1d,L2,Trusted,0.9,2,10,0.8,0.9,2.5,6.5,3.4,1
3,S3,field,4,L3,Rejected,0.2,1,8,NA,0.2,3.5,5.5,,0
4,S4,field,4,L3,Trusted,0.5,1,9,0.5,0.6,4.5,4.5,1,1
5,S5,field,3,L1,Trusted,0.5,1,9,0.5,0.5,5.5,3.5,1,1
`

const chipsCSV = `name,image_date,image,chip
S1,2021-01-01,S1.tif,S1_chip.tif
S2,2021-01-02,S2.tif,S2_chip.tif
S3,2021-01-03,S3.tif,S3_chip.tif
S4,2021-01-04,S4.tif,S4_chip.tif
S5,2021-01-05,S5.tif,S5_chip.tif
`

// newDataDir lays out both catalogs under a fresh data root and returns a
// config pointing at it.
func newDataDir(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "interim", "label_catalog_allclasses.csv"), annotationsCSV)
	writeFile(t, filepath.Join(root, "interim", "label_catalog_int.csv"), chipsCSV)

	cfg := config.New(context.Background())
	cfg.DataDir = root
	cfg.WorkerCount = 2
	cfg.QueueSize = 4
	return cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(strings.TrimLeft(content, "\n")), 0o644); err != nil {
		t.Fatal(err)
	}
}

// writeChip writes a 10x10 chip georeferenced by a world file with its
// upper-left corner at (0, 10) and unit pixels.
func writeChip(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := tiff.Encode(f, image.NewGray(image.Rect(0, 0, 10, 10)), nil); err != nil {
		t.Fatal(err)
	}
	g := raster.Grid{Width: 10, Height: 10, OriginX: 0, OriginY: 10, PixelW: 1, PixelH: -1}
	if err := raster.WriteWorldFile(raster.WorldFilePath(path), g); err != nil {
		t.Fatal(err)
	}
}

// writeFields writes one square field per (site, assignment) pair.
func writeFields(t *testing.T, path string, keys ...[2]string) {
	t.Helper()
	fc := geojson.NewFeatureCollection()
	for _, k := range keys {
		poly := orb.Polygon{orb.Ring{{2.2, 2.2}, {7.8, 2.2}, {7.8, 7.8}, {2.2, 7.8}, {2.2, 2.2}}}
		f := geojson.NewFeature(poly)
		f.Properties["name"] = k[0]
		f.Properties["assignment_id"] = k[1]
		fc.Append(f)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, string(data))
}
