package main

import (
	"context"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"golang.org/x/image/tiff"

	"github.com/lacunalabels/maskgen/internal/adapters/raster"
	"github.com/lacunalabels/maskgen/internal/config"
	"github.com/lacunalabels/maskgen/internal/domain/types"
	"github.com/lacunalabels/maskgen/pkg/logger"
)

type staticStats struct{ p types.Progress }

func (s staticStats) Progress() types.Progress { return s.p }

func init() {
	if err := logger.InitWithWriter(io.Discard, "text"); err != nil {
		panic(err)
	}
}

// seedDataDir writes a one-site catalog, an empty field dataset and a chip.
func seedDataDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"interim/label_catalog_allclasses.csv": "name,Class,assignment_id,Labeller,status,Score,N,Area,Qscore,Rscore,x,y,farea,nflds\n" +
			"S1,field,1a,L1,Trusted,0.5,1,4,0.5,0.5,2,2,0,0\n",
		"interim/label_catalog_int.csv":        "name,image_date,image,chip\nS1,2021-01-01,S1.tif,S1_chip.tif\n",
		"raw/mapped_fields_final.geojson":      `{"type":"FeatureCollection","features":[]}`,
	}
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	chip := filepath.Join(root, "raw", "images", "S1.tif")
	if err := os.MkdirAll(filepath.Dir(chip), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(chip)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := tiff.Encode(f, image.NewGray(image.Rect(0, 0, 4, 4)), nil); err != nil {
		t.Fatal(err)
	}
	g := raster.Grid{Width: 4, Height: 4, OriginX: 0, OriginY: 4, PixelW: 1, PixelH: -1}
	if err := raster.WriteWorldFile(raster.WorldFilePath(chip), g); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestRun(t *testing.T) {
	convey.Convey("Given a seeded data directory", t, func() {
		root := seedDataDir(t)
		t.Setenv("MASKGEN_DATA_DIR", root)
		t.Setenv("MASKGEN_LOG_LEVEL", "error")
		defer func() { _ = logger.InitWithWriter(io.Discard, "text") }()

		convey.Convey("When the pipeline runs", func() {
			code := run(context.Background())

			convey.Convey("Then it exits cleanly and writes the result catalog", func() {
				convey.So(code, convey.ShouldEqual, 0)
				_, err := os.Stat(filepath.Join(root, "processed", "label-catalog-filtered.csv"))
				convey.So(err, convey.ShouldBeNil)
				_, err = os.Stat(filepath.Join(root, "processed", "masks", "S1.tif"))
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the field dataset is missing", func() {
			convey.So(os.Remove(filepath.Join(root, "raw", "mapped_fields_final.geojson")), convey.ShouldBeNil)

			convey.Convey("Then the exit code is non-zero", func() {
				convey.So(run(context.Background()), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the configuration is invalid", func() {
			t.Setenv("MASKGEN_WORKER_COUNT", "0")

			convey.Convey("Then the exit code is non-zero", func() {
				convey.So(run(context.Background()), convey.ShouldEqual, 1)
			})
		})
	})
}

func TestStatusServer(t *testing.T) {
	convey.Convey("Given a status server", t, func() {
		stats := staticStats{p: types.Progress{RunID: "r1", Stage: "rasterize", Total: 5, Processed: 2}}
		srv := newStatusServer(context.Background(), ":0", stats)

		convey.Convey("Then it uses the configured timeouts", func() {
			convey.So(srv.ReadTimeout, convey.ShouldEqual, readTimeout)
			convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)
		})

		convey.Convey("When probing the routes", func() {
			for _, path := range []string{"/healthz", "/stats", "/metrics"} {
				rec := httptest.NewRecorder()
				srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
			}
		})
	})
}

func TestConfigureLogging(t *testing.T) {
	convey.Convey("Given a config", t, func() {
		cfg := config.New(context.Background())
		defer func() { _ = logger.InitWithWriter(io.Discard, "text") }()

		convey.Convey("Valid settings are applied", func() {
			cfg.LogFormat = "json"
			cfg.LogLevel = "debug"
			convey.So(configureLogging(cfg), convey.ShouldBeNil)
		})

		convey.Convey("An unknown level falls back with an error", func() {
			cfg.LogLevel = "loud"
			convey.So(configureLogging(cfg), convey.ShouldNotBeNil)
		})

		convey.Convey("An unknown format falls back with an error", func() {
			cfg.LogFormat = "xml"
			convey.So(configureLogging(cfg), convey.ShouldNotBeNil)
		})
	})
}

func TestSystemMetricsUpdater(t *testing.T) {
	convey.Convey("Given a short-lived context", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		convey.Convey("Then the updater returns when the context ends", func() {
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		})
	})
}
