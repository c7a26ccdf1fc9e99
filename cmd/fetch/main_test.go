package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/lacunalabels/maskgen/internal/adapters/download"
	"github.com/lacunalabels/maskgen/pkg/logger"
)

func init() {
	if err := logger.InitWithWriter(io.Discard, "text"); err != nil {
		panic(err)
	}
}

func TestFetchRun(t *testing.T) {
	convey.Convey("Given a data root", t, func() {
		root := t.TempDir()
		var out bytes.Buffer

		convey.Convey("When listing sources", func() {
			code := run(context.Background(), []string{"-data", root, "-list"}, &out)

			convey.Convey("Then every source is printed with its destination", func() {
				convey.So(code, convey.ShouldEqual, 0)
				lines := strings.Split(strings.TrimSpace(out.String()), "\n")
				convey.So(lines, convey.ShouldHaveLength, len(download.DefaultSources(root)))
				convey.So(out.String(), convey.ShouldContainSubstring, filepath.Join(root, "interim", "label_catalog_int.csv"))
			})
		})

		convey.Convey("When every destination already exists", func() {
			for _, s := range download.DefaultSources(root) {
				convey.So(os.MkdirAll(filepath.Dir(s.Dest), 0o755), convey.ShouldBeNil)
				convey.So(os.WriteFile(s.Dest, []byte("x"), 0o644), convey.ShouldBeNil)
			}
			code := run(context.Background(), []string{"-data", root}, &out)

			convey.Convey("Then nothing is downloaded and the run succeeds", func() {
				convey.So(code, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When a flag is malformed", func() {
			code := run(context.Background(), []string{"-rate", "fast"}, &out)

			convey.Convey("Then the usage exit code is returned", func() {
				convey.So(code, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the rate is not positive", func() {
			code := run(context.Background(), []string{"-data", root, "-rate", "0"}, &out)

			convey.Convey("Then the usage exit code is returned", func() {
				convey.So(code, convey.ShouldEqual, 2)
			})
		})
	})
}
