// Command fetch downloads the upstream catalogs, image archive and field
// dataset into the data directory. Files already present are kept.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	app "github.com/lacunalabels/maskgen/internal/app"
	"github.com/lacunalabels/maskgen/internal/adapters/download"
	"github.com/lacunalabels/maskgen/internal/config"
	"github.com/lacunalabels/maskgen/pkg/logger"
)

func main() {
	if err := logger.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

// run parses args, fetches every missing source and returns the exit code.
func run(ctx context.Context, args []string, out io.Writer) int {
	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(out, "failed to load config:", err)
		return 1
	}

	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(out)
	var (
		dataDir = fs.String("data", cfg.DataDir, "Data root holding raw/ and interim/")
		perSec  = fs.Float64("rate", cfg.FetchRatePerSec, "Maximum downloads started per second")
		timeout = fs.Duration("timeout", cfg.FetchTimeout, "Timeout of a single download")
		list    = fs.Bool("list", false, "Print the sources and exit")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *perSec <= 0 {
		fmt.Fprintln(out, "rate must be positive")
		return 2
	}

	srcs := download.DefaultSources(*dataDir)
	if *list {
		for _, s := range srcs {
			fmt.Fprintf(out, "%s\t%s\n", s.URL, s.Dest)
		}
		return 0
	}

	log := logger.Named("fetch")
	if err := app.EnsureLayout(*dataDir); err != nil {
		log.Error(ctx, "failed to create data layout", logger.Error(err))
		return 1
	}

	f := download.NewFetcher(
		download.WithHTTPClient(&http.Client{Timeout: *timeout}),
		download.WithRatePerSecond(*perSec),
		download.WithLogger(log),
	)
	n, err := f.FetchAll(ctx, srcs)
	if err != nil {
		log.Error(ctx, "fetch incomplete", logger.Int("downloaded", n), logger.Error(err))
		return 1
	}
	log.Info(ctx, "fetch complete",
		logger.Int("downloaded", n),
		logger.Int("present", len(srcs)-n),
	)
	return 0
}
