// Package download fetches the upstream catalogs, image archive and field
// dataset into the data directory.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/lacunalabels/maskgen/pkg/logger"
	"github.com/lacunalabels/maskgen/pkg/metrics"
)

const (
	defaultTimeout = 30 * time.Minute
	defaultRate    = 1.0
)

// Source is one remote file and where it is stored.
type Source struct {
	URL  string
	Dest string
}

// DefaultSources lists the upstream files of a data root.
func DefaultSources(root string) []Source {
	raw := filepath.Join(root, "raw")
	interim := filepath.Join(root, "interim")
	return []Source{
		{
			URL:  "https://github.com/agroimpacts/lacunalabels/raw/main/data/interim/label_catalog_allclasses.csv",
			Dest: filepath.Join(interim, "label_catalog_allclasses.csv"),
		},
		{
			URL:  "https://github.com/agroimpacts/lacunalabels/raw/main/data/interim/label_catalog_int.csv",
			Dest: filepath.Join(interim, "label_catalog_int.csv"),
		},
		{
			URL:  "https://zenodo.org/record/11060871/files/images.tgz",
			Dest: filepath.Join(raw, "images.tgz"),
		},
		{
			URL:  "https://zenodo.org/record/11060871/files/mapped_fields_final.parquet",
			Dest: filepath.Join(raw, "mapped_fields_final.parquet"),
		},
	}
}

// Fetcher downloads files that are not present yet.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter

	logger logger.Logger
}

// NewFetcher creates a fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:  &http.Client{Timeout: defaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(defaultRate), 1),
		logger:  logger.Get().Named("download"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads src unless its destination exists. It reports whether
// a download happened.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (bool, error) {
	if src.URL == "" || src.Dest == "" {
		return false, fmt.Errorf("%w: %+v", ErrInvalidSource, src)
	}
	if _, err := os.Stat(src.Dest); err == nil {
		f.logger.Info(ctx, "file already exists", logger.String("path", src.Dest))
		return false, nil
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return false, err
	}

	f.logger.Info(ctx, "downloading", logger.String("url", src.URL), logger.String("path", src.Dest))
	start := time.Now()
	n, err := f.download(ctx, src)
	if err != nil {
		metrics.RecordErrorByComponent("download", "fetch")
		return false, fmt.Errorf("fetch %s: %w", src.URL, err)
	}
	f.logger.Info(ctx, "downloaded",
		logger.String("path", src.Dest),
		logger.Int64("bytes", n),
		logger.Duration("took", time.Since(start)),
	)
	return true, nil
}

func (f *Fetcher) download(ctx context.Context, src Source) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: %s", ErrBadStatus, resp.Status)
	}

	dir := filepath.Dir(src.Dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(src.Dest)+".part-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmpName, src.Dest)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return 0, err
	}
	return n, nil
}

// FetchAll fetches every source, continuing past failures. It returns the
// number of files downloaded and the joined errors.
func (f *Fetcher) FetchAll(ctx context.Context, srcs []Source) (int, error) {
	var errs []error
	fetched := 0
	for _, src := range srcs {
		ok, err := f.Fetch(ctx, src)
		if err != nil {
			if ctx.Err() != nil {
				return fetched, errors.Join(append(errs, err)...)
			}
			f.logger.Error(ctx, "download failed", logger.String("url", src.URL), logger.Error(err))
			errs = append(errs, err)
			continue
		}
		if ok {
			fetched++
		}
	}
	return fetched, errors.Join(errs...)
}
