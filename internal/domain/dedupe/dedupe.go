// Package dedupe tracks which sites have been claimed by a worker, so no two
// workers ever write the same mask.
package dedupe

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Deduper records claimed site identifiers.
type Deduper interface {
	// SeenAndRecord atomically checks whether id was claimed and claims it if
	// not. It returns true when id was already claimed.
	SeenAndRecord(ctx context.Context, id string) bool

	// Owner returns who claimed id and when.
	Owner(id string) (Claim, bool)

	Size() int64
}

// Claim describes who holds a site.
type Claim struct {
	Owner string
	At    time.Time
}

type ownerKey struct{}

// WithOwner tags ctx so claims made under it record owner.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

func ownerFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(ownerKey{}).(string); ok {
		return s
	}
	return ""
}

// inMemoryDeduper implements Deduper on a lock-free concurrent map.
type inMemoryDeduper struct {
	claims *xsync.MapOf[string, Claim]
	now    func() time.Time
}

// NewInMemoryDeduper creates an empty claim registry.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		now: time.Now,
	}
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sizeHint > 0 {
		d.claims = xsync.NewMapOfPresized[string, Claim](cfg.sizeHint)
	} else {
		d.claims = xsync.NewMapOf[string, Claim]()
	}
	if cfg.clock != nil {
		d.now = cfg.clock
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, id string) bool {
	_, loaded := d.claims.LoadOrStore(id, Claim{Owner: ownerFrom(ctx), At: d.now()})
	return loaded
}

func (d *inMemoryDeduper) Owner(id string) (Claim, bool) {
	return d.claims.Load(id)
}

func (d *inMemoryDeduper) Size() int64 {
	return int64(d.claims.Size())
}
