package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	dedupe "github.com/lacunalabels/maskgen/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new claim registry", t, func() {
		ctx := context.Background()

		Convey("When creating with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it is empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When claiming sites", func() {
			fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			d := dedupe.NewInMemoryDeduper(dedupe.WithSizeHint(16), dedupe.WithClock(func() time.Time { return fixed }))

			seen := d.SeenAndRecord(dedupe.WithOwner(ctx, "worker-1"), "S100")

			Convey("Then a new site is claimed with its owner", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)

				claim, ok := d.Owner("S100")
				So(ok, ShouldBeTrue)
				So(claim.Owner, ShouldEqual, "worker-1")
				So(claim.At.Equal(fixed), ShouldBeTrue)
			})

			Convey("Then a second claim on the same site is refused", func() {
				So(d.SeenAndRecord(dedupe.WithOwner(ctx, "worker-2"), "S100"), ShouldBeTrue)

				claim, _ := d.Owner("S100")
				So(claim.Owner, ShouldEqual, "worker-1")
			})
		})

		Convey("When the context carries no owner", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(ctx, "S1")

			Convey("Then the claim has an empty owner", func() {
				claim, ok := d.Owner("S1")
				So(ok, ShouldBeTrue)
				So(claim.Owner, ShouldEqual, "")
			})
		})
	})
}

func TestInMemoryDeduperConcurrent(t *testing.T) {
	Convey("Given many workers racing for the same sites", t, func() {
		d := dedupe.NewInMemoryDeduper()
		ctx := context.Background()

		const workers, sites = 16, 100
		var wins atomic.Int64
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				wctx := dedupe.WithOwner(ctx, fmt.Sprintf("worker-%d", w))
				for s := 0; s < sites; s++ {
					if !d.SeenAndRecord(wctx, fmt.Sprintf("S%d", s)) {
						wins.Add(1)
					}
				}
			}(w)
		}
		wg.Wait()

		Convey("Then every site is won exactly once", func() {
			So(wins.Load(), ShouldEqual, sites)
			So(d.Size(), ShouldEqual, sites)
		})
	})
}
