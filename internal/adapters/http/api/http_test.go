package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/lacunalabels/maskgen/internal/adapters/http/api"
	"github.com/lacunalabels/maskgen/internal/domain/model"
	"github.com/lacunalabels/maskgen/internal/domain/types"
	"github.com/lacunalabels/maskgen/pkg/metrics"
)

type trackerStats struct {
	t *types.Tracker
}

func (s trackerStats) Progress() types.Progress {
	return s.t.Snapshot()
}

func newMux(stats api.StatsProvider) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(stats).Register(context.Background(), mux)
	return mux
}

func TestStatusServer(t *testing.T) {
	Convey("Given a status server over a running tracker", t, func() {
		tracker := &types.Tracker{}
		tracker.Begin("run-42", 3)
		tracker.SetStage("rasterize")
		tracker.Record(model.OutcomeOK)
		tracker.Record(model.OutcomeFailed)
		mux := newMux(trackerStats{t: tracker})

		Convey("When /healthz is requested", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			Convey("Then it reports ok", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, `"status":"ok"`)
			})
		})

		Convey("When /healthz is posted to", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))

			Convey("Then the method is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})

		Convey("When /stats is requested", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

			Convey("Then the progress snapshot is returned as JSON", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldStartWith, "application/json")

				var p types.Progress
				So(json.Unmarshal(rec.Body.Bytes(), &p), ShouldBeNil)
				So(p.RunID, ShouldEqual, "run-42")
				So(p.Stage, ShouldEqual, "rasterize")
				So(p.Total, ShouldEqual, 3)
				So(p.Processed, ShouldEqual, 2)
				So(p.OK, ShouldEqual, 1)
				So(p.Failed, ShouldEqual, 1)
			})
		})

		Convey("When /metrics is requested after some traffic", func() {
			metrics.RecordMaskOutcome("ok")
			mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stats", nil))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Convey("Then pipeline and HTTP metrics are exposed", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				body := rec.Body.String()
				So(body, ShouldContainSubstring, "maskgen_pipeline_masks_total")
				So(body, ShouldContainSubstring, `maskgen_pipeline_http_requests_total{endpoint="stats"`)
			})
		})

		Convey("When /openapi.yaml is requested", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))

			Convey("Then the status API description is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(strings.Contains(rec.Body.String(), "/stats:"), ShouldBeTrue)
			})
		})
	})

	Convey("Given a status server without a run", t, func() {
		mux := newMux(nil)

		Convey("When /stats is requested", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

			Convey("Then the service is unavailable", func() {
				So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(rec.Body.String(), ShouldContainSubstring, "no_run")
			})
		})
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given a handler that fails", t, func() {
		h := api.MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}, "boom")

		Convey("When it is called", func() {
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

			Convey("Then the status passes through", func() {
				So(rec.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})
	})
}
