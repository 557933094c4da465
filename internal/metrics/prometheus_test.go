package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveHook("folio:markdown", "resolvePage", 5*time.Millisecond, nil)
	rec.ObserveHook("folio:markdown", "resolvePage", time.Millisecond, errors.New("x"))
	rec.SetPages(7)
	rec.IncRenderCache(true)
	rec.IncRenderCache(false)
	rec.IncRenderCache(false)
	rec.ObserveBuild(time.Second, 7)
	rec.IncReload(ReloadSkipped)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.hookErrors.WithLabelValues("folio:markdown", "resolvePage")))
	assert.Equal(t, 7.0, testutil.ToFloat64(rec.pages))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.renderCache.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.reloads.WithLabelValues(ReloadSkipped)))
}

func TestHTTPHandlerServesMetrics(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).SetPages(3)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/__folio/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "folio_pages 3")
}

func TestNoopRecorder(t *testing.T) {
	var rec Recorder = NoopRecorder{}
	assert.NotPanics(t, func() {
		rec.ObserveHook("p", "h", time.Second, nil)
		rec.SetPages(1)
		rec.IncRenderCache(true)
		rec.ObserveBuild(time.Second, 1)
		rec.IncReload(ReloadOK)
	})
}
