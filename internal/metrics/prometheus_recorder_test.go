package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// counterValue sums the counter samples of family name whose labels include want.
func counterValue(t *testing.T, reg *prom.Registry, name string, want map[string]string) (float64, int) {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)

	total, series := 0.0, 0
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			match := true
			for k, v := range want {
				if labels[k] != v {
					match = false
				}
			}
			if match {
				total += m.GetCounter().GetValue()
				series++
			}
		}
	}
	return total, series
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveDocumentDuration(15 * time.Millisecond)
	pr.IncDocumentResult(ResultSuccess)
	pr.IncDocumentResult(ResultSuccess)
	pr.IncDocumentResult(ResultFailed)
	pr.AddReplacements("{version}", 3)
	pr.AddReplacements("{version}", 2)
	pr.AddReplacements("{Singularity}", 0)
	pr.ObserveBuildDuration(500 * time.Millisecond)
	pr.IncBuildOutcome(BuildOutcomeSuccess)

	v, _ := counterValue(t, reg, "docvars_documents_total", map[string]string{"result": "success"})
	require.InDelta(t, 2, v, 0)
	v, _ = counterValue(t, reg, "docvars_documents_total", map[string]string{"result": "failed"})
	require.InDelta(t, 1, v, 0)

	v, series := counterValue(t, reg, "docvars_replacements_total", nil)
	require.InDelta(t, 5, v, 0)
	require.Equal(t, 1, series, "zero additions create no series")

	v, _ = counterValue(t, reg, "docvars_build_outcomes_total", map[string]string{"outcome": "success"})
	require.InDelta(t, 1, v, 0)
}

func TestPrometheusRecorderNilReceiver(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveDocumentDuration(time.Second)
	pr.IncDocumentResult(ResultSuccess)
	pr.AddReplacements("x", 1)
	pr.ObserveBuildDuration(time.Second)
	pr.IncBuildOutcome(BuildOutcomeFailed)
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.AddReplacements("{version}", 4)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, `docvars_replacements_total{token="{version}"} 4`), body)

	rec = httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Contains(t, rec.Body.String(), `promhttp_metric_handler_requests_total{code="200"} 1`)
}
