package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func TestAdminKey(t *testing.T) {
	h := AdminKey("s3cret")(http.HandlerFunc(okHandler))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusUnauthorized},
		{"correct", "s3cret", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/leads", nil)
			if tt.header != "" {
				req.Header.Set(AdminKeyHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAdminKey_DisabledWhenEmpty(t *testing.T) {
	h := AdminKey("")(http.HandlerFunc(okHandler))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leads", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/leads/{id}", okHandler)

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/leads/{id}", "204"))
	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/leads/"+id, nil))
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/leads/{id}", "204"))

	assert.Equal(t, before+2, after)
}

func TestPrometheusRecorder(t *testing.T) {
	var rec PrometheusRecorder

	before := testutil.ToFloat64(leadsProcessed.WithLabelValues("sent"))
	rec.LeadProcessed("sent")
	assert.Equal(t, before+1, testutil.ToFloat64(leadsProcessed.WithLabelValues("sent")))

	before = testutil.ToFloat64(crmAttempts.WithLabelValues("transient"))
	rec.CRMAttempt("transient")
	assert.Equal(t, before+1, testutil.ToFloat64(crmAttempts.WithLabelValues("transient")))

	before = testutil.ToFloat64(tokenRefreshes.WithLabelValues("success"))
	rec.TokenRefresh("success")
	assert.Equal(t, before+1, testutil.ToFloat64(tokenRefreshes.WithLabelValues("success")))
}
