package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"leadhunt-engine/internal/domain"
)

func TestHTTP_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTP)
	r.Get("/leads/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/leads/{id}", "418"))
	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/leads/"+id, nil))
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/leads/{id}", "418"))
	assert.Equal(t, 2.0, after-before)
}

func TestObserveStatuses(t *testing.T) {
	ObserveStatuses([]domain.Lead{
		{Status: domain.StatusNew},
		{Status: domain.StatusNew},
		{Status: domain.StatusContacted},
	})
	assert.Equal(t, 2.0, testutil.ToFloat64(leadsByStatus.WithLabelValues("new")))
	assert.Equal(t, 1.0, testutil.ToFloat64(leadsByStatus.WithLabelValues("contacted")))
	assert.Equal(t, 0.0, testutil.ToFloat64(leadsByStatus.WithLabelValues("converted")))
}

func TestDiscovery(t *testing.T) {
	readme := testutil.ToFloat64(leadsAdded.WithLabelValues("readme"))
	gh := testutil.ToFloat64(collaboratorErrors.WithLabelValues("github"))

	Discovery(map[string]int{"readme": 3}, 2)
	Discovery(nil, 0)

	assert.Equal(t, 3.0, testutil.ToFloat64(leadsAdded.WithLabelValues("readme"))-readme)
	assert.Equal(t, 2.0, testutil.ToFloat64(collaboratorErrors.WithLabelValues("github"))-gh)
}
