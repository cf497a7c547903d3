package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"linac-qc/internal/domain/entity"
)

func TestObserveImage(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveImage("field", nil)
	m.ObserveImage("field", &entity.CalibrationError{Field: "sid"})
	m.ObserveImage("leaf_position", errors.Wrap(&entity.DegenerateImageError{Reason: "flat"}, "img.dcm"))
	m.ObserveImage("leaf_position", errors.New("boom"))

	require.Equal(t, 1.0, testutil.ToFloat64(m.imagesAnalyzed.WithLabelValues("field", OutcomeOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.imagesAnalyzed.WithLabelValues("field", OutcomeRejected)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.imagesAnalyzed.WithLabelValues("leaf_position", OutcomeRejected)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.imagesAnalyzed.WithLabelValues("leaf_position", OutcomeError)))
}

func TestObserveIdentification(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveIdentification(true)
	m.ObserveIdentification(true)
	m.ObserveIdentification(false)

	require.Equal(t, 2.0, testutil.ToFloat64(m.identifications.WithLabelValues("true")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.identifications.WithLabelValues("false")))
}

func TestMiddleware_UsesRouteTemplate(t *testing.T) {
	m := New(prometheus.NewRegistry())

	router := mux.NewRouter()
	router.HandleFunc("/api/reports/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Use(m.Middleware)

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/"+id, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	require.Equal(t, 3.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/reports/{id}")))
}
