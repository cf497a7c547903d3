// Package metrics содержит счётчики Prometheus для HTTP и анализа снимков.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"linac-qc/internal/domain/entity"
)

// Исходы анализа снимка
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected" // калибровка или вырожденный снимок
	OutcomeError    = "error"
)

type Metrics struct {
	httpDuration    *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	imagesAnalyzed  *prometheus.CounterVec
	identifications *prometheus.CounterVec
}

// New регистрирует метрики в reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name: "http_response_time_seconds",
			Help: "Duration of HTTP requests.",
		}, []string{"path"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Number of HTTP requests.",
		}, []string{"path"}),
		imagesAnalyzed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "linac_qc_images_analyzed_total",
			Help: "Number of analysed images by test kind and outcome.",
		}, []string{"kind", "outcome"}),
		identifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "linac_qc_identifications_total",
			Help: "Number of leaf position identifications by validity.",
		}, []string{"valid"}),
	}
}

// ObserveImage учитывает результат анализа одного снимка.
func (m *Metrics) ObserveImage(kind string, err error) {
	outcome := OutcomeOK
	switch {
	case err == nil:
	case entity.IsImageRejected(err):
		outcome = OutcomeRejected
	default:
		outcome = OutcomeError
	}
	m.imagesAnalyzed.WithLabelValues(kind, outcome).Inc()
}

// ObserveIdentification учитывает итог проверки серии.
func (m *Metrics) ObserveIdentification(valid bool) {
	m.identifications.WithLabelValues(strconv.FormatBool(valid)).Inc()
}

// Middleware замеряет время ответа; путь берётся из шаблона маршрута.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		duration := time.Since(start)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		m.httpDuration.WithLabelValues(path).Observe(duration.Seconds())
		m.httpRequests.WithLabelValues(path).Inc()
	})
}
