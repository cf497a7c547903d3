// Package rest реализует HTTP API сервиса контроля качества.
package rest

import (
	"io"
	"net/http"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"linac-qc/internal/container"
	"linac-qc/internal/infrastructure/metrics"
)

// Options настраивает роутер.
type Options struct {
	Environment   string              // "local" и "unit-test" отключают Sentry
	Metrics       *metrics.Metrics    // nil: без метрик HTTP
	Gatherer      prometheus.Gatherer // nil: реестр по умолчанию
	AccessLog     io.Writer           // nil: без журнала запросов
	MaxUploadSize int64
}

type api struct {
	c             *container.Container
	maxUploadSize int64
}

// NewRouter собирает маршруты и middleware.
func NewRouter(c *container.Container, opts Options) http.Handler {
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = 128 << 20
	}
	a := &api{c: c, maxUploadSize: opts.MaxUploadSize}

	router := mux.NewRouter()
	wrap := func(h http.HandlerFunc) http.Handler { return h }
	if opts.Environment != "unit-test" && opts.Environment != "local" {
		sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})
		wrap = func(h http.HandlerFunc) http.Handler { return sentryHandler.HandleFunc(h) }
	}

	router.Handle("/health", wrap(a.health)).Methods(http.MethodGet)

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Handle("/reference-profile", wrap(a.referenceProfile)).Methods(http.MethodGet)
	apiRouter.Handle("/leaf-position/identify", wrap(a.identify)).Methods(http.MethodPost)
	apiRouter.Handle("/leaf-position/analyze", wrap(a.analyzeLeafPosition)).Methods(http.MethodPost)
	apiRouter.Handle("/leaf-position/reports", wrap(a.listReports)).Methods(http.MethodGet)
	apiRouter.Handle("/leaf-position/reports/{id}", wrap(a.getReport)).Methods(http.MethodGet)
	apiRouter.Handle("/field/analyze", wrap(a.analyzeField)).Methods(http.MethodPost)
	apiRouter.Handle("/slit/analyze", wrap(a.analyzeSlit)).Methods(http.MethodPost)

	if opts.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	} else {
		router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	if opts.Metrics != nil {
		router.Use(opts.Metrics.Middleware)
	}

	var h http.Handler = handlers.CORS(
		handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"}),
		handlers.AllowedMethods([]string{"GET", "POST", "HEAD", "OPTIONS"}),
		handlers.AllowedOrigins([]string{"*"}))(router)
	if opts.AccessLog != nil {
		h = handlers.CombinedLoggingHandler(opts.AccessLog, h)
	}
	return h
}
