package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/infra/metrics"
)

const serviceName = "mock-payment-backend"

func NewRouter(handler *PaymentHandler) http.Handler {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	r.HandleFunc("/healthz", handler.Health).Methods(http.MethodGet)
	r.HandleFunc("/payment/status/{ref}", handler.Status).Methods(http.MethodGet)
	r.HandleFunc("/payment/simulate", handler.Simulate).Methods(http.MethodPost)
	r.HandleFunc("/cashier/api/mpesa/confirm-payment", handler.Confirm).Methods(http.MethodPost)

	r.Handle("/metrics", promhttp.Handler())

	return cors.AllowAll().Handler(r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		statusLabel := "FAILED"
		if rec.status >= 200 && rec.status < 400 {
			statusLabel = "SUCCESS"
		}

		metrics.IncRequest(statusLabel, r.Method)
		metrics.ObserveDuration(statusLabel, time.Since(start).Seconds())
	})
}
