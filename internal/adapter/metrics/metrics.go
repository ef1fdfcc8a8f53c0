package metrics

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/simaogato/redpacket-backend/internal/domain"
)

const namespace = "redpacket"

// Metrics holds the Prometheus collectors used by the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ClaimsTotal              *prometheus.CounterVec
	ClaimDurationSeconds     prometheus.Histogram
	DeliveriesTotal          *prometheus.CounterVec
	BroadcastRecipientsTotal *prometheus.CounterVec
	PacketsCreatedTotal      prometheus.Counter
	Connections              prometheus.Gauge
	RequestsTotal            *prometheus.CounterVec
	RequestDurationSeconds   *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ClaimsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_total",
			Help:      "Total number of processed claims by outcome",
		}, []string{"status"}),
		ClaimDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "claim_duration_seconds",
			Help:      "Time from claim submission to outcome, including the processing delay",
			Buckets:   prometheus.DefBuckets,
		}),
		DeliveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Total number of claim outcome deliveries by result",
		}, []string{"result"}),
		BroadcastRecipientsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_recipients_total",
			Help:      "Total number of new-packet broadcast recipients by result",
		}, []string{"result"}),
		PacketsCreatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_created_total",
			Help:      "Total number of distributed red packets",
		}),
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Number of currently registered client connections",
		}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP and gRPC requests",
		}, []string{"transport", "code"}),
		RequestDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP and gRPC requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"transport"}),
	}
}

// Handler exposes the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveClaim records one processed claim.
func (m *Metrics) ObserveClaim(status domain.ClaimStatus, duration time.Duration) {
	if m == nil {
		return
	}
	m.ClaimsTotal.WithLabelValues(string(status)).Inc()
	m.ClaimDurationSeconds.Observe(duration.Seconds())
}

// ObserveDelivery records one delivery attempt.
func (m *Metrics) ObserveDelivery(result domain.DeliveryResult) {
	if m == nil {
		return
	}
	m.DeliveriesTotal.WithLabelValues(string(result)).Inc()
}

// ObserveBroadcast records the recipients of one broadcast.
func (m *Metrics) ObserveBroadcast(report domain.BroadcastReport) {
	if m == nil {
		return
	}
	m.BroadcastRecipientsTotal.WithLabelValues(string(domain.DeliveryDelivered)).Add(float64(report.Delivered))
	m.BroadcastRecipientsTotal.WithLabelValues(string(domain.DeliveryFailed)).Add(float64(report.Failed))
}

// IncPacketsCreated counts a distributed packet.
func (m *Metrics) IncPacketsCreated() {
	if m == nil {
		return
	}
	m.PacketsCreatedTotal.Inc()
}

// SetConnections publishes the current connection count.
func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.Connections.Set(float64(n))
}

// HTTPMiddleware instruments HTTP handlers with request/latency metrics.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		m.RequestDurationSeconds.WithLabelValues("http").Observe(time.Since(start).Seconds())
		m.RequestsTotal.WithLabelValues("http", strconv.Itoa(recorder.status)).Inc()
	})
}

// GRPCUnaryInterceptor instruments gRPC unary handlers with request/latency metrics.
func (m *Metrics) GRPCUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if m == nil {
			return handler(ctx, req)
		}

		start := time.Now()
		resp, err := handler(ctx, req)

		m.RequestDurationSeconds.WithLabelValues("grpc").Observe(time.Since(start).Seconds())
		m.RequestsTotal.WithLabelValues("grpc", status.Code(err).String()).Inc()
		return resp, err
	}
}

// statusRecorder captures the response status code for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
