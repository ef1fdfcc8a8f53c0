package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/simaogato/redpacket-backend/internal/adapter/metrics"
	"github.com/simaogato/redpacket-backend/internal/domain"
	"github.com/simaogato/redpacket-backend/internal/logging"
)

// PacketCreator distributes new packets
type PacketCreator interface {
	CreatePacket(ctx context.Context, totalShares int, totalAmount decimal.Decimal) (domain.Packet, error)
}

// PacketReader reads packet snapshots
type PacketReader interface {
	Get(ctx context.Context, packetID string) (domain.Packet, error)
	List(ctx context.Context) ([]domain.Packet, error)
}

// Options configures the HTTP transport
type Options struct {
	Creator PacketCreator
	Reader  PacketReader

	// EventBus serves the WebSocket endpoint
	EventBus http.Handler
	// MetricsHandler serves /metrics when set
	MetricsHandler http.Handler
	Metrics        *metrics.Metrics
	Logger         *zap.Logger

	DefaultAmount decimal.Decimal
	DefaultShares int

	// StaticDir is served at / when set
	StaticDir string
}

// Server exposes the HTTP transport for the red packet service.
type Server struct {
	router chi.Router
}

// NewServer constructs a chi based HTTP server that forwards requests to the application services.
func NewServer(opts Options) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(opts.Metrics.HTTPMiddleware)

	h := &handler{
		creator:       opts.Creator,
		reader:        opts.Reader,
		logger:        logging.OrNop(opts.Logger),
		defaultAmount: opts.DefaultAmount,
		defaultShares: opts.DefaultShares,
	}
	registerRoutes(router, h)

	if opts.EventBus != nil {
		router.Handle("/eventbus", opts.EventBus)
	}
	if opts.MetricsHandler != nil {
		router.Handle("/metrics", opts.MetricsHandler)
	}
	if opts.StaticDir != "" {
		router.Handle("/*", http.FileServer(http.Dir(opts.StaticDir)))
	}

	return &Server{router: router}
}

// Router returns the configured chi router for reuse in tests or external HTTP servers.
func (s *Server) Router() http.Handler {
	return s.router
}

// ServeHTTP allows Server to satisfy the http.Handler interface directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
