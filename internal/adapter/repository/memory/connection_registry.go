package memory

import (
	"sync"

	"go.uber.org/zap"

	"github.com/simaogato/redpacket-backend/internal/adapter/metrics"
	"github.com/simaogato/redpacket-backend/internal/domain"
	"github.com/simaogato/redpacket-backend/internal/logging"
)

// ConnectionRegistry implements domain.ConnectionRegistry.
// The first connection registered for a client ID is kept until it is unregistered.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[string]domain.Connection

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewConnectionRegistry creates an empty registry; logger and m may be nil
func NewConnectionRegistry(logger *zap.Logger, m *metrics.Metrics) *ConnectionRegistry {
	return &ConnectionRegistry{
		conns:   make(map[string]domain.Connection),
		logger:  logging.OrNop(logger),
		metrics: m,
	}
}

// Register stores conn unless clientID already has a live connection
func (r *ConnectionRegistry) Register(clientID string, conn domain.Connection) bool {
	r.mu.Lock()
	if _, exists := r.conns[clientID]; exists {
		r.mu.Unlock()
		r.logger.Warn("client already connected, keeping the first connection", zap.String("client_id", clientID))
		return false
	}
	r.conns[clientID] = conn
	count := len(r.conns)
	r.metrics.SetConnections(count)
	r.mu.Unlock()

	r.logger.Info("client connected", zap.String("client_id", clientID), zap.Int("connections", count))
	return true
}

// Unregister removes clientID if present
func (r *ConnectionRegistry) Unregister(clientID string) bool {
	r.mu.Lock()
	_, exists := r.conns[clientID]
	delete(r.conns, clientID)
	count := len(r.conns)
	r.metrics.SetConnections(count)
	r.mu.Unlock()

	if !exists {
		return false
	}

	r.logger.Info("client disconnected", zap.String("client_id", clientID), zap.Int("connections", count))
	return true
}

// Lookup returns the connection registered for clientID
func (r *ConnectionRegistry) Lookup(clientID string) (domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[clientID]
	return conn, ok
}

// Count returns the number of registered connections
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Connections returns a snapshot of every registered connection
func (r *ConnectionRegistry) Connections() []domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]domain.Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}
