package notify

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/simaogato/redpacket-backend/internal/adapter/metrics"
	"github.com/simaogato/redpacket-backend/internal/domain"
	"github.com/simaogato/redpacket-backend/internal/logging"
)

// broadcastConcurrency bounds the number of simultaneous writes of one broadcast
const broadcastConcurrency = 32

// Bus delivers messages to connected clients through the connection registry.
// Delivery is best-effort: nothing is queued for absent clients and failed writes are not retried.
type Bus struct {
	registry     domain.ConnectionRegistry
	writeTimeout time.Duration
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

// NewBus creates a Bus; writeTimeout bounds each individual write
func NewBus(registry domain.ConnectionRegistry, writeTimeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Bus {
	return &Bus{
		registry:     registry,
		writeTimeout: writeTimeout,
		logger:       logging.OrNop(logger),
		metrics:      m,
	}
}

// Publish pushes a claim outcome to the client registered as clientID
func (b *Bus) Publish(ctx context.Context, clientID string, outcome domain.ClaimOutcome) domain.DeliveryResult {
	result := b.publish(ctx, clientID, outcome)
	b.metrics.ObserveDelivery(result)
	return result
}

func (b *Bus) publish(ctx context.Context, clientID string, outcome domain.ClaimOutcome) domain.DeliveryResult {
	logger := b.logger.With(
		zap.String("client_id", clientID),
		zap.String("packet_id", outcome.PacketID),
		zap.String("status", string(outcome.Status)),
	)

	if err := outcome.Validate(); err != nil {
		logger.Error("refusing to deliver invalid claim result", zap.Error(err))
		return domain.DeliveryFailed
	}

	conn, ok := b.registry.Lookup(clientID)
	if !ok {
		logger.Warn("client not connected, dropping claim result")
		return domain.DeliveryAbsent
	}

	if err := b.send(ctx, conn, NewClaimResultMessage(outcome)); err != nil {
		logger.Warn("failed to deliver claim result", zap.Error(err))
		return domain.DeliveryFailed
	}

	logger.Debug("claim result delivered")
	return domain.DeliveryDelivered
}

// Broadcast pushes a packet announcement to every connected client
func (b *Bus) Broadcast(ctx context.Context, event domain.PacketCreated) domain.BroadcastReport {
	msg := NewPacketCreatedMessage(event)
	conns := b.registry.Connections()

	var delivered, failed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(broadcastConcurrency)
	for _, conn := range conns {
		g.Go(func() error {
			if err := b.send(ctx, conn, msg); err != nil {
				failed.Add(1)
				b.logger.Warn("failed to deliver packet announcement",
					zap.String("client_id", conn.ClientID()),
					zap.String("packet_id", event.ID),
					zap.Error(err),
				)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report := domain.BroadcastReport{Delivered: int(delivered.Load()), Failed: int(failed.Load())}
	b.metrics.ObserveBroadcast(report)
	b.logger.Info("packet announced",
		zap.String("packet_id", event.ID),
		zap.Int("total", report.Total()),
		zap.Int("delivered", report.Delivered),
		zap.Int("failed", report.Failed),
	)
	return report
}

func (b *Bus) send(ctx context.Context, conn domain.Connection, v any) error {
	if b.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.writeTimeout)
		defer cancel()
	}
	return conn.Send(ctx, v)
}
