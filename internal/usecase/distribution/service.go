package distribution

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/simaogato/redpacket-backend/internal/adapter/metrics"
	"github.com/simaogato/redpacket-backend/internal/domain"
	"github.com/simaogato/redpacket-backend/internal/logging"
)

// Service creates red packets and announces them to connected clients
type Service struct {
	PacketRepo  domain.PacketRepository
	Broadcaster domain.Broadcaster

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewService creates a new distribution Service instance
func NewService(
	packetRepo domain.PacketRepository,
	broadcaster domain.Broadcaster,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		PacketRepo:  packetRepo,
		Broadcaster: broadcaster,
		logger:      logging.OrNop(logger),
		metrics:     m,
	}
}

// CreatePacket stores a new packet and broadcasts it.
// The packet is claimable before the broadcast starts; broadcast failures never fail creation.
// The broadcast outlives ctx cancellation so a departing caller cannot cut the announcement short.
func (s *Service) CreatePacket(ctx context.Context, totalShares int, totalAmount decimal.Decimal) (domain.Packet, error) {
	packet, err := s.PacketRepo.Create(ctx, totalShares, totalAmount)
	if err != nil {
		return domain.Packet{}, err
	}
	s.metrics.IncPacketsCreated()

	s.logger.Info("distributed a red packet",
		zap.String("packet_id", packet.ID),
		zap.Int("total_shares", packet.TotalShares),
		zap.String("total_amount", packet.TotalAmount.StringFixed(domain.AmountPlaces)),
	)

	s.Broadcaster.Broadcast(context.WithoutCancel(ctx), domain.PacketCreated{ID: packet.ID, Time: packet.CreatedAt})

	return packet, nil
}
