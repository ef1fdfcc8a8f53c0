package claim

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/simaogato/redpacket-backend/internal/adapter/metrics"
	"github.com/simaogato/redpacket-backend/internal/domain"
	"github.com/simaogato/redpacket-backend/internal/logging"
)

// ErrClosed is returned by Submit once the service has started draining
var ErrClosed = errors.New("claim service is shutting down")

// Service processes claim requests and reports each outcome to its claimant
type Service struct {
	PacketRepo domain.PacketRepository
	Notifier   domain.Notifier
	Delay      time.Duration

	logger  *zap.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewService creates a new claim Service instance
func NewService(
	packetRepo domain.PacketRepository,
	notifier domain.Notifier,
	delay time.Duration,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		PacketRepo: packetRepo,
		Notifier:   notifier,
		Delay:      delay,
		logger:     logging.OrNop(logger),
		metrics:    m,
	}
}

// Process handles one claim request end to end
// Logic:
//  1. Validate the request
//  2. Wait the configured delay without holding any lock; a cancelled ctx abandons the claim
//  3. Take one share from the packet
//  4. Push the outcome to the claimant
//
// The returned error is non-nil only when the claim was not attempted.
func (s *Service) Process(ctx context.Context, req domain.ClaimRequest) (domain.ClaimOutcome, domain.DeliveryResult, error) {
	if err := req.Validate(); err != nil {
		return domain.ClaimOutcome{}, "", err
	}

	start := time.Now()
	if err := s.wait(ctx); err != nil {
		s.logger.Debug("claim abandoned during delay",
			zap.String("packet_id", req.PacketID),
			zap.String("client_id", req.ClientID),
			zap.Error(err),
		)
		return domain.ClaimOutcome{}, "", err
	}

	outcome, err := s.PacketRepo.Claim(ctx, req.PacketID)
	if err != nil {
		return domain.ClaimOutcome{}, "", err
	}
	s.metrics.ObserveClaim(outcome.Status, time.Since(start))

	delivery := s.Notifier.Publish(ctx, req.ClientID, outcome)

	fields := []zap.Field{
		zap.String("packet_id", req.PacketID),
		zap.String("client_id", req.ClientID),
		zap.String("status", string(outcome.Status)),
		zap.String("result", string(delivery)),
	}
	if outcome.IsGranted() {
		fields = append(fields, zap.String("amount", outcome.Amount.StringFixed(domain.AmountPlaces)))
	}
	s.logger.Info("claim processed", fields...)

	return outcome, delivery, nil
}

// Submit validates req and processes it on its own goroutine.
// The claim outlives ctx cancellation; only ctx values are carried over.
func (s *Service) Submit(ctx context.Context, req domain.ClaimRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if _, _, err := s.Process(context.WithoutCancel(ctx), req); err != nil {
			s.logger.Warn("claim not processed",
				zap.String("packet_id", req.PacketID),
				zap.String("client_id", req.ClientID),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Wait stops accepting new submissions and blocks until in-flight claims finish or ctx is done
func (s *Service) Wait(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) wait(ctx context.Context) error {
	if s.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.Delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
