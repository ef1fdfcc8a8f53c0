package grpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/simaogato/redpacket-backend/internal/adapter/metrics"
	"github.com/simaogato/redpacket-backend/internal/domain"
	"github.com/simaogato/redpacket-backend/internal/logging"
	"github.com/simaogato/redpacket-backend/internal/usecase/claim"
)

// PacketCreator distributes new packets
type PacketCreator interface {
	CreatePacket(ctx context.Context, totalShares int, totalAmount decimal.Decimal) (domain.Packet, error)
}

// ClaimSubmitter accepts claim requests for asynchronous processing
type ClaimSubmitter interface {
	Submit(ctx context.Context, req domain.ClaimRequest) error
}

// Server implements the RedPacketService gRPC server
type Server struct {
	DistributionService PacketCreator
	ClaimService        ClaimSubmitter
	PacketRepo          domain.PacketRepository
	Registry            domain.ConnectionRegistry

	logger *zap.Logger
}

// NewServer creates a new gRPC server instance
func NewServer(
	distributionService PacketCreator,
	claimService ClaimSubmitter,
	packetRepo domain.PacketRepository,
	registry domain.ConnectionRegistry,
	logger *zap.Logger,
) *Server {
	return &Server{
		DistributionService: distributionService,
		ClaimService:        claimService,
		PacketRepo:          packetRepo,
		Registry:            registry,
		logger:              logging.OrNop(logger),
	}
}

// NewGRPCServer builds a grpc.Server with metrics and token auth and registers srv on it
func NewGRPCServer(srv *Server, apiToken string, m *metrics.Metrics, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(
		m.GRPCUnaryInterceptor(),
		AuthInterceptor(apiToken),
	))
	s := grpc.NewServer(opts...)
	RegisterRedPacketServiceServer(s, srv)
	return s
}

// CreatePacket handles the CreatePacket RPC
func (s *Server) CreatePacket(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	shares, err := intField(req, "total_shares")
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid total_shares: %v", err)
	}

	amount, err := decimalField(req, "total_amount")
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid total_amount: %v", err)
	}

	packet, err := s.DistributionService.CreatePacket(ctx, shares, amount)
	if err != nil {
		return nil, s.mapError(err)
	}

	return packetToStruct(packet), nil
}

// GetPacket handles the GetPacket RPC
func (s *Server) GetPacket(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "packet id cannot be empty")
	}

	packet, err := s.PacketRepo.Get(ctx, req.GetValue())
	if err != nil {
		return nil, s.mapError(err)
	}

	return packetToStruct(packet), nil
}

// SubmitClaim handles the SubmitClaim RPC
// The outcome is pushed to the client's WebSocket, not returned here.
func (s *Server) SubmitClaim(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	claimReq := domain.ClaimRequest{
		PacketID: stringField(req, "packet_id"),
		ClientID: stringField(req, "client_id"),
	}

	if err := s.ClaimService.Submit(ctx, claimReq); err != nil {
		return nil, s.mapError(err)
	}

	return &emptypb.Empty{}, nil
}

// Stats handles the Stats RPC
func (s *Server) Stats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := ctx.Err(); err != nil {
		return nil, s.mapError(err)
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"connections": structpb.NewNumberValue(float64(s.Registry.Count())),
		"packets":     structpb.NewNumberValue(float64(s.PacketRepo.Count())),
	}}, nil
}

// packetToStruct converts a domain Packet to a Struct message
func packetToStruct(p domain.Packet) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":               structpb.NewStringValue(p.ID),
		"total_shares":     structpb.NewNumberValue(float64(p.TotalShares)),
		"remaining_shares": structpb.NewNumberValue(float64(p.RemainingShares)),
		"total_amount":     structpb.NewStringValue(p.TotalAmount.StringFixed(domain.AmountPlaces)),
		"remaining_amount": structpb.NewStringValue(p.RemainingAmount.StringFixed(domain.AmountPlaces)),
		"drift":            structpb.NewStringValue(p.Drift.StringFixed(domain.AmountPlaces)),
		"created_at":       structpb.NewStringValue(p.CreatedAt.UTC().Format(time.RFC3339Nano)),
	}}
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

// intField reads a whole number given as a number or a numeric string
func intField(s *structpb.Struct, name string) (int, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, errors.New("missing")
	}

	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		f := kind.NumberValue
		if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return 0, fmt.Errorf("%v is not a whole number", f)
		}
		return int(f), nil
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(kind.StringValue)
		if err != nil {
			return 0, err
		}
		if !d.IsInteger() || d.Abs().GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
			return 0, fmt.Errorf("%s is not a whole number", kind.StringValue)
		}
		return int(d.IntPart()), nil
	default:
		return 0, errors.New("must be a number")
	}
}

// decimalField reads an amount given as a decimal string or a number
func decimalField(s *structpb.Struct, name string) (decimal.Decimal, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return decimal.Zero, errors.New("missing")
	}

	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return decimal.NewFromString(kind.StringValue)
	case *structpb.Value_NumberValue:
		return decimal.NewFromFloat(kind.NumberValue), nil
	default:
		return decimal.Zero, errors.New("must be a decimal string or number")
	}
}

// mapError converts domain errors to gRPC status errors
func (s *Server) mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrMalformed):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrPacketNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, claim.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		s.logger.Error("rpc failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}
