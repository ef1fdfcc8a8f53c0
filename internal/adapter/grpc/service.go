package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "redpacket.v1.RedPacketService"

const (
	methodCreatePacket = "/" + ServiceName + "/CreatePacket"
	methodGetPacket    = "/" + ServiceName + "/GetPacket"
	methodSubmitClaim  = "/" + ServiceName + "/SubmitClaim"
	methodStats        = "/" + ServiceName + "/Stats"
)

// RedPacketServiceServer is the server API for the RedPacketService.
// Messages are protobuf well-known types so no generated code is needed.
type RedPacketServiceServer interface {
	CreatePacket(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPacket(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	SubmitClaim(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Stats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterRedPacketServiceServer registers srv on s
func RegisterRedPacketServiceServer(s grpc.ServiceRegistrar, srv RedPacketServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RedPacketServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("CreatePacket", methodCreatePacket, func(s RedPacketServiceServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.CreatePacket(ctx, in)
		}),
		unaryMethod("GetPacket", methodGetPacket, func(s RedPacketServiceServer, ctx context.Context, in *wrapperspb.StringValue) (proto.Message, error) {
			return s.GetPacket(ctx, in)
		}),
		unaryMethod("SubmitClaim", methodSubmitClaim, func(s RedPacketServiceServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.SubmitClaim(ctx, in)
		}),
		unaryMethod("Stats", methodStats, func(s RedPacketServiceServer, ctx context.Context, in *emptypb.Empty) (proto.Message, error) {
			return s.Stats(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "redpacket/v1/redpacket.proto",
}

// unaryMethod builds the method descriptor protoc-gen-go-grpc would generate for one unary RPC
func unaryMethod[Req any, PReq interface {
	*Req
	proto.Message
}](name, fullMethod string, call func(RedPacketServiceServer, context.Context, PReq) (proto.Message, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := PReq(new(Req))
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(RedPacketServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(RedPacketServiceServer), ctx, req.(PReq))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Client is a typed client for the RedPacketService
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a Client over cc
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// CreatePacket distributes a packet; in carries total_shares and total_amount
func (c *Client) CreatePacket(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodCreatePacket, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPacket returns a packet snapshot
func (c *Client) GetPacket(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetPacket, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitClaim queues a claim; in carries packet_id and client_id
func (c *Client) SubmitClaim(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, methodSubmitClaim, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats returns the number of connections and packets
func (c *Client) Stats(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodStats, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
