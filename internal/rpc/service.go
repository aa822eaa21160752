package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region service-desc
// ServiceName is the fully qualified gRPC service name.
const ServiceName = "otgla.v1.Grammar"

const (
	generateMethod = "/" + ServiceName + "/Generate"
	rankingMethod  = "/" + ServiceName + "/Ranking"
)

// GrammarServer is the server API of the grammar service. Messages are
// generic structs so the service needs no generated code.
type GrammarServer interface {
	// Generate produces the overt form (and parse) a grammar assigns to a
	// form's input. Request: {"form": string, "noise": bool}.
	Generate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Ranking returns the constraints ordered by ranking value.
	Ranking(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterGrammarServer registers srv with s.
func RegisterGrammarServer(s grpc.ServiceRegistrar, srv GrammarServer) {
	s.RegisterService(&grammarServiceDesc, srv)
}

func generateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GrammarServer).Generate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: generateMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GrammarServer).Generate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func rankingHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GrammarServer).Ranking(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: rankingMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GrammarServer).Ranking(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var grammarServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GrammarServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Generate", Handler: generateHandler},
		{MethodName: "Ranking", Handler: rankingHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "otgla/v1/grammar.proto",
}

// #endregion service-desc

// #region service-client
// GrammarClient is the client API of the grammar service.
type GrammarClient interface {
	Generate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Ranking(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type grammarClient struct {
	cc grpc.ClientConnInterface
}

// NewGrammarClient returns a GrammarClient over cc.
func NewGrammarClient(cc grpc.ClientConnInterface) GrammarClient {
	return &grammarClient{cc: cc}
}

func (c *grammarClient) Generate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, generateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *grammarClient) Ranking(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, rankingMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion service-client
