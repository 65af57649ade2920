package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
	"github.com/hive-corporation/phishwatch/internal/core/service"
)

// ScannerServiceName is the fully qualified gRPC service name. Requests and
// responses are google.protobuf.Struct so no generated stubs are needed.
const ScannerServiceName = "phishwatch.v1.Scanner"

const (
	assessMethod = "/" + ScannerServiceName + "/Assess"
	scoreMethod  = "/" + ScannerServiceName + "/Score"
)

type ScannerServer interface {
	Assess(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Score(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type GrpcServer struct {
	assessor *service.Assessor
}

func NewGrpcServer(assessor *service.Assessor) *GrpcServer {
	return &GrpcServer{assessor: assessor}
}

// NewServer builds a gRPC server exposing the Scanner, the standard health
// service and reflection.
func NewServer(assessor *service.Assessor, log zerolog.Logger) *grpc.Server {
	s := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(log)))

	RegisterScannerServer(s, NewGrpcServer(assessor))

	hs := health.NewServer()
	hs.SetServingStatus(ScannerServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	reflection.Register(s)
	return s
}

func RegisterScannerServer(s grpc.ServiceRegistrar, srv ScannerServer) {
	s.RegisterService(&scannerServiceDesc, srv)
}

func (s *GrpcServer) Assess(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := requestFromStruct(in)
	if err != nil {
		return nil, err
	}
	return toStruct(s.assessor.Assess(req))
}

func (s *GrpcServer) Score(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := requestFromStruct(in)
	if err != nil {
		return nil, err
	}

	breakdown := domain.ScoreDetailed(req.URL, req.SourceCount, req.Signals)
	return toStruct(map[string]interface{}{
		"url":       req.URL,
		"score":     breakdown.Total,
		"level":     domain.Classify(breakdown.Total),
		"malicious": breakdown.Total >= domain.MaliciousScore,
		"breakdown": breakdown,
	})
}

func requestFromStruct(in *structpb.Struct) (service.Request, error) {
	if in == nil {
		return service.Request{}, status.Error(codes.InvalidArgument, "url cannot be empty")
	}
	b, err := json.Marshal(in.AsMap())
	if err != nil {
		return service.Request{}, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}

	var u urlRequest
	if err := json.Unmarshal(b, &u); err != nil {
		return service.Request{}, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	if u.URL == "" {
		return service.Request{}, status.Error(codes.InvalidArgument, "url cannot be empty")
	}
	return u.toRequest(), nil
}

// toStruct goes through JSON so the wire shape matches the REST responses.
func toStruct(v interface{}) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// LoggingInterceptor logs every unary call with its duration and status code.
func LoggingInterceptor(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		event := log.Info()
		if err != nil {
			event = log.Warn().Err(err)
		}
		event.
			Str("method", info.FullMethod).
			Str("code", status.Code(err).String()).
			Dur("elapsed", time.Since(start)).
			Msg("grpc call")
		return resp, err
	}
}

func _Scanner_Assess_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScannerServer).Assess(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: assessMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ScannerServer).Assess(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _Scanner_Score_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScannerServer).Score(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: scoreMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ScannerServer).Score(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var scannerServiceDesc = grpc.ServiceDesc{
	ServiceName: ScannerServiceName,
	HandlerType: (*ScannerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Assess", Handler: _Scanner_Assess_Handler},
		{MethodName: "Score", Handler: _Scanner_Score_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "phishwatch/v1/scanner.proto",
}

// ScannerClient calls a remote Scanner service.
type ScannerClient struct {
	cc grpc.ClientConnInterface
}

func NewScannerClient(cc grpc.ClientConnInterface) *ScannerClient {
	return &ScannerClient{cc: cc}
}

// Assess returns the remote assessment as generic JSON.
func (c *ScannerClient) Assess(ctx context.Context, req service.Request) (map[string]interface{}, error) {
	return c.call(ctx, assessMethod, req)
}

// Score returns the remote rule-based score as generic JSON.
func (c *ScannerClient) Score(ctx context.Context, req service.Request) (map[string]interface{}, error) {
	return c.call(ctx, scoreMethod, req)
}

func (c *ScannerClient) call(ctx context.Context, method string, req service.Request) (map[string]interface{}, error) {
	in, err := structpb.NewStruct(map[string]interface{}{
		"url":          req.URL,
		"source_count": req.SourceCount,
		"external_signals": map[string]interface{}{
			"malicious_count": req.Signals.MaliciousCount,
			"lookup_failed":   req.Signals.LookupFailed,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
