package server

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/idcard-reader/internal/common"
	"github.com/joseph-ayodele/idcard-reader/internal/metrics"
	"github.com/joseph-ayodele/idcard-reader/internal/scan"
)

const (
	ServiceName = "idcard.v1.IDCardService"

	methodExtract      = "/" + ServiceName + "/Extract"
	methodValidateCode = "/" + ServiceName + "/ValidateCode"

	requestIDMetadataKey = "x-request-id"
)

// IDCardServer is the server API for idcard.v1.IDCardService. Requests and
// replies are google.protobuf.Struct:
//
//	Extract      {text, useLlm}  -> {record, cnpValid, source, warnings}
//	ValidateCode {cnp}           -> {cnp, valid, reason}
type IDCardServer interface {
	Extract(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ValidateCode(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// IDCardServiceDesc describes idcard.v1.IDCardService for grpc.Server.RegisterService.
var IDCardServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IDCardServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Extract", Handler: extractHandler},
		{MethodName: "ValidateCode", Handler: validateCodeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "idcard/v1/idcard.proto",
}

func extractHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IDCardServer).Extract(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodExtract}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IDCardServer).Extract(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func validateCodeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IDCardServer).ValidateCode(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodValidateCode}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IDCardServer).ValidateCode(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// IDCardClient calls idcard.v1.IDCardService.
type IDCardClient struct {
	cc grpc.ClientConnInterface
}

func NewIDCardClient(cc grpc.ClientConnInterface) *IDCardClient {
	return &IDCardClient{cc: cc}
}

func (c *IDCardClient) Extract(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodExtract, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *IDCardClient) ValidateCode(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodValidateCode, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// IDCardService implements IDCardServer over the scan service.
type IDCardService struct {
	scan    *scan.Service
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewIDCardService(svc *scan.Service, m *metrics.Metrics, logger *slog.Logger) *IDCardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IDCardService{scan: svc, metrics: m, logger: logger}
}

func (s *IDCardService) Extract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	text := fields["text"].GetStringValue()
	if err := common.ValidateAndReturnError(common.NewValidator().Field("text", text, common.Required)); err != nil {
		return nil, err
	}
	useLLM := fields["useLlm"].GetBoolValue()

	res, err := s.scan.ScanText(ctx, text, scan.Options{UseLLM: useLLM, MergeLLM: useLLM})
	if err != nil {
		common.LoggerFromContext(ctx, s.logger).Warn("grpc.extract.failed", "error", err)
		return nil, common.GRPCError(err)
	}

	var valid any
	if res.CodeValid != nil {
		valid = *res.CodeValid
	}
	warnings := make([]any, len(res.Warnings))
	for i, w := range res.Warnings {
		warnings[i] = w
	}
	out, err := structpb.NewStruct(map[string]any{
		"record":   res.Record.Map(),
		"cnpValid": valid,
		"source":   string(res.Source),
		"warnings": warnings,
	})
	if err != nil {
		return nil, common.InternalErrorf("encode reply: %v", err)
	}
	return out, nil
}

func (s *IDCardService) ValidateCode(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	code := strings.TrimSpace(req.GetFields()["cnp"].GetStringValue())
	v := common.NewValidator().Field("cnp", code, common.Required, common.MaxLen(64))
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	valid, reason := checkCode(code)
	s.metrics.IncrementCodeCheck(valid)
	return structpb.NewStruct(map[string]any{"cnp": code, "valid": valid, "reason": reason})
}

// unaryRequestContext attaches a request ID (from x-request-id metadata when
// present) and a request-scoped logger, then logs the call outcome.
func unaryRequestContext(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(requestIDMetadataKey); len(vals) > 0 {
				id = vals[0]
			}
		}
		if common.NewValidator().Field(requestIDMetadataKey, id, common.Required, common.UUID).HasErrors() {
			id = common.NewRequestID()
		}
		log := logger.With("request_id", id)
		ctx = common.WithRequestID(ctx, id)
		ctx = common.WithLogger(ctx, log)

		start := time.Now()
		resp, err := handler(ctx, req)
		log.Info("grpc.request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

// NewGRPCServer builds a gRPC server with the card service, health and reflection.
func NewGRPCServer(svc *IDCardService, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(unaryRequestContext(logger)))
	gs := grpc.NewServer(opts...)
	gs.RegisterService(&IDCardServiceDesc, svc)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	// Reflection for grpcurl
	reflection.Register(gs)
	return gs
}
