package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"homeservices/internal/apperror"
	"homeservices/internal/models"
	"homeservices/internal/service"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const adminServiceName = "homeservices.admin.v1.AdminService"

const (
	methodGetBooking    = "/" + adminServiceName + "/GetBooking"
	methodGetPayment    = "/" + adminServiceName + "/GetPayment"
	methodRefundPayment = "/" + adminServiceName + "/RefundPayment"
)

// AdminServer is the internal back-office RPC surface. Requests carry an "id"
// field; responses are the JSON form of the returned entity.
type AdminServer interface {
	GetBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetPayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RefundPayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// AdminService answers admin RPCs with the privileges of a system administrator.
type AdminService struct {
	bookings *service.BookingService
	payments *service.PaymentService
	log      zerolog.Logger
}

func NewAdminService(bookings *service.BookingService, payments *service.PaymentService, logger *zerolog.Logger) *AdminService {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "grpc_admin").Logger()
	}
	return &AdminService{bookings: bookings, payments: payments, log: l}
}

var systemAdmin = models.Caller{Role: models.RoleAdmin}

func (s *AdminService) GetBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requestID(req)
	if err != nil {
		return nil, err
	}
	booking, err := s.bookings.GetBooking(ctx, systemAdmin, id)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(booking)
}

func (s *AdminService) GetPayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requestID(req)
	if err != nil {
		return nil, err
	}
	payment, err := s.payments.GetPayment(ctx, systemAdmin, id)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(payment)
}

func (s *AdminService) RefundPayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requestID(req)
	if err != nil {
		return nil, err
	}
	result, err := s.payments.RefundPayment(ctx, id)
	if err != nil {
		return nil, grpcError(err)
	}
	s.log.Info().Int64("payment_id", id).Msg("payment refunded over rpc")
	return toStruct(result)
}

func requestID(req *structpb.Struct) (int64, error) {
	v, ok := req.GetFields()["id"]
	if !ok {
		return 0, status.Error(codes.InvalidArgument, "id is required")
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue <= 0 || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, status.Error(codes.InvalidArgument, "id must be a positive integer")
	}
	return int64(n.NumberValue), nil
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}

func grpcError(err error) error {
	appErr := apperror.From(err)
	var code codes.Code
	switch appErr.Kind {
	case apperror.KindNotFound:
		code = codes.NotFound
	case apperror.KindBadRequest:
		code = codes.InvalidArgument
	case apperror.KindForbidden:
		code = codes.PermissionDenied
	case apperror.KindConflict:
		code = codes.FailedPrecondition
	case apperror.KindUnauthorized:
		code = codes.Unauthenticated
	case apperror.KindTooManyRequests:
		code = codes.ResourceExhausted
	default:
		return status.Error(codes.Internal, appErr.Message)
	}
	return status.Error(code, appErr.Message)
}

func adminUnaryHandler(call func(AdminServer, context.Context, *structpb.Struct) (*structpb.Struct, error), fullMethod string) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AdminServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AdminServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: adminServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetBooking", Handler: adminUnaryHandler(AdminServer.GetBooking, methodGetBooking)},
		{MethodName: "GetPayment", Handler: adminUnaryHandler(AdminServer.GetPayment, methodGetPayment)},
		{MethodName: "RefundPayment", Handler: adminUnaryHandler(AdminServer.RefundPayment, methodRefundPayment)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "homeservices/admin/v1/admin.proto",
}

// RegisterAdminServer attaches srv to a gRPC server.
func RegisterAdminServer(s grpc.ServiceRegistrar, srv AdminServer) {
	s.RegisterService(&adminServiceDesc, srv)
}

// AdminClient calls AdminService over an established connection.
type AdminClient struct {
	cc grpc.ClientConnInterface
}

func NewAdminClient(cc grpc.ClientConnInterface) *AdminClient {
	return &AdminClient{cc: cc}
}

func (c *AdminClient) GetBooking(ctx context.Context, id int64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodGetBooking, id, opts...)
}

func (c *AdminClient) GetPayment(ctx context.Context, id int64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodGetPayment, id, opts...)
}

func (c *AdminClient) RefundPayment(ctx context.Context, id int64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodRefundPayment, id, opts...)
}

func (c *AdminClient) invoke(ctx context.Context, method string, id int64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{"id": structpb.NewNumberValue(float64(id))}}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
