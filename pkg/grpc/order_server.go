package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/example/rugstore/pkg/models"
	"github.com/example/rugstore/pkg/order"
)

const serviceName = "rugstore.fulfillment.v1.Fulfillment"

// FulfillmentServer is the server API of the fulfillment service. Messages
// are protobuf well-known types carrying the JSON form of orders.
type FulfillmentServer interface {
	GetOrder(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ListOrders(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateOrderStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterFulfillmentServer(s grpc.ServiceRegistrar, srv FulfillmentServer) {
	s.RegisterService(&fulfillmentServiceDesc, srv)
}

var fulfillmentServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*FulfillmentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetOrder", Handler: getOrderHandler},
		{MethodName: "ListOrders", Handler: listOrdersHandler},
		{MethodName: "UpdateOrderStatus", Handler: updateOrderStatusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rugstore/fulfillment/v1/fulfillment.proto",
}

func getOrderHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FulfillmentServer).GetOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetOrder"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FulfillmentServer).GetOrder(ctx, req.(*wrapperspb.StringValue))
	})
}

func listOrdersHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FulfillmentServer).ListOrders(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ListOrders"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FulfillmentServer).ListOrders(ctx, req.(*structpb.Struct))
	})
}

func updateOrderStatusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FulfillmentServer).UpdateOrderStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/UpdateOrderStatus"}
	return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FulfillmentServer).UpdateOrderStatus(ctx, req.(*structpb.Struct))
	})
}

// OrderServer serves order lookups and status transitions over gRPC.
type OrderServer struct {
	fulfillment *order.Fulfillment
	logger      *zap.Logger
	srv         *grpc.Server
}

func NewOrderServer(fulfillment *order.Fulfillment, logger *zap.Logger) *OrderServer {
	s := &OrderServer{fulfillment: fulfillment, logger: logger}
	s.srv = grpc.NewServer(grpc.UnaryInterceptor(s.logCalls))
	RegisterFulfillmentServer(s.srv, s)
	reflection.Register(s.srv)
	return s
}

// Start listens on addr and serves until Stop.
func (s *OrderServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.logger.Info("Fulfillment service started", zap.String("address", addr))
	return s.Serve(lis)
}

func (s *OrderServer) Serve(lis net.Listener) error {
	return s.srv.Serve(lis)
}

func (s *OrderServer) Stop() {
	s.srv.GracefulStop()
}

func (s *OrderServer) logCalls(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	fields := []zap.Field{
		zap.String("method", info.FullMethod),
		zap.Duration("latency", time.Since(start)),
	}
	if err != nil {
		s.logger.Warn("RPC failed", append(fields, zap.Error(err))...)
	} else {
		s.logger.Debug("RPC served", fields...)
	}
	return resp, err
}

func (s *OrderServer) GetOrder(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "order id is required")
	}
	o, err := s.fulfillment.Get(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return orderToStruct(o)
}

func (s *OrderServer) ListOrders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID := req.GetFields()["user_id"].GetStringValue()
	if userID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}
	orders, err := s.fulfillment.List(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}

	list := make([]interface{}, 0, len(orders))
	for _, o := range orders {
		m, err := orderToMap(o)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "failed to encode order %s: %v", o.ID, err)
		}
		list = append(list, m)
	}
	out, err := structpb.NewStruct(map[string]interface{}{"orders": list})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode orders: %v", err)
	}
	return out, nil
}

func (s *OrderServer) UpdateOrderStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	id := fields["order_id"].GetStringValue()
	next := fields["status"].GetStringValue()
	if id == "" || next == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id and status are required")
	}
	o, err := s.fulfillment.UpdateStatus(ctx, id, models.OrderStatus(next))
	if err != nil {
		return nil, toStatus(err)
	}
	return orderToStruct(o)
}

func orderToMap(o models.Order) (map[string]interface{}, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func orderToStruct(o models.Order) (*structpb.Struct, error) {
	m, err := orderToMap(o)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode order: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode order: %v", err)
	}
	return out, nil
}

func orderFromMap(m map[string]interface{}) (models.Order, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return models.Order{}, err
	}
	var o models.Order
	if err := json.Unmarshal(data, &o); err != nil {
		return models.Order{}, err
	}
	return o, nil
}
