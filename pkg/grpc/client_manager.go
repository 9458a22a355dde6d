package grpc

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/example/rugstore/pkg/config"
	"github.com/example/rugstore/pkg/discovery"
	"github.com/example/rugstore/pkg/models"
)

// FulfillmentClient calls the fulfillment service and converts its replies
// back to orders.
type FulfillmentClient struct {
	conn grpc.ClientConnInterface
}

func NewFulfillmentClient(conn grpc.ClientConnInterface) *FulfillmentClient {
	return &FulfillmentClient{conn: conn}
}

func (c *FulfillmentClient) invoke(ctx context.Context, method string, in, out interface{}) error {
	return c.conn.Invoke(ctx, "/"+serviceName+"/"+method, in, out)
}

func (c *FulfillmentClient) Get(ctx context.Context, id string) (models.Order, error) {
	const op = "fulfillment.Get"
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "GetOrder", wrapperspb.String(id), out); err != nil {
		return models.Order{}, fromStatus(op, err)
	}
	return c.decode(op, out.AsMap())
}

func (c *FulfillmentClient) List(ctx context.Context, userID string) ([]models.Order, error) {
	const op = "fulfillment.List"
	in, err := structpb.NewStruct(map[string]interface{}{"user_id": userID})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "ListOrders", in, out); err != nil {
		return nil, fromStatus(op, err)
	}

	raw, _ := out.AsMap()["orders"].([]interface{})
	orders := make([]models.Order, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%s: unexpected order entry %T", op, item)
		}
		o, err := c.decode(op, m)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// UpdateStatus asks the fulfillment service to move an order to next.
func (c *FulfillmentClient) UpdateStatus(ctx context.Context, id string, next models.OrderStatus) (models.Order, error) {
	const op = "fulfillment.UpdateStatus"
	in, err := structpb.NewStruct(map[string]interface{}{
		"order_id": id,
		"status":   string(next),
	})
	if err != nil {
		return models.Order{}, err
	}
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "UpdateOrderStatus", in, out); err != nil {
		return models.Order{}, fromStatus(op, err)
	}
	return c.decode(op, out.AsMap())
}

func (c *FulfillmentClient) decode(op string, m map[string]interface{}) (models.Order, error) {
	o, err := orderFromMap(m)
	if err != nil {
		return models.Order{}, fmt.Errorf("%s: failed to decode order: %w", op, err)
	}
	return o, nil
}

// ClientManager owns the connection to the fulfillment service.
type ClientManager struct {
	config    *config.GRPCConfig
	discovery *discovery.ServiceDiscovery
	logger    *zap.Logger

	conn   *grpc.ClientConn
	client *FulfillmentClient
}

// NewClientManager creates a manager; disc may be nil when etcd is disabled.
func NewClientManager(cfg *config.GRPCConfig, logger *zap.Logger, disc *discovery.ServiceDiscovery) *ClientManager {
	return &ClientManager{
		config:    cfg,
		discovery: disc,
		logger:    logger,
	}
}

// Connect resolves the fulfillment service through discovery, falling back
// to the configured address.
func (m *ClientManager) Connect() error {
	target := m.config.FulfillmentAddr

	if m.discovery != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		instances, err := m.discovery.Discover(ctx, m.config.FulfillmentService)
		if err == nil && len(instances) > 0 {
			target = instances[0].Addr()
			m.logger.Info("Discovered fulfillment service", zap.String("address", target))
		} else {
			m.logger.Info("Using default address for fulfillment service", zap.String("address", target))
		}
	}

	m.logger.Info("Connecting to fulfillment service", zap.String("target", target))

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect to fulfillment service: %w", err)
	}

	m.conn = conn
	m.client = NewFulfillmentClient(conn)
	return nil
}

func (m *ClientManager) Fulfillment() *FulfillmentClient {
	return m.client
}

func (m *ClientManager) Close() error {
	if m.conn == nil {
		return nil
	}
	if err := m.conn.Close(); err != nil {
		return fmt.Errorf("fulfillment connection close error: %w", err)
	}
	return nil
}
