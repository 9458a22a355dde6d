package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/rugstore/pkg/config"
)

// HTTPGateway is the client for the hosted payment processor.
type HTTPGateway struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
	logger     *zap.Logger
}

type gatewayError struct {
	Error *struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error,omitempty"`
}

func NewHTTPGateway(cfg *config.PaymentConfig, logger *zap.Logger) (*HTTPGateway, error) {
	if cfg.BaseURL == "" || cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, fmt.Errorf("payment gateway configuration missing")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPGateway{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

func (g *HTTPGateway) KeyID() string {
	return g.keyID
}

// CreateOrder registers a pending charge. The receipt carries the checkout
// idempotency key so the processor can deduplicate retries too.
func (g *HTTPGateway) CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Order{}, fmt.Errorf("failed to encode gateway order: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return Order{}, fmt.Errorf("failed to build gateway request: %w", err)
	}
	httpReq.SetBasicAuth(g.keyID, g.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return Order{}, fmt.Errorf("failed to reach payment gateway: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Order{}, fmt.Errorf("failed to read gateway response: %w", err)
	}

	g.logger.Debug("Gateway order request",
		zap.String("receipt", req.Receipt),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		var ge gatewayError
		if json.Unmarshal(data, &ge) == nil && ge.Error != nil {
			return Order{}, fmt.Errorf("payment gateway error (%d): %s: %s", resp.StatusCode, ge.Error.Code, ge.Error.Description)
		}
		return Order{}, fmt.Errorf("payment gateway error (%d): %s", resp.StatusCode, string(data))
	}

	var order Order
	if err := json.Unmarshal(data, &order); err != nil {
		return Order{}, fmt.Errorf("failed to parse gateway order: %w", err)
	}
	if order.ID == "" {
		return Order{}, fmt.Errorf("payment gateway returned an order without id")
	}
	return order, nil
}

// Verify checks the payment signature with the key secret.
func (g *HTTPGateway) Verify(_ context.Context, proof Proof) (Status, error) {
	return verifySignature(g.keySecret, proof), nil
}
