// Package gateway is the storefront HTTP API.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/example/rugstore/pkg/address"
	"github.com/example/rugstore/pkg/auth"
	"github.com/example/rugstore/pkg/catalog"
	"github.com/example/rugstore/pkg/config"
	"github.com/example/rugstore/pkg/metrics"
	"github.com/example/rugstore/pkg/models"
	"github.com/example/rugstore/pkg/order"
	"github.com/example/rugstore/pkg/repository"
	"github.com/example/rugstore/pkg/review"
	"github.com/example/rugstore/pkg/shop"
	"github.com/example/rugstore/pkg/telemetry"
)

// StatusUpdater moves an order through fulfillment. In production it is the
// fulfillment gRPC client.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id string, next models.OrderStatus) (models.Order, error)
}

// AuditTrail reads the operations log of an entity, newest first.
type AuditTrail interface {
	GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*repository.AuditLog, error)
}

// Services are the domain components behind the API.
type Services struct {
	Shop        *shop.Service
	Catalog     *catalog.Catalog
	Book        *address.Book
	Orders      *order.Assembler
	Reviews     *review.Gate
	Fulfillment StatusUpdater
	Audit       AuditTrail
	Auth        *auth.Authenticator
	Metrics     *metrics.Metrics
}

type Gateway struct {
	config   *config.Config
	services Services
	logger   *zap.Logger
	router   *gin.Engine
	server   *http.Server
}

func NewGateway(cfg *config.Config, services Services, logger *zap.Logger) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))
	router.Use(metricsMiddleware(services.Metrics))
	router.Use(cors.New(corsConfig(cfg.CORS)))

	g := &Gateway{
		config:   cfg,
		services: services,
		logger:   logger,
		router:   router,
	}
	g.setupRoutes()
	return g
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	c := cors.DefaultConfig()
	c.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"}
	c.AllowAllOrigins = len(cfg.AllowOrigins) == 0
	for _, origin := range cfg.AllowOrigins {
		if origin == "*" {
			c.AllowAllOrigins = true
		}
	}
	if !c.AllowAllOrigins {
		c.AllowOrigins = cfg.AllowOrigins
		c.AllowCredentials = true
	}
	return c
}

func (g *Gateway) setupRoutes() {
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	g.router.GET("/metrics", gin.WrapH(g.services.Metrics.Handler()))
	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := g.router.Group("/api/v1")
	authed := g.requireUser()

	products := v1.Group("/products")
	{
		products.GET("", g.listProducts)
		products.GET("/suggest", g.suggestProducts)
		products.GET("/:id", g.getProduct)
		products.GET("/:id/reviews", g.listReviews)
		products.GET("/:id/reviews/eligibility", authed, g.reviewEligibility)
		products.POST("/:id/reviews", authed, g.submitReview)
	}

	cart := v1.Group("/cart", g.sessionMiddleware())
	{
		cart.GET("", g.getCart)
		cart.POST("/items", g.addToCart)
		cart.PUT("/items", g.setQuantity)
		cart.DELETE("/items", g.removeFromCart)
		cart.POST("/coupon", g.applyCoupon)
		cart.DELETE("/coupon", g.removeCoupon)
	}

	checkout := v1.Group("/checkout", g.sessionMiddleware(), authed)
	{
		checkout.GET("", g.getCheckout)
		checkout.POST("/buy-now", g.buyNow)
		checkout.POST("/shipping", g.startCheckout)
		checkout.PUT("/shipping/saved", g.selectSavedAddress)
		checkout.POST("/shipping/new", g.addNewAddress)
		checkout.PUT("/shipping/new", g.editNewAddress)
		checkout.POST("/payment", g.proceedToPayment)
		checkout.PUT("/payment", g.choosePayment)
		checkout.POST("/back", g.back)
		checkout.POST("/place", g.place)
		checkout.POST("/verify", g.verify)
	}

	account := v1.Group("/account", authed)
	{
		account.GET("/addresses", g.listAddresses)
		account.POST("/addresses", g.addAddress)
		account.GET("/orders", g.listOrders)
		account.GET("/orders/:id", g.getOrder)
	}

	admin := v1.Group("/admin", authed, g.requireAdmin())
	{
		admin.POST("/products", g.createProduct)
		admin.PUT("/products/:id", g.updateProduct)
		admin.POST("/products/:id/reviews", g.adminReview)
		admin.PUT("/orders/:id/status", g.updateOrderStatus)
		admin.GET("/orders/:id/audit", g.orderAudit)
	}
}

// Handler is the traced HTTP handler of the API.
func (g *Gateway) Handler() http.Handler {
	return telemetry.Middleware(g.config.Server.Name, g.router)
}

func (g *Gateway) Start() error {
	addr := fmt.Sprintf("%s:%d", g.config.Gateway.Host, g.config.Gateway.Port)
	g.server = &http.Server{Addr: addr, Handler: g.Handler()}
	g.logger.Info("Gateway starting", zap.String("address", addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}
