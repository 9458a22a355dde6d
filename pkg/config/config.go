package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/example/rugstore/pkg/pricing"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	Etcd      EtcdConfig      `mapstructure:"etcd"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	MongoDB   MongoDBConfig   `mapstructure:"mongodb"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	Session   SessionConfig   `mapstructure:"session"`
	Reviews   ReviewsConfig   `mapstructure:"reviews"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

// ServerConfig names this process. Storage "memory" runs the storefront
// without any database.
type ServerConfig struct {
	Name    string `mapstructure:"name"`
	Port    int    `mapstructure:"port"`
	Host    string `mapstructure:"host"`
	Storage string `mapstructure:"storage"`
}

// GatewayConfig is the public HTTP listener of the storefront.
type GatewayConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// GRPCConfig locates the fulfillment service when discovery has no entry.
type GRPCConfig struct {
	FulfillmentService string        `mapstructure:"fulfillment_service"`
	FulfillmentAddr    string        `mapstructure:"fulfillment_addr"`
	DialTimeout        time.Duration `mapstructure:"dial_timeout"`
}

type EtcdConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
	LeaseTTL    int64         `mapstructure:"lease_ttl"`
}

type RedisConfig struct {
	Addr           string        `mapstructure:"addr"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	PoolSize       int           `mapstructure:"pool_size"`
	CatalogTTL     time.Duration `mapstructure:"catalog_ttl"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type MongoDBConfig struct {
	URI                string `mapstructure:"uri"`
	Database           string `mapstructure:"database"`
	Collection         string `mapstructure:"collection"`
	ProductsCollection string `mapstructure:"products_collection"`
	UsersCollection    string `mapstructure:"users_collection"`
}

type NATSConfig struct {
	URL          string `mapstructure:"url"`
	OrdersPlaced string `mapstructure:"orders_placed_subject"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	AdminRole string `mapstructure:"admin_role"`
}

type PricingConfig struct {
	Currency              string `mapstructure:"currency"`
	FreeShippingThreshold string `mapstructure:"free_shipping_threshold"`
	ShippingFee           string `mapstructure:"shipping_fee"`
	CouponCode            string `mapstructure:"coupon_code"`
	CouponPercent         string `mapstructure:"coupon_percent"`
}

type PaymentConfig struct {
	Mode      string        `mapstructure:"mode"`
	BaseURL   string        `mapstructure:"base_url"`
	KeyID     string        `mapstructure:"key_id"`
	KeySecret string        `mapstructure:"key_secret"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type SessionConfig struct {
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CookieName     string        `mapstructure:"cookie_name"`
	CookieSecure   bool          `mapstructure:"cookie_secure"`
}

type ReviewsConfig struct {
	MinTextLength int `mapstructure:"min_text_length"`
}

type TelemetryConfig struct {
	Tracing     bool    `mapstructure:"tracing"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "storefront")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 50052)
	v.SetDefault("server.storage", "database")
	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 8080)
	v.SetDefault("gateway.shutdown_timeout", 10*time.Second)
	v.SetDefault("grpc.fulfillment_service", "fulfillment-service")
	v.SetDefault("grpc.fulfillment_addr", "localhost:50052")
	v.SetDefault("grpc.dial_timeout", 5*time.Second)
	v.SetDefault("etcd.dial_timeout", 5*time.Second)
	v.SetDefault("etcd.prefix", "/rugstore/services/")
	v.SetDefault("etcd.lease_ttl", 30)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.catalog_ttl", 10*time.Minute)
	v.SetDefault("redis.idempotency_ttl", 24*time.Hour)
	v.SetDefault("mysql.max_idle_conns", 5)
	v.SetDefault("mysql.max_open_conns", 20)
	v.SetDefault("mongodb.database", "rugstore")
	v.SetDefault("mongodb.collection", "audit_logs")
	v.SetDefault("mongodb.products_collection", "products")
	v.SetDefault("mongodb.users_collection", "users")
	v.SetDefault("nats.orders_placed_subject", "orders.placed")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
	v.SetDefault("auth.admin_role", "admin")
	v.SetDefault("pricing.currency", "INR")
	v.SetDefault("pricing.free_shipping_threshold", "50000")
	v.SetDefault("pricing.shipping_fee", "2500")
	v.SetDefault("pricing.coupon_code", "RUGLOVE10")
	v.SetDefault("pricing.coupon_percent", "10")
	v.SetDefault("payment.mode", "fake")
	v.SetDefault("payment.timeout", 15*time.Second)
	v.SetDefault("session.idle_timeout", 30*time.Minute)
	v.SetDefault("session.request_timeout", 5*time.Second)
	v.SetDefault("session.cookie_name", "rugstore_sid")
	v.SetDefault("reviews.min_text_length", 10)
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("cors.allow_origins", []string{"*"})
}

// Load reads the YAML file at configPath. Environment variables prefixed
// with RUGSTORE_ override file values (RUGSTORE_MYSQL_PASSWORD sets
// mysql.password).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("RUGSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if _, err := config.Pricing.Rules(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

// Rules parses the configured amounts into pricing rules.
func (c *PricingConfig) Rules() (pricing.Rules, error) {
	threshold, err := decimal.NewFromString(c.FreeShippingThreshold)
	if err != nil {
		return pricing.Rules{}, fmt.Errorf("invalid pricing.free_shipping_threshold: %w", err)
	}
	fee, err := decimal.NewFromString(c.ShippingFee)
	if err != nil {
		return pricing.Rules{}, fmt.Errorf("invalid pricing.shipping_fee: %w", err)
	}
	percent, err := decimal.NewFromString(c.CouponPercent)
	if err != nil {
		return pricing.Rules{}, fmt.Errorf("invalid pricing.coupon_percent: %w", err)
	}
	if percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
		return pricing.Rules{}, fmt.Errorf("invalid pricing.coupon_percent: %s is outside 0-100", percent)
	}
	return pricing.Rules{
		Currency:              c.Currency,
		FreeShippingThreshold: threshold,
		ShippingFee:           fee,
		CouponCode:            strings.ToUpper(strings.TrimSpace(c.CouponCode)),
		CouponPercent:         percent,
	}, nil
}
