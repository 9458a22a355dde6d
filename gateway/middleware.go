package gateway

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/rugstore/pkg/auth"
	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/metrics"
)

const (
	ctxSessionID = "session_id"
	ctxIdentity  = "identity"
)

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}

// sessionMiddleware ties the request to a browser session, issuing a cookie
// on first contact.
func (g *Gateway) sessionMiddleware() gin.HandlerFunc {
	name := g.config.Session.CookieName
	if name == "" {
		name = "rugstore_sid"
	}
	maxAge := int(g.config.Session.IdleTimeout / time.Second)

	return func(c *gin.Context) {
		sid, err := c.Cookie(name)
		if err != nil || uuid.Validate(sid) != nil {
			sid = uuid.NewString()
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(name, sid, maxAge, "/", "", g.config.Session.CookieSecure, true)
		c.Set(ctxSessionID, sid)
		c.Next()
	}
}

func (g *Gateway) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			g.fail(c, errs.E("gateway.auth", errs.KindUnauthorized, errors.New("authorization header is missing")))
			return
		}
		id, err := g.services.Auth.Parse(token)
		if err != nil {
			g.fail(c, err)
			return
		}
		c.Set(ctxIdentity, id)
		c.Next()
	}
}

func (g *Gateway) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.services.Auth.IsAdmin(identity(c)) {
			g.fail(c, errs.E("gateway.admin", errs.KindForbidden, errors.New("admin role required")))
			return
		}
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(ctxSessionID)
}

func identity(c *gin.Context) auth.Identity {
	id, _ := c.Get(ctxIdentity)
	who, _ := id.(auth.Identity)
	return who
}
