package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/rugstore/pkg/errs"
)

var kindStatus = map[errs.Kind]int{
	errs.KindValidation:          http.StatusBadRequest,
	errs.KindUnauthorized:        http.StatusUnauthorized,
	errs.KindPaymentVerification: http.StatusPaymentRequired,
	errs.KindForbidden:           http.StatusForbidden,
	errs.KindNotFound:            http.StatusNotFound,
	errs.KindConflict:            http.StatusConflict,
	errs.KindIneligible:          http.StatusUnprocessableEntity,
	errs.KindPersistence:         http.StatusInternalServerError,
	errs.KindUnavailable:         http.StatusServiceUnavailable,
}

func statusOf(err error) int {
	if status, ok := kindStatus[errs.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// fail writes err as {"error", "kind", "field"} and stops the chain.
func (g *Gateway) fail(c *gin.Context, err error) {
	status := statusOf(err)
	kind := errs.KindOf(err)

	body := gin.H{"error": errs.Message(err), "kind": kind}
	if field := errs.FieldOf(err); field != "" {
		body["field"] = field
	}
	if kind == errs.KindUnknown {
		body["error"] = "internal error"
	}

	if status >= http.StatusInternalServerError {
		g.logger.Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(status, body)
}

func (g *Gateway) badRequest(c *gin.Context, err error) {
	g.fail(c, errs.Validation("gateway.bind", "body", err))
}
