package gateway

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/models"
	"github.com/example/rugstore/pkg/repository"
	"github.com/example/rugstore/pkg/review"
)

func (g *Gateway) listAddresses(c *gin.Context) {
	profile, err := g.services.Book.Profile(c.Request.Context(), identity(c).UserID)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (g *Gateway) addAddress(c *gin.Context) {
	var addr models.Address
	if err := c.ShouldBindJSON(&addr); err != nil {
		g.badRequest(c, err)
		return
	}
	saved, err := g.services.Book.Add(c.Request.Context(), identity(c).UserID, addr)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (g *Gateway) listOrders(c *gin.Context) {
	orders, err := g.services.Orders.History(c.Request.Context(), identity(c).UserID)
	if err != nil {
		g.fail(c, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (g *Gateway) getOrder(c *gin.Context) {
	o, err := g.services.Orders.Lookup(c.Request.Context(), identity(c).UserID, c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (g *Gateway) createProduct(c *gin.Context) {
	var p models.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		g.badRequest(c, err)
		return
	}
	created, err := g.services.Catalog.Create(c.Request.Context(), p)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newProductView(created))
}

func (g *Gateway) updateProduct(c *gin.Context) {
	var p models.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		g.badRequest(c, err)
		return
	}
	updated, err := g.services.Catalog.Update(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newProductView(updated))
}

func (g *Gateway) adminReview(c *gin.Context) {
	var req review.Submission
	if err := c.ShouldBindJSON(&req); err != nil {
		g.badRequest(c, err)
		return
	}
	r, err := g.services.Reviews.SubmitAsAdmin(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (g *Gateway) updateOrderStatus(c *gin.Context) {
	var req struct {
		Status models.OrderStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		g.badRequest(c, err)
		return
	}
	o, err := g.services.Fulfillment.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (g *Gateway) orderAudit(c *gin.Context) {
	if g.services.Audit == nil {
		g.fail(c, errs.Unavailable("gateway.orderAudit", errors.New("audit log is not configured")))
		return
	}
	limit := int64(queryLimit(c))
	if limit == 0 {
		limit = 50
	}
	logs, err := g.services.Audit.GetAuditLogs(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		g.fail(c, err)
		return
	}
	if logs == nil {
		logs = []*repository.AuditLog{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": logs})
}
