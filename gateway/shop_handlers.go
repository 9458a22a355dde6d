package gateway

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/models"
	"github.com/example/rugstore/pkg/payment"
	"github.com/example/rugstore/pkg/review"
)

// productView adds the prices a product card shows.
type productView struct {
	models.Product
	HeadlinePrice decimal.Decimal  `json:"headlinePrice"`
	HeadlineMRP   *decimal.Decimal `json:"headlineMrp,omitempty"`
}

func newProductView(p models.Product) productView {
	v := productView{Product: p, HeadlinePrice: p.HeadlinePrice()}
	if mrp, ok := p.HeadlineMRP(); ok {
		v.HeadlineMRP = &mrp
	}
	return v
}

func productViews(products []models.Product) []productView {
	out := make([]productView, len(products))
	for i, p := range products {
		out[i] = newProductView(p)
	}
	return out
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

func (g *Gateway) listProducts(c *gin.Context) {
	var (
		products []models.Product
		err      error
	)
	if q := c.Query("q"); q != "" {
		products, err = g.services.Catalog.Search(c.Request.Context(), q, queryLimit(c))
	} else {
		products, err = g.services.Catalog.All(c.Request.Context())
	}
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": productViews(products)})
}

func (g *Gateway) suggestProducts(c *gin.Context) {
	names, err := g.services.Catalog.Suggest(c.Request.Context(), c.Query("q"), queryLimit(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": names})
}

func (g *Gateway) getProduct(c *gin.Context) {
	p, err := g.services.Catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newProductView(p))
}

func (g *Gateway) listReviews(c *gin.Context) {
	reviews, summary, err := g.services.Reviews.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews, "summary": summary})
}

func (g *Gateway) reviewEligibility(c *gin.Context) {
	e, err := g.services.Reviews.Eligibility(c.Request.Context(), identity(c).UserID, c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (g *Gateway) submitReview(c *gin.Context) {
	var req review.Submission
	if err := c.ShouldBindJSON(&req); err != nil {
		g.badRequest(c, err)
		return
	}
	who := identity(c)
	if req.AuthorName == "" {
		req.AuthorName = who.Name
	}
	r, err := g.services.Reviews.Submit(c.Request.Context(), who.UserID, c.Param("id"), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

type lineRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

// quantity defaults to one when the client leaves it out.
func (r lineRequest) quantity() int {
	if r.Quantity == 0 {
		return 1
	}
	return r.Quantity
}

func (r lineRequest) key() models.LineKey {
	return models.LineKey{ProductID: r.ProductID, Size: r.Size}
}

func (g *Gateway) getCart(c *gin.Context) {
	view, err := g.services.Shop.View(c.Request.Context(), sessionID(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (g *Gateway) addToCart(c *gin.Context) {
	var req lineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.badRequest(c, err)
		return
	}
	view, err := g.services.Shop.AddToCart(c.Request.Context(), sessionID(c), req.ProductID, req.Size, req.quantity())
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (g *Gateway) setQuantity(c *gin.Context) {
	var req lineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.badRequest(c, err)
		return
	}
	view, err := g.services.Shop.SetQuantity(c.Request.Context(), sessionID(c), req.key(), req.Quantity)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (g *Gateway) removeFromCart(c *gin.Context) {
	key := models.LineKey{ProductID: c.Query("productId"), Size: c.Query("size")}
	view, err := g.services.Shop.RemoveFromCart(c.Request.Context(), sessionID(c), key)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (g *Gateway) applyCoupon(c *gin.Context) {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		g.badRequest(c, err)
		return
	}
	view, err := g.services.Shop.ApplyCoupon(c.Request.Context(), sessionID(c), req.Code)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (g *Gateway) removeCoupon(c *gin.Context) {
	view, err := g.services.Shop.RemoveCoupon(c.Request.Context(), sessionID(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (g *Gateway) getCheckout(c *gin.Context) {
	g.getCart(c)
}

func (g *Gateway) buyNow(c *gin.Context) {
	var req lineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.badRequest(c, err)
		return
	}
	view, err := g.services.Shop.BuyNow(c.Request.Context(), sessionID(c), identity(c).UserID, req.ProductID, req.Size, req.quantity())
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (g *Gateway) startCheckout(c *gin.Context) {
	view, err := g.services.Shop.StartCheckout(c.Request.Context(), sessionID(c), identity(c).UserID)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (g *Gateway) selectSavedAddress(c *gin.Context) {
	var req struct {
		AddressID string `json:"addressId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		g.badRequest(c, err)
		return
	}
	view, err := g.services.Shop.SelectSavedAddress(c.Request.Context(), sessionID(c), req.AddressID)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (g *Gateway) addNewAddress(c *gin.Context) {
	view, err := g.services.Shop.AddNewAddress(c.Request.Context(), sessionID(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (g *Gateway) editNewAddress(c *gin.Context) {
	var req struct {
		Address models.Address `json:"address"`
		Save    bool           `json:"save"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		g.badRequest(c, err)
		return
	}
	view, err := g.services.Shop.EditNewAddress(c.Request.Context(), sessionID(c), req.Address, req.Save)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (g *Gateway) proceedToPayment(c *gin.Context) {
	view, err := g.services.Shop.ProceedToPayment(c.Request.Context(), sessionID(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (g *Gateway) choosePayment(c *gin.Context) {
	var req struct {
		Method models.PaymentMethod `json:"method" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		g.badRequest(c, err)
		return
	}
	view, err := g.services.Shop.ChoosePayment(c.Request.Context(), sessionID(c), req.Method)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (g *Gateway) back(c *gin.Context) {
	view, err := g.services.Shop.Back(c.Request.Context(), sessionID(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func idempotencyKey(c *gin.Context) (string, error) {
	key := c.GetHeader("Idempotency-Key")
	if key == "" {
		return "", errs.Validationf("gateway.place", "idempotencyKey", "Idempotency-Key header is required")
	}
	if len(key) > 64 {
		return "", errs.Validationf("gateway.place", "idempotencyKey", "Idempotency-Key is longer than 64 characters")
	}
	return key, nil
}

// place answers 201 with the order for cash on delivery and 202 with the
// gateway payment for online payment.
func (g *Gateway) place(c *gin.Context) {
	key, err := idempotencyKey(c)
	if err != nil {
		g.fail(c, err)
		return
	}
	var req struct {
		ExpectedTotal *decimal.Decimal `json:"expectedTotal"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		g.badRequest(c, err)
		return
	}

	res, err := g.services.Shop.Place(c.Request.Context(), sessionID(c), identity(c).UserID, key, req.ExpectedTotal)
	if err != nil {
		g.fail(c, err)
		return
	}
	if res.Order != nil {
		c.JSON(http.StatusCreated, res)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

func (g *Gateway) verify(c *gin.Context) {
	key, err := idempotencyKey(c)
	if err != nil {
		g.fail(c, err)
		return
	}
	var proof payment.Proof
	if err := c.ShouldBindJSON(&proof); err != nil {
		g.badRequest(c, err)
		return
	}
	res, err := g.services.Shop.Confirm(c.Request.Context(), sessionID(c), identity(c).UserID, key, proof)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}
