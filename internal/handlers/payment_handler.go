package handlers

import (
	"net/http"
	"strings"

	"paygate_backend/internal/gateway"
	"paygate_backend/internal/logger"
	"paygate_backend/internal/services"
	"paygate_backend/internal/services/dto"
	"paygate_backend/internal/views"

	"github.com/gin-gonic/gin"
)

const missingTokenMessage = "No payment token was received."

type PaymentHandler struct {
	*BaseHandler
	paymentService services.PaymentService
}

func NewPaymentHandler(base *BaseHandler, paymentService services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		BaseHandler:    base,
		paymentService: paymentService,
	}
}

func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup) {
	payment := r.Group("/payment")
	{
		payment.POST("/create", h.CreatePayment)
		payment.GET("/return", h.Return)
		// Webpay posts the token back as a form on the normal flow.
		payment.POST("/return", h.Return)
		payment.POST("/commit", h.CommitPayment)
	}
}

func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req dto.CreatePaymentRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	res, err := h.paymentService.CreatePayment(c.Request.Context(), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// Return is where the gateway sends the buyer back. Webpay uses token_ws,
// Mercado Pago payment_id and the mock gateway token.
func (h *PaymentHandler) Return(c *gin.Context) {
	token, gw := returnToken(c)
	if token == "" {
		logger.CtxWarn(c.Request.Context(), "Return without payment token", "query", c.Request.URL.RawQuery)
		c.String(http.StatusBadRequest, missingTokenMessage)
		return
	}
	if gw == "" {
		gw = h.paymentService.DefaultGateway()
	}

	c.HTML(http.StatusOK, views.ReturnPage, dto.ReturnPage{Token: token, Gateway: gw})
}

func (h *PaymentHandler) CommitPayment(c *gin.Context) {
	var req dto.CommitPaymentRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	record, err := h.paymentService.CommitPayment(c.Request.Context(), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

func returnToken(c *gin.Context) (token, gw string) {
	gw = formValue(c, "gateway")

	// An aborted Webpay flow only carries TBK_TOKEN, which cannot be committed.
	if t := formValue(c, "token_ws"); t != "" {
		if gw == "" {
			gw = gateway.WebpayName
		}
		return t, gw
	}
	if t := formValue(c, "payment_id"); t != "" && t != "null" {
		if gw == "" {
			gw = gateway.MercadoPagoName
		}
		return t, gw
	}
	return formValue(c, "token"), gw
}

func formValue(c *gin.Context, key string) string {
	if v := strings.TrimSpace(c.Query(key)); v != "" {
		return v
	}
	return strings.TrimSpace(c.PostForm(key))
}
