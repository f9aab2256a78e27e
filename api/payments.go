package api

import (
	"net/http"

	"github.com/Domenick1991/travelbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
)

// PaymentHandler is the HTTP ingress for payment-gateway callbacks. The same
// settlement path also consumes the payment-results Kafka topic; both feeds
// are idempotent per booking reference.
type PaymentHandler struct {
	service booking.BookingUseCase
}

type paymentResultRequest struct {
	BookingReference string            `json:"booking_reference"`
	Success          bool              `json:"success"`
	Metadata         map[string]string `json:"metadata"`
}

func NewPaymentHandler(service booking.BookingUseCase) *PaymentHandler {
	return &PaymentHandler{service: service}
}

func (h *PaymentHandler) Register(router *gin.RouterGroup) {
	router.POST("/result", h.result)
}

func (h *PaymentHandler) result(c *gin.Context) {
	var req paymentResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.BookingReference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "booking_reference is required"})
		return
	}

	if err := h.service.OnPaymentResult(c.Request.Context(), req.BookingReference, req.Success); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}
