package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type createBookingRequest struct {
	Kind         string    `json:"kind"`
	CustomerID   string    `json:"customer_id"`
	Email        string    `json:"email"`
	PoolIDs      []string  `json:"pool_ids"`
	Passengers   int       `json:"passengers"`
	CheckIn      time.Time `json:"check_in"`
	CheckOut     time.Time `json:"check_out"`
	Rooms        int       `json:"rooms"`
	SeatIDs      []string  `json:"seat_ids"`
	Guests       int       `json:"guests"`
	Participants int       `json:"participants"`
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

type priceResponse struct {
	Base      int64 `json:"base"`
	Taxes     int64 `json:"taxes"`
	Fees      int64 `json:"fees"`
	Discounts int64 `json:"discounts"`
	Total     int64 `json:"total"`
}

type resourceResponse struct {
	PoolID   string   `json:"pool_id"`
	Quantity int      `json:"quantity"`
	UnitIDs  []string `json:"unit_ids,omitempty"`
}

type bookingResponse struct {
	Reference          string             `json:"reference"`
	Kind               string             `json:"kind"`
	Status             string             `json:"status"`
	CustomerID         string             `json:"customer_id"`
	Email              string             `json:"email"`
	Price              priceResponse      `json:"price"`
	Resources          []resourceResponse `json:"resources"`
	ExpiresAt          string             `json:"expires_at"`
	CreatedAt          string             `json:"created_at"`
	CancelledAt        string             `json:"cancelled_at,omitempty"`
	CancellationReason string             `json:"cancellation_reason,omitempty"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/", h.list)
	router.GET("/:reference", h.get)
	router.DELETE("/:reference", h.cancel)
	router.POST("/:reference/complete", h.complete)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.service.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		Kind:         domain.BookingKind(strings.ToUpper(req.Kind)),
		CustomerID:   req.CustomerID,
		Email:        req.Email,
		PoolIDs:      req.PoolIDs,
		Passengers:   req.Passengers,
		CheckIn:      req.CheckIn,
		CheckOut:     req.CheckOut,
		Rooms:        req.Rooms,
		SeatIDs:      req.SeatIDs,
		Guests:       req.Guests,
		Participants: req.Participants,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toBookingResponse(created))
}

func (h *BookingHandler) list(c *gin.Context) {
	customerID := c.Query("customer_id")
	if customerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "customer_id is required"})
		return
	}

	bookings, err := h.service.ListBookings(c.Request.Context(), customerID)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		responses = append(responses, toBookingResponse(&bookings[i]))
	}
	c.JSON(http.StatusOK, responses)
}

func (h *BookingHandler) get(c *gin.Context) {
	found, err := h.service.GetBooking(c.Request.Context(), c.Param("reference"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(found))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	var req cancelBookingRequest
	_ = c.ShouldBindJSON(&req)

	cancelled, err := h.service.CancelBooking(c.Request.Context(), c.Param("reference"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(cancelled))
}

func (h *BookingHandler) complete(c *gin.Context) {
	completed, err := h.service.CompleteBooking(c.Request.Context(), c.Param("reference"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(completed))
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	resp := bookingResponse{
		Reference:  b.Reference,
		Kind:       string(b.Kind),
		Status:     string(b.Status),
		CustomerID: b.CustomerID,
		Email:      b.Email,
		Price: priceResponse{
			Base:      b.Price.Base,
			Taxes:     b.Price.Taxes,
			Fees:      b.Price.Fees,
			Discounts: b.Price.Discounts,
			Total:     b.Price.Total,
		},
		ExpiresAt:          b.ExpiresAt.Format(time.RFC3339),
		CreatedAt:          b.CreatedAt.Format(time.RFC3339),
		CancellationReason: b.CancellationReason,
	}
	if b.CancelledAt != nil {
		resp.CancelledAt = b.CancelledAt.Format(time.RFC3339)
	}
	for _, res := range b.Resources {
		resp.Resources = append(resp.Resources, resourceResponse{
			PoolID:   res.PoolID,
			Quantity: res.Quantity,
			UnitIDs:  res.UnitIDs,
		})
	}
	return resp
}
