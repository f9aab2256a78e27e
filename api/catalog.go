package api

import (
	"net/http"
	"strings"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/service/catalog"
	"github.com/gin-gonic/gin"
)

type CatalogHandler struct {
	service catalog.CatalogUseCase
}

type createPoolRequest struct {
	ID            string   `json:"id"`
	Kind          string   `json:"kind"`
	Name          string   `json:"name"`
	TotalCapacity int      `json:"total_capacity"`
	UnitPrice     int64    `json:"unit_price"`
	UnitIDs       []string `json:"unit_ids"`
}

func NewCatalogHandler(service catalog.CatalogUseCase) *CatalogHandler {
	return &CatalogHandler{service: service}
}

func (h *CatalogHandler) Register(router *gin.RouterGroup) {
	router.GET("/", h.list)
	router.GET("/:id", h.get)
	router.GET("/:id/units", h.units)
	router.POST("/", h.create)
	router.POST("/:id/activate", h.setActive(true))
	router.POST("/:id/deactivate", h.setActive(false))
}

func (h *CatalogHandler) list(c *gin.Context) {
	kind := domain.BookingKind(strings.ToUpper(c.Query("kind")))
	pools, err := h.service.List(c.Request.Context(), kind)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pools)
}

func (h *CatalogHandler) get(c *gin.Context) {
	pool, err := h.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pool)
}

func (h *CatalogHandler) units(c *gin.Context) {
	units, err := h.service.ListUnits(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, units)
}

func (h *CatalogHandler) create(c *gin.Context) {
	var req createPoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pool := &domain.Pool{
		ID:            req.ID,
		Kind:          domain.BookingKind(strings.ToUpper(req.Kind)),
		Name:          req.Name,
		TotalCapacity: req.TotalCapacity,
		UnitPrice:     req.UnitPrice,
		Active:        true,
		HasUnits:      len(req.UnitIDs) > 0,
	}
	if err := h.service.Create(c.Request.Context(), pool, req.UnitIDs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pool)
}

func (h *CatalogHandler) setActive(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.service.SetActive(c.Request.Context(), c.Param("id"), active); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "active": active})
	}
}
