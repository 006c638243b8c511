package products

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"appwini/internal/auth"
	"appwini/internal/domain/product"
)

type Handler struct {
	repo *Repo
	log  *zap.Logger
}

func NewHandler(repo *Repo, log *zap.Logger) *Handler {
	return &Handler{repo: repo, log: log}
}

// List: GET /api/products?type=dark&cacaoMin=60&cacaoMax=90
// "category" is accepted as an alias of type.
func (h *Handler) List(c *gin.Context) {
	var f product.Filter
	t := c.Query("type")
	if t == "" {
		t = c.Query("category")
	}
	if t != "" {
		f.Type = &t
	}

	var err error
	if f.CacaoMin, err = floatQuery(c, "cacaoMin"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cacaoMin must be a number"})
		return
	}
	if f.CacaoMax, err = floatQuery(c, "cacaoMax"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cacaoMax must be a number"})
		return
	}

	items, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		h.log.Error("list products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list products"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	p, err := h.repo.Get(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	if err != nil {
		h.log.Error("get product", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load product"})
		return
	}
	c.JSON(http.StatusOK, p)
}

type stockRequest struct {
	Stock *int `json:"stock" binding:"required"`
}

// SetStock: PATCH /api/products/:id/stock {"stock": 12}
func (h *Handler) SetStock(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	var req stockRequest
	if err := c.ShouldBindJSON(&req); err != nil || *req.Stock < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stock must be a whole number of at least 0"})
		return
	}
	p, err := h.repo.SetStock(c.Request.Context(), id, *req.Stock)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	if err != nil {
		h.log.Error("set stock", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update stock"})
		return
	}
	h.log.Info("stock updated", zap.Int64("id", id), zap.Int("stock", p.Stock), zap.Int64("by", c.GetInt64(auth.CtxUserIDKey)))
	c.JSON(http.StatusOK, p)
}

func floatQuery(c *gin.Context, key string) (*float64, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errors.New("not a finite number")
	}
	return &f, nil
}
