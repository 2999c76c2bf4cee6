package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/domain/valueobject"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/http/handlers/common"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/pkg/apperror"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/service"
)

// CatalogHandler — HTTP слой витрины продавца.
type CatalogHandler struct {
	catalog *service.CatalogService
}

func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// CreateProduct обрабатывает POST /catalog/products.
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	sellerID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		Title       string `json:"title" binding:"required"`
		Description string `json:"description"`
		Variants    []struct {
			Name  string `json:"name" binding:"required"`
			Price string `json:"price" binding:"required"`
		} `json:"variants" binding:"required"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.HandleError(c, err)
		return
	}

	params := service.CreateProductParams{
		Title:       req.Title,
		Description: req.Description,
	}
	for _, v := range req.Variants {
		price, err := valueobject.ParseAmount(v.Price)
		if err != nil {
			common.HandleError(c, apperror.New(apperror.ErrCodeValidation, "некорректная цена варианта"))
			return
		}
		params.Variants = append(params.Variants, service.CreateVariantParams{Name: v.Name, Price: price})
	}

	product, variants, err := h.catalog.CreateProduct(c.Request.Context(), sellerID, params)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"product": product, "variants": variants})
}

// GetProduct обрабатывает GET /catalog/products/:id.
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	productID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.HandleError(c, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректный идентификатор товара"))
		return
	}

	product, variants, err := h.catalog.GetProduct(c.Request.Context(), productID)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"product": product, "variants": variants})
}

// ListMyProducts обрабатывает GET /catalog/products.
func (h *CatalogHandler) ListMyProducts(c *gin.Context) {
	sellerID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	products, err := h.catalog.ListSellerProducts(c.Request.Context(), sellerID)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

// CreatePackage обрабатывает POST /catalog/packages.
func (h *CatalogHandler) CreatePackage(c *gin.Context) {
	sellerID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		Title           string `json:"title" binding:"required"`
		Description     string `json:"description"`
		Price           string `json:"price" binding:"required"`
		DurationMinutes int    `json:"duration_minutes" binding:"required"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.HandleError(c, err)
		return
	}

	price, err := valueobject.ParseAmount(req.Price)
	if err != nil {
		common.HandleError(c, apperror.New(apperror.ErrCodeValidation, "некорректная цена пакета"))
		return
	}

	pkg, err := h.catalog.CreatePackage(c.Request.Context(), sellerID, service.CreatePackageParams{
		Title:           req.Title,
		Description:     req.Description,
		Price:           price,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, pkg)
}

// ListMyPackages обрабатывает GET /catalog/packages.
func (h *CatalogHandler) ListMyPackages(c *gin.Context) {
	sellerID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	packages, err := h.catalog.ListSellerPackages(c.Request.Context(), sellerID)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"packages": packages})
}

// CreateQuote обрабатывает POST /catalog/quotes.
func (h *CatalogHandler) CreateQuote(c *gin.Context) {
	sellerID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		BuyerID   uuid.UUID  `json:"buyer_id" binding:"required"`
		VariantID *uuid.UUID `json:"variant_id"`
		PackageID *uuid.UUID `json:"package_id"`
		Price     string     `json:"price" binding:"required"`
		TTLHours  int        `json:"ttl_hours"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.HandleError(c, err)
		return
	}

	price, err := valueobject.ParseAmount(req.Price)
	if err != nil {
		common.HandleError(c, apperror.New(apperror.ErrCodeValidation, "некорректная цена предложения"))
		return
	}

	quote, err := h.catalog.CreateQuote(c.Request.Context(), sellerID, service.CreateQuoteParams{
		BuyerID:   req.BuyerID,
		VariantID: req.VariantID,
		PackageID: req.PackageID,
		Price:     price,
		TTL:       time.Duration(req.TTLHours) * time.Hour,
	})
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, quote)
}

// RespondQuote обрабатывает POST /catalog/quotes/:id/respond.
func (h *CatalogHandler) RespondQuote(c *gin.Context) {
	buyerID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	quoteID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.HandleError(c, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректный идентификатор предложения"))
		return
	}

	var req struct {
		Accept bool `json:"accept"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.HandleError(c, err)
		return
	}

	quote, err := h.catalog.RespondQuote(c.Request.Context(), buyerID, quoteID, req.Accept)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, quote)
}

// ListBoostPackages обрабатывает GET /catalog/boost-packages.
func (h *CatalogHandler) ListBoostPackages(c *gin.Context) {
	packages, err := h.catalog.ListBoostPackages(c.Request.Context())
	if err != nil {
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"boost_packages": packages})
}
