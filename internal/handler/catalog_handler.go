package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/serviceloop/service-booking/internal/application"
	"github.com/serviceloop/service-booking/internal/platform/auth"
	"github.com/serviceloop/service-booking/internal/platform/middleware"
	"github.com/serviceloop/service-booking/internal/platform/response"
)

// CatalogHandler exposes the provider catalog over HTTP: public reads for
// consumers browsing providers, and authenticated writes for providers
// managing their own packages and portfolio.
type CatalogHandler struct {
	service *application.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(service *application.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// RegisterPublicRoutes mounts the read-only catalog routes.
func (h *CatalogHandler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/providers/:id", h.GetProviderProfile)
	rg.GET("/providers/:id/portfolio", h.GetPortfolio)
	rg.GET("/categories/:category/packages", h.GetCategoryPackages)
}

// RegisterProviderRoutes mounts the provider-only catalog management routes.
func (h *CatalogHandler) RegisterProviderRoutes(rg *gin.RouterGroup) {
	me := rg.Group("/catalog", middleware.RequireRole(auth.RoleProvider))
	{
		me.POST("/packages", h.CreatePackage)
		me.DELETE("/packages/:packageId", h.ArchivePackage)
		me.POST("/portfolio", h.AddPortfolioItem)
	}
}

// GetProviderProfile handles GET /providers/:id.
func (h *CatalogHandler) GetProviderProfile(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid provider ID")
		return
	}

	provider, packages, err := h.service.GetProviderProfile(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"provider": provider, "packages": packages})
}

// GetPortfolio handles GET /providers/:id/portfolio.
func (h *CatalogHandler) GetPortfolio(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid provider ID")
		return
	}

	items, err := h.service.GetPortfolio(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, items)
}

// GetCategoryPackages handles GET /categories/:category/packages.
func (h *CatalogHandler) GetCategoryPackages(c *gin.Context) {
	category := c.Param("category")
	if category == "" {
		response.BadRequest(c, "category is required")
		return
	}

	packages, err := h.service.GetPackagesForCategory(c.Request.Context(), category)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, packages)
}

// CreatePackage handles POST /catalog/packages.
func (h *CatalogHandler) CreatePackage(c *gin.Context) {
	providerID, ok := middleware.GetUserID(c)
	if !ok {
		response.BadRequest(c, "missing authenticated user")
		return
	}

	var req application.CreatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	dto, err := h.service.CreatePackage(c.Request.Context(), providerID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto)
}

// ArchivePackage handles DELETE /catalog/packages/:packageId.
func (h *CatalogHandler) ArchivePackage(c *gin.Context) {
	providerID, ok := middleware.GetUserID(c)
	if !ok {
		response.BadRequest(c, "missing authenticated user")
		return
	}
	packageID, err := uuid.Parse(c.Param("packageId"))
	if err != nil {
		response.BadRequest(c, "invalid package ID")
		return
	}

	dto, err := h.service.ArchivePackage(c.Request.Context(), providerID, packageID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto)
}

// AddPortfolioItem handles POST /catalog/portfolio.
func (h *CatalogHandler) AddPortfolioItem(c *gin.Context) {
	providerID, ok := middleware.GetUserID(c)
	if !ok {
		response.BadRequest(c, "missing authenticated user")
		return
	}

	var req application.AddPortfolioItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	dto, err := h.service.AddPortfolioItem(c.Request.Context(), providerID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto)
}
