package controller

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/carpore/carpore-backend/internal/app/service"
	"github.com/carpore/carpore-backend/internal/catalogsheet"
	apperrors "github.com/carpore/carpore-backend/internal/errors"
	"github.com/carpore/carpore-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

const (
	maxImportSize = 5 << 20
	xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type CatalogController struct {
	catalogService service.CatalogService
}

func NewCatalogController(catalogService service.CatalogService) *CatalogController {
	return &CatalogController{
		catalogService: catalogService,
	}
}

// GetItems returns every sellable fragrance
// GET /api/v1/products
func (ctrl *CatalogController) GetItems(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	items, err := ctrl.catalogService.ListItems(c.Request.Context())
	if err != nil {
		log.Error("Failed to fetch catalog", err)
		apperrors.InternalError(c, "Failed to fetch products")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  items,
		"count": len(items),
	})
}

// GetFeaturedItems returns the storefront's featured row
// GET /api/v1/products/featured
func (ctrl *CatalogController) GetFeaturedItems(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	items, err := ctrl.catalogService.ListFeatured(c.Request.Context())
	if err != nil {
		log.Error("Failed to fetch featured products", err)
		apperrors.InternalError(c, "Failed to fetch featured products")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  items,
		"count": len(items),
	})
}

// GetItem returns one item by its <category>-<fragrance> id
// GET /api/v1/products/:id
func (ctrl *CatalogController) GetItem(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	item, err := ctrl.catalogService.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrCatalogItemNotFound) {
			apperrors.NotFound(c, apperrors.CatalogItemNotFound, "Product not found")
			return
		}
		log.Error("Failed to fetch catalog item", err, map[string]interface{}{
			"item_id": c.Param("id"),
		})
		apperrors.InternalError(c, "Failed to fetch product")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": item,
	})
}

// GetCategories returns categories with their fragrances
// GET /api/v1/categories
func (ctrl *CatalogController) GetCategories(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	categories, err := ctrl.catalogService.ListCategories(c.Request.Context())
	if err != nil {
		log.Error("Failed to fetch categories", err)
		apperrors.InternalError(c, "Failed to fetch categories")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": categories,
	})
}

// GetCategory returns one category
// GET /api/v1/categories/:id
func (ctrl *CatalogController) GetCategory(c *gin.Context) {
	category, err := ctrl.catalogService.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrCategoryNotFound) {
			apperrors.NotFound(c, apperrors.CategoryNotFound, "Category not found")
			return
		}
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "category")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": category,
	})
}

// ImportCatalog upserts fragrances from an uploaded spreadsheet
// POST /api/v1/admin/catalog/import
func (ctrl *CatalogController) ImportCatalog(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	header, err := c.FormFile("file")
	if err != nil {
		apperrors.BadRequest(c, apperrors.ValidationRequired, "Upload an .xlsx file in the file field")
		return
	}
	if header.Size > maxImportSize {
		apperrors.BadRequest(c, apperrors.UploadFailed, "Spreadsheet must be 5MB or smaller")
		return
	}
	file, err := header.Open()
	if err != nil {
		log.Error("Failed to open uploaded spreadsheet", err)
		apperrors.InternalError(c, "")
		return
	}
	defer file.Close()

	fragrances, skipped, err := catalogsheet.Read(file)
	if err != nil {
		log.Warn("Rejected catalog spreadsheet", map[string]interface{}{
			"filename": header.Filename,
			"error":    err.Error(),
		})
		apperrors.BadRequest(c, apperrors.UploadInvalidFileType, err.Error())
		return
	}

	imported, err := ctrl.catalogService.ImportFragrances(c.Request.Context(), fragrances)
	if err != nil {
		log.Error("Catalog import failed", err, map[string]interface{}{
			"imported": imported,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "fragrance")
		return
	}

	log.Info("Catalog imported", map[string]interface{}{
		"filename": header.Filename,
		"rows":     len(fragrances),
		"imported": imported,
		"skipped":  len(skipped),
	})
	c.JSON(http.StatusOK, gin.H{
		"message": "Catalog imported",
		"data": gin.H{
			"imported":     imported,
			"unknown":      len(fragrances) - imported,
			"skipped_rows": skipped,
		},
	})
}

// ExportCatalog downloads the catalog in the import layout
// GET /api/v1/admin/catalog/export
func (ctrl *CatalogController) ExportCatalog(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	categories, err := ctrl.catalogService.ListCategories(c.Request.Context())
	if err != nil {
		log.Error("Failed to fetch categories for export", err)
		apperrors.InternalError(c, "")
		return
	}

	var buf bytes.Buffer
	if err := catalogsheet.Write(&buf, categories); err != nil {
		log.Error("Failed to render catalog spreadsheet", err)
		apperrors.InternalError(c, "")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="carpore-catalog.xlsx"`)
	c.Data(http.StatusOK, xlsxMediaType, buf.Bytes())
}
