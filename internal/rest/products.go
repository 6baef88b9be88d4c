package rest

import (
	"net/http"
	"strconv"

	"github.com/dfryer1193/storefront/api"
	"github.com/dfryer1193/storefront/shop/application"
	"github.com/dfryer1193/storefront/shop/domain"
	"github.com/gin-gonic/gin"
)

type productHandlers struct {
	service *application.ProductService
}

func (h *productHandlers) list(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		respondError(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), application.ListParams{
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	products := make([]api.Product, 0, len(result.Products))
	for _, p := range result.Products {
		products = append(products, toProduct(p))
	}

	respond(c, http.StatusOK, api.ProductList{
		Products: products,
		Pagination: api.Pagination{
			Page:  result.Page,
			Limit: result.Limit,
			Total: result.Total,
			Pages: result.Pages,
		},
	})
}

func (h *productHandlers) get(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, toProduct(p))
}

func (h *productHandlers) create(c *gin.Context) {
	p, err := h.service.Create(c.Request.Context(), productFields(c), uploadFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, toProduct(p))
}

func (h *productHandlers) update(c *gin.Context) {
	p, err := h.service.Update(c.Request.Context(), c.Param("id"), productFields(c), uploadFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, toProduct(p))
}

func (h *productHandlers) delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, api.Message{Message: "Product deleted successfully"})
}

// productFields reads the form; a field that was not sent stays nil
func productFields(c *gin.Context) application.ProductFields {
	var fields application.ProductFields
	if v, ok := c.GetPostForm("name"); ok {
		fields.Name = &v
	}
	if v, ok := c.GetPostForm("shortDescription"); ok {
		fields.ShortDescription = &v
	}
	if v, ok := c.GetPostForm("price"); ok {
		fields.Price = &v
	}
	return fields
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError("Invalid query parameter", key, "must be an integer")
	}
	return n, nil
}
