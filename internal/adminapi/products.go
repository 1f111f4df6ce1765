package adminapi

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
	"github.com/talkincode/shopadmin/internal/assetstore"
	"github.com/talkincode/shopadmin/internal/catalog"
	"github.com/talkincode/shopadmin/internal/webserver"
	"go.uber.org/zap"
)

type availabilityPayload struct {
	IsAvailable *bool `json:"is_available" validate:"required"`
}

// registerProductRoutes registers product catalog endpoints
func registerProductRoutes() {
	webserver.ApiGET("/products", listProducts)
	webserver.ApiGET("/products/export.csv", exportProducts)
	webserver.ApiGET("/products/:id", getProduct)
	webserver.ApiPOST("/products", createProduct)
	webserver.ApiPUT("/products/:id", updateProduct)
	webserver.ApiPUT("/products/:id/availability", setProductAvailability)
	webserver.ApiDELETE("/products/:id", deleteProduct)
	webserver.ApiGET("/products/:id/download", downloadProduct)
}

func listQuery(c echo.Context) catalog.ListQuery {
	page, pageSize := parsePagination(c)
	q := catalog.ListQuery{
		Query:    strings.TrimSpace(c.QueryParam("q")),
		Sort:     strings.TrimSpace(c.QueryParam("sort")),
		Order:    c.QueryParam("order"),
		Page:     page,
		PageSize: pageSize,
	}
	if v := strings.TrimSpace(c.QueryParam("available")); v != "" {
		if b, err := cast.ToBoolE(v); err == nil {
			q.Available = &b
		}
	}
	return q
}

// operatorContext tags the request context with who is acting. There is
// no login, so the operator name comes from an optional header.
func operatorContext(c echo.Context) context.Context {
	name := strings.TrimSpace(c.Request().Header.Get("X-Operator"))
	if name == "" {
		name = "admin"
	}
	return catalog.WithOperator(c.Request().Context(), catalog.Operator{Name: name, IP: c.RealIP()})
}

// catalogFail maps catalog errors to HTTP responses
func catalogFail(c echo.Context, err error, action string) error {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr):
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid product data", verr.Fields)
	case errors.Is(err, catalog.ErrNotFound):
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	case errors.Is(err, assetstore.ErrNotFound):
		return fail(c, http.StatusNotFound, "FILE_NOT_FOUND", "Product file not found", nil)
	case errors.Is(err, catalog.ErrProductHasOrders):
		return fail(c, http.StatusConflict, "PRODUCT_HAS_ORDERS", "Product has orders and cannot be deleted", nil)
	}
	zap.L().Error("product request failed",
		zap.String("namespace", "adminapi"),
		zap.String("action", action),
		zap.Error(err))
	return fail(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to "+action, err.Error())
}

func listProducts(c echo.Context) error {
	res, err := GetAppContext(c).Listing().List(c.Request().Context(), listQuery(c))
	if err != nil {
		return catalogFail(c, err, "query products")
	}
	return paged(c, res.Items, res.Total, res.Page, res.PageSize)
}

func exportProducts(c echo.Context) error {
	var buf bytes.Buffer
	if err := GetAppContext(c).Listing().ExportCSV(c.Request().Context(), listQuery(c), &buf); err != nil {
		return catalogFail(c, err, "export products")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="products.csv"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func getProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	p, err := GetAppContext(c).Listing().Get(c.Request().Context(), id)
	if err != nil {
		return catalogFail(c, err, "query product")
	}
	return ok(c, p)
}

func parseProductForm(c echo.Context, mode catalog.FormMode) (catalog.ProductForm, error) {
	form, err := c.MultipartForm()
	if err != nil {
		verr := &catalog.ValidationError{}
		verr.Add("form", "Expected a multipart form")
		return catalog.ProductForm{}, verr
	}
	return catalog.ValidateProductForm(form.Value, form.File, mode)
}

func createProduct(c echo.Context) error {
	form, err := parseProductForm(c, catalog.FormCreate)
	if err != nil {
		return catalogFail(c, err, "create product")
	}
	p, err := GetAppContext(c).Coordinator().CreateProduct(operatorContext(c), form.Input, form.File, form.Image)
	if err != nil {
		return catalogFail(c, err, "create product")
	}
	return created(c, p)
}

func updateProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	form, err := parseProductForm(c, catalog.FormUpdate)
	if err != nil {
		return catalogFail(c, err, "update product")
	}
	p, err := GetAppContext(c).Coordinator().UpdateProduct(operatorContext(c), id, form.Input, form.File, form.Image)
	if err != nil {
		return catalogFail(c, err, "update product")
	}
	return ok(c, p)
}

func setProductAvailability(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var payload availabilityPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse availability", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "is_available is required", nil)
	}
	p, err := GetAppContext(c).Coordinator().ToggleAvailability(operatorContext(c), id, *payload.IsAvailable)
	if err != nil {
		return catalogFail(c, err, "update availability")
	}
	return ok(c, p)
}

func deleteProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	p, err := GetAppContext(c).Coordinator().DeleteProduct(operatorContext(c), id)
	if err != nil {
		return catalogFail(c, err, "delete product")
	}
	return ok(c, map[string]interface{}{"id": cast.ToString(p.ID)})
}

func downloadProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	dl, err := GetAppContext(c).Listing().ResolveDownload(c.Request().Context(), id)
	if err != nil {
		return catalogFail(c, err, "download product")
	}
	return c.Attachment(dl.Path, dl.Filename)
}
