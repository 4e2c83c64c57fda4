package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mitra-erp/mitra-erp/internal/auth"
	"github.com/mitra-erp/mitra-erp/internal/imports"
	"github.com/mitra-erp/mitra-erp/internal/inventory"
	"github.com/mitra-erp/mitra-erp/internal/invoices"
	"github.com/mitra-erp/mitra-erp/internal/masterdata/products"
	"github.com/mitra-erp/mitra-erp/internal/observability"
	"github.com/mitra-erp/mitra-erp/internal/rbac"
	"github.com/mitra-erp/mitra-erp/internal/sales/customers"
	"github.com/mitra-erp/mitra-erp/internal/sales/quotations"
	"github.com/mitra-erp/mitra-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Middleware MiddlewareConfig
	Guard      rbac.Middleware

	AuthHandler      *auth.Handler
	QuotationHandler *quotations.Handler
	ImportHandler    *imports.Handler
	InvoiceHandler   *invoices.Handler
	ProductHandler   *products.Handler
	InventoryHandler *inventory.Handler
	CustomerHandler  *customers.Handler
	AdminHandler     *rbac.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter builds the JSON gateway.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(params.Middleware) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/auth", params.AuthHandler.Routes())
	r.Mount("/sales/quotations", params.QuotationHandler.Routes(params.Guard))
	r.Mount("/sales/invoices", params.InvoiceHandler.Routes(params.Guard))
	r.Mount("/sales/customers", params.CustomerHandler.Routes(params.Guard))
	r.Mount("/imports", params.ImportHandler.Routes(params.Guard))
	r.Mount("/products", params.ProductHandler.Routes(params.Guard))
	r.Mount("/inventory", params.InventoryHandler.Routes(params.Guard))
	if params.AdminHandler != nil {
		r.Mount("/admin", params.AdminHandler.Routes(params.Guard))
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
