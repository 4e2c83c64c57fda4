package invoices

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mitra-erp/mitra-erp/internal/platform/httpx"
	"github.com/mitra-erp/mitra-erp/internal/rbac"
	"github.com/mitra-erp/mitra-erp/internal/shared"
)

// Handler exposes the invoice read model. Invoices are only ever created by
// the quotation workflow.
type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) Routes(guard rbac.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Use(guard.RequireAny(shared.PermInvoiceView))
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	return r
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	p := shared.NewPagination(page, perPage, 0)

	items, total, err := h.repo.List(r.Context(), p.PerPage, p.Offset())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"invoices":   items,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return
	}
	inv, err := h.repo.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoice": inv})
}
