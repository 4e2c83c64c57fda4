package products

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mitra-erp/mitra-erp/internal/platform/httpx"
	"github.com/mitra-erp/mitra-erp/internal/rbac"
	"github.com/mitra-erp/mitra-erp/internal/shared"
)

// Handler exposes the product catalogue. Creation normally happens through
// import verification; the direct endpoint covers manually stocked items.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(guard rbac.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(guard.RequireAny())
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.With(guard.RequireAny(shared.PermImportCreate)).Post("/", h.create)
	return r
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	p := shared.NewPagination(page, perPage, 0)

	items, total, err := h.svc.List(r.Context(), p.PerPage, p.Offset())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"products":   items,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product": p})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var p Product
	if err := httpx.DecodeJSON(r, &p); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	created, err := h.svc.Create(r.Context(), p)
	if err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"product": created})
}
