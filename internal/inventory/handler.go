package inventory

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mitra-erp/mitra-erp/internal/platform/httpx"
	"github.com/mitra-erp/mitra-erp/internal/rbac"
)

// Handler exposes the stock ledger read model.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(guard rbac.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Use(guard.RequireAny())
	r.Get("/movements", h.movements)
	return r
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := MovementFilter{
		RefModule: q.Get("ref_module"),
		RefID:     q.Get("ref_id"),
	}
	if raw := q.Get("warehouse_id"); raw != "" {
		filter.WarehouseID, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw := q.Get("product_id"); raw != "" {
		filter.ProductID, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw := q.Get("limit"); raw != "" {
		filter.Limit, _ = strconv.Atoi(raw)
	}

	movements, err := h.svc.ListMovements(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}
