package imports

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mitra-erp/mitra-erp/internal/masterdata/products"
	"github.com/mitra-erp/mitra-erp/internal/platform/httpx"
	"github.com/mitra-erp/mitra-erp/internal/rbac"
	"github.com/mitra-erp/mitra-erp/internal/shared"
)

type itemRequest struct {
	Category    string  `json:"category" validate:"required,oneof=SERIALIZED NON_SERIALIZED BULK"`
	ProductID   *int64  `json:"product_id" validate:"omitempty,gt=0"`
	Name        string  `json:"name" validate:"required"`
	MachineType *string `json:"machine_type"`
	Model       *string `json:"model"`
	SerialNo    *string `json:"serial_number"`
	UOM         *string `json:"uom"`
	PartNumber  *string `json:"part_number"`
	BatchNumber *string `json:"batch_number"`
	Quantity    float64 `json:"quantity" validate:"required,gt=0"`
	UnitCostRMB float64 `json:"unit_cost_rmb" validate:"gte=0"`
}

type createRequest struct {
	SupplierName string        `json:"supplier_name" validate:"required"`
	ContainerNo  *string       `json:"container_no"`
	WarehouseID  int64         `json:"warehouse_id" validate:"required"`
	ImportDate   time.Time     `json:"import_date"`
	ExchangeRate float64       `json:"exchange_rate" validate:"required,gt=0"`
	Notes        *string       `json:"notes"`
	Items        []itemRequest `json:"items" validate:"min=1,dive"`
}

// Handler exposes the import workflow over JSON.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

func (h *Handler) Routes(guard rbac.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(guard.RequireAny(shared.PermImportView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/history", h.history)
	})
	r.With(guard.RequireAny(shared.PermImportCreate)).Post("/", h.create)
	r.With(guard.RequireAny(shared.PermImportVerify)).Post("/{id}/verify", h.verify)
	r.With(guard.RequireAny(shared.PermImportDelete)).Delete("/{id}", h.delete)
	r.With(guard.RequireAny(shared.PermImportDeleteVerified)).Delete("/{id}/force-delete", h.forceDelete)
	return r
}

func requestActor(w http.ResponseWriter, r *http.Request) (rbac.Actor, bool) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
	}
	return actor, ok
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid import id")
		return 0, false
	}
	return id, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	p := shared.NewPagination(page, perPage, 0)

	filter := ListFilter{
		Status: ImportStatus(r.URL.Query().Get("status")),
		Limit:  p.PerPage,
		Offset: p.Offset(),
	}
	items, total, err := h.svc.List(r.Context(), actor, filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"imports":    items,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	imp, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"import": imp})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	logs, err := h.svc.History(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": logs})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	input := CreateInput{
		SupplierName: req.SupplierName,
		ContainerNo:  req.ContainerNo,
		WarehouseID:  req.WarehouseID,
		ImportDate:   req.ImportDate,
		ExchangeRate: req.ExchangeRate,
		Notes:        req.Notes,
	}
	for _, it := range req.Items {
		input.Items = append(input.Items, ItemInput{
			Category:    products.Category(it.Category),
			ProductID:   it.ProductID,
			Name:        it.Name,
			MachineType: it.MachineType,
			Model:       it.Model,
			SerialNo:    it.SerialNo,
			UOM:         it.UOM,
			PartNumber:  it.PartNumber,
			BatchNumber: it.BatchNumber,
			Quantity:    it.Quantity,
			UnitCostRMB: it.UnitCostRMB,
		})
	}
	imp, err := h.svc.Create(r.Context(), actor, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"import": imp})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	imp, err := h.svc.Verify(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"import": imp})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), actor, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) forceDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.ForceDeleteVerified(r.Context(), actor, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
