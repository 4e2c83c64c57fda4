package rbac

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mitra-erp/mitra-erp/internal/platform/httpx"
)

// Handler exposes the administrative role and user directory. Every endpoint
// is restricted to administrator accounts.
type Handler struct {
	dir *Directory
}

func NewHandler(dir *Directory) *Handler {
	return &Handler{dir: dir}
}

func (h *Handler) Routes(guard Middleware) chi.Router {
	r := chi.NewRouter()
	r.Use(guard.RequireAny())
	r.Use(requireAdmin)
	r.Get("/roles", h.listRoles)
	r.Get("/users", h.listUsers)
	r.Post("/users/{id}/roles", h.assignRole)
	return r
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok || !actor.Admin {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.dir.ListRoles(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.dir.ListUsers(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || userID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Role == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "role name is required")
		return
	}
	assigned, err := h.dir.AssignRole(r.Context(), userID, req.Role)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !assigned {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown role or assignment already exists")
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"user_id": userID, "role": req.Role})
}
