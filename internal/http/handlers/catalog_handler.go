package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nailstore/nailstore-api/internal/domain"
	"github.com/nailstore/nailstore-api/internal/http/middleware"
	"github.com/nailstore/nailstore-api/internal/http/response"
	"github.com/nailstore/nailstore-api/internal/platform/auth"
	"github.com/nailstore/nailstore-api/internal/service"
)

type CatalogHandler struct {
	Catalog service.CatalogService
	Issuer  *auth.Issuer
}

func NewCatalogHandler(catalog service.CatalogService, issuer *auth.Issuer) *CatalogHandler {
	return &CatalogHandler{Catalog: catalog, Issuer: issuer}
}

// Routes serves /api/services. Browsing is public; publishing and removing a
// listing require the Master or Admin role.
func (h *CatalogHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/category/{categoryID}", h.listByCategory)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireJWT(h.Issuer))
		r.Use(middleware.RequireRole(domain.RoleMaster, domain.RoleAdmin))
		r.Get("/mine", h.listMine)
		r.Post("/", h.addService)
		r.Delete("/{serviceID}", h.removeService)
	})

	return r
}

// CategoriesRoutes serves /api/categories.
func (h *CatalogHandler) CategoriesRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.categories)
	return r
}

func (h *CatalogHandler) categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Catalog.Categories(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, cats)
}

// pageParams reads ?page= and ?page_size=. Unparsable values pass through as
// zero; the catalog service clamps them anyway.
func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, size
}

func (h *CatalogHandler) listByCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, err := strconv.Atoi(chi.URLParam(r, "categoryID"))
	if err != nil {
		response.BadRequest(w, "invalid category id")
		return
	}

	page, size := pageParams(r)
	result, err := h.Catalog.ListByCategory(r.Context(), categoryID, page, size)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

func (h *CatalogHandler) listMine(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)
	page, size := pageParams(r)

	result, err := h.Catalog.ListByOwner(r.Context(), claims.Sub, page, size)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

func (h *CatalogHandler) addService(w http.ResponseWriter, r *http.Request) {
	var req domain.AddServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	claims := middleware.Claims(r)
	serviceID, err := h.Catalog.AddService(r.Context(), claims.Sub, &req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, map[string]int64{"service_id": serviceID})
}

func (h *CatalogHandler) removeService(w http.ResponseWriter, r *http.Request) {
	serviceID, err := strconv.ParseInt(chi.URLParam(r, "serviceID"), 10, 64)
	if err != nil {
		response.BadRequest(w, "invalid service id")
		return
	}

	claims := middleware.Claims(r)
	if err := h.Catalog.RemoveService(r.Context(), claims.Sub, serviceID); err != nil {
		response.FromError(w, err)
		return
	}
	response.Message(w, http.StatusOK, "service removed")
}
