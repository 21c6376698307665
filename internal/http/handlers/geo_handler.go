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

type GeoHandler struct {
	Geo    service.GeoService
	Issuer *auth.Issuer
}

func NewGeoHandler(geo service.GeoService, issuer *auth.Issuer) *GeoHandler {
	return &GeoHandler{Geo: geo, Issuer: issuer}
}

func (h *GeoHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/cities/{regionID}", h.citiesByRegion)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireJWT(h.Issuer))
		r.Use(middleware.RequireRole(domain.RoleAdmin))
		r.Post("/init", h.insertInitData)
		r.Post("/locations", h.addGeolocations)
	})

	return r
}

func (h *GeoHandler) citiesByRegion(w http.ResponseWriter, r *http.Request) {
	regionID, err := strconv.Atoi(chi.URLParam(r, "regionID"))
	if err != nil {
		response.BadRequest(w, "invalid region id")
		return
	}

	cities, err := h.Geo.CitiesByRegion(r.Context(), regionID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, cities)
}

func (h *GeoHandler) insertInitData(w http.ResponseWriter, r *http.Request) {
	var country domain.Country
	if err := json.NewDecoder(r.Body).Decode(&country); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := h.Geo.InsertInitData(r.Context(), &country); err != nil {
		response.FromError(w, err)
		return
	}
	response.Message(w, http.StatusCreated, "geo data loaded")
}

func (h *GeoHandler) addGeolocations(w http.ResponseWriter, r *http.Request) {
	var locations []domain.Geolocation
	if err := json.NewDecoder(r.Body).Decode(&locations); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := h.Geo.AddGeolocations(r.Context(), locations); err != nil {
		response.FromError(w, err)
		return
	}
	response.Message(w, http.StatusCreated, "geolocations saved")
}
