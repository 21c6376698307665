package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nailstore/nailstore-api/internal/domain"
	"github.com/nailstore/nailstore-api/internal/http/middleware"
	"github.com/nailstore/nailstore-api/internal/http/response"
	"github.com/nailstore/nailstore-api/internal/platform/auth"
	"github.com/nailstore/nailstore-api/internal/service"
)

type AuthHandler struct {
	Auth    service.AuthService
	Issuer  *auth.Issuer
	Limiter *middleware.RateLimiter
}

func NewAuthHandler(authSvc service.AuthService, issuer *auth.Issuer, limiter *middleware.RateLimiter) *AuthHandler {
	return &AuthHandler{Auth: authSvc, Issuer: issuer, Limiter: limiter}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		if h.Limiter != nil {
			r.Use(h.Limiter.Middleware())
		}
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/recover-password/send", h.sendRecovery)
	})

	r.Get("/confirm-email/{id}/{code}", h.confirmEmail)
	r.Get("/username-free/{username}", h.userNameIsFree)
	r.Post("/recover-password", h.resetPassword)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireJWT(h.Issuer))
		r.Get("/me", h.me)
	})

	return r
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	msg, err := h.Auth.Register(r.Context(), &req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Message(w, http.StatusCreated, msg)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	resp, err := h.Auth.Login(r.Context(), &req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) confirmEmail(w http.ResponseWriter, r *http.Request) {
	msg, err := h.Auth.ConfirmEmail(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "code"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Message(w, http.StatusOK, msg)
}

func (h *AuthHandler) userNameIsFree(w http.ResponseWriter, r *http.Request) {
	free, err := h.Auth.UserNameIsFree(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{"free": free})
}

func (h *AuthHandler) sendRecovery(w http.ResponseWriter, r *http.Request) {
	var req domain.RecoverPasswordSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	msg, err := h.Auth.SendPasswordRecovery(r.Context(), &req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Message(w, http.StatusOK, msg)
}

func (h *AuthHandler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.RecoverPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	msg, err := h.Auth.ResetPassword(r.Context(), &req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Message(w, http.StatusOK, msg)
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)
	if claims == nil {
		response.Unauthorized(w, "missing authorization")
		return
	}

	info, err := h.Auth.GetAccountByID(r.Context(), claims.Sub)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, info)
}
