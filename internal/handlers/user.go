package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/todoapi/apiserver/internal/logging"
)

type UserHandler struct {
	users AccountService
	log   logging.Logger
}

func NewUserHandler(users AccountService, log logging.Logger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

// UserRouter registers the current-user routes. authMiddleware must install
// claims in the request context.
func UserRouter(r chi.Router, users AccountService, authMiddleware func(http.Handler) http.Handler, log logging.Logger) {
	handler := NewUserHandler(users, log)

	r.Use(authMiddleware)
	r.Get("/", handler.Me)
	r.Put("/password", handler.ChangePassword)
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.users.Me(r.Context(), claims)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.users.ChangePassword(r.Context(), claims, req.Password, req.NewPassword); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ChangePasswordRequest struct {
	Password    string `json:"password"`
	NewPassword string `json:"new_password"`
}
