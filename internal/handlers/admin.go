package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/todoapi/apiserver/internal/auth"
	"github.com/todoapi/apiserver/internal/logging"
	"github.com/todoapi/apiserver/internal/services"
	"github.com/todoapi/apiserver/types"
)

type Exporter interface {
	ExportTodos(ctx context.Context, claims auth.Claims) (services.ExportResult, error)
}

// AdminHandler serves the unfiltered admin routes.
type AdminHandler struct {
	todos    TodoService
	users    AccountService
	exporter Exporter
	log      logging.Logger
}

func NewAdminHandler(todos TodoService, users AccountService, exporter Exporter, log logging.Logger) *AdminHandler {
	return &AdminHandler{todos: todos, users: users, exporter: exporter, log: log}
}

// AdminRouter registers admin routes behind authMiddleware and the admin
// role check. The services re-check the role.
func AdminRouter(
	r chi.Router,
	todos TodoService,
	users AccountService,
	exporter Exporter,
	authMiddleware func(http.Handler) http.Handler,
	log logging.Logger,
) {
	handler := NewAdminHandler(todos, users, exporter, log)

	r.Use(authMiddleware, RequireAdmin)
	r.Get("/todo", handler.ListTodos)
	r.Delete("/todo/{todoID}", handler.DeleteTodo)
	r.Post("/todo/export", handler.ExportTodos)
	r.Get("/users", handler.ListUsers)
}

func (h *AdminHandler) ListTodos(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	todos, err := h.todos.ListAll(r.Context(), claims)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

func (h *AdminHandler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, err := parseTodoID(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	claims, _ := claimsFromContext(r.Context())

	if err := h.todos.DeleteAny(r.Context(), claims, id); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	users, err := h.users.ListUsers(r.Context(), claims)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, UserListResponse{Users: users})
}

func (h *AdminHandler) ExportTodos(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	result, err := h.exporter.ExportTodos(r.Context(), claims)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type UserListResponse struct {
	Users []types.User `json:"users"`
}
