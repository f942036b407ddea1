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

// TodoService is implemented by services.TodoService.
type TodoService interface {
	List(ctx context.Context, claims auth.Claims) ([]types.Todo, error)
	Get(ctx context.Context, claims auth.Claims, id int) (types.Todo, error)
	Create(ctx context.Context, claims auth.Claims, in services.TodoInput) (types.Todo, error)
	Update(ctx context.Context, claims auth.Claims, id int, patch types.TodoPatch) (types.Todo, error)
	Delete(ctx context.Context, claims auth.Claims, id int) error
	ListAll(ctx context.Context, claims auth.Claims) ([]types.Todo, error)
	DeleteAny(ctx context.Context, claims auth.Claims, id int) error
}

// TodoHandler provides the caller-scoped todo endpoints.
type TodoHandler struct {
	todos TodoService
	log   logging.Logger
}

func NewTodoHandler(todos TodoService, log logging.Logger) *TodoHandler {
	return &TodoHandler{todos: todos, log: log}
}

// TodoRouter registers todo routes on the given router.
func TodoRouter(r chi.Router, todos TodoService, authMiddleware func(http.Handler) http.Handler, log logging.Logger) {
	handler := NewTodoHandler(todos, log)

	r.Use(authMiddleware)
	r.Get("/", handler.ListTodos)
	r.Post("/todo", handler.CreateTodo)
	r.Get("/todo/{todoID}", handler.GetTodo)
	r.Put("/todo/{todoID}", handler.UpdateTodo)
	r.Delete("/todo/{todoID}", handler.DeleteTodo)
}

func (h *TodoHandler) ListTodos(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	todos, err := h.todos.List(r.Context(), claims)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

func (h *TodoHandler) GetTodo(w http.ResponseWriter, r *http.Request) {
	id, err := parseTodoID(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	claims, _ := claimsFromContext(r.Context())

	todo, err := h.todos.Get(r.Context(), claims, id)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

func (h *TodoHandler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	var req services.TodoInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	claims, _ := claimsFromContext(r.Context())

	todo, err := h.todos.Create(r.Context(), claims, req)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, todo)
}

// UpdateTodo applies a partial update. Fields absent from the body are left
// unchanged.
func (h *TodoHandler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	id, err := parseTodoID(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var patch types.TodoPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	claims, _ := claimsFromContext(r.Context())

	if _, err := h.todos.Update(r.Context(), claims, id, patch); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TodoHandler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, err := parseTodoID(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	claims, _ := claimsFromContext(r.Context())

	if err := h.todos.Delete(r.Context(), claims, id); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
