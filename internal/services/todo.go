package services

import (
	"context"
	"fmt"

	"github.com/todoapi/apiserver/internal/auth"
	"github.com/todoapi/apiserver/internal/logging"
	"github.com/todoapi/apiserver/types"
)

// TodoRepository defines persistence operations for todos. The ForOwner
// methods must filter on owner id and report store.ErrNotFound for rows that
// exist but belong to another owner.
type TodoRepository interface {
	ListForOwner(ctx context.Context, ownerID int) ([]types.Todo, error)
	ListAll(ctx context.Context) ([]types.Todo, error)
	GetForOwner(ctx context.Context, id, ownerID int) (types.Todo, error)
	Create(ctx context.Context, todo types.Todo) (types.Todo, error)
	UpdateForOwner(ctx context.Context, todo types.Todo) (types.Todo, error)
	DeleteForOwner(ctx context.Context, id, ownerID int) error
	Delete(ctx context.Context, id int) error
}

// TodoInput carries the client-settable fields of a new todo.
type TodoInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	Complete    bool   `json:"complete"`
}

// TodoService scopes every todo operation to the caller's claims.
//
// "Not found" and "owned by someone else" are reported as the same
// store.ErrNotFound on purpose: callers learn nothing about other users'
// records.
type TodoService struct {
	repo   TodoRepository
	events EventPublisher
	log    logging.Logger
}

func NewTodoService(repo TodoRepository, events EventPublisher, log logging.Logger) *TodoService {
	return &TodoService{repo: repo, events: events, log: log}
}

func (s *TodoService) List(ctx context.Context, claims auth.Claims) ([]types.Todo, error) {
	return s.repo.ListForOwner(ctx, claims.UserID)
}

func (s *TodoService) Get(ctx context.Context, claims auth.Claims, id int) (types.Todo, error) {
	return s.repo.GetForOwner(ctx, id, claims.UserID)
}

// Create stores a todo owned by the caller. The owner always comes from the
// claims.
func (s *TodoService) Create(ctx context.Context, claims auth.Claims, in TodoInput) (types.Todo, error) {
	todo := types.Todo{
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Complete:    in.Complete,
		OwnerID:     claims.UserID,
	}
	if err := validateStruct(todo); err != nil {
		return types.Todo{}, err
	}

	created, err := s.repo.Create(ctx, todo)
	if err != nil {
		return types.Todo{}, fmt.Errorf("create todo: %w", err)
	}

	s.events.Publish(ctx, newEvent(types.EventTodoCreated, claims.UserID, created.ID, created))
	return created, nil
}

// Update merges patch into the caller's todo id.
func (s *TodoService) Update(ctx context.Context, claims auth.Claims, id int, patch types.TodoPatch) (types.Todo, error) {
	if patch.Empty() {
		return types.Todo{}, newValidationError("body", "must contain at least one field")
	}
	if err := validateStruct(patch); err != nil {
		return types.Todo{}, err
	}

	current, err := s.repo.GetForOwner(ctx, id, claims.UserID)
	if err != nil {
		return types.Todo{}, err
	}

	merged := patch.Apply(current)
	if err := validateStruct(merged); err != nil {
		return types.Todo{}, err
	}

	updated, err := s.repo.UpdateForOwner(ctx, merged)
	if err != nil {
		return types.Todo{}, err
	}

	s.events.Publish(ctx, newEvent(types.EventTodoUpdated, claims.UserID, updated.ID, updated))
	return updated, nil
}

func (s *TodoService) Delete(ctx context.Context, claims auth.Claims, id int) error {
	if err := s.repo.DeleteForOwner(ctx, id, claims.UserID); err != nil {
		return err
	}
	s.events.Publish(ctx, newEvent(types.EventTodoDeleted, claims.UserID, id, nil))
	return nil
}

// ListAll returns every todo regardless of owner. Admin only.
func (s *TodoService) ListAll(ctx context.Context, claims auth.Claims) ([]types.Todo, error) {
	if !claims.IsAdmin() {
		return nil, auth.ErrUnauthorized
	}
	return s.repo.ListAll(ctx)
}

// DeleteAny removes a todo regardless of owner. Admin only.
func (s *TodoService) DeleteAny(ctx context.Context, claims auth.Claims, id int) error {
	if !claims.IsAdmin() {
		return auth.ErrUnauthorized
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info(ctx, "todo deleted by admin", "todo_id", id, "admin_id", claims.UserID)
	s.events.Publish(ctx, newEvent(types.EventTodoDeleted, claims.UserID, id, nil))
	return nil
}
