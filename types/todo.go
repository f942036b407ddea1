package types

import "time"

const (
	MinPriority = 1
	MaxPriority = 5
)

// Todo is a task owned by exactly one user.
type Todo struct {
	ID          int       `json:"id" db:"id"`
	Title       string    `json:"title" db:"title" validate:"min=3"`
	Description string    `json:"description" db:"description" validate:"min=3,max=100"`
	Priority    int       `json:"priority" db:"priority" validate:"min=1,max=5"`
	Complete    bool      `json:"complete" db:"complete"`
	OwnerID     int       `json:"owner_id" db:"owner_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// TodoPatch is a partial update. Nil fields are left untouched.
type TodoPatch struct {
	Title       *string `json:"title" validate:"omitempty,min=3"`
	Description *string `json:"description" validate:"omitempty,min=3,max=100"`
	Priority    *int    `json:"priority" validate:"omitempty,min=1,max=5"`
	Complete    *bool   `json:"complete"`
}

// Empty reports whether the patch carries no fields at all.
func (p TodoPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil && p.Complete == nil
}

// Apply returns a copy of todo with the present fields of p merged in.
// Identity and ownership are never touched.
func (p TodoPatch) Apply(todo Todo) Todo {
	if p.Title != nil {
		todo.Title = *p.Title
	}
	if p.Description != nil {
		todo.Description = *p.Description
	}
	if p.Priority != nil {
		todo.Priority = *p.Priority
	}
	if p.Complete != nil {
		todo.Complete = *p.Complete
	}
	return todo
}
