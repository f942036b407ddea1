package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoapi/apiserver/types"
)

var todoColumnNames = []string{"id", "title", "description", "priority", "complete", "owner_id", "created_at", "updated_at"}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Error mocking DB")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet(), "Expectations were not met")
		db.Close()
	})
	return db, mock
}

func TestTodoListForOwner(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTodoRepository(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM todos WHERE owner_id = \$1 ORDER BY id`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(todoColumnNames).
			AddRow(1, "buy milk", "two litres", 2, false, 3, now, now).
			AddRow(4, "walk dog", "around the park", 1, true, 3, now, now))

	todos, err := repo.ListForOwner(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, todos, 2)
	assert.Equal(t, "buy milk", todos[0].Title)
	assert.True(t, todos[1].Complete)
	for _, todo := range todos {
		assert.Equal(t, 3, todo.OwnerID)
	}
}

func TestTodoListAllEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTodoRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM todos ORDER BY id`).
		WillReturnRows(sqlmock.NewRows(todoColumnNames))

	todos, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, todos)
	assert.Empty(t, todos)
}

func TestTodoGetForOwnerNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTodoRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM todos WHERE id = \$1 AND owner_id = \$2`).
		WithArgs(9, 3).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetForOwner(context.Background(), 9, 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTodoCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTodoRepository(db)

	mock.ExpectQuery(`INSERT INTO todos \(title, description, priority, complete, owner_id, created_at, updated_at\)`).
		WithArgs("t1", "first todo", 3, false, 5, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	created, err := repo.Create(context.Background(), types.Todo{
		Title:       "t1",
		Description: "first todo",
		Priority:    3,
		OwnerID:     5,
	})
	require.NoError(t, err)
	assert.Equal(t, 11, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestTodoCreateUnknownOwner(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTodoRepository(db)

	mock.ExpectQuery(`INSERT INTO todos`).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "todos_owner_id_fkey"})

	_, err := repo.Create(context.Background(), types.Todo{Title: "t1", Description: "abc", Priority: 1, OwnerID: 99})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTodoUpdateForOwner(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "owned row", affected: 1},
		{name: "missing or foreign row", affected: 0, wantErr: ErrNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewTodoRepository(db)

			mock.ExpectExec(`UPDATE todos SET (.+) WHERE id = \$6 AND owner_id = \$7`).
				WithArgs("t2", "desc", 4, true, sqlmock.AnyArg(), 7, 3).
				WillReturnResult(sqlmock.NewResult(0, tc.affected))

			_, err := repo.UpdateForOwner(context.Background(), types.Todo{
				ID:          7,
				Title:       "t2",
				Description: "desc",
				Priority:    4,
				Complete:    true,
				OwnerID:     3,
			})
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTodoDeleteForOwnerTwice(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTodoRepository(db)

	mock.ExpectExec(`DELETE FROM todos WHERE id = \$1 AND owner_id = \$2`).
		WithArgs(7, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM todos WHERE id = \$1 AND owner_id = \$2`).
		WithArgs(7, 3).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.DeleteForOwner(context.Background(), 7, 3))
	assert.ErrorIs(t, repo.DeleteForOwner(context.Background(), 7, 3), ErrNotFound)
}

func TestTodoDeleteDBError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTodoRepository(db)

	mock.ExpectExec(`DELETE FROM todos WHERE id = \$1`).
		WithArgs(7).
		WillReturnError(errors.New("db down"))

	err := repo.Delete(context.Background(), 7)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
