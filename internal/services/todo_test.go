package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoapi/apiserver/internal/auth"
	"github.com/todoapi/apiserver/internal/logging"
	"github.com/todoapi/apiserver/internal/store"
	"github.com/todoapi/apiserver/types"
)

var (
	alice = auth.Claims{Username: "alice", UserID: 1, Role: types.RoleUser}
	bob   = auth.Claims{Username: "bob", UserID: 2, Role: types.RoleUser}
	admin = auth.Claims{Username: "root", UserID: 3, Role: types.RoleAdmin}
)

func newTodoFixture() (*TodoService, *memTodos, *recordedEvents) {
	repo := newMemTodos()
	events := &recordedEvents{}
	return NewTodoService(repo, events, logging.Discard()), repo, events
}

func validInput() TodoInput {
	return TodoInput{Title: "buy milk", Description: "two litres", Priority: 3}
}

func TestCreateTakesOwnerFromClaims(t *testing.T) {
	svc, _, events := newTodoFixture()

	todo, err := svc.Create(context.Background(), alice, validInput())

	require.NoError(t, err)
	assert.Equal(t, alice.UserID, todo.OwnerID)
	assert.False(t, todo.Complete)
	assert.Equal(t, []types.EventType{types.EventTodoCreated}, events.kinds())
}

func TestCreateValidatesBounds(t *testing.T) {
	svc, _, _ := newTodoFixture()

	tests := []struct {
		name  string
		edit  func(*TodoInput)
		field string
	}{
		{name: "short title", edit: func(in *TodoInput) { in.Title = "ab" }, field: "title"},
		{name: "short description", edit: func(in *TodoInput) { in.Description = "ab" }, field: "description"},
		{name: "priority zero", edit: func(in *TodoInput) { in.Priority = 0 }, field: "priority"},
		{name: "priority six", edit: func(in *TodoInput) { in.Priority = 6 }, field: "priority"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.edit(&in)

			_, err := svc.Create(context.Background(), alice, in)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tc.field)
		})
	}
}

func TestOwnershipScoping(t *testing.T) {
	svc, _, _ := newTodoFixture()
	ctx := context.Background()

	mine, err := svc.Create(ctx, alice, validInput())
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob, validInput())
	require.NoError(t, err)

	list, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	_, err = svc.Get(ctx, bob, mine.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	title := "stolen"
	_, err = svc.Update(ctx, bob, mine.ID, types.TodoPatch{Title: &title})
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, bob, mine.ID), store.ErrNotFound)

	got, err := svc.Get(ctx, alice, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, "buy milk", got.Title)
}

func TestAdminListIsScopedOnOwnRoutes(t *testing.T) {
	svc, _, _ := newTodoFixture()
	ctx := context.Background()
	_, err := svc.Create(ctx, alice, validInput())
	require.NoError(t, err)

	list, err := svc.List(ctx, admin)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateMergesPatch(t *testing.T) {
	svc, _, events := newTodoFixture()
	ctx := context.Background()
	created, err := svc.Create(ctx, alice, validInput())
	require.NoError(t, err)

	done := true
	priority := 5
	updated, err := svc.Update(ctx, alice, created.ID, types.TodoPatch{Complete: &done, Priority: &priority})

	require.NoError(t, err)
	assert.True(t, updated.Complete)
	assert.Equal(t, 5, updated.Priority)
	assert.Equal(t, created.Title, updated.Title)
	assert.Equal(t, alice.UserID, updated.OwnerID)
	assert.Equal(t, []types.EventType{types.EventTodoCreated, types.EventTodoUpdated}, events.kinds())
}

func TestUpdateRejectsEmptyAndOutOfRangePatches(t *testing.T) {
	svc, _, _ := newTodoFixture()
	ctx := context.Background()
	created, err := svc.Create(ctx, alice, validInput())
	require.NoError(t, err)

	_, err = svc.Update(ctx, alice, created.ID, types.TodoPatch{})
	assert.ErrorIs(t, err, ErrValidation)

	priority := 9
	_, err = svc.Update(ctx, alice, created.ID, types.TodoPatch{Priority: &priority})
	assert.ErrorIs(t, err, ErrValidation)

	got, err := svc.Get(ctx, alice, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Priority)
}

func TestDeleteTwiceIsNotFound(t *testing.T) {
	svc, _, _ := newTodoFixture()
	ctx := context.Background()
	created, err := svc.Create(ctx, alice, validInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, alice, created.ID))
	assert.ErrorIs(t, svc.Delete(ctx, alice, created.ID), store.ErrNotFound)
}

func TestAdminOperations(t *testing.T) {
	svc, _, _ := newTodoFixture()
	ctx := context.Background()
	a, err := svc.Create(ctx, alice, validInput())
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob, validInput())
	require.NoError(t, err)

	_, err = svc.ListAll(ctx, alice)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
	assert.ErrorIs(t, svc.DeleteAny(ctx, alice, a.ID), auth.ErrUnauthorized)

	all, err := svc.ListAll(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, svc.DeleteAny(ctx, admin, a.ID))
	assert.ErrorIs(t, svc.DeleteAny(ctx, admin, a.ID), store.ErrNotFound)

	_, err = svc.Get(ctx, alice, a.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
