package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/todoapi/apiserver/internal/store"
	"github.com/todoapi/apiserver/types"
)

type memUsers struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]types.User
}

func newMemUsers() *memUsers {
	return &memUsers{nextID: 1, byID: map[int]types.User{}}
}

func (m *memUsers) GetByID(_ context.Context, id int) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUsers) List(_ context.Context) ([]types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]types.User, 0, len(m.byID))
	for _, u := range m.byID {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (m *memUsers) Create(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Username == user.Username || u.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.byID[user.ID] = user
	return user, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id int, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = hash
	m.byID[id] = u
	return nil
}

type memTodos struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]types.Todo
}

func newMemTodos() *memTodos {
	return &memTodos{nextID: 1, byID: map[int]types.Todo{}}
}

func (m *memTodos) sorted(keep func(types.Todo) bool) []types.Todo {
	todos := []types.Todo{}
	for _, t := range m.byID {
		if keep(t) {
			todos = append(todos, t)
		}
	}
	sort.Slice(todos, func(i, j int) bool { return todos[i].ID < todos[j].ID })
	return todos
}

func (m *memTodos) ListForOwner(_ context.Context, ownerID int) ([]types.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(t types.Todo) bool { return t.OwnerID == ownerID }), nil
}

func (m *memTodos) ListAll(_ context.Context) ([]types.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(types.Todo) bool { return true }), nil
}

func (m *memTodos) GetForOwner(_ context.Context, id, ownerID int) (types.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok || t.OwnerID != ownerID {
		return types.Todo{}, store.ErrNotFound
	}
	return t, nil
}

func (m *memTodos) Create(_ context.Context, todo types.Todo) (types.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	todo.ID = m.nextID
	m.nextID++
	m.byID[todo.ID] = todo
	return todo, nil
}

func (m *memTodos) UpdateForOwner(_ context.Context, todo types.Todo) (types.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.byID[todo.ID]
	if !ok || current.OwnerID != todo.OwnerID {
		return types.Todo{}, store.ErrNotFound
	}
	m.byID[todo.ID] = todo
	return todo, nil
}

func (m *memTodos) DeleteForOwner(_ context.Context, id, ownerID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok || t.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memTodos) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type recordedEvents struct {
	mu     sync.Mutex
	events []types.Event
}

func (r *recordedEvents) Publish(_ context.Context, event types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordedEvents) kinds() []types.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]types.EventType, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Type)
	}
	return kinds
}

type stubTokens struct {
	mock.Mock
}

func (s *stubTokens) Issue(username string, userID int, role types.Role, ttl time.Duration) (string, error) {
	args := s.Called(username, userID, role, ttl)
	return args.String(0), args.Error(1)
}

type mockObjects struct {
	mock.Mock
	body []byte
}

func (m *mockObjects) PutJSON(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	m.body = data
	args := m.Called(ctx, key, metadata)
	return args.Error(0)
}

func (m *mockObjects) Bucket() string {
	return "todo-exports"
}
