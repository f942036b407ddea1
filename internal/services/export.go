package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/todoapi/apiserver/internal/auth"
	"github.com/todoapi/apiserver/internal/logging"
)

// ErrExportDisabled is returned when no object storage is configured.
var ErrExportDisabled = errors.New("export storage is not configured")

// ObjectPutter is the slice of object storage the exporter needs.
type ObjectPutter interface {
	PutJSON(ctx context.Context, key string, data []byte, metadata map[string]string) error
	Bucket() string
}

// ExportResult describes a written snapshot.
type ExportResult struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Count  int    `json:"count"`
}

// ExportService writes JSON snapshots of all todos to object storage.
type ExportService struct {
	todos   TodoRepository
	objects ObjectPutter
	log     logging.Logger
	now     func() time.Time
}

// NewExportService returns an exporter. objects may be nil, in which case
// every export fails with ErrExportDisabled.
func NewExportService(todos TodoRepository, objects ObjectPutter, log logging.Logger) *ExportService {
	return &ExportService{
		todos:   todos,
		objects: objects,
		log:     log,
		now:     time.Now,
	}
}

// ExportTodos snapshots every todo. Admin only.
func (s *ExportService) ExportTodos(ctx context.Context, claims auth.Claims) (ExportResult, error) {
	if !claims.IsAdmin() {
		return ExportResult{}, auth.ErrUnauthorized
	}
	if s.objects == nil {
		return ExportResult{}, ErrExportDisabled
	}

	todos, err := s.todos.ListAll(ctx)
	if err != nil {
		return ExportResult{}, fmt.Errorf("list todos: %w", err)
	}

	data, err := json.Marshal(todos)
	if err != nil {
		return ExportResult{}, fmt.Errorf("encode export: %w", err)
	}

	key := fmt.Sprintf("exports/todos/%s-%s.json", s.now().UTC().Format("20060102T150405Z"), uuid.NewString())
	metadata := map[string]string{
		"todo-count":  strconv.Itoa(len(todos)),
		"exported-by": strconv.Itoa(claims.UserID),
	}
	if err := s.objects.PutJSON(ctx, key, data, metadata); err != nil {
		return ExportResult{}, fmt.Errorf("upload export: %w", err)
	}

	s.log.Info(ctx, "todos exported", "key", key, "count", len(todos), "admin_id", claims.UserID)
	return ExportResult{Bucket: s.objects.Bucket(), Key: key, Count: len(todos)}, nil
}
