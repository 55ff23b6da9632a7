package repo

import (
	"context"
	"errors"

	"github.com/BuzzLyutic/tasks-api/internal/model"
)

var (
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")
)

// TaskRepository определяет интерфейс для работы с задачами.
//
// FindByTitle compares titles case-insensitively and skips the task with
// excludeID (0 excludes nothing). Create and Update return ErrorConflict when
// the store's title constraint rejects the write.
type TaskRepository interface {
	Create(ctx context.Context, t model.Task) (model.Task, error)
	Get(ctx context.Context, id int64) (model.Task, error)
	FindByTitle(ctx context.Context, title string, excludeID int64) (model.Task, error)
	List(ctx context.Context) ([]model.Task, error)
	Update(ctx context.Context, t model.Task) (model.Task, error)
	Delete(ctx context.Context, id int64) error
	GetStats(ctx context.Context) (model.Stats, error)

	// InTx runs fn against a repository bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(r TaskRepository) error) error
}
