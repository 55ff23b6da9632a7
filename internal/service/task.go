package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/BuzzLyutic/tasks-api/internal/model"
	"github.com/BuzzLyutic/tasks-api/internal/repo"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrNoFieldsProvided = errors.New("no fields provided")
	ErrNotFound         = errors.New("task not found")
	ErrDuplicateTitle   = errors.New("duplicate title")
)

var inputValidator = validator.New(validator.WithRequiredStructEnabled())

// TaskService keeps titles unique (case-insensitively) across all tasks and
// owns the timestamp policy. It holds no task state of its own.
type TaskService struct {
	repo repo.TaskRepository
	now  func() time.Time
}

type Option func(*TaskService)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *TaskService) { s.now = now }
}

func NewTaskService(repo repo.TaskRepository, opts ...Option) *TaskService {
	s := &TaskService{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TaskService) Create(ctx context.Context, in model.TaskCreate) (model.Task, error) {
	if err := s.validate(in); err != nil { // Валидация модели на корректность введенных данных
		return model.Task{}, err
	}

	var created model.Task
	err := s.repo.InTx(ctx, func(r repo.TaskRepository) error {
		if err := ensureUniqueTitle(ctx, r, in.Title, 0); err != nil {
			return err
		}

		var err error
		created, err = r.Create(ctx, in.ToTask(s.clock()))
		return err
	})
	if err != nil {
		return model.Task{}, mapError(err)
	}
	return created, nil
}

func (s *TaskService) Get(ctx context.Context, id int64) (model.Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return model.Task{}, mapError(err)
	}
	return t, nil
}

func (s *TaskService) List(ctx context.Context) ([]model.Task, error) {
	tasks, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

func (s *TaskService) Update(ctx context.Context, id int64, in model.TaskUpdate) (model.Task, error) {
	if err := s.validate(in); err != nil {
		return model.Task{}, err
	}
	return s.mutate(ctx, id, &in.Title, func(cur model.Task) model.Task {
		return in.Apply(cur, s.touch(cur.UpdatedAt))
	})
}

// Patch applies only the provided fields. An empty patch is rejected before
// the task is even looked up.
func (s *TaskService) Patch(ctx context.Context, id int64, in model.TaskPatch) (model.Task, error) {
	if err := s.validate(in); err != nil {
		return model.Task{}, err
	}
	if in.Empty() {
		return model.Task{}, ErrNoFieldsProvided
	}
	return s.mutate(ctx, id, in.Title, func(cur model.Task) model.Task {
		return in.Apply(cur, s.touch(cur.UpdatedAt))
	})
}

func (s *TaskService) Delete(ctx context.Context, id int64) error {
	return mapError(s.repo.Delete(ctx, id))
}

func (s *TaskService) GetStats(ctx context.Context) (model.Stats, error) {
	return s.repo.GetStats(ctx)
}

// mutate reads the current row, checks the new title (when there is one)
// against every other task and writes the result, all in one transaction.
func (s *TaskService) mutate(ctx context.Context, id int64, title *string, apply func(model.Task) model.Task) (model.Task, error) {
	var updated model.Task
	err := s.repo.InTx(ctx, func(r repo.TaskRepository) error {
		cur, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		if title != nil {
			if err := ensureUniqueTitle(ctx, r, *title, id); err != nil {
				return err
			}
		}

		updated, err = r.Update(ctx, apply(cur))
		return err
	})
	if err != nil {
		return model.Task{}, mapError(err)
	}
	return updated, nil
}

func ensureUniqueTitle(ctx context.Context, r repo.TaskRepository, title string, excludeID int64) error {
	_, err := r.FindByTitle(ctx, title, excludeID)
	switch {
	case err == nil:
		return ErrDuplicateTitle
	case errors.Is(err, repo.ErrorNotFound):
		return nil
	default:
		return err
	}
}

// clock returns the current time in the precision the stores keep.
func (s *TaskService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// touch returns a modification time strictly after prev.
func (s *TaskService) touch(prev time.Time) time.Time {
	now := s.clock()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

// validate runs the struct tags of the input models. The title length is
// counted in characters, not bytes.
func (s *TaskService) validate(in any) error {
	if err := inputValidator.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: field %s failed on %q", ErrValidation, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrorNotFound):
		return ErrNotFound
	case errors.Is(err, repo.ErrorConflict):
		return ErrDuplicateTitle
	default:
		return err
	}
}
