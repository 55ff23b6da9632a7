package repo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/BuzzLyutic/tasks-api/internal/model"
)

// MemoryRepo keeps tasks in process memory. Every call, and every InTx
// callback as a whole, runs under one mutex, so the title pre-check and the
// following write cannot interleave with another writer.
type MemoryRepo struct {
	mu     sync.Mutex
	tasks  map[int64]model.Task
	nextID int64
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		tasks:  make(map[int64]model.Task),
		nextID: 1,
	}
}

func (r *MemoryRepo) Create(ctx context.Context, t model.Task) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return memTx{r}.Create(ctx, t)
}

func (r *MemoryRepo) Get(ctx context.Context, id int64) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return memTx{r}.Get(ctx, id)
}

func (r *MemoryRepo) FindByTitle(ctx context.Context, title string, excludeID int64) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return memTx{r}.FindByTitle(ctx, title, excludeID)
}

func (r *MemoryRepo) List(ctx context.Context) ([]model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return memTx{r}.List(ctx)
}

func (r *MemoryRepo) Update(ctx context.Context, t model.Task) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return memTx{r}.Update(ctx, t)
}

func (r *MemoryRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return memTx{r}.Delete(ctx, id)
}

func (r *MemoryRepo) GetStats(ctx context.Context) (model.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return memTx{r}.GetStats(ctx)
}

// InTx holds the lock for the whole callback. On error the task set is
// restored from a snapshot; nextID is left alone so ids are never reissued.
func (r *MemoryRepo) InTx(ctx context.Context, fn func(r TaskRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[int64]model.Task, len(r.tasks))
	for id, t := range r.tasks {
		snapshot[id] = t
	}

	if err := fn(memTx{r}); err != nil {
		r.tasks = snapshot
		return err
	}
	return nil
}

// memTx operates on a MemoryRepo whose lock is already held.
type memTx struct {
	r *MemoryRepo
}

func (m memTx) Create(ctx context.Context, t model.Task) (model.Task, error) {
	if m.titleTaken(t.Title, 0) {
		return t, ErrorConflict
	}
	t.ID = m.r.nextID
	m.r.nextID++
	m.r.tasks[t.ID] = t
	return t, nil
}

func (m memTx) Get(ctx context.Context, id int64) (model.Task, error) {
	t, ok := m.r.tasks[id]
	if !ok {
		return model.Task{}, ErrorNotFound
	}
	return t, nil
}

func (m memTx) FindByTitle(ctx context.Context, title string, excludeID int64) (model.Task, error) {
	want := strings.ToLower(title)
	for _, t := range m.sorted() {
		if t.ID != excludeID && strings.ToLower(t.Title) == want {
			return t, nil
		}
	}
	return model.Task{}, ErrorNotFound
}

func (m memTx) List(ctx context.Context) ([]model.Task, error) {
	return m.sorted(), nil
}

func (m memTx) Update(ctx context.Context, t model.Task) (model.Task, error) {
	cur, ok := m.r.tasks[t.ID]
	if !ok {
		return t, ErrorNotFound
	}
	if m.titleTaken(t.Title, t.ID) {
		return t, ErrorConflict
	}
	cur.Title = t.Title
	cur.Done = t.Done
	cur.UpdatedAt = t.UpdatedAt
	m.r.tasks[t.ID] = cur
	return cur, nil
}

func (m memTx) Delete(ctx context.Context, id int64) error {
	if _, ok := m.r.tasks[id]; !ok {
		return ErrorNotFound
	}
	delete(m.r.tasks, id)
	return nil
}

func (m memTx) GetStats(ctx context.Context) (model.Stats, error) {
	var s model.Stats
	for _, t := range m.r.tasks {
		s.Total++
		if t.Done {
			s.Done++
		}
	}
	s.Open = s.Total - s.Done
	return s, nil
}

func (m memTx) InTx(ctx context.Context, fn func(r TaskRepository) error) error {
	return fn(m)
}

func (m memTx) titleTaken(title string, excludeID int64) bool {
	want := strings.ToLower(title)
	for id, t := range m.r.tasks {
		if id != excludeID && strings.ToLower(t.Title) == want {
			return true
		}
	}
	return false
}

func (m memTx) sorted() []model.Task {
	tasks := make([]model.Task, 0, len(m.r.tasks))
	for _, t := range m.r.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks
}
