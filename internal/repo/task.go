package repo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/tasks-api/internal/model"
	"github.com/BuzzLyutic/tasks-api/migrations"
)

const pgUniqueViolation = "23505"

// querier покрывает и *pgxpool.Pool, и pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type TaskRepo struct { // Репозиторий для работы непосредственно с БД
	pool *pgxpool.Pool
	db   querier
	inTx bool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo { // Конструктор
	return &TaskRepo{
		pool: pool,
		db:   pool,
	}
}

// Migrate applies the embedded *.up.sql files in name order.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	files, err := fs.Glob(migrations.FS, "*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, name := range files {
		ddl, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(ddl)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

func (r *TaskRepo) Create(ctx context.Context, t model.Task) (model.Task, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO tasks (title, done, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, title, done, created_at, updated_at
	`, t.Title, t.Done, t.CreatedAt, t.UpdatedAt)
	created, err := scanTask(row)
	return created, r.mapError(err)
}

func (r *TaskRepo) Get(ctx context.Context, id int64) (model.Task, error) {
	query := `
		SELECT id, title, done, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`
	if r.inTx {
		// строка перечитывается под блокировкой, чтобы параллельный PATCH не потерял поля
		query += " FOR UPDATE"
	}

	t, err := scanTask(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return t, ErrorNotFound
	}
	return t, err
}

func (r *TaskRepo) FindByTitle(ctx context.Context, title string, excludeID int64) (model.Task, error) {
	t, err := scanTask(r.db.QueryRow(ctx, `
		SELECT id, title, done, created_at, updated_at
		FROM tasks
		WHERE lower(title) = lower($1) AND id <> $2
		LIMIT 1
	`, title, excludeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return t, ErrorNotFound
	}
	return t, err
}

func (r *TaskRepo) List(ctx context.Context) ([]model.Task, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, title, done, created_at, updated_at
		FROM tasks
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepo) Update(ctx context.Context, t model.Task) (model.Task, error) {
	updated, err := scanTask(r.db.QueryRow(ctx, `
		UPDATE tasks
		SET title = $2, done = $3, updated_at = $4
		WHERE id = $1
		RETURNING id, title, done, created_at, updated_at
	`, t.ID, t.Title, t.Done, t.UpdatedAt))

	if errors.Is(err, pgx.ErrNoRows) {
		return t, ErrorNotFound
	}
	return updated, r.mapError(err)
}

func (r *TaskRepo) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrorNotFound
	}
	return nil
}

func (r *TaskRepo) GetStats(ctx context.Context) (model.Stats, error) {
	var s model.Stats
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE done)
		FROM tasks
	`).Scan(&s.Total, &s.Done)
	s.Open = s.Total - s.Done
	return s, err
}

func (r *TaskRepo) InTx(ctx context.Context, fn func(r TaskRepository) error) error {
	if r.inTx {
		return fn(r)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&TaskRepo{pool: r.pool, db: tx, inTx: true})
	})
}

func scanTask(row pgx.Row) (model.Task, error) {
	var t model.Task
	err := row.Scan(&t.ID, &t.Title, &t.Done, &t.CreatedAt, &t.UpdatedAt)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, err
}

func (r *TaskRepo) mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgUniqueViolation {
			return ErrorConflict
		}
	}
	return err
}
