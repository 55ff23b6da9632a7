package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/BuzzLyutic/tasks-api/internal/model"
)

const (
	DriverSQLite       = "sqlite"
	DriverGormPostgres = "gorm-postgres"
)

// OpenGorm opens a gorm connection for the sqlite or gorm-postgres driver.
func OpenGorm(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverGormPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		// у каждого соединения sqlite своя :memory: база
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// MigrateGorm creates the tasks table and the case-insensitive title index.
func MigrateGorm(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Task{}); err != nil {
		return err
	}
	return db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS tasks_title_lower_idx ON tasks (lower(title))").Error
}

type GormRepo struct {
	db   *gorm.DB
	inTx bool
}

func NewGormRepo(db *gorm.DB) *GormRepo {
	return &GormRepo{db: db}
}

func (r *GormRepo) Create(ctx context.Context, t model.Task) (model.Task, error) {
	t.ID = 0
	if err := r.db.WithContext(ctx).Create(&t).Error; err != nil {
		return t, r.mapError(err)
	}
	return utcTask(t), nil
}

func (r *GormRepo) Get(ctx context.Context, id int64) (model.Task, error) {
	q := r.db.WithContext(ctx)
	if r.inTx && r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var t model.Task
	if err := q.First(&t, id).Error; err != nil {
		return t, r.mapError(err)
	}
	return utcTask(t), nil
}

func (r *GormRepo) FindByTitle(ctx context.Context, title string, excludeID int64) (model.Task, error) {
	var t model.Task
	err := r.db.WithContext(ctx).
		Where("lower(title) = lower(?) AND id <> ?", title, excludeID).
		First(&t).Error
	if err != nil {
		return t, r.mapError(err)
	}
	return utcTask(t), nil
}

func (r *GormRepo) List(ctx context.Context) ([]model.Task, error) {
	tasks := make([]model.Task, 0)
	if err := r.db.WithContext(ctx).Order("id").Find(&tasks).Error; err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i] = utcTask(tasks[i])
	}
	return tasks, nil
}

func (r *GormRepo) Update(ctx context.Context, t model.Task) (model.Task, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Task{}).
		Where("id = ?", t.ID).
		Updates(map[string]any{
			"title":      t.Title,
			"done":       t.Done,
			"updated_at": t.UpdatedAt,
		})
	if res.Error != nil {
		return t, r.mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return t, ErrorNotFound
	}
	return r.Get(ctx, t.ID)
}

func (r *GormRepo) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&model.Task{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrorNotFound
	}
	return nil
}

func (r *GormRepo) GetStats(ctx context.Context) (model.Stats, error) {
	var total, done int64
	if err := r.db.WithContext(ctx).Model(&model.Task{}).Count(&total).Error; err != nil {
		return model.Stats{}, err
	}
	if err := r.db.WithContext(ctx).Model(&model.Task{}).Where("done = ?", true).Count(&done).Error; err != nil {
		return model.Stats{}, err
	}
	return model.Stats{Total: int(total), Done: int(done), Open: int(total - done)}, nil
}

func (r *GormRepo) InTx(ctx context.Context, fn func(r TaskRepository) error) error {
	if r.inTx {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepo{db: tx, inTx: true})
	})
}

func (r *GormRepo) mapError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrorConflict
	}

	// на случай если диалект не перевел ошибку
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return ErrorConflict
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrorConflict
	}
	return err
}

func utcTask(t model.Task) model.Task {
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t
}
