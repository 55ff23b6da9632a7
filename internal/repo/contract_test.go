package repo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BuzzLyutic/tasks-api/internal/model"
	"github.com/BuzzLyutic/tasks-api/internal/repo"
)

var errAbort = errors.New("abort")

func stamp(offset time.Duration) time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Add(offset)
}

func newTask(title string, done bool) model.Task {
	return model.Task{Title: title, Done: done, CreatedAt: stamp(0), UpdatedAt: stamp(0)}
}

// runContract checks behaviour every TaskRepository implementation shares.
// newRepo must return an empty repository.
func runContract(t *testing.T, newRepo func(t *testing.T) repo.TaskRepository) {
	ctx := context.Background()

	t.Run("create assigns increasing ids and keeps the title as given", func(t *testing.T) {
		r := newRepo(t)

		a, err := r.Create(ctx, newTask("Buy Milk", false))
		require.NoError(t, err)
		b, err := r.Create(ctx, newTask("walk dog", true))
		require.NoError(t, err)

		assert.NotZero(t, a.ID)
		assert.Greater(t, b.ID, a.ID)
		assert.Equal(t, "Buy Milk", a.Title)
		assert.True(t, b.Done)
		assert.True(t, stamp(0).Equal(a.CreatedAt))
		assert.True(t, stamp(0).Equal(a.UpdatedAt))
	})

	t.Run("create rejects a case-insensitive duplicate", func(t *testing.T) {
		r := newRepo(t)

		_, err := r.Create(ctx, newTask("Task", false))
		require.NoError(t, err)
		_, err = r.Create(ctx, newTask("tASK", false))
		assert.ErrorIs(t, err, repo.ErrorConflict)

		tasks, err := r.List(ctx)
		require.NoError(t, err)
		assert.Len(t, tasks, 1)
	})

	t.Run("get unknown id", func(t *testing.T) {
		r := newRepo(t)

		_, err := r.Get(ctx, 999)
		assert.ErrorIs(t, err, repo.ErrorNotFound)
	})

	t.Run("find by title ignores case and the excluded id", func(t *testing.T) {
		r := newRepo(t)

		a, err := r.Create(ctx, newTask("Mixed Case", false))
		require.NoError(t, err)

		found, err := r.FindByTitle(ctx, "mixed CASE", 0)
		require.NoError(t, err)
		assert.Equal(t, a.ID, found.ID)

		_, err = r.FindByTitle(ctx, "MIXED case", a.ID)
		assert.ErrorIs(t, err, repo.ErrorNotFound)

		_, err = r.FindByTitle(ctx, "other", 0)
		assert.ErrorIs(t, err, repo.ErrorNotFound)
	})

	t.Run("list is ordered by id", func(t *testing.T) {
		r := newRepo(t)

		tasks, err := r.List(ctx)
		require.NoError(t, err)
		assert.NotNil(t, tasks)
		assert.Empty(t, tasks)

		for _, title := range []string{"c", "a", "b"} {
			_, err := r.Create(ctx, newTask(title, false))
			require.NoError(t, err)
		}

		tasks, err = r.List(ctx)
		require.NoError(t, err)
		require.Len(t, tasks, 3)
		assert.Equal(t, []string{"c", "a", "b"}, []string{tasks[0].Title, tasks[1].Title, tasks[2].Title})
		assert.Less(t, tasks[0].ID, tasks[1].ID)
		assert.Less(t, tasks[1].ID, tasks[2].ID)
	})

	t.Run("update replaces mutable fields only", func(t *testing.T) {
		r := newRepo(t)

		created, err := r.Create(ctx, newTask("before", false))
		require.NoError(t, err)

		updated, err := r.Update(ctx, model.Task{
			ID:        created.ID,
			Title:     "after",
			Done:      true,
			CreatedAt: stamp(time.Hour), // ignored
			UpdatedAt: stamp(time.Minute),
		})
		require.NoError(t, err)

		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, "after", updated.Title)
		assert.True(t, updated.Done)
		assert.True(t, stamp(0).Equal(updated.CreatedAt))
		assert.True(t, stamp(time.Minute).Equal(updated.UpdatedAt))

		got, err := r.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "after", got.Title)
		assert.True(t, stamp(0).Equal(got.CreatedAt))
	})

	t.Run("update unknown id", func(t *testing.T) {
		r := newRepo(t)

		_, err := r.Update(ctx, model.Task{ID: 42, Title: "x", UpdatedAt: stamp(time.Minute)})
		assert.ErrorIs(t, err, repo.ErrorNotFound)
	})

	t.Run("update to another task's title violates the constraint", func(t *testing.T) {
		r := newRepo(t)

		_, err := r.Create(ctx, newTask("X", false))
		require.NoError(t, err)
		b, err := r.Create(ctx, newTask("Y", false))
		require.NoError(t, err)

		_, err = r.Update(ctx, model.Task{ID: b.ID, Title: "x", UpdatedAt: stamp(time.Minute)})
		assert.ErrorIs(t, err, repo.ErrorConflict)

		_, err = r.Update(ctx, model.Task{ID: b.ID, Title: "y", UpdatedAt: stamp(time.Minute)})
		assert.NoError(t, err, "a task may change the case of its own title")
	})

	t.Run("delete", func(t *testing.T) {
		r := newRepo(t)

		created, err := r.Create(ctx, newTask("gone soon", false))
		require.NoError(t, err)

		require.NoError(t, r.Delete(ctx, created.ID))
		assert.ErrorIs(t, r.Delete(ctx, created.ID), repo.ErrorNotFound)

		_, err = r.Get(ctx, created.ID)
		assert.ErrorIs(t, err, repo.ErrorNotFound)

		again, err := r.Create(ctx, newTask("gone soon", false))
		require.NoError(t, err, "a deleted title is free again")
		assert.Greater(t, again.ID, created.ID, "ids are never reused")
	})

	t.Run("stats", func(t *testing.T) {
		r := newRepo(t)

		for i, title := range []string{"a", "b", "c"} {
			_, err := r.Create(ctx, newTask(title, i == 0))
			require.NoError(t, err)
		}

		stats, err := r.GetStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.Stats{Total: 3, Done: 1, Open: 2}, stats)
	})

	t.Run("transaction commits", func(t *testing.T) {
		r := newRepo(t)

		var id int64
		err := r.InTx(ctx, func(tx repo.TaskRepository) error {
			created, err := tx.Create(ctx, newTask("committed", false))
			id = created.ID
			return err
		})
		require.NoError(t, err)

		_, err = r.Get(ctx, id)
		assert.NoError(t, err)
	})

	t.Run("transaction rolls back on error", func(t *testing.T) {
		r := newRepo(t)

		kept, err := r.Create(ctx, newTask("kept", false))
		require.NoError(t, err)

		err = r.InTx(ctx, func(tx repo.TaskRepository) error {
			if _, err := tx.Create(ctx, newTask("phantom", false)); err != nil {
				return err
			}
			if _, err := tx.Update(ctx, model.Task{ID: kept.ID, Title: "renamed", UpdatedAt: stamp(time.Minute)}); err != nil {
				return err
			}
			return errAbort
		})
		assert.ErrorIs(t, err, errAbort)

		tasks, err := r.List(ctx)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, "kept", tasks[0].Title)

		_, err = r.FindByTitle(ctx, "phantom", 0)
		assert.ErrorIs(t, err, repo.ErrorNotFound)
	})
}
