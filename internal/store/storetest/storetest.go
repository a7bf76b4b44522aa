// Package storetest holds the behavior every store.Backend must show.
// Backend packages call RunBackendTests from their own tests.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyplan/internal/apperr"
	"studyplan/internal/model"
	"studyplan/internal/store"
)

func RunBackendTests(t *testing.T, newBackend func(t *testing.T) store.Backend) {
	t.Run("insert and get", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		id, err := b.Insert(ctx, "things", store.Doc{Body: []byte(`{"a":1}`)})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		doc, err := b.Get(ctx, "things", id)
		require.NoError(t, err)
		assert.Equal(t, id, doc.ID)
		assert.JSONEq(t, `{"a":1}`, string(doc.Body))

		_, err = b.Get(ctx, "other", id)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("replace", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		id, err := b.Insert(ctx, "things", store.Doc{Indexes: map[string]string{"by_owner": "u1"}, Body: []byte(`{"v":1}`)})
		require.NoError(t, err)

		err = b.Replace(ctx, "things", id, store.Doc{Indexes: map[string]string{"by_owner": "u2"}, Body: []byte(`{"v":2}`)})
		require.NoError(t, err)

		doc, err := b.Get(ctx, "things", id)
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":2}`, string(doc.Body))

		docs, err := b.QueryByIndex(ctx, "things", "by_owner", "u1")
		require.NoError(t, err)
		assert.Empty(t, docs)
		docs, err = b.QueryByIndex(ctx, "things", "by_owner", "u2")
		require.NoError(t, err)
		assert.Len(t, docs, 1)

		err = b.Replace(ctx, "things", "missing", store.Doc{Body: []byte(`{}`)})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		id, err := b.Insert(ctx, "things", store.Doc{Indexes: map[string]string{"by_owner": "u1"}, Body: []byte(`{}`)})
		require.NoError(t, err)

		require.NoError(t, b.Delete(ctx, "things", id))
		require.NoError(t, b.Delete(ctx, "things", id))

		_, err = b.Get(ctx, "things", id)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		docs, err := b.QueryByIndex(ctx, "things", "by_owner", "u1")
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("query keeps insertion order", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		var want []string
		for i := 0; i < 20; i++ {
			owner := "u1"
			if i%3 == 0 {
				owner = "u2"
			}
			id, err := b.Insert(ctx, "things", store.Doc{Indexes: map[string]string{"by_owner": owner}, Body: []byte(`{}`)})
			require.NoError(t, err)
			if owner == "u1" {
				want = append(want, id)
			}
		}

		docs, err := b.QueryByIndex(ctx, "things", "by_owner", "u1")
		require.NoError(t, err)
		got := make([]string, 0, len(docs))
		for _, d := range docs {
			got = append(got, d.ID)
		}
		assert.Equal(t, want, got)

		docs, err = b.QueryByIndex(ctx, "things", "by_owner", "nobody")
		require.NoError(t, err)
		assert.NotNil(t, docs)
		assert.Empty(t, docs)
	})

	t.Run("typed collection", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		tasks := store.NewCollection[model.Task](b, store.Tasks)

		task := model.Task{OwnerID: "u1", Title: "Read chapter 4", Status: model.TaskTodo}
		id, err := tasks.Insert(ctx, &task)
		require.NoError(t, err)
		assert.Equal(t, id, task.ID)

		got, err := tasks.GetOwned(ctx, "u1", id)
		require.NoError(t, err)
		assert.Equal(t, "Read chapter 4", got.Title)

		_, err = tasks.GetOwned(ctx, "u2", id)
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		updated, err := tasks.Patch(ctx, id, func(task *model.Task) error {
			task.ReminderEnabled = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, updated.ReminderEnabled)

		withReminder, err := tasks.ByIndex(ctx, model.IndexByReminder, model.ReminderIndexKey)
		require.NoError(t, err)
		require.Len(t, withReminder, 1)
		assert.Equal(t, id, withReminder[0].ID)

		_, err = tasks.Patch(ctx, "missing", func(*model.Task) error { return nil })
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}
