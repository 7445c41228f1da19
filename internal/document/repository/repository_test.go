package repository

import (
	"context"
	"testing"

	"github.com/gogotex/mongomodel/internal/document"
	"github.com/gogotex/mongomodel/internal/memstore"
	"github.com/gogotex/mongomodel/pkg/model"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *Repo {
	t.Helper()
	col := memstore.NewCollection("documents")
	m := model.NewWithCollection[document.Document](col, col.Indexes())
	require.NoError(t, m.CreateIndexes(context.Background()))
	return New(m)
}

func TestRepoCRUD(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	d := &document.Document{OwnerID: "o1", Name: "t.tex", Content: "hello"}
	id, err := r.Create(ctx, d)
	require.NoError(t, err)
	require.Len(t, id, model.IDLength)

	got, err := r.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "hello", got.Content)
	require.False(t, got.CreatedAt.IsZero())

	list, err := r.List(ctx, "o1", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Empty(t, list[0].Content, "listings leave content out")
	require.Equal(t, "t.tex", list[0].Name)

	require.NoError(t, r.Update(ctx, id, "new", nil))
	got2, err := r.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "new", got2.Content)
	require.Equal(t, "t.tex", got2.Name)
	require.False(t, got2.UpdatedAt.Before(got.UpdatedAt))

	require.NoError(t, r.Delete(ctx, id))
	_, err = r.Get(ctx, id)
	require.ErrorIs(t, err, model.ErrNotFound)
	require.ErrorIs(t, r.Delete(ctx, id), model.ErrNotFound)
	require.ErrorIs(t, r.Update(ctx, id, "x", nil), model.ErrNotFound)
}

func TestRepoNamesUniquePerOwner(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	_, err := r.Create(ctx, &document.Document{OwnerID: "o1", Name: "main.tex"})
	require.NoError(t, err)
	_, err = r.Create(ctx, &document.Document{OwnerID: "o2", Name: "main.tex"})
	require.NoError(t, err)
	_, err = r.Create(ctx, &document.Document{OwnerID: "o1", Name: "main.tex"})
	require.ErrorIs(t, err, model.ErrDuplicateKey)
}

func TestRepoOwnerScopedOperations(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	for _, name := range []string{"a", "b", "c"} {
		_, err := r.Create(ctx, &document.Document{OwnerID: "o1", Name: name})
		require.NoError(t, err)
	}
	_, err := r.Create(ctx, &document.Document{OwnerID: "o2", Name: "a"})
	require.NoError(t, err)

	n, err := r.CountByOwner(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	limited, err := r.List(ctx, "o1", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)

	all, err := r.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)

	deleted, err := r.DeleteByOwner(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, int64(3), deleted)
	n, err = r.CountByOwner(ctx, "o1")
	require.NoError(t, err)
	require.Zero(t, n)
}
