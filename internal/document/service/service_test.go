package service

import (
	"context"
	"testing"

	"github.com/gogotex/mongomodel/internal/document"
	"github.com/gogotex/mongomodel/internal/document/repository"
	"github.com/gogotex/mongomodel/internal/memstore"
	"github.com/gogotex/mongomodel/pkg/model"
	"github.com/stretchr/testify/require"
)

type fakeOwners map[string]bool

func (f fakeOwners) Exists(_ context.Context, id string) (bool, error) { return f[id], nil }

func newService(t *testing.T, owners Owners) *Service {
	t.Helper()
	col := memstore.NewCollection("documents")
	m := model.NewWithCollection[document.Document](col, col.Indexes())
	require.NoError(t, m.CreateIndexes(context.Background()))
	return New(repository.New(m), owners)
}

func TestCreateDefaultsAndOwnerCheck(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, fakeOwners{"alice": true})

	d := &document.Document{OwnerID: "alice", Name: "  "}
	id, err := svc.Create(ctx, d)
	require.NoError(t, err)
	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "untitled.tex", got.Name)

	_, err = svc.Create(ctx, &document.Document{OwnerID: "mallory", Name: "x.tex"})
	require.ErrorIs(t, err, model.ErrInvalidArgument)
	_, err = svc.Create(ctx, &document.Document{Name: "x.tex"})
	require.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestUpdateValidatesName(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)
	id, err := svc.Create(ctx, &document.Document{OwnerID: "bob", Name: "a.tex"})
	require.NoError(t, err)

	empty := " "
	require.ErrorIs(t, svc.Update(ctx, id, "x", &empty), model.ErrInvalidArgument)

	name := " b.tex "
	require.NoError(t, svc.Update(ctx, id, "body", &name))
	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "b.tex", got.Name)
	require.Equal(t, "body", got.Content)
}

func TestListAndDeleteOwned(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)
	for _, n := range []string{"1.tex", "2.tex"} {
		_, err := svc.Create(ctx, &document.Document{OwnerID: "carol", Name: n})
		require.NoError(t, err)
	}
	list, err := svc.List(ctx, "carol", -1)
	require.NoError(t, err)
	require.Len(t, list, 2)

	n, err := svc.DeleteOwned(ctx, "carol")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	count, err := svc.CountOwned(ctx, "carol")
	require.NoError(t, err)
	require.Zero(t, count)
}
