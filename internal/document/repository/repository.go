package repository

import (
	"context"

	"github.com/gogotex/mongomodel/internal/document"
	"github.com/gogotex/mongomodel/pkg/model"
	"go.mongodb.org/mongo-driver/bson"
)

// Repo persists documents through the generic model layer.
type Repo struct {
	docs *model.Model[document.Document, *document.Document]
}

func New(m *model.Model[document.Document, *document.Document]) *Repo {
	return &Repo{docs: m}
}

func (r *Repo) Create(ctx context.Context, d *document.Document) (string, error) {
	d.SetID(model.GenerateID())
	d.Timestamps = model.Timestamps{}
	if _, err := r.docs.Save(ctx, d); err != nil {
		return "", err
	}
	return d.ID, nil
}

func (r *Repo) Get(ctx context.Context, id string) (*document.Document, error) {
	return r.docs.FindByID(ctx, id)
}

// List returns up to limit documents of owner, most recently updated first,
// without their content. An empty owner lists every document.
func (r *Repo) List(ctx context.Context, owner string, limit int64) ([]*document.Document, error) {
	filter := bson.D{}
	if owner != "" {
		filter = append(filter, bson.E{Key: "owner_id", Value: owner})
	}
	return r.docs.List(ctx, filter, model.FindOptions{
		Sort:       bson.D{{Key: model.FieldUpdatedAt, Value: -1}, {Key: model.FieldID, Value: 1}},
		Limit:      limit,
		Projection: bson.D{{Key: "content", Value: 0}},
	})
}

// Update sets content and, when given, name. It reports NotFound when id
// does not exist.
func (r *Repo) Update(ctx context.Context, id string, content string, name *string) error {
	set := bson.D{{Key: "content", Value: content}}
	if name != nil {
		set = append(set, bson.E{Key: "name", Value: *name})
	}
	res, err := r.docs.UpdateOne(ctx, bson.D{{Key: model.FieldID, Value: id}}, set)
	if err != nil {
		return err
	}
	if res.Matched == 0 {
		return &model.Error{Kind: model.KindNotFound, Op: "update_one", Model: r.docs.Name(), Message: id}
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	n, err := r.docs.DeleteOne(ctx, bson.D{{Key: model.FieldID, Value: id}})
	if err != nil {
		return err
	}
	if n == 0 {
		return &model.Error{Kind: model.KindNotFound, Op: "delete_one", Model: r.docs.Name(), Message: id}
	}
	return nil
}

// DeleteByOwner removes every document of owner.
func (r *Repo) DeleteByOwner(ctx context.Context, owner string) (int64, error) {
	return r.docs.DeleteMany(ctx, bson.D{{Key: "owner_id", Value: owner}})
}

// CountByOwner counts the documents of owner.
func (r *Repo) CountByOwner(ctx context.Context, owner string) (int64, error) {
	return r.docs.Count(ctx, bson.D{{Key: "owner_id", Value: owner}})
}
