package users

import (
	"context"
	"errors"

	"github.com/gogotex/mongomodel/pkg/model"
	"go.mongodb.org/mongo-driver/bson"
)

// UserRepository defines persistence operations for users
type UserRepository interface {
	Create(ctx context.Context, u *User) (*User, error)
	Get(ctx context.Context, id string) (*User, error)
	GetBySub(ctx context.Context, sub string) (*User, error)
	List(ctx context.Context, filter bson.D, page, pageSize int64) (*model.Page[*User], error)
	Update(ctx context.Context, id string, fields bson.D) (*User, error)
	Delete(ctx context.Context, id string) (bool, error)
	UpsertBySub(ctx context.Context, u *User) (*User, error)
	RoleCounts(ctx context.Context) ([]RoleCount, error)
}

// RoleCount is one row of the per-role user breakdown.
type RoleCount struct {
	Role  string `bson:"_id" json:"role"`
	Users int64  `bson:"users" json:"users"`
}

// ModelUserRepository implements UserRepository on the generic model layer,
// so it works against MongoDB and the in-memory store alike.
type ModelUserRepository struct {
	users *model.Model[User, *User]
}

// NewModelUserRepository creates a repository over m.
func NewModelUserRepository(m *model.Model[User, *User]) *ModelUserRepository {
	return &ModelUserRepository{users: m}
}

// Model exposes the underlying model, e.g. for index synchronization.
func (r *ModelUserRepository) Model() *model.Model[User, *User] { return r.users }

// Create always inserts: an identifier supplied by the caller is replaced.
func (r *ModelUserRepository) Create(ctx context.Context, u *User) (*User, error) {
	u.SetID(model.GenerateID())
	u.Timestamps = model.Timestamps{}
	return r.users.Save(ctx, u)
}

func (r *ModelUserRepository) Get(ctx context.Context, id string) (*User, error) {
	return r.users.FindByID(ctx, id)
}

func (r *ModelUserRepository) GetBySub(ctx context.Context, sub string) (*User, error) {
	return r.users.FindOne(ctx, bson.D{{Key: "sub", Value: sub}})
}

// List pages through users, newest first.
func (r *ModelUserRepository) List(ctx context.Context, filter bson.D, page, pageSize int64) (*model.Page[*User], error) {
	sort := bson.D{{Key: model.FieldCreatedAt, Value: -1}, {Key: model.FieldID, Value: 1}}
	return r.users.Paginate(ctx, filter, page, pageSize, sort)
}

func (r *ModelUserRepository) Update(ctx context.Context, id string, fields bson.D) (*User, error) {
	return r.users.FindOneAndUpdate(ctx, bson.D{{Key: model.FieldID, Value: id}}, fields)
}

func (r *ModelUserRepository) Delete(ctx context.Context, id string) (bool, error) {
	n, err := r.users.DeleteOne(ctx, bson.D{{Key: model.FieldID, Value: id}})
	return n > 0, err
}

// UpsertBySub refreshes email and name of the user with u.Sub, creating the
// user when none exists yet.
func (r *ModelUserRepository) UpsertBySub(ctx context.Context, u *User) (*User, error) {
	existing, err := r.GetBySub(ctx, u.Sub)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return r.Create(ctx, u)
	case err != nil:
		return nil, err
	}
	existing.Email = u.Email
	existing.Name = u.Name
	return r.users.Save(ctx, existing)
}

func (r *ModelUserRepository) RoleCounts(ctx context.Context) ([]RoleCount, error) {
	pipeline := model.Pipeline(
		model.Unwind("$roles"),
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$roles"},
			{Key: "users", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		model.Sort(bson.D{{Key: "users", Value: -1}, {Key: "_id", Value: 1}}),
	)
	return model.AggregateAs[RoleCount](ctx, r.users, pipeline)
}
