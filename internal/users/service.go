package users

import (
	"context"
	"errors"
	"strings"

	"github.com/gogotex/mongomodel/pkg/model"
	"go.mongodb.org/mongo-driver/bson"
)

const modelName = "User"

// Service encapsulates user-related business logic
type Service struct {
	repo     UserRepository
	onDelete []func(ctx context.Context, id string) error
}

// OnDelete registers fn to run after a user is deleted, e.g. to remove what
// the user owned.
func (s *Service) OnDelete(fn func(ctx context.Context, id string) error) {
	s.onDelete = append(s.onDelete, fn)
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r}
}

// CreateInput is the payload accepted for new users.
type CreateInput struct {
	Username string   `json:"username" binding:"required,min=2,max=63,username"`
	Email    string   `json:"email" binding:"required,email"`
	Name     string   `json:"name" binding:"max=200"`
	Roles    []string `json:"roles" binding:"dive,required"`
}

// UpdateInput holds the fields a caller may change. Nil means unchanged.
type UpdateInput struct {
	Email *string   `json:"email,omitempty" binding:"omitempty,email"`
	Name  *string   `json:"name,omitempty" binding:"omitempty,max=200"`
	Roles *[]string `json:"roles,omitempty" binding:"omitempty,dive,required"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*User, error) {
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := check("create", in); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, &User{
		Username: in.Username,
		Email:    in.Email,
		Name:     in.Name,
		Roles:    in.Roles,
	})
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetBySub(ctx context.Context, sub string) (*User, error) {
	return s.repo.GetBySub(ctx, sub)
}

// List returns one page of users, optionally only those holding role.
func (s *Service) List(ctx context.Context, role string, page, pageSize int64) (*model.Page[*User], error) {
	filter := bson.D{}
	if role != "" {
		filter = append(filter, bson.E{Key: "roles", Value: role})
	}
	return s.repo.List(ctx, filter, page, pageSize)
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*User, error) {
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		in.Email = &email
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if err := check("update", in); err != nil {
		return nil, err
	}
	fields := bson.D{}
	if in.Email != nil {
		fields = append(fields, bson.E{Key: "email", Value: *in.Email})
	}
	if in.Name != nil {
		fields = append(fields, bson.E{Key: "name", Value: *in.Name})
	}
	if in.Roles != nil {
		fields = append(fields, bson.E{Key: "roles", Value: *in.Roles})
	}
	if len(fields) == 0 {
		return nil, model.Invalid("update", modelName, "nothing to update")
	}
	return s.repo.Update(ctx, id, fields)
}

// Delete removes the user, reporting NotFound when there was none.
func (s *Service) Delete(ctx context.Context, id string) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return &model.Error{Kind: model.KindNotFound, Op: "delete", Model: modelName, Message: id}
	}
	var errs []error
	for _, fn := range s.onDelete {
		if err := fn(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// UpsertFromClaims creates or updates a user using OIDC claims map
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*User, error) {
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	username, _ := claims["preferred_username"].(string)
	if sub == "" {
		return nil, model.Invalid("upsert", modelName, "claims carry no subject")
	}
	if username == "" {
		username = sub
	}
	email = normalizeEmail(email)
	if err := checkVar("upsert", "email", email, "required,email"); err != nil {
		return nil, err
	}
	u := &User{
		Sub:      sub,
		Username: strings.ToLower(username),
		Email:    email,
		Name:     name,
	}
	return s.repo.UpsertBySub(ctx, u)
}

func (s *Service) RoleCounts(ctx context.Context) ([]RoleCount, error) {
	return s.repo.RoleCounts(ctx)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Exists reports whether a user with id is stored.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.repo.Get(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, model.ErrNotFound):
		return false, nil
	}
	return false, err
}
