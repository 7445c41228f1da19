package service

import (
	"context"
	"strings"

	"github.com/gogotex/mongomodel/internal/document"
	"github.com/gogotex/mongomodel/internal/document/repository"
	"github.com/gogotex/mongomodel/pkg/model"
)

const (
	modelName   = "Document"
	defaultName = "untitled.tex"
	maxList     = 200
)

// Owners resolves document owners. *users.Service satisfies it.
type Owners interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Service holds the document business rules used by the handler layer.
type Service struct {
	repo   *repository.Repo
	owners Owners
}

// New returns a Service. owners may be nil, in which case owner ids are not
// checked.
func New(repo *repository.Repo, owners Owners) *Service {
	return &Service{repo: repo, owners: owners}
}

func (s *Service) Create(ctx context.Context, d *document.Document) (string, error) {
	d.OwnerID = strings.TrimSpace(d.OwnerID)
	if d.OwnerID == "" {
		return "", model.Invalid("create", modelName, "owner_id is required")
	}
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		d.Name = defaultName
	}
	if s.owners != nil {
		ok, err := s.owners.Exists(ctx, d.OwnerID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", model.Invalid("create", modelName, "unknown owner %q", d.OwnerID)
		}
	}
	return s.repo.Create(ctx, d)
}

func (s *Service) Get(ctx context.Context, id string) (*document.Document, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, owner string, limit int64) ([]*document.Document, error) {
	if limit <= 0 || limit > maxList {
		limit = maxList
	}
	return s.repo.List(ctx, owner, limit)
}

func (s *Service) Update(ctx context.Context, id string, content string, name *string) error {
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return model.Invalid("update", modelName, "name must not be empty")
		}
		name = &trimmed
	}
	return s.repo.Update(ctx, id, content, name)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// DeleteOwned removes every document of owner.
func (s *Service) DeleteOwned(ctx context.Context, owner string) (int64, error) {
	return s.repo.DeleteByOwner(ctx, owner)
}

func (s *Service) CountOwned(ctx context.Context, owner string) (int64, error) {
	return s.repo.CountByOwner(ctx, owner)
}
