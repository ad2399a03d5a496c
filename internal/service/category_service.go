package service

import (
	"context"
	"errors"
	"strings"

	"poscore/internal/dto"
	"poscore/internal/model"
	"poscore/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CategoryService defines business operations for product categories.
type CategoryService interface {
	Create(ctx context.Context, req dto.CategoryRequest) (dto.CategoryResponse, error)
	List(ctx context.Context) ([]dto.CategoryResponse, error)
	Update(ctx context.Context, id uuid.UUID, req dto.CategoryRequest) (dto.CategoryResponse, error)
}

type categoryService struct {
	repo repository.CategoryRepository
}

func NewCategoryService(repo repository.CategoryRepository) CategoryService {
	return &categoryService{repo: repo}
}

func mapCategory(c model.Category) dto.CategoryResponse {
	return dto.CategoryResponse{
		ID:          c.ID.String(),
		Name:        c.Name,
		Description: c.Description,
	}
}

func (s *categoryService) Create(ctx context.Context, req dto.CategoryRequest) (dto.CategoryResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return dto.CategoryResponse{}, validationError("El nombre de la categoría es obligatorio")
	}
	c := &model.Category{Name: name, Description: req.Description}
	if err := s.repo.Create(ctx, c); err != nil {
		return dto.CategoryResponse{}, duplicateCategory(err)
	}
	return mapCategory(*c), nil
}

func (s *categoryService) List(ctx context.Context) ([]dto.CategoryResponse, error) {
	categories, err := s.repo.List(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	resp := make([]dto.CategoryResponse, len(categories))
	for i, c := range categories {
		resp[i] = mapCategory(c)
	}
	return resp, nil
}

func (s *categoryService) Update(ctx context.Context, id uuid.UUID, req dto.CategoryRequest) (dto.CategoryResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return dto.CategoryResponse{}, validationError("El nombre de la categoría es obligatorio")
	}
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return dto.CategoryResponse{}, storageErr(err, notFound("Categoría no encontrada"))
	}
	c.Name = name
	c.Description = req.Description
	if err := s.repo.Update(ctx, c); err != nil {
		return dto.CategoryResponse{}, duplicateCategory(err)
	}
	return mapCategory(*c), nil
}

func duplicateCategory(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return validationError("Ya existe una categoría con ese nombre")
	}
	return unavailable(err)
}
