package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/erp-dms/dms-assistant/internal/query"
	"github.com/erp-dms/dms-assistant/internal/rpc"
)

var ErrInvalidRecord = errors.New("invalid record")

var validate = validator.New()

// Service wraps the generic DataModel procedures for categories, AI question
// templates and modules. Every method is one round-trip; errors from the RPC
// client are returned unchanged.
type Service struct {
	rpc rpc.Caller
}

func NewService(c rpc.Caller) *Service {
	return &Service{rpc: c}
}

func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	orderBy, _ := query.OrderBy(ColCategoryName, false)
	rows, err := rpc.GetData(ctx, s.rpc, CategoryModel, "", orderBy)
	if err != nil {
		return nil, err
	}
	return rpc.DecodeRows[Category](rows)
}

// Category returns nil when no category has the given name.
func (s *Service) Category(ctx context.Context, name string) (*Category, error) {
	where, err := query.Eq(ColCategoryName, name)
	if err != nil {
		return nil, err
	}
	rows, err := rpc.GetData(ctx, s.rpc, CategoryModel, where, "")
	if err != nil {
		return nil, err
	}
	cats, err := rpc.DecodeRows[Category](rows)
	if err != nil || len(cats) == 0 {
		return nil, err
	}
	return &cats[0], nil
}

func (s *Service) SaveCategory(ctx context.Context, userName string, c Category) (string, error) {
	if err := validate.Struct(c); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	rec := rpc.NewRecord(CategoryModel).
		Set(ColCategoryName, c.Name).
		Set(ColDisplayName, c.DisplayName).
		Set(ColModuleName, c.ModuleName).
		Set(ColSearchTags, c.SearchTags)
	return rpc.SaveData(ctx, s.rpc, userName, rec)
}

func (s *Service) DeleteCategory(ctx context.Context, userName, name string) (string, error) {
	where, err := query.Eq(ColCategoryName, name)
	if err != nil {
		return "", err
	}
	return rpc.DeleteData(ctx, s.rpc, userName, CategoryModel, where)
}

// Questions returns the category's question templates in server order.
func (s *Service) Questions(ctx context.Context, categoryName string) ([]AIQuestion, error) {
	where, err := query.Eq(ColCategoryName, categoryName)
	if err != nil {
		return nil, err
	}
	rows, err := rpc.GetData(ctx, s.rpc, QuestionModel, where, "")
	if err != nil {
		return nil, err
	}
	return rpc.DecodeRows[AIQuestion](rows)
}

func (s *Service) SaveQuestion(ctx context.Context, userName string, q AIQuestion) (string, error) {
	if err := validate.Struct(q); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	rec := rpc.NewRecord(QuestionModel).
		Set(ColCategoryName, q.CategoryName).
		Set(ColQuestion, q.QuestionText).
		Set(ColRefKey, q.RefKey).
		Set(ColIsMandatory, q.IsMandatory)
	return rpc.SaveData(ctx, s.rpc, userName, rec)
}

func (s *Service) DeleteQuestion(ctx context.Context, userName, categoryName, question string) (string, error) {
	byCategory, err := query.Eq(ColCategoryName, categoryName)
	if err != nil {
		return "", err
	}
	byQuestion, err := query.Eq(ColQuestion, question)
	if err != nil {
		return "", err
	}
	return rpc.DeleteData(ctx, s.rpc, userName, QuestionModel, query.And(byCategory, byQuestion))
}

func (s *Service) Modules(ctx context.Context) ([]Module, error) {
	rows, err := rpc.GetData(ctx, s.rpc, ModuleModel, "", "")
	if err != nil {
		return nil, err
	}
	return rpc.DecodeRows[Module](rows)
}
