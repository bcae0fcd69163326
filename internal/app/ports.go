package app

import (
	"context"

	"github.com/hylla/lanes/internal/domain"
)

// Repository represents repository data used by this package.
type Repository interface {
	CreateItem(context.Context, domain.Item) error
	UpdateItem(context.Context, domain.Item) error
	GetItem(context.Context, string) (domain.Item, error)
	ListItems(context.Context, domain.ItemFilter) ([]domain.Item, error)
	DeleteItem(context.Context, string) error
	ListChangeEvents(context.Context, domain.BoardKind, int) ([]domain.ChangeEvent, error)
}
