package child

import (
	"context"
)

// Repository defines the operations for persisting and retrieving Child entities.
type Repository interface {
	Create(ctx context.Context, child *Child) error
	GetByID(ctx context.Context, id int64) (*Child, error)
	ListByParent(ctx context.Context, parentTelegramID int64) ([]*Child, error)
}
