package child

import (
	"time"

	"immunization_bot/internal/domain/immunization"
)

// Child is a registered child whose vaccination schedule is tracked.
// ParentTelegramID scopes ownership: only the registering chat user sees the child.
type Child struct {
	ID               int64
	ParentTelegramID int64
	Name             string
	BirthDate        immunization.Date
	Gender           immunization.Gender
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
