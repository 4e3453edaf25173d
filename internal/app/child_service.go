package app

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"immunization_bot/internal/domain/child"
	"immunization_bot/internal/domain/immunization"
	idb "immunization_bot/internal/infra/database" // ErrChildNotFound and friends live here

	"github.com/sirupsen/logrus"
)

// Custom application-level errors for child service
var ErrNotChildOwner = fmt.Errorf("child is registered by another parent")
var ErrInvalidChildName = fmt.Errorf("child name must be 1 to 50 characters")
var ErrBirthDateInFuture = fmt.Errorf("birth date is in the future")

const maxChildNameLength = 50

type ChildService struct {
	childRepo child.Repository
	now       Clock
	log       *logrus.Entry
}

func NewChildService(cr child.Repository, now Clock, log *logrus.Entry) *ChildService {
	return &ChildService{
		childRepo: cr,
		now:       now.orDefault(),
		log:       log,
	}
}

// AddChild registers a child for the parent identified by parentTelegramID.
func (s *ChildService) AddChild(ctx context.Context, parentTelegramID int64, name string, birth immunization.Date, gender immunization.Gender) (*child.Child, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxChildNameLength {
		return nil, ErrInvalidChildName
	}
	if birth.IsZero() {
		return nil, &immunization.ValidationError{Field: "birth_date", Value: birth, Reason: "must be set"}
	}
	if birth.After(immunization.DateOf(s.now())) {
		return nil, ErrBirthDateInFuture
	}

	newChild := &child.Child{
		ParentTelegramID: parentTelegramID,
		Name:             name,
		BirthDate:        birth,
		Gender:           gender,
	}
	if err := s.childRepo.Create(ctx, newChild); err != nil {
		return nil, fmt.Errorf("failed to create child in repository: %w", err)
	}

	s.log.WithFields(logrus.Fields{"child_id": newChild.ID, "parent_id": parentTelegramID}).Info("Child registered")
	return newChild, nil
}

// ListChildren returns the parent's children, oldest first.
func (s *ChildService) ListChildren(ctx context.Context, parentTelegramID int64) ([]*child.Child, error) {
	children, err := s.childRepo.ListByParent(ctx, parentTelegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	return children, nil
}

// GetChild fetches a child, refusing children registered by another parent.
func (s *ChildService) GetChild(ctx context.Context, parentTelegramID, childID int64) (*child.Child, error) {
	c, err := s.childRepo.GetByID(ctx, childID)
	if err != nil {
		if err == idb.ErrChildNotFound {
			return nil, idb.ErrChildNotFound // Propagate specific error
		}
		return nil, fmt.Errorf("failed to get child %d: %w", childID, err)
	}
	if c.ParentTelegramID != parentTelegramID {
		return nil, ErrNotChildOwner
	}
	return c, nil
}
