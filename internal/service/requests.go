package service

import (
	"context"
	"time"

	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/policy"
	"github.com/iliyamo/librov/internal/validation"
)

// RequestStore persists book requests.
type RequestStore interface {
	CreateBookRequest(ctx context.Context, r *model.BookRequest) error
	ListBookRequests(ctx context.Context) ([]model.BookRequest, error)
}

// BookRequestInput is a member's suggestion.
type BookRequestInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Author      string `json:"author" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
}

// RequestService records suggestions from members for staff to review.
type RequestService struct {
	store    RequestStore
	validate *validation.Validator
	now      func() time.Time
}

func NewRequestService(store RequestStore, v *validation.Validator) *RequestService {
	return &RequestService{store: store, validate: v, now: utcNow}
}

func (s *RequestService) Create(ctx context.Context, caller policy.Caller, in BookRequestInput) (*model.BookRequest, error) {
	if err := policy.AuthenticatedOnly.Check(caller, policy.Write); err != nil {
		return nil, err
	}
	if err := s.validate.Validate(in); err != nil {
		return nil, err
	}
	r := &model.BookRequest{
		UserID:      caller.UserID,
		Title:       in.Title,
		Author:      in.Author,
		Description: in.Description,
		CreatedAt:   stamp(s.now),
	}
	if err := s.store.CreateBookRequest(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// List returns every request, newest first.  Staff only.
func (s *RequestService) List(ctx context.Context, caller policy.Caller) ([]model.BookRequest, error) {
	if err := policy.AdminOnly.Check(caller, policy.Read); err != nil {
		return nil, err
	}
	return s.store.ListBookRequests(ctx)
}

