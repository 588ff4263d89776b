package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/iliyamo/librov/internal/apperr"
	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/policy"
	"github.com/iliyamo/librov/internal/repository/repoerr"
	"github.com/iliyamo/librov/internal/validation"
)

// CatalogStore persists books.
type CatalogStore interface {
	// ListBooks returns the books matching f with their average rating.
	ListBooks(ctx context.Context, f model.BookFilter) ([]model.Book, error)
	GetBook(ctx context.Context, id uint64) (*model.Book, error)
	// CreateBook fills b.ID.  A taken isbn is repoerr.ErrDuplicate.
	CreateBook(ctx context.Context, b *model.Book) error
	// UpdateBook locks the book, lets fn modify it and writes it back.
	UpdateBook(ctx context.Context, id uint64, fn func(b *model.Book) error) (*model.Book, error)
	DeleteBook(ctx context.Context, id uint64) error
}

// CatalogService manages books.  Writes are staff only.
type CatalogService struct {
	store    CatalogStore
	validate *validation.Validator
	log      *slog.Logger
}

func NewCatalogService(store CatalogStore, v *validation.Validator, log *slog.Logger) *CatalogService {
	return &CatalogService{store: store, validate: v, log: log}
}

func (s *CatalogService) List(ctx context.Context, f model.BookFilter) ([]model.Book, error) {
	return s.store.ListBooks(ctx, f)
}

func (s *CatalogService) Get(ctx context.Context, id uint64) (*model.Book, error) {
	b, err := s.store.GetBook(ctx, id)
	if errors.Is(err, repoerr.ErrNotFound) {
		return nil, apperr.ErrBookNotFound
	}
	return b, err
}

func (s *CatalogService) Create(ctx context.Context, caller policy.Caller, b *model.Book) error {
	if err := policy.StaffGatedWrite.Check(caller, policy.Write); err != nil {
		return err
	}
	if err := s.check(b); err != nil {
		return err
	}
	if err := s.store.CreateBook(ctx, b); err != nil {
		if errors.Is(err, repoerr.ErrDuplicate) {
			return apperr.ErrDuplicateISBN
		}
		return err
	}
	s.log.Info("book created", "book_id", b.ID, "by", caller.UserID)
	return nil
}

// Update applies patch to book id under a row lock, so copy counts moved
// by concurrent checkouts are not overwritten with stale values unless
// the patch sets them.
func (s *CatalogService) Update(ctx context.Context, caller policy.Caller, id uint64, patch model.BookPatch) (*model.Book, error) {
	if err := policy.StaffGatedWrite.Check(caller, policy.Write); err != nil {
		return nil, err
	}
	b, err := s.store.UpdateBook(ctx, id, func(b *model.Book) error {
		patch.Apply(b)
		return s.check(b)
	})
	switch {
	case errors.Is(err, repoerr.ErrNotFound):
		return nil, apperr.ErrBookNotFound
	case errors.Is(err, repoerr.ErrDuplicate):
		return nil, apperr.ErrDuplicateISBN
	case err != nil:
		return nil, err
	}
	s.log.Info("book updated", "book_id", id, "by", caller.UserID)
	return b, nil
}

func (s *CatalogService) Delete(ctx context.Context, caller policy.Caller, id uint64) error {
	if err := policy.StaffGatedWrite.Check(caller, policy.Write); err != nil {
		return err
	}
	err := s.store.DeleteBook(ctx, id)
	if errors.Is(err, repoerr.ErrNotFound) {
		return apperr.ErrBookNotFound
	}
	if err != nil {
		return err
	}
	s.log.Info("book deleted", "book_id", id, "by", caller.UserID)
	return nil
}

func (s *CatalogService) check(b *model.Book) error {
	if err := s.validate.Validate(b); err != nil {
		return err
	}
	if b.PublishedDate.IsZero() {
		return apperr.Validation("published_date", "This field is required.")
	}
	return nil
}
