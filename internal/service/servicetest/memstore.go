// Package servicetest provides an in-memory implementation of every
// service store interface.  A single mutex is held for the whole of each
// atomic unit and writes made inside a failed unit are rolled back.
//
// The mutex serializes units whether or not the service asks for a row
// lock, so concurrency tests over this store cannot catch a missing lock.
// Instead every write to a book's copies, loans or reviews fails with
// ErrLockNotHeld unless the unit locked that book first, the way the
// MySQL repositories take the book row before touching its dependents.
// Lock contention and ordering are covered by the integration tests in
// internal/repository.
package servicetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/repository/repoerr"
	"github.com/iliyamo/librov/internal/service"
)

type refreshRow struct {
	userID  uint64
	exp     time.Time
	revoked bool
}

// Store is safe for concurrent use.
type Store struct {
	mu sync.Mutex

	users    map[uint64]*model.User
	tokens   map[string]*refreshRow
	books    map[uint64]*model.Book
	txs      map[uint64]*model.Transaction
	reviews  map[uint64]*model.Review
	notes    []model.Notification
	requests []model.BookRequest
	nextID   uint64

	// BatchErr, when set, is called before each InsertNotifications with
	// the zero-based call number.  A non-nil result fails that batch.
	BatchErr   func(call int, batch []model.Notification) error
	batchCalls int
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:   map[uint64]*model.User{},
		tokens:  map[string]*refreshRow{},
		books:   map[uint64]*model.Book{},
		txs:     map[uint64]*model.Transaction{},
		reviews: map[uint64]*model.Review{},
	}
}

var (
	_ service.CheckoutStore     = (*Store)(nil)
	_ service.ReviewStore       = (*Store)(nil)
	_ service.NotificationStore = (*Store)(nil)
	_ service.AccountStore      = (*Store)(nil)
	_ service.CatalogStore      = (*Store)(nil)
	_ service.RequestStore      = (*Store)(nil)
)

func (s *Store) id() uint64 {
	s.nextID++
	return s.nextID
}

// AddUser seeds an active account.
func (s *Store) AddUser(username string, staff bool) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &model.User{
		ID:               s.id(),
		Username:         username,
		IsStaff:          staff,
		IsActive:         true,
		DateOfMembership: model.NewDate(time.Now()),
	}
	s.users[u.ID] = u
	cp := *u
	return &cp
}

// AddBook seeds a catalog entry.
func (s *Store) AddBook(title string, copies uint32) *model.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	b := &model.Book{
		ID:              id,
		Title:           title,
		Author:          "Author of " + title,
		ISBN:            fmt.Sprintf("978%010d", id),
		PublishedDate:   model.NewDate(time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)),
		AvailableCopies: copies,
	}
	s.books[b.ID] = b
	cp := *b
	return &cp
}

// Book returns a snapshot of book id, or nil.
func (s *Store) Book(id uint64) *model.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return nil
	}
	cp := *b
	return &cp
}

// Transactions returns a snapshot of every transaction.
func (s *Store) Transactions() []model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Transaction, 0, len(s.txs))
	for _, t := range s.txs {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Reviews returns a snapshot of every review.
func (s *Store) Reviews() []model.Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Review, 0, len(s.reviews))
	for _, r := range s.reviews {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Notifications returns a snapshot of every notification.
func (s *Store) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Notification(nil), s.notes...)
}

// ErrLockNotHeld reports a write to a book's rows in a unit that never
// locked the book.
var ErrLockNotHeld = errors.New("servicetest: book written without holding its row lock")

// tx records undo steps and the books locked inside an atomic unit.
type tx struct {
	s      *Store
	undo   []func()
	locked map[uint64]bool
}

func (t *tx) lock(bookID uint64) { t.locked[bookID] = true }

func (t *tx) requireLock(bookID uint64) error {
	if !t.locked[bookID] {
		return fmt.Errorf("book %d: %w", bookID, ErrLockNotHeld)
	}
	return nil
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
}

func (s *Store) inTx(fn func(t *tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &tx{s: s, locked: map[uint64]bool{}}
	if err := fn(t); err != nil {
		t.rollback()
		return err
	}
	return nil
}

// ---- checkout ----

func (s *Store) InCheckoutTx(ctx context.Context, fn func(tx service.CheckoutTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.inTx(func(t *tx) error { return fn(checkoutTx{t}) })
}

type checkoutTx struct{ *tx }

func (t checkoutTx) LockBook(_ context.Context, bookID uint64) (*model.Book, error) {
	b, ok := t.s.books[bookID]
	if !ok {
		return nil, repoerr.ErrNotFound
	}
	t.lock(bookID)
	cp := *b
	return &cp, nil
}

func (t checkoutTx) HasActiveTransaction(_ context.Context, userID, bookID uint64) (bool, error) {
	for _, x := range t.s.txs {
		if x.UserID == userID && x.BookID == bookID && x.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (t checkoutTx) InsertTransaction(ctx context.Context, x *model.Transaction) error {
	if err := t.requireLock(x.BookID); err != nil {
		return err
	}
	if active, _ := t.HasActiveTransaction(ctx, x.UserID, x.BookID); active {
		return repoerr.ErrDuplicate
	}
	if _, ok := t.s.users[x.UserID]; !ok {
		return repoerr.ErrNotFound
	}
	x.ID = t.s.id()
	cp := *x
	t.s.txs[x.ID] = &cp
	id := x.ID
	t.undo = append(t.undo, func() { delete(t.s.txs, id) })
	return nil
}

func (t checkoutTx) DecrementCopies(_ context.Context, bookID uint64) error {
	if err := t.requireLock(bookID); err != nil {
		return err
	}
	b, ok := t.s.books[bookID]
	if !ok || b.AvailableCopies == 0 {
		return repoerr.ErrNoCopies
	}
	b.AvailableCopies--
	t.undo = append(t.undo, func() { b.AvailableCopies++ })
	return nil
}

func (t checkoutTx) IncrementCopies(_ context.Context, bookID uint64) error {
	if err := t.requireLock(bookID); err != nil {
		return err
	}
	b, ok := t.s.books[bookID]
	if !ok {
		return repoerr.ErrNotFound
	}
	b.AvailableCopies++
	t.undo = append(t.undo, func() { b.AvailableCopies-- })
	return nil
}

func (t checkoutTx) LockTransaction(_ context.Context, transactionID, userID uint64) (*model.Transaction, error) {
	x, ok := t.s.txs[transactionID]
	if !ok || x.UserID != userID {
		return nil, repoerr.ErrNotFound
	}
	t.lock(x.BookID)
	cp := *x
	if b, ok := t.s.books[x.BookID]; ok {
		cp.BookTitle = b.Title
	}
	return &cp, nil
}

func (t checkoutTx) MarkReturned(_ context.Context, transactionID uint64, at time.Time) error {
	x, ok := t.s.txs[transactionID]
	if !ok {
		return repoerr.ErrNotFound
	}
	if err := t.requireLock(x.BookID); err != nil {
		return err
	}
	if !x.Active() {
		return repoerr.ErrConflict
	}
	returned := at
	x.ReturnDate = &returned
	t.undo = append(t.undo, func() { x.ReturnDate = nil })
	return nil
}

// ---- reviews ----

func (s *Store) InReviewTx(ctx context.Context, fn func(tx service.ReviewTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.inTx(func(t *tx) error { return fn(reviewTx{t}) })
}

type reviewTx struct{ *tx }

func (t reviewTx) LockBook(_ context.Context, bookID uint64) (*model.Book, error) {
	b, ok := t.s.books[bookID]
	if !ok {
		return nil, repoerr.ErrNotFound
	}
	t.lock(bookID)
	cp := *b
	return &cp, nil
}

func (t reviewTx) UpsertReview(_ context.Context, r *model.Review) (bool, error) {
	if err := t.requireLock(r.BookID); err != nil {
		return false, err
	}
	for _, existing := range t.s.reviews {
		if existing.BookID == r.BookID && existing.UserID == r.UserID {
			prev := *existing
			existing.ReviewText = r.ReviewText
			existing.Rating = r.Rating
			existing.UpdatedAt = r.UpdatedAt
			t.undo = append(t.undo, func() { *existing = prev })
			*r = t.s.decorateReview(*existing)
			return false, nil
		}
	}
	if _, ok := t.s.users[r.UserID]; !ok {
		return false, repoerr.ErrNotFound
	}
	r.ID = t.s.id()
	cp := *r
	t.s.reviews[r.ID] = &cp
	id := r.ID
	t.undo = append(t.undo, func() { delete(t.s.reviews, id) })
	*r = t.s.decorateReview(cp)
	return true, nil
}

func (t reviewTx) LockReview(_ context.Context, id uint64) (*model.Review, error) {
	r, ok := t.s.reviews[id]
	if !ok {
		return nil, repoerr.ErrNotFound
	}
	t.lock(r.BookID)
	cp := t.s.decorateReview(*r)
	return &cp, nil
}

func (t reviewTx) UpdateReview(_ context.Context, r *model.Review) error {
	existing, ok := t.s.reviews[r.ID]
	if !ok {
		return repoerr.ErrNotFound
	}
	if err := t.requireLock(existing.BookID); err != nil {
		return err
	}
	prev := *existing
	existing.ReviewText = r.ReviewText
	existing.Rating = r.Rating
	existing.UpdatedAt = r.UpdatedAt
	t.undo = append(t.undo, func() { *existing = prev })
	return nil
}

func (t reviewTx) DeleteReview(_ context.Context, id uint64) error {
	r, ok := t.s.reviews[id]
	if !ok {
		return repoerr.ErrNotFound
	}
	if err := t.requireLock(r.BookID); err != nil {
		return err
	}
	delete(t.s.reviews, id)
	t.undo = append(t.undo, func() { t.s.reviews[id] = r })
	return nil
}

func (s *Store) decorateReview(r model.Review) model.Review {
	if b, ok := s.books[r.BookID]; ok {
		r.BookTitle = b.Title
	}
	if u, ok := s.users[r.UserID]; ok {
		r.Username = u.Username
	}
	return r
}

func (s *Store) GetReview(_ context.Context, id uint64) (*model.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return nil, repoerr.ErrNotFound
	}
	cp := s.decorateReview(*r)
	return &cp, nil
}

func (s *Store) ListReviews(_ context.Context, f model.ReviewFilter) ([]model.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Review{}
	for _, r := range s.reviews {
		if f.BookID != 0 && r.BookID != f.BookID {
			continue
		}
		if f.UserID != 0 && r.UserID != f.UserID {
			continue
		}
		out = append(out, s.decorateReview(*r))
	}
	sort.Slice(out, func(i, j int) bool {
		switch f.Ordering {
		case "rating":
			if out[i].Rating != out[j].Rating {
				return out[i].Rating < out[j].Rating
			}
		case "-rating":
			if out[i].Rating != out[j].Rating {
				return out[i].Rating > out[j].Rating
			}
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) RatingStats(_ context.Context, bookID uint64) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, count := s.ratingStats(bookID)
	return sum, count, nil
}

func (s *Store) ratingStats(bookID uint64) (sum, count int64) {
	for _, r := range s.reviews {
		if r.BookID == bookID {
			sum += int64(r.Rating)
			count++
		}
	}
	return sum, count
}

// ---- notifications ----

func (s *Store) UserExists(_ context.Context, id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	return ok, nil
}

func (s *Store) InsertNotification(_ context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[n.RecipientID]
	if !ok {
		return repoerr.ErrNotFound
	}
	n.ID = s.id()
	n.Recipient = u.Username
	s.notes = append(s.notes, *n)
	return nil
}

func (s *Store) ListUserIDs(_ context.Context) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) InsertNotifications(_ context.Context, batch []model.Notification) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := s.batchCalls
	s.batchCalls++
	if s.BatchErr != nil {
		if err := s.BatchErr(call, batch); err != nil {
			return 0, err
		}
	}
	for _, n := range batch {
		u, ok := s.users[n.RecipientID]
		if !ok {
			return 0, repoerr.ErrNotFound
		}
		n.Recipient = u.Username
		n.ID = s.id()
		s.notes = append(s.notes, n)
	}
	return int64(len(batch)), nil
}

func (s *Store) ListNotifications(_ context.Context, recipientID uint64) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Notification{}
	for _, n := range s.notes {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) ListOverdueTransactions(_ context.Context, now time.Time) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Transaction{}
	for _, t := range s.txs {
		if t.Overdue(now) {
			cp := *t
			if b, ok := s.books[t.BookID]; ok {
				cp.BookTitle = b.Title
			}
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- accounts ----

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return repoerr.ErrDuplicate
		}
	}
	u.ID = s.id()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repoerr.ErrNotFound
}

func (s *Store) GetUserByID(_ context.Context, id uint64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repoerr.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[tokenHash]; ok {
		return repoerr.ErrDuplicate
	}
	s.tokens[tokenHash] = &refreshRow{userID: userID, exp: exp}
	return nil
}

func (s *Store) RotateRefresh(_ context.Context, oldHash, newHash string, exp, now time.Time) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tokens[oldHash]
	if !ok || row.revoked || !now.Before(row.exp) {
		return 0, repoerr.ErrNotFound
	}
	row.revoked = true
	s.tokens[newHash] = &refreshRow{userID: row.userID, exp: exp}
	return row.userID, nil
}

func (s *Store) ListUserTransactions(_ context.Context, userID uint64) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Transaction{}
	for _, t := range s.txs {
		if t.UserID == userID {
			cp := *t
			if b, ok := s.books[t.BookID]; ok {
				cp.BookTitle = b.Title
			}
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// ---- catalog ----

func (s *Store) withRating(b model.Book) model.Book {
	sum, count := s.ratingStats(b.ID)
	b.AverageRating = service.Average(sum, count)
	return b
}

func (s *Store) ListBooks(_ context.Context, f model.BookFilter) ([]model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Book{}
	for _, b := range s.books {
		if !matchBook(*b, f) {
			continue
		}
		out = append(out, s.withRating(*b))
	}
	desc := strings.HasPrefix(f.Ordering, "-")
	field := strings.TrimPrefix(f.Ordering, "-")
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if desc {
			a, b = b, a
		}
		switch field {
		case "title":
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		case "published_date":
			if !a.PublishedDate.Equal(b.PublishedDate.Time) {
				return a.PublishedDate.Before(b.PublishedDate.Time)
			}
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func matchBook(b model.Book, f model.BookFilter) bool {
	eq := func(want, got string) bool { return want == "" || strings.EqualFold(want, got) }
	if !eq(f.Title, b.Title) || !eq(f.Author, b.Author) || !eq(f.ISBN, b.ISBN) || !eq(f.Genre, b.Genre) {
		return false
	}
	if f.AvailableCopies != nil && *f.AvailableCopies != b.AvailableCopies {
		return false
	}
	if q := strings.ToLower(f.Search); q != "" {
		hay := strings.ToLower(b.Title + "\x00" + b.Author + "\x00" + b.ISBN + "\x00" + b.Genre)
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}

func (s *Store) GetBook(_ context.Context, id uint64) (*model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return nil, repoerr.ErrNotFound
	}
	cp := s.withRating(*b)
	return &cp, nil
}

func (s *Store) CreateBook(_ context.Context, b *model.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isbnTaken(b.ISBN, 0) {
		return repoerr.ErrDuplicate
	}
	b.ID = s.id()
	cp := *b
	cp.AverageRating = nil
	s.books[b.ID] = &cp
	return nil
}

func (s *Store) isbnTaken(isbn string, except uint64) bool {
	for _, other := range s.books {
		if other.ID != except && other.ISBN == isbn {
			return true
		}
	}
	return false
}

func (s *Store) UpdateBook(_ context.Context, id uint64, fn func(b *model.Book) error) (*model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return nil, repoerr.ErrNotFound
	}
	next := *b
	if err := fn(&next); err != nil {
		return nil, err
	}
	if s.isbnTaken(next.ISBN, id) {
		return nil, repoerr.ErrDuplicate
	}
	next.ID = id
	*b = next
	out := s.withRating(next)
	return &out, nil
}

func (s *Store) DeleteBook(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[id]; !ok {
		return repoerr.ErrNotFound
	}
	delete(s.books, id)
	for tid, t := range s.txs {
		if t.BookID == id {
			delete(s.txs, tid)
		}
	}
	for rid, r := range s.reviews {
		if r.BookID == id {
			delete(s.reviews, rid)
		}
	}
	return nil
}

// ---- requests ----

func (s *Store) CreateBookRequest(_ context.Context, r *model.BookRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[r.UserID]
	if !ok {
		return repoerr.ErrNotFound
	}
	r.ID = s.id()
	r.Username = u.Username
	s.requests = append(s.requests, *r)
	return nil
}

func (s *Store) ListBookRequests(_ context.Context) ([]model.BookRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]model.BookRequest{}, s.requests...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// ErrInjected is a convenience failure for BatchErr hooks.
var ErrInjected = errors.New("injected failure")
