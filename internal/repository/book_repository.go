package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql" // dialect registration
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/repository/repoerr"
)

var dialect = goqu.Dialect("mysql")

// BookRepo reads and writes the books table.  Listings are built with goqu
// and scanned with sqlx; locking reads run inside the caller's *sql.Tx.
type BookRepo struct {
	db *sql.DB
	x  *sqlx.DB
}

func NewBookRepo(db *sql.DB) *BookRepo {
	return &BookRepo{db: db, x: sqlx.NewDb(db, "mysql")}
}

// averageRating is the rounded mean of the book's ratings, NULL without
// reviews.
var averageRating = goqu.L("(SELECT ROUND(AVG(`r`.`rating`), 2) FROM `reviews` AS `r` WHERE `r`.`book_id` = `b`.`id`)").As("average_rating")

func bookSelect() *goqu.SelectDataset {
	return dialect.From(goqu.T("books").As("b")).Prepared(true).Select(
		goqu.I("b.id"), goqu.I("b.title"), goqu.I("b.author"), goqu.I("b.genre"),
		goqu.I("b.isbn"), goqu.I("b.published_date"), goqu.I("b.available_copies"),
		averageRating,
	)
}

// escapeLike quotes LIKE wildcards so search text matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// buildBookList renders the catalog query for f.
func buildBookList(f model.BookFilter) (string, []interface{}, error) {
	ds := bookSelect()
	exact := []struct {
		col string
		val string
	}{
		{"b.title", f.Title}, {"b.author", f.Author}, {"b.isbn", f.ISBN}, {"b.genre", f.Genre},
	}
	for _, e := range exact {
		if e.val != "" {
			ds = ds.Where(goqu.I(e.col).Eq(e.val))
		}
	}
	if f.AvailableCopies != nil {
		ds = ds.Where(goqu.I("b.available_copies").Eq(*f.AvailableCopies))
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		pat := "%" + escapeLike(q) + "%"
		ds = ds.Where(goqu.Or(
			goqu.I("b.title").ILike(pat),
			goqu.I("b.author").ILike(pat),
			goqu.I("b.isbn").ILike(pat),
			goqu.I("b.genre").ILike(pat),
		))
	}

	desc := strings.HasPrefix(f.Ordering, "-")
	switch strings.TrimPrefix(f.Ordering, "-") {
	case "title", "published_date":
		col := goqu.I("b." + strings.TrimPrefix(f.Ordering, "-"))
		if desc {
			ds = ds.Order(col.Desc(), goqu.I("b.id").Asc())
		} else {
			ds = ds.Order(col.Asc(), goqu.I("b.id").Asc())
		}
	default:
		ds = ds.Order(goqu.I("b.id").Asc())
	}
	return ds.ToSQL()
}

// List returns the books matching f with their average rating.
func (r *BookRepo) List(ctx context.Context, f model.BookFilter) ([]model.Book, error) {
	q, args, err := buildBookList(f)
	if err != nil {
		return nil, err
	}
	books := []model.Book{}
	if err := r.x.SelectContext(ctx, &books, q, args...); err != nil {
		return nil, err
	}
	return books, nil
}

// GetByID returns one book with its average rating.
func (r *BookRepo) GetByID(ctx context.Context, id uint64) (*model.Book, error) {
	q, args, err := bookSelect().Where(goqu.I("b.id").Eq(id)).ToSQL()
	if err != nil {
		return nil, err
	}
	var b model.Book
	if err := r.x.GetContext(ctx, &b, q, args...); err != nil {
		return nil, repoerr.Translate(err)
	}
	return &b, nil
}

// Create inserts b and fills its ID.  A taken isbn is repoerr.ErrDuplicate.
func (r *BookRepo) Create(ctx context.Context, b *model.Book) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO books (title, author, isbn, genre, published_date, available_copies) VALUES (?,?,?,?,?,?)`,
		b.Title, b.Author, b.ISBN, b.Genre, b.PublishedDate, b.AvailableCopies)
	if err != nil {
		return repoerr.Translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	b.AverageRating = nil
	return nil
}

// Update locks book id, applies fn and writes every column back.
func (r *BookRepo) Update(ctx context.Context, id uint64, fn func(b *model.Book) error) (*model.Book, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := r.LockTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(b); err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE books SET title=?, author=?, isbn=?, genre=?, published_date=?, available_copies=? WHERE id=?`,
		b.Title, b.Author, b.ISBN, b.Genre, b.PublishedDate, b.AvailableCopies, id)
	if err != nil {
		return nil, repoerr.Translate(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return r.GetByID(ctx, id)
}

// Delete removes a book; its transactions and reviews cascade.
func (r *BookRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM books WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repoerr.ErrNotFound
	}
	return nil
}

const bookLockColumns = "id, title, author, genre, isbn, published_date, available_copies"

// LockTx reads book id holding an exclusive row lock until tx ends.
func (r *BookRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Book, error) {
	var b model.Book
	err := tx.QueryRowContext(ctx, "SELECT "+bookLockColumns+" FROM books WHERE id=? FOR UPDATE", id).Scan(
		&b.ID, &b.Title, &b.Author, &b.Genre, &b.ISBN, &b.PublishedDate, &b.AvailableCopies)
	if err != nil {
		return nil, repoerr.Translate(err)
	}
	return &b, nil
}

// DecrementCopiesTx takes one copy.  The guard keeps the count from going
// negative even without a prior lock; no matching row is repoerr.ErrNoCopies.
func (r *BookRepo) DecrementCopiesTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE books SET available_copies = available_copies - 1 WHERE id=? AND available_copies > 0", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return repoerr.ErrNoCopies
	}
	return nil
}

// IncrementCopiesTx puts one copy back.
func (r *BookRepo) IncrementCopiesTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE books SET available_copies = available_copies + 1 WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return repoerr.ErrNotFound
	}
	return nil
}
