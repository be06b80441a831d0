package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"

	"lending/internal/models"
	"lending/internal/storage"
)

var bookColumns = []any{
	"id", "isbn", "title", "author", "category",
	"status", "total_copies", "available_copies",
	"created_at", "updated_at",
}

func scanBook(row pgx.Row) (models.Book, error) {
	var b models.Book
	err := row.Scan(
		&b.ID, &b.ISBN, &b.Title, &b.Author, &b.Category,
		&b.Status, &b.TotalCopies, &b.AvailableCopies,
		&b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

// CreateBook inserts a book and returns it with the generated id and
// timestamps filled in.
func (s *Store) CreateBook(ctx context.Context, book models.Book) (models.Book, error) {
	sql, _, err := goqu.Dialect(dialectName).
		Insert(tableBooks).
		Rows(goqu.Record{
			"isbn":             book.ISBN,
			"title":            book.Title,
			"author":           book.Author,
			"category":         book.Category,
			"status":           string(book.Status),
			"total_copies":     book.TotalCopies,
			"available_copies": book.AvailableCopies,
		}).
		Returning("id", "created_at", "updated_at").
		ToSQL()
	if err != nil {
		return models.Book{}, fmt.Errorf("failed to build insert book query: %w", err)
	}

	if err := s.q.QueryRow(ctx, sql).Scan(&book.ID, &book.CreatedAt, &book.UpdatedAt); err != nil {
		return models.Book{}, fmt.Errorf("failed to create book: %w", mapConstraintError(err))
	}
	return book, nil
}

// GetBook returns the book with the given id.
func (s *Store) GetBook(ctx context.Context, id int64) (models.Book, error) {
	return s.getBook(ctx, id, false)
}

// GetBookForUpdate returns the book with its row locked until the
// surrounding transaction finishes.
func (s *Store) GetBookForUpdate(ctx context.Context, id int64) (models.Book, error) {
	return s.getBook(ctx, id, true)
}

func (s *Store) getBook(ctx context.Context, id int64, forUpdate bool) (models.Book, error) {
	ds := goqu.Dialect(dialectName).
		From(tableBooks).
		Select(bookColumns...).
		Where(goqu.C("id").Eq(id))
	if forUpdate {
		ds = ds.ForUpdate(exp.Wait)
	}

	sql, _, err := ds.ToSQL()
	if err != nil {
		return models.Book{}, fmt.Errorf("failed to build select book query: %w", err)
	}

	book, err := scanBook(s.q.QueryRow(ctx, sql))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Book{}, fmt.Errorf("book %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return models.Book{}, fmt.Errorf("failed to get book %d: %w", id, err)
	}
	return book, nil
}

// ListBooks returns all books ordered by id.
func (s *Store) ListBooks(ctx context.Context) ([]models.Book, error) {
	return s.listBooks(ctx, goqu.Dialect(dialectName).
		From(tableBooks).
		Select(bookColumns...).
		Order(goqu.C("id").Asc()))
}

// ListAvailableBooks returns books with status available, ordered by id.
func (s *Store) ListAvailableBooks(ctx context.Context) ([]models.Book, error) {
	return s.listBooks(ctx, goqu.Dialect(dialectName).
		From(tableBooks).
		Select(bookColumns...).
		Where(goqu.C("status").Eq(string(models.BookStatusAvailable))).
		Order(goqu.C("id").Asc()))
}

func (s *Store) listBooks(ctx context.Context, ds *goqu.SelectDataset) ([]models.Book, error) {
	sql, _, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build list books query: %w", err)
	}

	rows, err := s.q.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	var books []models.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate books: %w", err)
	}
	return books, nil
}

// UpdateBook replaces the stored book identified by book.ID.
func (s *Store) UpdateBook(ctx context.Context, book models.Book) (models.Book, error) {
	sql, _, err := goqu.Dialect(dialectName).
		Update(tableBooks).
		Set(goqu.Record{
			"isbn":             book.ISBN,
			"title":            book.Title,
			"author":           book.Author,
			"category":         book.Category,
			"status":           string(book.Status),
			"total_copies":     book.TotalCopies,
			"available_copies": book.AvailableCopies,
			"updated_at":       goqu.L("now()"),
		}).
		Where(goqu.C("id").Eq(book.ID)).
		Returning("created_at", "updated_at").
		ToSQL()
	if err != nil {
		return models.Book{}, fmt.Errorf("failed to build update book query: %w", err)
	}

	err = s.q.QueryRow(ctx, sql).Scan(&book.CreatedAt, &book.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Book{}, fmt.Errorf("book %d: %w", book.ID, storage.ErrNotFound)
	}
	if err != nil {
		return models.Book{}, fmt.Errorf("failed to update book %d: %w", book.ID, mapConstraintError(err))
	}
	return book, nil
}

// DeleteBook removes the book. Rows in transactions referencing it keep
// the delete from going through via the foreign key.
func (s *Store) DeleteBook(ctx context.Context, id int64) error {
	sql, _, err := goqu.Dialect(dialectName).
		Delete(tableBooks).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build delete book query: %w", err)
	}

	tag, err := s.q.Exec(ctx, sql)
	if err != nil {
		return fmt.Errorf("failed to delete book %d: %w", id, mapConstraintError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("book %d: %w", id, storage.ErrNotFound)
	}
	return nil
}
