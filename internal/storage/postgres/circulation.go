package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"

	"lending/internal/models"
	"lending/internal/storage"
)

var transactionColumns = []any{
	"id", "book_id", "member_id", "borrowed_at", "due_date",
	"returned_at", "status", "created_at", "updated_at",
}

var fineColumns = []any{
	"id", "member_id", "transaction_id", "amount", "paid_at",
	"created_at", "updated_at",
}

func scanTransaction(row pgx.Row) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(
		&t.ID, &t.BookID, &t.MemberID, &t.BorrowedAt, &t.DueDate,
		&t.ReturnedAt, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

func scanFine(row pgx.Row) (models.Fine, error) {
	var f models.Fine
	err := row.Scan(
		&f.ID, &f.MemberID, &f.TransactionID, &f.Amount, &f.PaidAt,
		&f.CreatedAt, &f.UpdatedAt,
	)
	return f, err
}

// CreateTransaction inserts a borrow record and returns it with the
// generated id and timestamps filled in.
func (s *Store) CreateTransaction(ctx context.Context, txn models.Transaction) (models.Transaction, error) {
	sql, _, err := goqu.Dialect(dialectName).
		Insert(tableTransactions).
		Rows(goqu.Record{
			"book_id":     txn.BookID,
			"member_id":   txn.MemberID,
			"borrowed_at": txn.BorrowedAt,
			"due_date":    txn.DueDate,
			"returned_at": txn.ReturnedAt,
			"status":      string(txn.Status),
		}).
		Returning("id", "created_at", "updated_at").
		ToSQL()
	if err != nil {
		return models.Transaction{}, fmt.Errorf("failed to build insert transaction query: %w", err)
	}

	if err := s.q.QueryRow(ctx, sql).Scan(&txn.ID, &txn.CreatedAt, &txn.UpdatedAt); err != nil {
		return models.Transaction{}, fmt.Errorf("failed to create transaction: %w", mapConstraintError(err))
	}
	return txn, nil
}

// GetTransaction returns the transaction with the given id.
func (s *Store) GetTransaction(ctx context.Context, id int64) (models.Transaction, error) {
	return s.getTransaction(ctx, id, false)
}

// GetTransactionForUpdate returns the transaction with its row locked
// until the surrounding transaction finishes.
func (s *Store) GetTransactionForUpdate(ctx context.Context, id int64) (models.Transaction, error) {
	return s.getTransaction(ctx, id, true)
}

func (s *Store) getTransaction(ctx context.Context, id int64, forUpdate bool) (models.Transaction, error) {
	ds := goqu.Dialect(dialectName).
		From(tableTransactions).
		Select(transactionColumns...).
		Where(goqu.C("id").Eq(id))
	if forUpdate {
		ds = ds.ForUpdate(exp.Wait)
	}

	sql, _, err := ds.ToSQL()
	if err != nil {
		return models.Transaction{}, fmt.Errorf("failed to build select transaction query: %w", err)
	}

	txn, err := scanTransaction(s.q.QueryRow(ctx, sql))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Transaction{}, fmt.Errorf("transaction %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return models.Transaction{}, fmt.Errorf("failed to get transaction %d: %w", id, err)
	}
	return txn, nil
}

// ListOverdueTransactions returns active transactions whose due date is
// strictly before asOf, ordered by id.
func (s *Store) ListOverdueTransactions(ctx context.Context, asOf time.Time) ([]models.Transaction, error) {
	sql, _, err := goqu.Dialect(dialectName).
		From(tableTransactions).
		Select(transactionColumns...).
		Where(
			goqu.C("status").Eq(string(models.TransactionStatusActive)),
			goqu.C("due_date").Lt(asOf),
		).
		Order(goqu.C("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build list overdue transactions query: %w", err)
	}

	rows, err := s.q.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txns, nil
}

// UpdateTransaction replaces the stored transaction identified by txn.ID.
func (s *Store) UpdateTransaction(ctx context.Context, txn models.Transaction) (models.Transaction, error) {
	sql, _, err := goqu.Dialect(dialectName).
		Update(tableTransactions).
		Set(goqu.Record{
			"book_id":     txn.BookID,
			"member_id":   txn.MemberID,
			"borrowed_at": txn.BorrowedAt,
			"due_date":    txn.DueDate,
			"returned_at": txn.ReturnedAt,
			"status":      string(txn.Status),
			"updated_at":  goqu.L("now()"),
		}).
		Where(goqu.C("id").Eq(txn.ID)).
		Returning("created_at", "updated_at").
		ToSQL()
	if err != nil {
		return models.Transaction{}, fmt.Errorf("failed to build update transaction query: %w", err)
	}

	err = s.q.QueryRow(ctx, sql).Scan(&txn.CreatedAt, &txn.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Transaction{}, fmt.Errorf("transaction %d: %w", txn.ID, storage.ErrNotFound)
	}
	if err != nil {
		return models.Transaction{}, fmt.Errorf("failed to update transaction %d: %w", txn.ID, mapConstraintError(err))
	}
	return txn, nil
}

// CountActiveTransactionsByMember counts the member's active borrows.
func (s *Store) CountActiveTransactionsByMember(ctx context.Context, memberID int64) (int, error) {
	return s.countTransactions(ctx, goqu.C("member_id").Eq(memberID))
}

// CountActiveTransactionsByBook counts active borrows of the book.
func (s *Store) CountActiveTransactionsByBook(ctx context.Context, bookID int64) (int, error) {
	return s.countTransactions(ctx, goqu.C("book_id").Eq(bookID))
}

func (s *Store) countTransactions(ctx context.Context, owner exp.BooleanExpression) (int, error) {
	sql, _, err := goqu.Dialect(dialectName).
		From(tableTransactions).
		Select(goqu.COUNT(goqu.Star())).
		Where(owner, goqu.C("status").Eq(string(models.TransactionStatusActive))).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("failed to build count transactions query: %w", err)
	}

	var count int
	if err := s.q.QueryRow(ctx, sql).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// CreateFine inserts a fine and returns it with the generated id and
// timestamps filled in.
func (s *Store) CreateFine(ctx context.Context, fine models.Fine) (models.Fine, error) {
	sql, _, err := goqu.Dialect(dialectName).
		Insert(tableFines).
		Rows(goqu.Record{
			"member_id":      fine.MemberID,
			"transaction_id": fine.TransactionID,
			"amount":         fine.Amount,
			"paid_at":        fine.PaidAt,
		}).
		Returning("id", "created_at", "updated_at").
		ToSQL()
	if err != nil {
		return models.Fine{}, fmt.Errorf("failed to build insert fine query: %w", err)
	}

	if err := s.q.QueryRow(ctx, sql).Scan(&fine.ID, &fine.CreatedAt, &fine.UpdatedAt); err != nil {
		return models.Fine{}, fmt.Errorf("failed to create fine: %w", mapConstraintError(err))
	}
	return fine, nil
}

// GetFine returns the fine with the given id.
func (s *Store) GetFine(ctx context.Context, id int64) (models.Fine, error) {
	return s.getFine(ctx, id, false)
}

// GetFineForUpdate returns the fine with its row locked until the
// surrounding transaction finishes.
func (s *Store) GetFineForUpdate(ctx context.Context, id int64) (models.Fine, error) {
	return s.getFine(ctx, id, true)
}

func (s *Store) getFine(ctx context.Context, id int64, forUpdate bool) (models.Fine, error) {
	ds := goqu.Dialect(dialectName).
		From(tableFines).
		Select(fineColumns...).
		Where(goqu.C("id").Eq(id))
	if forUpdate {
		ds = ds.ForUpdate(exp.Wait)
	}

	sql, _, err := ds.ToSQL()
	if err != nil {
		return models.Fine{}, fmt.Errorf("failed to build select fine query: %w", err)
	}

	fine, err := scanFine(s.q.QueryRow(ctx, sql))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Fine{}, fmt.Errorf("fine %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return models.Fine{}, fmt.Errorf("failed to get fine %d: %w", id, err)
	}
	return fine, nil
}

// UpdateFine replaces the stored fine identified by fine.ID.
func (s *Store) UpdateFine(ctx context.Context, fine models.Fine) (models.Fine, error) {
	sql, _, err := goqu.Dialect(dialectName).
		Update(tableFines).
		Set(goqu.Record{
			"member_id":      fine.MemberID,
			"transaction_id": fine.TransactionID,
			"amount":         fine.Amount,
			"paid_at":        fine.PaidAt,
			"updated_at":     goqu.L("now()"),
		}).
		Where(goqu.C("id").Eq(fine.ID)).
		Returning("created_at", "updated_at").
		ToSQL()
	if err != nil {
		return models.Fine{}, fmt.Errorf("failed to build update fine query: %w", err)
	}

	err = s.q.QueryRow(ctx, sql).Scan(&fine.CreatedAt, &fine.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Fine{}, fmt.Errorf("fine %d: %w", fine.ID, storage.ErrNotFound)
	}
	if err != nil {
		return models.Fine{}, fmt.Errorf("failed to update fine %d: %w", fine.ID, mapConstraintError(err))
	}
	return fine, nil
}

// CountUnpaidFinesByMember counts the member's fines with no payment
// timestamp.
func (s *Store) CountUnpaidFinesByMember(ctx context.Context, memberID int64) (int, error) {
	sql, _, err := goqu.Dialect(dialectName).
		From(tableFines).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.C("member_id").Eq(memberID), goqu.C("paid_at").IsNull()).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("failed to build count fines query: %w", err)
	}

	var count int
	if err := s.q.QueryRow(ctx, sql).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count fines: %w", err)
	}
	return count, nil
}
