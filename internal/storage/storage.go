package storage

import (
	"context"
	"errors"
	"time"

	"lending/internal/models"
)

// Sentinel errors returned by every Store implementation. Callers classify
// with errors.Is; engines wrap the driver cause alongside the sentinel.
var (
	// ErrNotFound means the referenced record id does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate means a uniqueness constraint was violated
	// (books.isbn, members.email, members.membership_number).
	ErrDuplicate = errors.New("duplicate value for unique field")

	// ErrReferenced means a delete was blocked because transactions or
	// fines still reference the record.
	ErrReferenced = errors.New("record is referenced by other records")
)

// Store defines the persistence operations for the lending domain.
//
// The ForUpdate variants take a row write lock and are only meaningful
// inside InTx; borrow/return use them so that concurrent requests touching
// the same book or member serialize instead of over-decrementing copies.
type Store interface {
	// Book operations
	CreateBook(ctx context.Context, book models.Book) (models.Book, error)
	GetBook(ctx context.Context, id int64) (models.Book, error)
	GetBookForUpdate(ctx context.Context, id int64) (models.Book, error)
	ListBooks(ctx context.Context) ([]models.Book, error)
	ListAvailableBooks(ctx context.Context) ([]models.Book, error)
	UpdateBook(ctx context.Context, book models.Book) (models.Book, error)
	DeleteBook(ctx context.Context, id int64) error

	// Member operations
	CreateMember(ctx context.Context, member models.Member) (models.Member, error)
	GetMember(ctx context.Context, id int64) (models.Member, error)
	GetMemberForUpdate(ctx context.Context, id int64) (models.Member, error)
	ListMembers(ctx context.Context) ([]models.Member, error)
	UpdateMember(ctx context.Context, member models.Member) (models.Member, error)
	DeleteMember(ctx context.Context, id int64) error

	// Transaction operations. Transactions are never deleted.
	CreateTransaction(ctx context.Context, txn models.Transaction) (models.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (models.Transaction, error)
	// GetTransactionForUpdate locks the transaction row until the
	// surrounding InTx callback finishes.
	GetTransactionForUpdate(ctx context.Context, id int64) (models.Transaction, error)
	ListOverdueTransactions(ctx context.Context, asOf time.Time) ([]models.Transaction, error)
	UpdateTransaction(ctx context.Context, txn models.Transaction) (models.Transaction, error)
	CountActiveTransactionsByMember(ctx context.Context, memberID int64) (int, error)
	CountActiveTransactionsByBook(ctx context.Context, bookID int64) (int, error)

	// Fine operations. Fines are created by late returns and mutated only
	// by payment.
	CreateFine(ctx context.Context, fine models.Fine) (models.Fine, error)
	GetFine(ctx context.Context, id int64) (models.Fine, error)
	// GetFineForUpdate locks the fine row until the surrounding InTx
	// callback finishes.
	GetFineForUpdate(ctx context.Context, id int64) (models.Fine, error)
	UpdateFine(ctx context.Context, fine models.Fine) (models.Fine, error)
	CountUnpaidFinesByMember(ctx context.Context, memberID int64) (int, error)

	// InTx runs fn against a Store bound to a single database transaction.
	// A nil return commits; an error (or panic) rolls back. Nested calls
	// reuse the already-open transaction.
	InTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}
