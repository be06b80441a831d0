package lending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lending/internal/history"
	"lending/internal/models"
	"lending/internal/storage"
)

const (
	// BorrowPeriod is how long a member may keep a book.
	BorrowPeriod = 14 * 24 * time.Hour

	// BorrowLimit is the maximum number of simultaneously active
	// transactions per member.
	BorrowLimit = 3

	// recordTimeout bounds the best-effort history write after a commit.
	recordTimeout = 3 * time.Second
)

// dailyFineRate is the fine accrued per whole day overdue.
var dailyFineRate = decimal.RequireFromString("0.50")

// Business-rule violations. The API layer maps these (plus
// storage.ErrDuplicate and storage.ErrReferenced) to HTTP 409.
var (
	ErrBookNotAvailable            = errors.New("book not available")
	ErrBorrowingLimitReached       = errors.New("maximum borrowing limit reached")
	ErrUnpaidFines                 = errors.New("member has unpaid fines")
	ErrTransactionNotActive        = errors.New("transaction is not active")
	ErrFineAlreadyPaid             = errors.New("fine already paid")
	ErrBookHasActiveTransactions   = errors.New("book has active transactions")
	ErrMemberHasActiveTransactions = errors.New("member has active transactions")
)

// IsConflict reports whether err is a business-rule violation.
func IsConflict(err error) bool {
	for _, sentinel := range []error{
		ErrBookNotAvailable,
		ErrBorrowingLimitReached,
		ErrUnpaidFines,
		ErrTransactionNotActive,
		ErrFineAlreadyPaid,
		ErrBookHasActiveTransactions,
		ErrMemberHasActiveTransactions,
		storage.ErrDuplicate,
		storage.ErrReferenced,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err means a referenced record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}

// Service implements the lending workflow on top of a storage.Store.
// Completed borrows and returns are reported to the history recorder
// best-effort; a recorder failure never fails the operation.
type Service struct {
	store    storage.Store
	recorder history.Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a lending service. A nil recorder disables history;
// a nil logger disables logging.
func NewService(store storage.Store, recorder history.Recorder, logger *zap.Logger) *Service {
	if recorder == nil {
		recorder = history.Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Borrow lends a book to a member. It fails with storage.ErrNotFound when
// the member or book does not exist, and with a conflict error when the
// book is unavailable, the member is at the borrowing limit, or the member
// has unpaid fines. The checks and writes run in one transaction with the
// member and book rows locked, so concurrent borrows serialize.
func (s *Service) Borrow(ctx context.Context, bookID, memberID int64) (models.Transaction, error) {
	now := s.now().UTC()

	var created models.Transaction
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		if _, err := tx.GetMemberForUpdate(ctx, memberID); err != nil {
			return err
		}

		book, err := tx.GetBookForUpdate(ctx, bookID)
		if err != nil {
			return err
		}
		if book.Status != models.BookStatusAvailable || book.AvailableCopies == 0 {
			return fmt.Errorf("book %d: %w", bookID, ErrBookNotAvailable)
		}

		active, err := tx.CountActiveTransactionsByMember(ctx, memberID)
		if err != nil {
			return err
		}
		if active >= BorrowLimit {
			return fmt.Errorf("member %d has %d active transactions: %w", memberID, active, ErrBorrowingLimitReached)
		}

		unpaid, err := tx.CountUnpaidFinesByMember(ctx, memberID)
		if err != nil {
			return err
		}
		if unpaid > 0 {
			return fmt.Errorf("member %d has %d unpaid fines: %w", memberID, unpaid, ErrUnpaidFines)
		}

		created, err = tx.CreateTransaction(ctx, models.Transaction{
			BookID:     bookID,
			MemberID:   memberID,
			BorrowedAt: now,
			DueDate:    now.Add(BorrowPeriod),
			Status:     models.TransactionStatusActive,
		})
		if err != nil {
			return err
		}

		book.AvailableCopies--
		if book.AvailableCopies == 0 {
			book.Status = models.BookStatusBorrowed
		}
		_, err = tx.UpdateBook(ctx, book)
		return err
	})
	if err != nil {
		return models.Transaction{}, err
	}

	s.logger.Info("book borrowed",
		zap.Int64("transaction_id", created.ID),
		zap.Int64("book_id", bookID),
		zap.Int64("member_id", memberID),
		zap.Time("due_date", created.DueDate),
	)
	s.record(ctx, history.Event{
		OccurredAt:    now,
		Type:          history.EventBorrow,
		BookID:        bookID,
		MemberID:      memberID,
		TransactionID: created.ID,
	})
	return created, nil
}

// Return closes an active transaction, restores the book's availability,
// and creates a fine when the return is past the due date. Returning an
// already-returned transaction is a conflict; without that guard a repeated
// return would push available_copies past total_copies.
func (s *Service) Return(ctx context.Context, transactionID int64) (models.Transaction, error) {
	now := s.now().UTC()

	var (
		returned models.Transaction
		fine     *models.Fine
	)
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		txn, err := tx.GetTransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if txn.Status != models.TransactionStatusActive {
			return fmt.Errorf("transaction %d: %w", transactionID, ErrTransactionNotActive)
		}

		book, err := tx.GetBookForUpdate(ctx, txn.BookID)
		if err != nil {
			return err
		}

		txn.ReturnedAt = &now
		txn.Status = models.TransactionStatusReturned
		returned, err = tx.UpdateTransaction(ctx, txn)
		if err != nil {
			return err
		}

		book.AvailableCopies++
		if book.AvailableCopies > 0 {
			book.Status = models.BookStatusAvailable
		}
		if _, err := tx.UpdateBook(ctx, book); err != nil {
			return err
		}

		if now.After(txn.DueDate) {
			created, err := tx.CreateFine(ctx, models.Fine{
				MemberID:      txn.MemberID,
				TransactionID: txn.ID,
				Amount:        dailyFineRate.Mul(decimal.NewFromInt(overdueDays(txn.DueDate, now))),
			})
			if err != nil {
				return err
			}
			fine = &created
		}
		return nil
	})
	if err != nil {
		return models.Transaction{}, err
	}

	fields := []zap.Field{
		zap.Int64("transaction_id", returned.ID),
		zap.Int64("book_id", returned.BookID),
		zap.Int64("member_id", returned.MemberID),
	}
	if fine != nil {
		fields = append(fields, zap.Int64("fine_id", fine.ID), zap.String("fine_amount", fine.Amount.String()))
	}
	s.logger.Info("book returned", fields...)
	s.record(ctx, history.Event{
		OccurredAt:    now,
		Type:          history.EventReturn,
		BookID:        returned.BookID,
		MemberID:      returned.MemberID,
		TransactionID: returned.ID,
	})
	return returned, nil
}

// ListOverdueTransactions returns the active transactions whose due date
// lies strictly in the past. Overdue-ness is computed here, never stored.
func (s *Service) ListOverdueTransactions(ctx context.Context) ([]models.Transaction, error) {
	return s.store.ListOverdueTransactions(ctx, s.now().UTC())
}

// PayFine stamps the fine as paid. Paying an already-paid fine is a
// conflict rather than a silent re-stamp of the payment time.
func (s *Service) PayFine(ctx context.Context, fineID int64) (models.Fine, error) {
	now := s.now().UTC()

	var paid models.Fine
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		fine, err := tx.GetFineForUpdate(ctx, fineID)
		if err != nil {
			return err
		}
		if fine.PaidAt != nil {
			return fmt.Errorf("fine %d: %w", fineID, ErrFineAlreadyPaid)
		}

		fine.PaidAt = &now
		paid, err = tx.UpdateFine(ctx, fine)
		return err
	})
	if err != nil {
		return models.Fine{}, err
	}

	s.logger.Info("fine paid",
		zap.Int64("fine_id", paid.ID),
		zap.Int64("member_id", paid.MemberID),
		zap.String("amount", paid.Amount.String()),
	)
	return paid, nil
}

// TopBooks reports the most-borrowed books since the given time.
func (s *Service) TopBooks(ctx context.Context, limit int, since time.Time) ([]history.BookStat, error) {
	return s.recorder.TopBooks(ctx, limit, since)
}

// RecentActivity reports the latest circulation events.
func (s *Service) RecentActivity(ctx context.Context, limit int) ([]history.Event, error) {
	return s.recorder.RecentActivity(ctx, limit)
}

// record reports a circulation event after a successful commit. The parent
// context may already be canceled by the client; the event is still worth
// keeping, so the write gets a detached context with its own deadline.
func (s *Service) record(ctx context.Context, event history.Event) {
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := s.recorder.Record(recordCtx, event); err != nil {
		s.logger.Warn("failed to record circulation event",
			zap.String("event_type", string(event.Type)),
			zap.Int64("transaction_id", event.TransactionID),
			zap.Error(err),
		)
	}
}

// overdueDays counts whole days between the due date and the return time.
func overdueDays(dueDate, returnedAt time.Time) int64 {
	return int64(returnedAt.Sub(dueDate) / (24 * time.Hour))
}
