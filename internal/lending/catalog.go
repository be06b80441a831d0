package lending

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lending/internal/models"
	"lending/internal/storage"
)

// BookInput carries the caller-editable fields of a book.
type BookInput struct {
	ISBN        string
	Title       string
	Author      string
	Category    string
	TotalCopies int
}

// MemberInput carries the caller-editable fields of a member.
type MemberInput struct {
	Name  string
	Email string
}

// CreateBook registers a book with all copies available.
func (s *Service) CreateBook(ctx context.Context, in BookInput) (models.Book, error) {
	created, err := s.store.CreateBook(ctx, models.Book{
		ISBN:            in.ISBN,
		Title:           in.Title,
		Author:          in.Author,
		Category:        in.Category,
		Status:          models.BookStatusAvailable,
		TotalCopies:     in.TotalCopies,
		AvailableCopies: in.TotalCopies,
	})
	if err != nil {
		return models.Book{}, err
	}

	s.logger.Info("book created",
		zap.Int64("book_id", created.ID),
		zap.String("isbn", created.ISBN),
		zap.String("title", created.Title),
	)
	return created, nil
}

// GetBook returns the book with the given id.
func (s *Service) GetBook(ctx context.Context, id int64) (models.Book, error) {
	return s.store.GetBook(ctx, id)
}

// ListBooks returns all books ordered by id.
func (s *Service) ListBooks(ctx context.Context) ([]models.Book, error) {
	return s.store.ListBooks(ctx)
}

// ListAvailableBooks returns books with at least one copy on the shelf.
func (s *Service) ListAvailableBooks(ctx context.Context) ([]models.Book, error) {
	return s.store.ListAvailableBooks(ctx)
}

// UpdateBook overwrites the book's descriptive fields. Status and available
// copies are circulation state and stay untouched; the row is locked so a
// concurrent borrow cannot be lost under the overwrite.
func (s *Service) UpdateBook(ctx context.Context, id int64, in BookInput) (models.Book, error) {
	var updated models.Book
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		book, err := tx.GetBookForUpdate(ctx, id)
		if err != nil {
			return err
		}

		book.ISBN = in.ISBN
		book.Title = in.Title
		book.Author = in.Author
		book.Category = in.Category
		book.TotalCopies = in.TotalCopies

		updated, err = tx.UpdateBook(ctx, book)
		return err
	})
	if err != nil {
		return models.Book{}, err
	}

	s.logger.Info("book updated", zap.Int64("book_id", updated.ID))
	return updated, nil
}

// DeleteBook removes a book that has no active transactions.
func (s *Service) DeleteBook(ctx context.Context, id int64) error {
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		if _, err := tx.GetBookForUpdate(ctx, id); err != nil {
			return err
		}

		active, err := tx.CountActiveTransactionsByBook(ctx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("book %d has %d active transactions: %w", id, active, ErrBookHasActiveTransactions)
		}

		return tx.DeleteBook(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("book deleted", zap.Int64("book_id", id))
	return nil
}

// CreateMember registers a member with a generated membership number.
func (s *Service) CreateMember(ctx context.Context, in MemberInput) (models.Member, error) {
	created, err := s.store.CreateMember(ctx, models.Member{
		Name:             in.Name,
		Email:            in.Email,
		MembershipNumber: uuid.NewString(),
		Status:           models.MemberStatusActive,
	})
	if err != nil {
		return models.Member{}, err
	}

	s.logger.Info("member created",
		zap.Int64("member_id", created.ID),
		zap.String("membership_number", created.MembershipNumber),
	)
	return created, nil
}

// GetMember returns the member with the given id.
func (s *Service) GetMember(ctx context.Context, id int64) (models.Member, error) {
	return s.store.GetMember(ctx, id)
}

// ListMembers returns all members ordered by id.
func (s *Service) ListMembers(ctx context.Context) ([]models.Member, error) {
	return s.store.ListMembers(ctx)
}

// UpdateMember overwrites the member's name and email. Membership number
// and status are not caller-editable.
func (s *Service) UpdateMember(ctx context.Context, id int64, in MemberInput) (models.Member, error) {
	var updated models.Member
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		member, err := tx.GetMemberForUpdate(ctx, id)
		if err != nil {
			return err
		}

		member.Name = in.Name
		member.Email = in.Email

		updated, err = tx.UpdateMember(ctx, member)
		return err
	})
	if err != nil {
		return models.Member{}, err
	}

	s.logger.Info("member updated", zap.Int64("member_id", updated.ID))
	return updated, nil
}

// DeleteMember removes a member that has no active transactions and no
// unpaid fines.
func (s *Service) DeleteMember(ctx context.Context, id int64) error {
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		if _, err := tx.GetMemberForUpdate(ctx, id); err != nil {
			return err
		}

		active, err := tx.CountActiveTransactionsByMember(ctx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("member %d has %d active transactions: %w", id, active, ErrMemberHasActiveTransactions)
		}

		unpaid, err := tx.CountUnpaidFinesByMember(ctx, id)
		if err != nil {
			return err
		}
		if unpaid > 0 {
			return fmt.Errorf("member %d has %d unpaid fines: %w", id, unpaid, ErrUnpaidFines)
		}

		return tx.DeleteMember(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("member deleted", zap.Int64("member_id", id))
	return nil
}
