package stubs

import (
	"context"
	"errors"
	"testing"
	"time"

	"lending/internal/models"
	"lending/internal/storage"
)

func testBook(isbn string) models.Book {
	return models.Book{
		ISBN:            isbn,
		Title:           "Test Book",
		Author:          "Test Author",
		Category:        "fiction",
		Status:          models.BookStatusAvailable,
		TotalCopies:     2,
		AvailableCopies: 2,
	}
}

func testMember(email string) models.Member {
	return models.Member{
		Name:             "Test Member",
		Email:            email,
		MembershipNumber: "mn-" + email,
		Status:           models.MemberStatusActive,
	}
}

func testTransaction(bookID, memberID int64, borrowedAt time.Time) models.Transaction {
	return models.Transaction{
		BookID:     bookID,
		MemberID:   memberID,
		BorrowedAt: borrowedAt,
		DueDate:    borrowedAt.Add(14 * 24 * time.Hour),
		Status:     models.TransactionStatusActive,
	}
}

func TestMockStore_CreateBook(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	book, err := db.CreateBook(ctx, testBook("111"))
	if err != nil {
		t.Fatalf("Failed to create book: %v", err)
	}

	if book.ID == 0 {
		t.Fatal("Expected non-zero book ID")
	}
	if book.CreatedAt.IsZero() || book.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be set")
	}

	// Duplicate ISBN must be rejected
	_, err = db.CreateBook(ctx, testBook("111"))
	if !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate, got %v", err)
	}
}

func TestMockStore_GetBook(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	created, err := db.CreateBook(ctx, testBook("111"))
	if err != nil {
		t.Fatalf("Failed to create book: %v", err)
	}

	got, err := db.GetBook(ctx, created.ID)
	if err != nil {
		t.Fatalf("Failed to get book: %v", err)
	}
	if got.ISBN != "111" {
		t.Errorf("Expected ISBN 111, got %s", got.ISBN)
	}

	_, err = db.GetBook(ctx, created.ID+1)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMockStore_ListBooks(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	for _, isbn := range []string{"333", "111", "222"} {
		if _, err := db.CreateBook(ctx, testBook(isbn)); err != nil {
			t.Fatalf("Failed to create book: %v", err)
		}
	}

	books, err := db.ListBooks(ctx)
	if err != nil {
		t.Fatalf("Failed to list books: %v", err)
	}

	if len(books) != 3 {
		t.Fatalf("Expected 3 books, got %d", len(books))
	}

	// Books come back ordered by id (creation order)
	for i := 1; i < len(books); i++ {
		if books[i-1].ID >= books[i].ID {
			t.Errorf("Expected books ordered by id, got %d before %d", books[i-1].ID, books[i].ID)
		}
	}
}

func TestMockStore_ListAvailableBooks(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	available, err := db.CreateBook(ctx, testBook("111"))
	if err != nil {
		t.Fatalf("Failed to create book: %v", err)
	}

	borrowed := testBook("222")
	borrowed.Status = models.BookStatusBorrowed
	borrowed.AvailableCopies = 0
	if _, err := db.CreateBook(ctx, borrowed); err != nil {
		t.Fatalf("Failed to create book: %v", err)
	}

	books, err := db.ListAvailableBooks(ctx)
	if err != nil {
		t.Fatalf("Failed to list available books: %v", err)
	}

	if len(books) != 1 {
		t.Fatalf("Expected 1 available book, got %d", len(books))
	}
	if books[0].ID != available.ID {
		t.Errorf("Expected book %d, got %d", available.ID, books[0].ID)
	}
}

func TestMockStore_UpdateBook(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	created, err := db.CreateBook(ctx, testBook("111"))
	if err != nil {
		t.Fatalf("Failed to create book: %v", err)
	}

	created.Title = "Renamed"
	updated, err := db.UpdateBook(ctx, created)
	if err != nil {
		t.Fatalf("Failed to update book: %v", err)
	}

	if updated.Title != "Renamed" {
		t.Errorf("Expected title Renamed, got %s", updated.Title)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Error("Expected CreatedAt to be preserved on update")
	}

	// Updating a missing book fails
	missing := testBook("999")
	missing.ID = created.ID + 100
	if _, err := db.UpdateBook(ctx, missing); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	// Taking another book's ISBN fails
	other, err := db.CreateBook(ctx, testBook("222"))
	if err != nil {
		t.Fatalf("Failed to create book: %v", err)
	}
	other.ISBN = "111"
	if _, err := db.UpdateBook(ctx, other); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate, got %v", err)
	}
}

func TestMockStore_DeleteBook(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	book, err := db.CreateBook(ctx, testBook("111"))
	if err != nil {
		t.Fatalf("Failed to create book: %v", err)
	}

	if err := db.DeleteBook(ctx, book.ID); err != nil {
		t.Fatalf("Failed to delete book: %v", err)
	}
	if _, err := db.GetBook(ctx, book.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	// A referenced book cannot be deleted
	book, err = db.CreateBook(ctx, testBook("222"))
	if err != nil {
		t.Fatalf("Failed to create book: %v", err)
	}
	member, err := db.CreateMember(ctx, testMember("a@example.com"))
	if err != nil {
		t.Fatalf("Failed to create member: %v", err)
	}
	if _, err := db.CreateTransaction(ctx, testTransaction(book.ID, member.ID, time.Now().UTC())); err != nil {
		t.Fatalf("Failed to create transaction: %v", err)
	}

	if err := db.DeleteBook(ctx, book.ID); !errors.Is(err, storage.ErrReferenced) {
		t.Errorf("Expected ErrReferenced, got %v", err)
	}
}

func TestMockStore_CreateMember(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	member, err := db.CreateMember(ctx, testMember("a@example.com"))
	if err != nil {
		t.Fatalf("Failed to create member: %v", err)
	}
	if member.ID == 0 {
		t.Fatal("Expected non-zero member ID")
	}

	// Duplicate email must be rejected
	_, err = db.CreateMember(ctx, testMember("a@example.com"))
	if !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate for email, got %v", err)
	}

	// Duplicate membership number must be rejected
	dup := testMember("b@example.com")
	dup.MembershipNumber = member.MembershipNumber
	_, err = db.CreateMember(ctx, dup)
	if !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate for membership number, got %v", err)
	}
}

func TestMockStore_DeleteMember(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	member, err := db.CreateMember(ctx, testMember("a@example.com"))
	if err != nil {
		t.Fatalf("Failed to create member: %v", err)
	}

	if err := db.DeleteMember(ctx, member.ID); err != nil {
		t.Fatalf("Failed to delete member: %v", err)
	}

	// A member with fines cannot be deleted
	member, err = db.CreateMember(ctx, testMember("b@example.com"))
	if err != nil {
		t.Fatalf("Failed to create member: %v", err)
	}
	book, err := db.CreateBook(ctx, testBook("111"))
	if err != nil {
		t.Fatalf("Failed to create book: %v", err)
	}
	txn, err := db.CreateTransaction(ctx, testTransaction(book.ID, member.ID, time.Now().UTC()))
	if err != nil {
		t.Fatalf("Failed to create transaction: %v", err)
	}
	if _, err := db.CreateFine(ctx, models.Fine{MemberID: member.ID, TransactionID: txn.ID}); err != nil {
		t.Fatalf("Failed to create fine: %v", err)
	}

	if err := db.DeleteMember(ctx, member.ID); !errors.Is(err, storage.ErrReferenced) {
		t.Errorf("Expected ErrReferenced, got %v", err)
	}
}

func TestMockStore_ListOverdueTransactions(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	book, err := db.CreateBook(ctx, testBook("111"))
	if err != nil {
		t.Fatalf("Failed to create book: %v", err)
	}
	member, err := db.CreateMember(ctx, testMember("a@example.com"))
	if err != nil {
		t.Fatalf("Failed to create member: %v", err)
	}

	now := time.Now().UTC()

	// Due in the past and still active: overdue
	overdue, err := db.CreateTransaction(ctx, testTransaction(book.ID, member.ID, now.Add(-20*24*time.Hour)))
	if err != nil {
		t.Fatalf("Failed to create transaction: %v", err)
	}

	// Due in the future: not overdue
	if _, err := db.CreateTransaction(ctx, testTransaction(book.ID, member.ID, now)); err != nil {
		t.Fatalf("Failed to create transaction: %v", err)
	}

	// Due in the past but already returned: not overdue
	returned := testTransaction(book.ID, member.ID, now.Add(-30*24*time.Hour))
	returned.Status = models.TransactionStatusReturned
	returnedAt := now.Add(-10 * 24 * time.Hour)
	returned.ReturnedAt = &returnedAt
	if _, err := db.CreateTransaction(ctx, returned); err != nil {
		t.Fatalf("Failed to create transaction: %v", err)
	}

	txns, err := db.ListOverdueTransactions(ctx, now)
	if err != nil {
		t.Fatalf("Failed to list overdue transactions: %v", err)
	}

	if len(txns) != 1 {
		t.Fatalf("Expected 1 overdue transaction, got %d", len(txns))
	}
	if txns[0].ID != overdue.ID {
		t.Errorf("Expected transaction %d, got %d", overdue.ID, txns[0].ID)
	}
}

func TestMockStore_Counts(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	book, err := db.CreateBook(ctx, testBook("111"))
	if err != nil {
		t.Fatalf("Failed to create book: %v", err)
	}
	member, err := db.CreateMember(ctx, testMember("a@example.com"))
	if err != nil {
		t.Fatalf("Failed to create member: %v", err)
	}

	now := time.Now().UTC()

	active, err := db.CreateTransaction(ctx, testTransaction(book.ID, member.ID, now))
	if err != nil {
		t.Fatalf("Failed to create transaction: %v", err)
	}

	returned := testTransaction(book.ID, member.ID, now)
	returned.Status = models.TransactionStatusReturned
	if _, err := db.CreateTransaction(ctx, returned); err != nil {
		t.Fatalf("Failed to create transaction: %v", err)
	}

	count, err := db.CountActiveTransactionsByMember(ctx, member.ID)
	if err != nil {
		t.Fatalf("Failed to count member transactions: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 active transaction for member, got %d", count)
	}

	count, err = db.CountActiveTransactionsByBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("Failed to count book transactions: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 active transaction for book, got %d", count)
	}

	// One unpaid fine, one paid fine
	if _, err := db.CreateFine(ctx, models.Fine{MemberID: member.ID, TransactionID: active.ID}); err != nil {
		t.Fatalf("Failed to create fine: %v", err)
	}
	paidAt := now
	if _, err := db.CreateFine(ctx, models.Fine{MemberID: member.ID, TransactionID: active.ID, PaidAt: &paidAt}); err != nil {
		t.Fatalf("Failed to create fine: %v", err)
	}

	count, err = db.CountUnpaidFinesByMember(ctx, member.ID)
	if err != nil {
		t.Fatalf("Failed to count unpaid fines: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 unpaid fine, got %d", count)
	}
}

func TestMockStore_InTxCommit(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	err := db.InTx(ctx, func(tx storage.Store) error {
		_, err := tx.CreateBook(ctx, testBook("111"))
		return err
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}

	books, err := db.ListBooks(ctx)
	if err != nil {
		t.Fatalf("Failed to list books: %v", err)
	}
	if len(books) != 1 {
		t.Errorf("Expected committed book to be visible, got %d books", len(books))
	}
}

func TestMockStore_InTxRollback(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	book, err := db.CreateBook(ctx, testBook("111"))
	if err != nil {
		t.Fatalf("Failed to create book: %v", err)
	}

	boom := errors.New("boom")
	err = db.InTx(ctx, func(tx storage.Store) error {
		b, err := tx.GetBookForUpdate(ctx, book.ID)
		if err != nil {
			return err
		}
		b.AvailableCopies = 0
		if _, err := tx.UpdateBook(ctx, b); err != nil {
			return err
		}
		if _, err := tx.CreateBook(ctx, testBook("222")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected the callback error, got %v", err)
	}

	// Neither the update nor the insert survived the rollback
	got, err := db.GetBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("Failed to get book: %v", err)
	}
	if got.AvailableCopies != 2 {
		t.Errorf("Expected rollback to restore available copies, got %d", got.AvailableCopies)
	}

	books, err := db.ListBooks(ctx)
	if err != nil {
		t.Fatalf("Failed to list books: %v", err)
	}
	if len(books) != 1 {
		t.Errorf("Expected 1 book after rollback, got %d", len(books))
	}
}

func TestMockStore_ReturnedRecordsAreDetached(t *testing.T) {
	db := NewMockStore()
	ctx := context.Background()

	book, err := db.CreateBook(ctx, testBook("111"))
	if err != nil {
		t.Fatalf("Failed to create book: %v", err)
	}
	member, err := db.CreateMember(ctx, testMember("a@example.com"))
	if err != nil {
		t.Fatalf("Failed to create member: %v", err)
	}

	now := time.Now().UTC()
	txn := testTransaction(book.ID, member.ID, now)
	txn.Status = models.TransactionStatusReturned
	returnedAt := now
	txn.ReturnedAt = &returnedAt

	created, err := db.CreateTransaction(ctx, txn)
	if err != nil {
		t.Fatalf("Failed to create transaction: %v", err)
	}

	got, err := db.GetTransaction(ctx, created.ID)
	if err != nil {
		t.Fatalf("Failed to get transaction: %v", err)
	}

	// Mutating the returned copy must not leak into stored state
	*got.ReturnedAt = got.ReturnedAt.Add(time.Hour)

	again, err := db.GetTransaction(ctx, created.ID)
	if err != nil {
		t.Fatalf("Failed to get transaction: %v", err)
	}
	if !again.ReturnedAt.Equal(returnedAt) {
		t.Errorf("Expected stored ReturnedAt %v, got %v", returnedAt, again.ReturnedAt)
	}
}
