package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookStatus is the closed set of shelf states for a book.
type BookStatus string

const (
	BookStatusAvailable   BookStatus = "available"
	BookStatusBorrowed    BookStatus = "borrowed"
	BookStatusReserved    BookStatus = "reserved"
	BookStatusMaintenance BookStatus = "maintenance"
)

// Valid reports whether s is one of the declared book statuses.
func (s BookStatus) Valid() bool {
	switch s {
	case BookStatusAvailable, BookStatusBorrowed, BookStatusReserved, BookStatusMaintenance:
		return true
	}
	return false
}

// MemberStatus is the closed set of membership states.
type MemberStatus string

const (
	MemberStatusActive    MemberStatus = "active"
	MemberStatusSuspended MemberStatus = "suspended"
)

// Valid reports whether s is one of the declared member statuses.
func (s MemberStatus) Valid() bool {
	switch s {
	case MemberStatusActive, MemberStatusSuspended:
		return true
	}
	return false
}

// TransactionStatus is the closed set of borrow-record states.
// "overdue" is part of the stored enum but no operation writes it;
// overdue-ness is computed from due_date when listing.
type TransactionStatus string

const (
	TransactionStatusActive   TransactionStatus = "active"
	TransactionStatusReturned TransactionStatus = "returned"
	TransactionStatusOverdue  TransactionStatus = "overdue"
)

// Valid reports whether s is one of the declared transaction statuses.
func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusActive, TransactionStatusReturned, TransactionStatusOverdue:
		return true
	}
	return false
}

// Book represents a title in the catalog together with its copy counts.
// AvailableCopies always stays within [0, TotalCopies].
type Book struct {
	ID              int64      `json:"id"`
	ISBN            string     `json:"isbn"`
	Title           string     `json:"title"`
	Author          string     `json:"author"`
	Category        string     `json:"category"`
	Status          BookStatus `json:"status"`
	TotalCopies     int        `json:"total_copies"`
	AvailableCopies int        `json:"available_copies"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Member represents a registered library member.
type Member struct {
	ID               int64        `json:"id"`
	Name             string       `json:"name"`
	Email            string       `json:"email"`
	MembershipNumber string       `json:"membership_number"`
	Status           MemberStatus `json:"status"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Transaction is one borrow record. It is created by a borrow, flipped to
// returned by a return, and never deleted.
type Transaction struct {
	ID         int64             `json:"id"`
	BookID     int64             `json:"book_id"`
	MemberID   int64             `json:"member_id"`
	BorrowedAt time.Time         `json:"borrowed_at"`
	DueDate    time.Time         `json:"due_date"`
	ReturnedAt *time.Time        `json:"returned_at"`
	Status     TransactionStatus `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Fine is the monetary penalty created when a transaction is returned late.
// Amount is a currency value; PaidAt is nil until the fine is paid.
type Fine struct {
	ID            int64           `json:"id"`
	MemberID      int64           `json:"member_id"`
	TransactionID int64           `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAt        *time.Time      `json:"paid_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
