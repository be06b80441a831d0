package history

import (
	"context"
	"errors"
	"time"
)

// ErrDisabled is returned by the no-op recorder's reporting queries when no
// history backend is configured.
var ErrDisabled = errors.New("circulation history is not configured")

// EventType tags a circulation event.
type EventType string

const (
	EventBorrow EventType = "borrow"
	EventReturn EventType = "return"
)

// Event is one circulation fact: a book was borrowed or returned.
type Event struct {
	OccurredAt    time.Time `json:"occurred_at"`
	Type          EventType `json:"type"`
	BookID        int64     `json:"book_id"`
	MemberID      int64     `json:"member_id"`
	TransactionID int64     `json:"transaction_id"`
}

// BookStat is a per-book borrow count for the reporting queries.
type BookStat struct {
	BookID  int64  `json:"book_id"`
	Borrows uint64 `json:"borrows"`
}

// Recorder sinks circulation events and answers reporting queries over
// them. Recording is best-effort from the service's point of view: a
// failing Recorder must never fail a lending operation.
type Recorder interface {
	Record(ctx context.Context, event Event) error

	// TopBooks returns the most-borrowed books since the given time,
	// busiest first.
	TopBooks(ctx context.Context, limit int, since time.Time) ([]BookStat, error)

	// RecentActivity returns the latest events, newest first.
	RecentActivity(ctx context.Context, limit int) ([]Event, error)

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}

// NopRecorder discards events; its queries report ErrDisabled. Used when no
// ClickHouse backend is configured.
type NopRecorder struct{}

// Nop returns the shared no-op recorder.
func Nop() NopRecorder { return NopRecorder{} }

func (NopRecorder) Record(ctx context.Context, event Event) error { return nil }

func (NopRecorder) TopBooks(ctx context.Context, limit int, since time.Time) ([]BookStat, error) {
	return nil, ErrDisabled
}

func (NopRecorder) RecentActivity(ctx context.Context, limit int) ([]Event, error) {
	return nil, ErrDisabled
}

func (NopRecorder) Initialize(ctx context.Context) error { return nil }

func (NopRecorder) Close() error { return nil }
