package ch

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"lending/internal/history"
)

var _ history.Recorder = (*Recorder)(nil)

// Recorder keeps the circulation-event history in ClickHouse. Events are
// append-only; the reporting queries aggregate over them.
type Recorder struct {
	conn clickhouse.Conn
}

// NewRecorder creates a new ClickHouse-backed recorder.
func NewRecorder(host string, port int, database, user, password string, useTLS bool) (*Recorder, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
	}

	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &Recorder{conn: conn}, nil
}

// Initialize creates the events table if it does not exist yet.
func (r *Recorder) Initialize(ctx context.Context) error {
	err := r.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS circulation_events (
			occurred_at DateTime,
			event_type LowCardinality(String),
			book_id Int64,
			member_id Int64,
			transaction_id Int64
		) ENGINE = MergeTree()
		ORDER BY occurred_at
	`)
	if err != nil {
		return fmt.Errorf("failed to create circulation_events table: %w", err)
	}
	return nil
}

// Record appends one circulation event.
func (r *Recorder) Record(ctx context.Context, event history.Event) error {
	err := r.conn.Exec(ctx, `INSERT INTO circulation_events (occurred_at, event_type, book_id, member_id, transaction_id) VALUES (?, ?, ?, ?, ?)`,
		event.OccurredAt, string(event.Type), event.BookID, event.MemberID, event.TransactionID)
	if err != nil {
		return fmt.Errorf("failed to record circulation event: %w", err)
	}
	return nil
}

// TopBooks returns the most-borrowed books since the given time, busiest
// first; ties break on book id.
func (r *Recorder) TopBooks(ctx context.Context, limit int, since time.Time) ([]history.BookStat, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT book_id, count() AS borrows
		FROM circulation_events
		WHERE event_type = 'borrow' AND occurred_at >= ?
		GROUP BY book_id
		ORDER BY borrows DESC, book_id ASC
		LIMIT ?`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top books: %w", err)
	}
	defer rows.Close()

	var stats []history.BookStat
	for rows.Next() {
		var stat history.BookStat
		if err := rows.Scan(&stat.BookID, &stat.Borrows); err != nil {
			return nil, fmt.Errorf("failed to scan book stat: %w", err)
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

// RecentActivity returns the latest events, newest first.
func (r *Recorder) RecentActivity(ctx context.Context, limit int) ([]history.Event, error) {
	rows, err := r.conn.Query(ctx, `SELECT occurred_at, event_type, book_id, member_id, transaction_id FROM circulation_events ORDER BY occurred_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent activity: %w", err)
	}
	defer rows.Close()

	var events []history.Event
	for rows.Next() {
		var (
			event     history.Event
			eventType string
		)
		if err := rows.Scan(&event.OccurredAt, &eventType, &event.BookID, &event.MemberID, &event.TransactionID); err != nil {
			return nil, fmt.Errorf("failed to scan circulation event: %w", err)
		}
		event.Type = history.EventType(eventType)
		events = append(events, event)
	}
	return events, rows.Err()
}

// Close closes the ClickHouse connection.
func (r *Recorder) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
