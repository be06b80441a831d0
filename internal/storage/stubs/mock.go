package stubs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"lending/internal/models"
	"lending/internal/storage"
)

// Compile-time check that the mock satisfies the storage contract.
var _ storage.Store = (*MockStore)(nil)

// mockState holds all records. InTx clones it, runs the callback against
// the clone, and swaps it in on success, so rollback semantics match the
// real engine.
type mockState struct {
	books        map[int64]models.Book
	members      map[int64]models.Member
	transactions map[int64]models.Transaction
	fines        map[int64]models.Fine

	nextBookID        int64
	nextMemberID      int64
	nextTransactionID int64
	nextFineID        int64
}

func newMockState() *mockState {
	return &mockState{
		books:             make(map[int64]models.Book),
		members:           make(map[int64]models.Member),
		transactions:      make(map[int64]models.Transaction),
		fines:             make(map[int64]models.Fine),
		nextBookID:        1,
		nextMemberID:      1,
		nextTransactionID: 1,
		nextFineID:        1,
	}
}

func (s *mockState) clone() *mockState {
	c := &mockState{
		books:             make(map[int64]models.Book, len(s.books)),
		members:           make(map[int64]models.Member, len(s.members)),
		transactions:      make(map[int64]models.Transaction, len(s.transactions)),
		fines:             make(map[int64]models.Fine, len(s.fines)),
		nextBookID:        s.nextBookID,
		nextMemberID:      s.nextMemberID,
		nextTransactionID: s.nextTransactionID,
		nextFineID:        s.nextFineID,
	}
	for id, b := range s.books {
		c.books[id] = b
	}
	for id, m := range s.members {
		c.members[id] = m
	}
	for id, t := range s.transactions {
		c.transactions[id] = copyTransaction(t)
	}
	for id, f := range s.fines {
		c.fines[id] = copyFine(f)
	}
	return c
}

// copyTransaction detaches the nullable pointer field so callers cannot
// mutate stored state through a returned record.
func copyTransaction(t models.Transaction) models.Transaction {
	if t.ReturnedAt != nil {
		v := *t.ReturnedAt
		t.ReturnedAt = &v
	}
	return t
}

func copyFine(f models.Fine) models.Fine {
	if f.PaidAt != nil {
		v := *f.PaidAt
		f.PaidAt = &v
	}
	return f
}

// MockStore is an in-memory implementation of storage.Store for tests and
// for running the service with USE_MOCK_DB=true.
type MockStore struct {
	mu    sync.RWMutex
	state *mockState
	tx    bool // transaction-bound instance; the root store holds the lock
}

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{state: newMockState()}
}

func (m *MockStore) lock() func() {
	if m.tx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *MockStore) rlock() func() {
	if m.tx {
		return func() {}
	}
	m.mu.RLock()
	return m.mu.RUnlock
}

// InTx clones the state, runs fn against the clone, and swaps it in when fn
// returns nil. An error discards the clone, leaving state untouched.
func (m *MockStore) InTx(ctx context.Context, fn func(storage.Store) error) error {
	if m.tx {
		return fn(m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	work := &MockStore{state: m.state.clone(), tx: true}
	if err := fn(work); err != nil {
		return err
	}
	m.state = work.state
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MockStore) Close() error { return nil }

// --- Book operations ---

// CreateBook stores a new book, enforcing ISBN uniqueness.
func (m *MockStore) CreateBook(ctx context.Context, book models.Book) (models.Book, error) {
	defer m.lock()()

	if !book.Status.Valid() {
		return models.Book{}, fmt.Errorf("invalid book status %q", book.Status)
	}
	for _, b := range m.state.books {
		if b.ISBN == book.ISBN {
			return models.Book{}, fmt.Errorf("books.isbn %q: %w", book.ISBN, storage.ErrDuplicate)
		}
	}

	now := time.Now().UTC()
	book.ID = m.state.nextBookID
	m.state.nextBookID++
	book.CreatedAt = now
	book.UpdatedAt = now
	m.state.books[book.ID] = book
	return book, nil
}

// GetBook returns the book with the given id.
func (m *MockStore) GetBook(ctx context.Context, id int64) (models.Book, error) {
	defer m.rlock()()

	book, ok := m.state.books[id]
	if !ok {
		return models.Book{}, fmt.Errorf("book %d: %w", id, storage.ErrNotFound)
	}
	return book, nil
}

// GetBookForUpdate behaves like GetBook; the mock's single lock already
// serializes transactions.
func (m *MockStore) GetBookForUpdate(ctx context.Context, id int64) (models.Book, error) {
	return m.GetBook(ctx, id)
}

// ListBooks returns all books ordered by id.
func (m *MockStore) ListBooks(ctx context.Context) ([]models.Book, error) {
	defer m.rlock()()

	books := make([]models.Book, 0, len(m.state.books))
	for _, b := range m.state.books {
		books = append(books, b)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books, nil
}

// ListAvailableBooks returns books with status available, ordered by id.
func (m *MockStore) ListAvailableBooks(ctx context.Context) ([]models.Book, error) {
	defer m.rlock()()

	var books []models.Book
	for _, b := range m.state.books {
		if b.Status == models.BookStatusAvailable {
			books = append(books, b)
		}
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books, nil
}

// UpdateBook replaces the stored book identified by book.ID.
func (m *MockStore) UpdateBook(ctx context.Context, book models.Book) (models.Book, error) {
	defer m.lock()()

	existing, ok := m.state.books[book.ID]
	if !ok {
		return models.Book{}, fmt.Errorf("book %d: %w", book.ID, storage.ErrNotFound)
	}
	if !book.Status.Valid() {
		return models.Book{}, fmt.Errorf("invalid book status %q", book.Status)
	}
	for id, b := range m.state.books {
		if id != book.ID && b.ISBN == book.ISBN {
			return models.Book{}, fmt.Errorf("books.isbn %q: %w", book.ISBN, storage.ErrDuplicate)
		}
	}

	book.CreatedAt = existing.CreatedAt
	book.UpdatedAt = time.Now().UTC()
	m.state.books[book.ID] = book
	return book, nil
}

// DeleteBook removes the book unless transactions still reference it,
// mirroring the engine's foreign-key backstop.
func (m *MockStore) DeleteBook(ctx context.Context, id int64) error {
	defer m.lock()()

	if _, ok := m.state.books[id]; !ok {
		return fmt.Errorf("book %d: %w", id, storage.ErrNotFound)
	}
	for _, t := range m.state.transactions {
		if t.BookID == id {
			return fmt.Errorf("book %d has transactions: %w", id, storage.ErrReferenced)
		}
	}
	delete(m.state.books, id)
	return nil
}

// --- Member operations ---

// CreateMember stores a new member, enforcing email and membership-number
// uniqueness.
func (m *MockStore) CreateMember(ctx context.Context, member models.Member) (models.Member, error) {
	defer m.lock()()

	if !member.Status.Valid() {
		return models.Member{}, fmt.Errorf("invalid member status %q", member.Status)
	}
	for _, e := range m.state.members {
		if e.Email == member.Email {
			return models.Member{}, fmt.Errorf("members.email %q: %w", member.Email, storage.ErrDuplicate)
		}
		if e.MembershipNumber == member.MembershipNumber {
			return models.Member{}, fmt.Errorf("members.membership_number %q: %w", member.MembershipNumber, storage.ErrDuplicate)
		}
	}

	now := time.Now().UTC()
	member.ID = m.state.nextMemberID
	m.state.nextMemberID++
	member.CreatedAt = now
	member.UpdatedAt = now
	m.state.members[member.ID] = member
	return member, nil
}

// GetMember returns the member with the given id.
func (m *MockStore) GetMember(ctx context.Context, id int64) (models.Member, error) {
	defer m.rlock()()

	member, ok := m.state.members[id]
	if !ok {
		return models.Member{}, fmt.Errorf("member %d: %w", id, storage.ErrNotFound)
	}
	return member, nil
}

// GetMemberForUpdate behaves like GetMember under the mock's single lock.
func (m *MockStore) GetMemberForUpdate(ctx context.Context, id int64) (models.Member, error) {
	return m.GetMember(ctx, id)
}

// ListMembers returns all members ordered by id.
func (m *MockStore) ListMembers(ctx context.Context) ([]models.Member, error) {
	defer m.rlock()()

	members := make([]models.Member, 0, len(m.state.members))
	for _, e := range m.state.members {
		members = append(members, e)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

// UpdateMember replaces the stored member identified by member.ID.
func (m *MockStore) UpdateMember(ctx context.Context, member models.Member) (models.Member, error) {
	defer m.lock()()

	existing, ok := m.state.members[member.ID]
	if !ok {
		return models.Member{}, fmt.Errorf("member %d: %w", member.ID, storage.ErrNotFound)
	}
	if !member.Status.Valid() {
		return models.Member{}, fmt.Errorf("invalid member status %q", member.Status)
	}
	for id, e := range m.state.members {
		if id == member.ID {
			continue
		}
		if e.Email == member.Email {
			return models.Member{}, fmt.Errorf("members.email %q: %w", member.Email, storage.ErrDuplicate)
		}
		if e.MembershipNumber == member.MembershipNumber {
			return models.Member{}, fmt.Errorf("members.membership_number %q: %w", member.MembershipNumber, storage.ErrDuplicate)
		}
	}

	member.CreatedAt = existing.CreatedAt
	member.UpdatedAt = time.Now().UTC()
	m.state.members[member.ID] = member
	return member, nil
}

// DeleteMember removes the member unless transactions or fines still
// reference them.
func (m *MockStore) DeleteMember(ctx context.Context, id int64) error {
	defer m.lock()()

	if _, ok := m.state.members[id]; !ok {
		return fmt.Errorf("member %d: %w", id, storage.ErrNotFound)
	}
	for _, t := range m.state.transactions {
		if t.MemberID == id {
			return fmt.Errorf("member %d has transactions: %w", id, storage.ErrReferenced)
		}
	}
	for _, f := range m.state.fines {
		if f.MemberID == id {
			return fmt.Errorf("member %d has fines: %w", id, storage.ErrReferenced)
		}
	}
	delete(m.state.members, id)
	return nil
}

// --- Transaction operations ---

// CreateTransaction stores a new borrow record.
func (m *MockStore) CreateTransaction(ctx context.Context, txn models.Transaction) (models.Transaction, error) {
	defer m.lock()()

	if !txn.Status.Valid() {
		return models.Transaction{}, fmt.Errorf("invalid transaction status %q", txn.Status)
	}

	now := time.Now().UTC()
	txn.ID = m.state.nextTransactionID
	m.state.nextTransactionID++
	txn.CreatedAt = now
	txn.UpdatedAt = now
	m.state.transactions[txn.ID] = copyTransaction(txn)
	return txn, nil
}

// GetTransaction returns the transaction with the given id.
func (m *MockStore) GetTransaction(ctx context.Context, id int64) (models.Transaction, error) {
	defer m.rlock()()

	txn, ok := m.state.transactions[id]
	if !ok {
		return models.Transaction{}, fmt.Errorf("transaction %d: %w", id, storage.ErrNotFound)
	}
	return copyTransaction(txn), nil
}

// GetTransactionForUpdate behaves like GetTransaction under the mock's
// single lock.
func (m *MockStore) GetTransactionForUpdate(ctx context.Context, id int64) (models.Transaction, error) {
	return m.GetTransaction(ctx, id)
}

// ListOverdueTransactions returns active transactions whose due date is
// strictly before asOf, ordered by id.
func (m *MockStore) ListOverdueTransactions(ctx context.Context, asOf time.Time) ([]models.Transaction, error) {
	defer m.rlock()()

	var txns []models.Transaction
	for _, t := range m.state.transactions {
		if t.Status == models.TransactionStatusActive && t.DueDate.Before(asOf) {
			txns = append(txns, copyTransaction(t))
		}
	}
	sort.Slice(txns, func(i, j int) bool { return txns[i].ID < txns[j].ID })
	return txns, nil
}

// UpdateTransaction replaces the stored transaction identified by txn.ID.
func (m *MockStore) UpdateTransaction(ctx context.Context, txn models.Transaction) (models.Transaction, error) {
	defer m.lock()()

	existing, ok := m.state.transactions[txn.ID]
	if !ok {
		return models.Transaction{}, fmt.Errorf("transaction %d: %w", txn.ID, storage.ErrNotFound)
	}
	if !txn.Status.Valid() {
		return models.Transaction{}, fmt.Errorf("invalid transaction status %q", txn.Status)
	}

	txn.CreatedAt = existing.CreatedAt
	txn.UpdatedAt = time.Now().UTC()
	m.state.transactions[txn.ID] = copyTransaction(txn)
	return txn, nil
}

// CountActiveTransactionsByMember counts the member's active borrows.
func (m *MockStore) CountActiveTransactionsByMember(ctx context.Context, memberID int64) (int, error) {
	defer m.rlock()()

	count := 0
	for _, t := range m.state.transactions {
		if t.MemberID == memberID && t.Status == models.TransactionStatusActive {
			count++
		}
	}
	return count, nil
}

// CountActiveTransactionsByBook counts active borrows of the book.
func (m *MockStore) CountActiveTransactionsByBook(ctx context.Context, bookID int64) (int, error) {
	defer m.rlock()()

	count := 0
	for _, t := range m.state.transactions {
		if t.BookID == bookID && t.Status == models.TransactionStatusActive {
			count++
		}
	}
	return count, nil
}

// --- Fine operations ---

// CreateFine stores a new fine.
func (m *MockStore) CreateFine(ctx context.Context, fine models.Fine) (models.Fine, error) {
	defer m.lock()()

	now := time.Now().UTC()
	fine.ID = m.state.nextFineID
	m.state.nextFineID++
	fine.CreatedAt = now
	fine.UpdatedAt = now
	m.state.fines[fine.ID] = copyFine(fine)
	return fine, nil
}

// GetFine returns the fine with the given id.
func (m *MockStore) GetFine(ctx context.Context, id int64) (models.Fine, error) {
	defer m.rlock()()

	fine, ok := m.state.fines[id]
	if !ok {
		return models.Fine{}, fmt.Errorf("fine %d: %w", id, storage.ErrNotFound)
	}
	return copyFine(fine), nil
}

// GetFineForUpdate behaves like GetFine under the mock's single lock.
func (m *MockStore) GetFineForUpdate(ctx context.Context, id int64) (models.Fine, error) {
	return m.GetFine(ctx, id)
}

// UpdateFine replaces the stored fine identified by fine.ID.
func (m *MockStore) UpdateFine(ctx context.Context, fine models.Fine) (models.Fine, error) {
	defer m.lock()()

	existing, ok := m.state.fines[fine.ID]
	if !ok {
		return models.Fine{}, fmt.Errorf("fine %d: %w", fine.ID, storage.ErrNotFound)
	}

	fine.CreatedAt = existing.CreatedAt
	fine.UpdatedAt = time.Now().UTC()
	m.state.fines[fine.ID] = copyFine(fine)
	return fine, nil
}

// CountUnpaidFinesByMember counts the member's fines with no payment
// timestamp.
func (m *MockStore) CountUnpaidFinesByMember(ctx context.Context, memberID int64) (int, error) {
	defer m.rlock()()

	count := 0
	for _, f := range m.state.fines {
		if f.MemberID == memberID && f.PaidAt == nil {
			count++
		}
	}
	return count, nil
}
