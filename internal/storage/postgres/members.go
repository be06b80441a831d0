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

var memberColumns = []any{
	"id", "name", "email", "membership_number", "status",
	"created_at", "updated_at",
}

func scanMember(row pgx.Row) (models.Member, error) {
	var m models.Member
	err := row.Scan(
		&m.ID, &m.Name, &m.Email, &m.MembershipNumber, &m.Status,
		&m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

// CreateMember inserts a member and returns it with the generated id and
// timestamps filled in.
func (s *Store) CreateMember(ctx context.Context, member models.Member) (models.Member, error) {
	sql, _, err := goqu.Dialect(dialectName).
		Insert(tableMembers).
		Rows(goqu.Record{
			"name":              member.Name,
			"email":             member.Email,
			"membership_number": member.MembershipNumber,
			"status":            string(member.Status),
		}).
		Returning("id", "created_at", "updated_at").
		ToSQL()
	if err != nil {
		return models.Member{}, fmt.Errorf("failed to build insert member query: %w", err)
	}

	if err := s.q.QueryRow(ctx, sql).Scan(&member.ID, &member.CreatedAt, &member.UpdatedAt); err != nil {
		return models.Member{}, fmt.Errorf("failed to create member: %w", mapConstraintError(err))
	}
	return member, nil
}

// GetMember returns the member with the given id.
func (s *Store) GetMember(ctx context.Context, id int64) (models.Member, error) {
	return s.getMember(ctx, id, false)
}

// GetMemberForUpdate returns the member with their row locked until the
// surrounding transaction finishes.
func (s *Store) GetMemberForUpdate(ctx context.Context, id int64) (models.Member, error) {
	return s.getMember(ctx, id, true)
}

func (s *Store) getMember(ctx context.Context, id int64, forUpdate bool) (models.Member, error) {
	ds := goqu.Dialect(dialectName).
		From(tableMembers).
		Select(memberColumns...).
		Where(goqu.C("id").Eq(id))
	if forUpdate {
		ds = ds.ForUpdate(exp.Wait)
	}

	sql, _, err := ds.ToSQL()
	if err != nil {
		return models.Member{}, fmt.Errorf("failed to build select member query: %w", err)
	}

	member, err := scanMember(s.q.QueryRow(ctx, sql))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Member{}, fmt.Errorf("member %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return models.Member{}, fmt.Errorf("failed to get member %d: %w", id, err)
	}
	return member, nil
}

// ListMembers returns all members ordered by id.
func (s *Store) ListMembers(ctx context.Context) ([]models.Member, error) {
	sql, _, err := goqu.Dialect(dialectName).
		From(tableMembers).
		Select(memberColumns...).
		Order(goqu.C("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build list members query: %w", err)
	}

	rows, err := s.q.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// UpdateMember replaces the stored member identified by member.ID.
func (s *Store) UpdateMember(ctx context.Context, member models.Member) (models.Member, error) {
	sql, _, err := goqu.Dialect(dialectName).
		Update(tableMembers).
		Set(goqu.Record{
			"name":              member.Name,
			"email":             member.Email,
			"membership_number": member.MembershipNumber,
			"status":            string(member.Status),
			"updated_at":        goqu.L("now()"),
		}).
		Where(goqu.C("id").Eq(member.ID)).
		Returning("created_at", "updated_at").
		ToSQL()
	if err != nil {
		return models.Member{}, fmt.Errorf("failed to build update member query: %w", err)
	}

	err = s.q.QueryRow(ctx, sql).Scan(&member.CreatedAt, &member.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Member{}, fmt.Errorf("member %d: %w", member.ID, storage.ErrNotFound)
	}
	if err != nil {
		return models.Member{}, fmt.Errorf("failed to update member %d: %w", member.ID, mapConstraintError(err))
	}
	return member, nil
}

// DeleteMember removes the member. Transactions or fines referencing them
// keep the delete from going through via the foreign keys.
func (s *Store) DeleteMember(ctx context.Context, id int64) error {
	sql, _, err := goqu.Dialect(dialectName).
		Delete(tableMembers).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build delete member query: %w", err)
	}

	tag, err := s.q.Exec(ctx, sql)
	if err != nil {
		return fmt.Errorf("failed to delete member %d: %w", id, mapConstraintError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("member %d: %w", id, storage.ErrNotFound)
	}
	return nil
}
