package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"prediction-poll-service/internal/domain"
)

// MembershipProvider reads group membership facts from Postgres.
type MembershipProvider struct {
	pool *pgxpool.Pool
}

func NewMembershipProvider(pool *pgxpool.Pool) *MembershipProvider {
	return &MembershipProvider{pool: pool}
}

func (p *MembershipProvider) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id=$1 AND user_id=$2)`,
		groupID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("is member: %w", err)
	}
	return exists, nil
}

func (p *MembershipProvider) ListMembers(ctx context.Context, groupID string) ([]domain.Member, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT user_id, display_name FROM group_members WHERE group_id=$1 ORDER BY joined_at, user_id`,
		groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.DisplayName); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}
