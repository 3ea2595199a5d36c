package app

import (
	"context"

	"prediction-poll-service/internal/domain"
)

// MembershipProvider supplies group membership facts from the surrounding
// system. The service never manages membership itself.
type MembershipProvider interface {
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	ListMembers(ctx context.Context, groupID string) ([]domain.Member, error)
}
