package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"prediction-poll-service/internal/app"
	"prediction-poll-service/internal/domain"
)

// StaticMembershipProvider serves membership facts from a fixed map (useful
// for tests/demos).
type StaticMembershipProvider struct {
	groups map[string][]domain.Member
}

func NewStaticMembershipProvider(groups map[string][]domain.Member) *StaticMembershipProvider {
	return &StaticMembershipProvider{groups: groups}
}

func (p *StaticMembershipProvider) IsMember(_ context.Context, groupID, userID string) (bool, error) {
	for _, m := range p.groups[groupID] {
		if m.ID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (p *StaticMembershipProvider) ListMembers(_ context.Context, groupID string) ([]domain.Member, error) {
	members, ok := p.groups[groupID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]domain.Member(nil), members...), nil
}

// CachedMembershipProvider caches member lists with TTL to avoid repeated
// backing-store hits on every ranking computation and vote check.
type CachedMembershipProvider struct {
	source app.MembershipProvider
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedMembers
}

type cachedMembers struct {
	members   []domain.Member
	expiresAt time.Time
}

func NewCachedMembershipProvider(source app.MembershipProvider, ttl time.Duration) *CachedMembershipProvider {
	return &CachedMembershipProvider{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedMembers),
	}
}

func (p *CachedMembershipProvider) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	members, err := p.ListMembers(ctx, groupID)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m.ID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (p *CachedMembershipProvider) ListMembers(ctx context.Context, groupID string) ([]domain.Member, error) {
	now := p.clock()

	p.mu.RLock()
	if entry, ok := p.cache[groupID]; ok && entry.expiresAt.After(now) {
		p.mu.RUnlock()
		return entry.members, nil
	}
	p.mu.RUnlock()

	result, err, _ := p.sf.Do(groupID, func() (interface{}, error) {
		now := p.clock()
		p.mu.RLock()
		if entry, ok := p.cache[groupID]; ok && entry.expiresAt.After(now) {
			p.mu.RUnlock()
			return entry.members, nil
		}
		p.mu.RUnlock()

		members, err := p.source.ListMembers(ctx, groupID)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.cache[groupID] = cachedMembers{
			members:   members,
			expiresAt: now.Add(p.ttlWithJitter()),
		}
		p.mu.Unlock()
		return members, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Member), nil
}

func (p *CachedMembershipProvider) ttlWithJitter() time.Duration {
	if p.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(p.ttl) / 10
	return p.ttl + time.Duration(p.rnd.Int63n(jitterMax+1))
}
