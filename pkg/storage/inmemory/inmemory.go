package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/devblin/infisical/pkg/domain"
	"github.com/google/uuid"
)

type Store struct {
	mu    sync.RWMutex
	auths map[string]domain.IntegrationAuth
	now   func() time.Time
}

func New() *Store {
	return &Store{
		auths: make(map[string]domain.IntegrationAuth),
		now:   time.Now,
	}
}

func (s *Store) CreateIntegrationAuth(ctx context.Context, auth domain.IntegrationAuth) (domain.IntegrationAuth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if auth.ID == "" {
		auth.ID = uuid.New().String()
	}

	now := s.now()
	auth.CreatedAt = now
	auth.UpdatedAt = now
	auth.AccessExpiresAt = cloneTime(auth.AccessExpiresAt)

	s.auths[auth.ID] = auth

	return auth, nil
}

func (s *Store) GetIntegrationAuth(ctx context.Context, id string) (domain.IntegrationAuth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auth, ok := s.auths[id]
	if !ok {
		return domain.IntegrationAuth{}, domain.ErrIntegrationAuthNotFound
	}

	auth.AccessExpiresAt = cloneTime(auth.AccessExpiresAt)

	return auth, nil
}

func (s *Store) UpdateAccess(ctx context.Context, p domain.UpdateAccessParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	auth, ok := s.auths[p.IntegrationAuthID]
	if !ok {
		return domain.ErrIntegrationAuthNotFound
	}

	if p.AccessID != nil {
		auth.AccessID = *p.AccessID
	}
	auth.Access = p.Access
	auth.AccessExpiresAt = cloneTime(p.AccessExpiresAt)
	auth.UpdatedAt = s.now()

	s.auths[auth.ID] = auth

	return nil
}

func (s *Store) UpdateRefresh(ctx context.Context, p domain.UpdateRefreshParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	auth, ok := s.auths[p.IntegrationAuthID]
	if !ok {
		return domain.ErrIntegrationAuthNotFound
	}

	auth.Refresh = p.Refresh
	auth.UpdatedAt = s.now()

	s.auths[auth.ID] = auth

	return nil
}

// ListExpiringIntegrationAuths returns refreshable auths whose access token
// expires before the given instant, soonest first.
func (s *Store) ListExpiringIntegrationAuths(ctx context.Context, before time.Time) ([]domain.IntegrationAuth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var auths []domain.IntegrationAuth
	for _, auth := range s.auths {
		if auth.AccessExpiresAt == nil || auth.Refresh.IsZero() {
			continue
		}

		if auth.AccessExpiresAt.Before(before) {
			auth.AccessExpiresAt = cloneTime(auth.AccessExpiresAt)
			auths = append(auths, auth)
		}
	}

	sort.Slice(auths, func(i, j int) bool {
		return auths[i].AccessExpiresAt.Before(*auths[j].AccessExpiresAt)
	})

	return auths, nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	c := *t
	return &c
}
