package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dropDatabas3/profilesync/internal/domain/repository"
	"github.com/dropDatabas3/profilesync/internal/domain/types"
)

type mappingRepo struct{ d *data }

func cloneMapping(m *repository.IdentityMapping) *repository.IdentityMapping {
	cp := *m
	cp.EntityTypes = append([]types.EntityType(nil), m.EntityTypes...)
	return &cp
}

func (r *mappingRepo) Create(ctx context.Context, m *repository.IdentityMapping) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	key := mappingKey(m.ClientID, m.UserID, m.RealID)
	if _, ok := r.d.mappings[key]; ok {
		return repository.ErrConflict
	}
	cp := cloneMapping(m)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.d.mappings[key] = cp
	return nil
}

func (r *mappingRepo) Get(ctx context.Context, clientID, userID, realID string) (*repository.IdentityMapping, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	m, ok := r.d.mappings[mappingKey(clientID, userID, realID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneMapping(m), nil
}

func (r *mappingRepo) GetByOpaque(ctx context.Context, clientID, userID, opaqueID string) (*repository.IdentityMapping, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	prefix := pairKey(clientID, userID) + "|"
	for key, m := range r.d.mappings {
		if strings.HasPrefix(key, prefix) && m.OpaqueID == opaqueID {
			return cloneMapping(m), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *mappingRepo) AddEntityType(ctx context.Context, clientID, userID, realID string, entityType types.EntityType) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	m, ok := r.d.mappings[mappingKey(clientID, userID, realID)]
	if !ok {
		return repository.ErrNotFound
	}
	for _, t := range m.EntityTypes {
		if t == entityType {
			return nil
		}
	}
	m.EntityTypes = append(m.EntityTypes, entityType)
	return nil
}

func (r *mappingRepo) ListByRealID(ctx context.Context, realID string) ([]repository.IdentityMapping, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	var out []repository.IdentityMapping
	for _, m := range r.d.mappings {
		if m.RealID == realID {
			out = append(out, *cloneMapping(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ClientID != out[j].ClientID {
			return out[i].ClientID < out[j].ClientID
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (r *mappingRepo) DeleteByClientUsers(ctx context.Context, clientID string, userIDs []string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, uid := range userIDs {
		prefix := pairKey(clientID, uid) + "|"
		for key := range r.d.mappings {
			if strings.HasPrefix(key, prefix) {
				delete(r.d.mappings, key)
			}
		}
	}
	return nil
}

func (r *mappingRepo) DeleteByRealID(ctx context.Context, realID string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for key, m := range r.d.mappings {
		if m.RealID == realID {
			delete(r.d.mappings, key)
		}
	}
	return nil
}
