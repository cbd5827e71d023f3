package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dropDatabas3/profilesync/internal/domain/repository"
	"github.com/dropDatabas3/profilesync/internal/domain/types"
)

func cloneEntityIDs(in map[types.EntityType][]string) map[types.EntityType][]string {
	if in == nil {
		return nil
	}
	out := make(map[types.EntityType][]string, len(in))
	for k, v := range in {
		out[k] = cloneStrings(v)
	}
	return out
}

// ─── token-bound ───

type authRepo struct{ d *data }

func cloneAuth(a *repository.Authorization) *repository.Authorization {
	cp := *a
	cp.Scopes = cloneStrings(a.Scopes)
	cp.EntityIDs = cloneEntityIDs(a.EntityIDs)
	return &cp
}

func (r *authRepo) Create(ctx context.Context, a *repository.Authorization) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if _, ok := r.d.auths[a.ID]; ok {
		return repository.ErrConflict
	}
	r.d.auths[a.ID] = cloneAuth(a)
	return nil
}

func (r *authRepo) GetByID(ctx context.Context, id string) (*repository.Authorization, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	a, ok := r.d.auths[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneAuth(a), nil
}

func (r *authRepo) ListActiveByUser(ctx context.Context, userID string) ([]repository.Authorization, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	var out []repository.Authorization
	for _, a := range r.d.auths {
		if a.UserID == userID && a.Active() {
			out = append(out, *cloneAuth(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *authRepo) AddEntityID(ctx context.Context, authID string, entityType types.EntityType, entityID string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	a, ok := r.d.auths[authID]
	if !ok {
		return repository.ErrNotFound
	}
	if a.EntityIDs == nil {
		a.EntityIDs = map[types.EntityType][]string{}
	}
	a.EntityIDs[entityType] = addToSet(a.EntityIDs[entityType], entityID)
	return nil
}

func (r *authRepo) PullEntityID(ctx context.Context, entityType types.EntityType, entityID string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, a := range r.d.auths {
		if a.EntityIDs != nil {
			a.EntityIDs[entityType] = pull(a.EntityIDs[entityType], entityID)
		}
	}
	return nil
}

func (r *authRepo) DeleteByIDs(ctx context.Context, ids []string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, id := range ids {
		delete(r.d.auths, id)
	}
	return nil
}

// ─── user-level ───

type userAuthRepo struct{ d *data }

func cloneUserAuth(ua *repository.UserAuthorization) *repository.UserAuthorization {
	cp := *ua
	cp.Scopes = cloneStrings(ua.Scopes)
	cp.EntityIDs = cloneEntityIDs(ua.EntityIDs)
	return &cp
}

func (r *userAuthRepo) Get(ctx context.Context, clientID, userID string) (*repository.UserAuthorization, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	ua, ok := r.d.userAuths[pairKey(clientID, userID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUserAuth(ua), nil
}

func (r *userAuthRepo) Upsert(ctx context.Context, ua *repository.UserAuthorization) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	cp := cloneUserAuth(ua)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = time.Now().UTC()
	r.d.userAuths[pairKey(ua.ClientID, ua.UserID)] = cp
	return nil
}

func (r *userAuthRepo) ListByUser(ctx context.Context, userID string) ([]repository.UserAuthorization, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	var out []repository.UserAuthorization
	for _, ua := range r.d.userAuths {
		if ua.UserID == userID {
			out = append(out, *cloneUserAuth(ua))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}

func (r *userAuthRepo) AddEntityID(ctx context.Context, clientID, userID string, entityType types.EntityType, entityID string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	ua, ok := r.d.userAuths[pairKey(clientID, userID)]
	if !ok {
		return repository.ErrNotFound
	}
	if ua.EntityIDs == nil {
		ua.EntityIDs = map[types.EntityType][]string{}
	}
	ua.EntityIDs[entityType] = addToSet(ua.EntityIDs[entityType], entityID)
	return nil
}

func (r *userAuthRepo) PullEntityID(ctx context.Context, entityType types.EntityType, entityID string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, ua := range r.d.userAuths {
		if ua.EntityIDs != nil {
			ua.EntityIDs[entityType] = pull(ua.EntityIDs[entityType], entityID)
		}
	}
	return nil
}

func (r *userAuthRepo) Delete(ctx context.Context, clientID string, userIDs []string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, uid := range userIDs {
		delete(r.d.userAuths, pairKey(clientID, uid))
	}
	return nil
}

// ─── access tokens ───

type accessTokenRepo struct{ d *data }

func (r *accessTokenRepo) Create(ctx context.Context, t *repository.AccessToken) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	cp := *t
	r.d.accessTokens[t.ID] = &cp
	return nil
}

func (r *accessTokenRepo) DeleteByAuthorizationIDs(ctx context.Context, authIDs []string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for id, t := range r.d.accessTokens {
		for _, aid := range authIDs {
			if t.AuthorizationID == aid {
				delete(r.d.accessTokens, id)
				break
			}
		}
	}
	return nil
}
