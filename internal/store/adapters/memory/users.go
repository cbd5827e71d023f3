package memory

import (
	"context"

	"github.com/dropDatabas3/profilesync/internal/domain/repository"
)

type userRepo struct{ d *data }

func (r *userRepo) GetByID(ctx context.Context, userID string) (*repository.User, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	u, ok := r.d.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	cp.AuthorizedClientIDs = cloneStrings(u.AuthorizedClientIDs)
	return &cp, nil
}

func (r *userRepo) Save(ctx context.Context, u *repository.User) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	cp := *u
	cp.AuthorizedClientIDs = cloneStrings(u.AuthorizedClientIDs)
	r.d.users[u.ID] = &cp
	return nil
}

func (r *userRepo) AddAuthorizedClient(ctx context.Context, userID, clientID string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	u, ok := r.d.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.AuthorizedClientIDs = addToSet(u.AuthorizedClientIDs, clientID)
	return nil
}

func (r *userRepo) PullAuthorizedClient(ctx context.Context, clientID string, userIDs []string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, uid := range userIDs {
		if u, ok := r.d.users[uid]; ok {
			u.AuthorizedClientIDs = pull(u.AuthorizedClientIDs, clientID)
		}
	}
	return nil
}

func (r *userRepo) GetAddress(ctx context.Context, userID, addressID string) (*repository.Address, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	for _, a := range r.d.addresses[userID] {
		if a.ID == addressID {
			cp := a
			cp.Roles = cloneStrings(a.Roles)
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) SaveAddress(ctx context.Context, a *repository.Address) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	cp := *a
	cp.Roles = cloneStrings(a.Roles)
	list := r.d.addresses[a.UserID]
	for i := range list {
		if list[i].ID == a.ID {
			list[i] = cp
			return nil
		}
	}
	r.d.addresses[a.UserID] = append(list, cp)
	return nil
}

func (r *userRepo) RemoveAddress(ctx context.Context, userID, addressID string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	list := r.d.addresses[userID]
	for i := range list {
		if list[i].ID == addressID {
			r.d.addresses[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *userRepo) ListAddresses(ctx context.Context, userID string) ([]repository.Address, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	list := r.d.addresses[userID]
	out := make([]repository.Address, len(list))
	for i, a := range list {
		out[i] = a
		out[i].Roles = cloneStrings(a.Roles)
	}
	return out, nil
}
