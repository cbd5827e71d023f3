package memory

import (
	"context"
	"time"

	"github.com/dropDatabas3/profilesync/internal/domain/repository"
)

type clientRepo struct{ d *data }

func (r *clientRepo) Save(ctx context.Context, client *repository.Client) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	cp := *client
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.d.clients[client.ID] = &cp
	return nil
}

func (r *clientRepo) GetByID(ctx context.Context, id string) (*repository.Client, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	c, ok := r.d.clients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *clientRepo) ListByIDs(ctx context.Context, ids []string) ([]repository.Client, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	out := make([]repository.Client, 0, len(ids))
	for _, id := range ids {
		if c, ok := r.d.clients[id]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

// SaveClient es un shortcut de tests sobre ClientRepository.Save.
func (c *Conn) SaveClient(client *repository.Client) {
	_ = (&clientRepo{c.d}).Save(context.Background(), client)
}

type testAccountRepo struct{ d *data }

func (r *testAccountRepo) Create(ctx context.Context, t *repository.TestAccount) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	key := pairKey(t.ClientID, t.UserID)
	if _, ok := r.d.testAccounts[key]; ok {
		return nil
	}
	cp := *t
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.d.testAccounts[key] = &cp
	return nil
}

func (r *testAccountRepo) Delete(ctx context.Context, clientID string, userIDs []string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, uid := range userIDs {
		delete(r.d.testAccounts, pairKey(clientID, uid))
	}
	return nil
}
