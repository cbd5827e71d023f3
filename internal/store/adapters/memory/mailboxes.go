package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dropDatabas3/profilesync/internal/domain/repository"
)

type mailboxRepo struct{ d *data }

func (r *mailboxRepo) Append(ctx context.Context, clientID, userID string, payload []byte, createdAt time.Time) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	key := pairKey(clientID, userID)
	cp := make([]byte, len(payload))
	copy(cp, payload)
	r.d.mailboxes[key] = append(r.d.mailboxes[key], repository.PendingNotification{
		Payload:   cp,
		CreatedAt: createdAt,
	})
	return nil
}

func (r *mailboxRepo) List(ctx context.Context, clientID, userID string) ([]repository.PendingNotification, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	list := r.d.mailboxes[pairKey(clientID, userID)]
	out := make([]repository.PendingNotification, len(list))
	for i, p := range list {
		out[i] = p
		out[i].Payload = append([]byte(nil), p.Payload...)
	}
	return out, nil
}

func (r *mailboxRepo) Consume(ctx context.Context, clientID, userID string, n int) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	key := pairKey(clientID, userID)
	list := r.d.mailboxes[key]
	if n >= len(list) {
		delete(r.d.mailboxes, key)
		return nil
	}
	r.d.mailboxes[key] = list[n:]
	return nil
}

func (r *mailboxRepo) ListUndelivered(ctx context.Context) ([]repository.MailboxKey, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	var out []repository.MailboxKey
	for key, list := range r.d.mailboxes {
		if len(list) == 0 {
			continue
		}
		// key es clientID|userID
		for i := 0; i < len(key); i++ {
			if key[i] == '|' {
				out = append(out, repository.MailboxKey{ClientID: key[:i], UserID: key[i+1:]})
				break
			}
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
