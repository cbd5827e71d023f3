package pg

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/profilesync/internal/domain/repository"
)

type mailboxRepo struct{ pool *pgxpool.Pool }

// pendingEntry es la forma de cada elemento del array jsonb `pending`.
type pendingEntry struct {
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func (r *mailboxRepo) Append(ctx context.Context, clientID, userID string, payload []byte, createdAt time.Time) error {
	entry, err := json.Marshal(pendingEntry{Payload: payload, CreatedAt: createdAt.UTC()})
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO mailboxes (client_id, user_id, pending)
		VALUES ($1, $2, jsonb_build_array($3::jsonb))
		ON CONFLICT (client_id, user_id) DO UPDATE SET
			pending = mailboxes.pending || $3::jsonb`,
		clientID, userID, entry)
	return mapErr(err)
}

func (r *mailboxRepo) List(ctx context.Context, clientID, userID string) ([]repository.PendingNotification, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT pending FROM mailboxes WHERE client_id = $1 AND user_id = $2`,
		clientID, userID).Scan(&raw)
	if err != nil {
		if repository.IsNotFound(mapErr(err)) {
			return nil, nil
		}
		return nil, mapErr(err)
	}
	var entries []pendingEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	out := make([]repository.PendingNotification, len(entries))
	for i, e := range entries {
		out[i] = repository.PendingNotification{Payload: e.Payload, CreatedAt: e.CreatedAt}
	}
	return out, nil
}

func (r *mailboxRepo) Consume(ctx context.Context, clientID, userID string, n int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE mailboxes SET pending = (
			SELECT COALESCE(jsonb_agg(e ORDER BY ord), '[]'::jsonb)
			FROM jsonb_array_elements(pending) WITH ORDINALITY AS t(e, ord)
			WHERE ord > $3
		)
		WHERE client_id = $1 AND user_id = $2`,
		clientID, userID, n)
	return mapErr(err)
}

func (r *mailboxRepo) ListUndelivered(ctx context.Context) ([]repository.MailboxKey, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT client_id, user_id FROM mailboxes
		WHERE jsonb_array_length(pending) > 0
		ORDER BY client_id, user_id`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []repository.MailboxKey
	for rows.Next() {
		var k repository.MailboxKey
		if err := rows.Scan(&k.ClientID, &k.UserID); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
