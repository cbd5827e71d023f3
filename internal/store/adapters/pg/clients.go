package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/profilesync/internal/domain/repository"
)

type clientRepo struct{ pool *pgxpool.Pool }

func (r *clientRepo) Save(ctx context.Context, c *repository.Client) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO clients (id, name, push_endpoint) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			push_endpoint = EXCLUDED.push_endpoint`,
		c.ID, c.Name, c.PushEndpoint)
	return mapErr(err)
}

func (r *clientRepo) GetByID(ctx context.Context, id string) (*repository.Client, error) {
	var c repository.Client
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, push_endpoint, created_at FROM clients WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.PushEndpoint, &c.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (r *clientRepo) ListByIDs(ctx context.Context, ids []string) ([]repository.Client, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, push_endpoint, created_at FROM clients WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []repository.Client
	for rows.Next() {
		var c repository.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.PushEndpoint, &c.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type testAccountRepo struct{ pool *pgxpool.Pool }

func (r *testAccountRepo) Create(ctx context.Context, t *repository.TestAccount) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO test_accounts (client_id, user_id) VALUES ($1, $2)
		ON CONFLICT (client_id, user_id) DO NOTHING`,
		t.ClientID, t.UserID)
	return mapErr(err)
}

func (r *testAccountRepo) Delete(ctx context.Context, clientID string, userIDs []string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM test_accounts WHERE client_id = $1 AND user_id = ANY($2)`,
		clientID, userIDs)
	return mapErr(err)
}
