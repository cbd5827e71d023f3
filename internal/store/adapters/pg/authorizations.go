package pg

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/profilesync/internal/domain/repository"
	"github.com/dropDatabas3/profilesync/internal/domain/types"
)

// entityIDsFromJSON decodifica la columna jsonb entity_ids.
func entityIDsFromJSON(b []byte) (map[types.EntityType][]string, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var raw map[types.EntityType][]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return raw, nil
}

func entityIDsToJSON(m map[types.EntityType][]string) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// ─── token-bound ───

type authRepo struct{ pool *pgxpool.Pool }

func (r *authRepo) Create(ctx context.Context, a *repository.Authorization) error {
	ids, err := entityIDsToJSON(a.EntityIDs)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO authorizations (id, client_id, user_id, scopes, entity_ids, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.ClientID, a.UserID, a.Scopes, ids, a.RevokedAt)
	return mapErr(err)
}

func (r *authRepo) GetByID(ctx context.Context, id string) (*repository.Authorization, error) {
	var a repository.Authorization
	var ids []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, client_id, user_id, scopes, entity_ids, created_at, revoked_at
		FROM authorizations WHERE id = $1`, id).
		Scan(&a.ID, &a.ClientID, &a.UserID, &a.Scopes, &ids, &a.CreatedAt, &a.RevokedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if a.EntityIDs, err = entityIDsFromJSON(ids); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *authRepo) ListActiveByUser(ctx context.Context, userID string) ([]repository.Authorization, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, client_id, user_id, scopes, entity_ids, created_at, revoked_at
		FROM authorizations
		WHERE user_id = $1 AND revoked_at IS NULL
		ORDER BY created_at`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []repository.Authorization
	for rows.Next() {
		var a repository.Authorization
		var ids []byte
		if err := rows.Scan(&a.ID, &a.ClientID, &a.UserID, &a.Scopes, &ids,
			&a.CreatedAt, &a.RevokedAt); err != nil {
			return nil, mapErr(err)
		}
		if a.EntityIDs, err = entityIDsFromJSON(ids); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *authRepo) AddEntityID(ctx context.Context, authID string, entityType types.EntityType, entityID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE authorizations SET entity_ids = CASE
			WHEN COALESCE(entity_ids->$2, '[]'::jsonb) ? $3 THEN entity_ids
			ELSE jsonb_set(entity_ids, ARRAY[$2], COALESCE(entity_ids->$2, '[]'::jsonb) || to_jsonb($3::text))
		END
		WHERE id = $1`, authID, string(entityType), entityID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *authRepo) PullEntityID(ctx context.Context, entityType types.EntityType, entityID string) error {
	// jsonb_agg preserva el orden relativo de los elementos restantes.
	_, err := r.pool.Exec(ctx, `
		UPDATE authorizations SET entity_ids = jsonb_set(entity_ids, ARRAY[$1], (
			SELECT COALESCE(jsonb_agg(e), '[]'::jsonb)
			FROM jsonb_array_elements(entity_ids->$1) e
			WHERE e <> to_jsonb($2::text)
		))
		WHERE COALESCE(entity_ids->$1, '[]'::jsonb) ? $2`,
		string(entityType), entityID)
	return mapErr(err)
}

func (r *authRepo) DeleteByIDs(ctx context.Context, ids []string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM authorizations WHERE id = ANY($1)`, ids)
	return mapErr(err)
}

// ─── user-level ───

type userAuthRepo struct{ pool *pgxpool.Pool }

func (r *userAuthRepo) Get(ctx context.Context, clientID, userID string) (*repository.UserAuthorization, error) {
	var ua repository.UserAuthorization
	var ids []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, client_id, user_id, scopes, entity_ids, created_at, updated_at
		FROM user_authorizations WHERE client_id = $1 AND user_id = $2`, clientID, userID).
		Scan(&ua.ID, &ua.ClientID, &ua.UserID, &ua.Scopes, &ids, &ua.CreatedAt, &ua.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if ua.EntityIDs, err = entityIDsFromJSON(ids); err != nil {
		return nil, err
	}
	return &ua, nil
}

func (r *userAuthRepo) Upsert(ctx context.Context, ua *repository.UserAuthorization) error {
	ids, err := entityIDsToJSON(ua.EntityIDs)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO user_authorizations (id, client_id, user_id, scopes, entity_ids)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (client_id, user_id) DO UPDATE SET
			scopes = EXCLUDED.scopes,
			updated_at = now()`,
		ua.ID, ua.ClientID, ua.UserID, ua.Scopes, ids)
	return mapErr(err)
}

func (r *userAuthRepo) ListByUser(ctx context.Context, userID string) ([]repository.UserAuthorization, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, client_id, user_id, scopes, entity_ids, created_at, updated_at
		FROM user_authorizations WHERE user_id = $1 ORDER BY client_id`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []repository.UserAuthorization
	for rows.Next() {
		var ua repository.UserAuthorization
		var ids []byte
		if err := rows.Scan(&ua.ID, &ua.ClientID, &ua.UserID, &ua.Scopes, &ids,
			&ua.CreatedAt, &ua.UpdatedAt); err != nil {
			return nil, mapErr(err)
		}
		if ua.EntityIDs, err = entityIDsFromJSON(ids); err != nil {
			return nil, err
		}
		out = append(out, ua)
	}
	return out, rows.Err()
}

func (r *userAuthRepo) AddEntityID(ctx context.Context, clientID, userID string, entityType types.EntityType, entityID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE user_authorizations SET entity_ids = CASE
			WHEN COALESCE(entity_ids->$3, '[]'::jsonb) ? $4 THEN entity_ids
			ELSE jsonb_set(entity_ids, ARRAY[$3], COALESCE(entity_ids->$3, '[]'::jsonb) || to_jsonb($4::text))
		END,
		updated_at = now()
		WHERE client_id = $1 AND user_id = $2`,
		clientID, userID, string(entityType), entityID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userAuthRepo) PullEntityID(ctx context.Context, entityType types.EntityType, entityID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE user_authorizations SET entity_ids = jsonb_set(entity_ids, ARRAY[$1], (
			SELECT COALESCE(jsonb_agg(e), '[]'::jsonb)
			FROM jsonb_array_elements(entity_ids->$1) e
			WHERE e <> to_jsonb($2::text)
		)),
		updated_at = now()
		WHERE COALESCE(entity_ids->$1, '[]'::jsonb) ? $2`,
		string(entityType), entityID)
	return mapErr(err)
}

func (r *userAuthRepo) Delete(ctx context.Context, clientID string, userIDs []string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM user_authorizations WHERE client_id = $1 AND user_id = ANY($2)`,
		clientID, userIDs)
	return mapErr(err)
}

// ─── access tokens ───

type accessTokenRepo struct{ pool *pgxpool.Pool }

func (r *accessTokenRepo) Create(ctx context.Context, t *repository.AccessToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO access_tokens (id, authorization_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)`,
		t.ID, t.AuthorizationID, t.TokenHash, t.ExpiresAt)
	return mapErr(err)
}

func (r *accessTokenRepo) DeleteByAuthorizationIDs(ctx context.Context, authIDs []string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM access_tokens WHERE authorization_id = ANY($1)`, authIDs)
	return mapErr(err)
}
