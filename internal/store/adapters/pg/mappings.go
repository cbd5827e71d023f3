package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/profilesync/internal/domain/repository"
	"github.com/dropDatabas3/profilesync/internal/domain/types"
)

type mappingRepo struct{ pool *pgxpool.Pool }

func scanEntityTypes(raw []string) []types.EntityType {
	out := make([]types.EntityType, len(raw))
	for i, s := range raw {
		out[i] = types.EntityType(s)
	}
	return out
}

func entityTypeStrings(in []types.EntityType) []string {
	out := make([]string, len(in))
	for i, t := range in {
		out[i] = string(t)
	}
	return out
}

func (r *mappingRepo) Create(ctx context.Context, m *repository.IdentityMapping) error {
	// El PK (client_id, user_id, real_id) resuelve la carrera de primer touch:
	// el perdedor recibe ErrConflict y relee.
	_, err := r.pool.Exec(ctx, `
		INSERT INTO identity_mappings (client_id, user_id, real_id, opaque_id, entity_types)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ClientID, m.UserID, m.RealID, m.OpaqueID, entityTypeStrings(m.EntityTypes))
	return mapErr(err)
}

func (r *mappingRepo) Get(ctx context.Context, clientID, userID, realID string) (*repository.IdentityMapping, error) {
	var m repository.IdentityMapping
	var rawTypes []string
	err := r.pool.QueryRow(ctx, `
		SELECT client_id, user_id, real_id, opaque_id, entity_types, created_at
		FROM identity_mappings
		WHERE client_id = $1 AND user_id = $2 AND real_id = $3`,
		clientID, userID, realID).
		Scan(&m.ClientID, &m.UserID, &m.RealID, &m.OpaqueID, &rawTypes, &m.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	m.EntityTypes = scanEntityTypes(rawTypes)
	return &m, nil
}

func (r *mappingRepo) GetByOpaque(ctx context.Context, clientID, userID, opaqueID string) (*repository.IdentityMapping, error) {
	var m repository.IdentityMapping
	var rawTypes []string
	err := r.pool.QueryRow(ctx, `
		SELECT client_id, user_id, real_id, opaque_id, entity_types, created_at
		FROM identity_mappings
		WHERE client_id = $1 AND user_id = $2 AND opaque_id = $3`,
		clientID, userID, opaqueID).
		Scan(&m.ClientID, &m.UserID, &m.RealID, &m.OpaqueID, &rawTypes, &m.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	m.EntityTypes = scanEntityTypes(rawTypes)
	return &m, nil
}

func (r *mappingRepo) AddEntityType(ctx context.Context, clientID, userID, realID string, entityType types.EntityType) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE identity_mappings SET entity_types = CASE
			WHEN $4 = ANY(entity_types) THEN entity_types
			ELSE array_append(entity_types, $4)
		END
		WHERE client_id = $1 AND user_id = $2 AND real_id = $3`,
		clientID, userID, realID, string(entityType))
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mappingRepo) ListByRealID(ctx context.Context, realID string) ([]repository.IdentityMapping, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT client_id, user_id, real_id, opaque_id, entity_types, created_at
		FROM identity_mappings
		WHERE real_id = $1
		ORDER BY client_id, user_id`, realID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []repository.IdentityMapping
	for rows.Next() {
		var m repository.IdentityMapping
		var rawTypes []string
		if err := rows.Scan(&m.ClientID, &m.UserID, &m.RealID, &m.OpaqueID, &rawTypes, &m.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		m.EntityTypes = scanEntityTypes(rawTypes)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *mappingRepo) DeleteByClientUsers(ctx context.Context, clientID string, userIDs []string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM identity_mappings WHERE client_id = $1 AND user_id = ANY($2)`,
		clientID, userIDs)
	return mapErr(err)
}

func (r *mappingRepo) DeleteByRealID(ctx context.Context, realID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM identity_mappings WHERE real_id = $1`, realID)
	return mapErr(err)
}
