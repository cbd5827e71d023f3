package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/profilesync/internal/domain/repository"
	"github.com/dropDatabas3/profilesync/internal/domain/types"
)

type syncRepo struct{ pool *pgxpool.Pool }

func diffsFromJSON(b []byte) (map[types.EntityType][]repository.EntityDiff, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var raw map[types.EntityType][]repository.EntityDiff
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return raw, nil
}

func diffsToJSON(m map[types.EntityType][]repository.EntityDiff) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func scanSync(row pgx.Row) (*repository.SyncStatus, error) {
	var s repository.SyncStatus
	var diffs []byte
	err := row.Scan(&s.ClientID, &s.UserID, &s.Status, &s.UseTestAccount,
		&s.UpdatedFields, &diffs)
	if err != nil {
		return nil, mapErr(err)
	}
	if s.UpdatedEntities, err = diffsFromJSON(diffs); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *syncRepo) Get(ctx context.Context, clientID, userID string) (*repository.SyncStatus, error) {
	return scanSync(r.pool.QueryRow(ctx, `
		SELECT client_id, user_id, status, use_test_account, updated_fields, updated_entities
		FROM sync_status WHERE client_id = $1 AND user_id = $2`, clientID, userID))
}

// Merge aplica el merge atómico dentro de una transacción: el upsert inicial
// toma el row lock, los appends por tipo van después sobre la fila lockeada.
// El guard de transición replica types.SyncState.CanMergeTo en SQL: la única
// transición permitida por merge es existing_user -> existing_user_after_update.
func (r *syncRepo) Merge(ctx context.Context, m repository.SyncStatusMerge) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return mapErr(err)
	}
	defer tx.Rollback(ctx)

	var status *string
	if m.Status != nil {
		s := string(*m.Status)
		status = &s
	}
	addFields := m.AddFields
	if addFields == nil {
		addFields = []string{}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO sync_status (client_id, user_id, status, use_test_account, updated_fields)
		VALUES ($1, $2, 'new_user', COALESCE($4, false), $5)
		ON CONFLICT (client_id, user_id) DO UPDATE SET
			status = CASE
				WHEN $3::text IS NULL OR $3::text = sync_status.status THEN sync_status.status
				WHEN sync_status.status = 'existing_user' AND $3::text = 'existing_user_after_update' THEN $3::text
				ELSE sync_status.status
			END,
			use_test_account = COALESCE($4, sync_status.use_test_account),
			updated_fields = sync_status.updated_fields || ARRAY(
				SELECT f FROM unnest($5::text[]) f
				WHERE NOT f = ANY(sync_status.updated_fields)
			)`,
		m.ClientID, m.UserID, status, m.UseTestAccount, addFields)
	if err != nil {
		return mapErr(err)
	}

	for _, t := range types.AllEntityTypes() {
		diffs := m.AppendDiffs[t]
		if len(diffs) == 0 {
			continue
		}
		b, err := json.Marshal(diffs)
		if err != nil {
			return fmt.Errorf("pg: marshal diffs: %w", err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE sync_status SET updated_entities = jsonb_set(
				updated_entities, ARRAY[$3],
				COALESCE(updated_entities->$3, '[]'::jsonb) || $4::jsonb
			)
			WHERE client_id = $1 AND user_id = $2`,
			m.ClientID, m.UserID, string(t), b)
		if err != nil {
			return mapErr(err)
		}
	}

	return mapErr(tx.Commit(ctx))
}

func (r *syncRepo) Replace(ctx context.Context, s *repository.SyncStatus) error {
	diffs, err := diffsToJSON(s.UpdatedEntities)
	if err != nil {
		return err
	}
	fields := s.UpdatedFields
	if fields == nil {
		fields = []string{}
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO sync_status (client_id, user_id, status, use_test_account, updated_fields, updated_entities)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (client_id, user_id) DO UPDATE SET
			status = EXCLUDED.status,
			use_test_account = EXCLUDED.use_test_account,
			updated_fields = EXCLUDED.updated_fields,
			updated_entities = EXCLUDED.updated_entities`,
		s.ClientID, s.UserID, string(s.Status), s.UseTestAccount, fields, diffs)
	return mapErr(err)
}

// PurgeEntity hace el trim entero dentro del UPDATE: el subselect que arma la
// lista sobreviviente y el demote de estado ven la misma versión de la fila,
// así que un Merge concurrente nunca se pisa.
func (r *syncRepo) PurgeEntity(ctx context.Context, userID string, entityType types.EntityType, entityID string) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sync_status SET
			updated_entities = CASE
				WHEN (SELECT COALESCE(jsonb_agg(e), '[]'::jsonb)
				      FROM jsonb_array_elements(updated_entities->$2::text) e
				      WHERE e->>'id' <> $3::text) = '[]'::jsonb
				THEN updated_entities - $2::text
				ELSE jsonb_set(updated_entities, ARRAY[$2::text],
				     (SELECT jsonb_agg(e)
				      FROM jsonb_array_elements(updated_entities->$2::text) e
				      WHERE e->>'id' <> $3::text))
			END,
			updated_fields = CASE
				WHEN (SELECT COALESCE(jsonb_agg(e), '[]'::jsonb)
				      FROM jsonb_array_elements(updated_entities->$2::text) e
				      WHERE e->>'id' <> $3::text) = '[]'::jsonb
				THEN array_remove(updated_fields, $2::text)
				ELSE updated_fields
			END,
			status = CASE
				WHEN status = 'existing_user_after_update'
				 AND array_remove(updated_fields, $2::text) = '{}'::text[]
				 AND (SELECT COALESCE(jsonb_agg(e), '[]'::jsonb)
				      FROM jsonb_array_elements(updated_entities->$2::text) e
				      WHERE e->>'id' <> $3::text) = '[]'::jsonb
				 AND NOT EXISTS (
				      SELECT 1 FROM jsonb_each(updated_entities - $2::text) kv
				      WHERE jsonb_array_length(kv.value) > 0)
				THEN 'existing_user'
				ELSE status
			END
		WHERE user_id = $1
		  AND COALESCE(updated_entities->$2::text, '[]'::jsonb) @> jsonb_build_array(jsonb_build_object('id', $3::text))`,
		userID, string(entityType), entityID)
	if err != nil {
		return 0, mapErr(err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *syncRepo) Delete(ctx context.Context, clientID string, userIDs []string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM sync_status WHERE client_id = $1 AND user_id = ANY($2)`,
		clientID, userIDs)
	return mapErr(err)
}
