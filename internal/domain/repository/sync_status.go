package repository

import (
	"context"

	"github.com/dropDatabas3/profilesync/internal/domain/types"
)

// EntityDiff describe el cambio pendiente de una entidad para un client.
type EntityDiff struct {
	EntityID      string           `json:"id"`
	Status        types.DiffStatus `json:"status"`
	UpdatedFields []string         `json:"updated_fields"`
}

// SyncStatus es el estado de sincronización de un (client, user): estado de
// onboarding más las colas de diffs pendientes de consumir por pull.
type SyncStatus struct {
	ClientID       string
	UserID         string
	Status         types.SyncState
	UseTestAccount bool
	// UpdatedFields acumula nombres de campo como set deduplicado.
	UpdatedFields []string
	// UpdatedEntities acumula diffs por tipo; se appendea sin deduplicar
	// (puede haber varios diffs para el mismo id, uno por mutación).
	UpdatedEntities map[types.EntityType][]EntityDiff
}

// SyncStatusMerge es un merge atómico sobre la fila (client, user).
// Los slices vacíos son no-op: nunca borran historia previa. La única forma
// de vaciar las colas es el camino Replace.
type SyncStatusMerge struct {
	ClientID string
	UserID   string
	// Status se aplica solo si la transición es válida según
	// types.SyncState.CanMergeTo; si no, se descarta en silencio y el resto
	// del merge se aplica igual.
	Status *types.SyncState
	// UseTestAccount nunca es bloqueado por el guard de transición.
	UseTestAccount *bool
	// AddFields se une al set UpdatedFields (duplicados descartados).
	AddFields []string
	// AppendDiffs se appendea a UpdatedEntities por tipo.
	AppendDiffs map[types.EntityType][]EntityDiff
}

// SyncStatusRepository define operaciones sobre sync status.
//
// Merge y Replace deben ser atómicos a nivel storage: dos mutaciones casi
// simultáneas sobre el mismo (client, user) no pueden perderse updates.
type SyncStatusRepository interface {
	// Get busca la fila de un (client, user). Retorna ErrNotFound si no existe.
	Get(ctx context.Context, clientID, userID string) (*SyncStatus, error)

	// Merge aplica un merge atómico, creando la fila si no existe (con estado
	// inicial new_user). Ver SyncStatusMerge para la semántica por campo.
	Merge(ctx context.Context, m SyncStatusMerge) error

	// Replace reemplaza la fila completa ($set): es el único camino que puede
	// dejar colas vacías. Crea la fila si no existe.
	Replace(ctx context.Context, s *SyncStatus) error

	// PurgeEntity quita los diffs pendientes de la entidad de todas las filas
	// del usuario, para cualquier client. Cada fila se actualiza en una sola
	// operación atómica, nunca read-modify-write del caller: si el tipo queda
	// sin diffs se remueven su clave y su nombre del set de campos, y si la
	// fila queda sin nada pendiente existing_user_after_update baja a
	// existing_user. Retorna cuántas filas tocó.
	PurgeEntity(ctx context.Context, userID string, entityType types.EntityType, entityID string) (int, error)

	// Delete borra las filas de un client con cada usuario indicado.
	Delete(ctx context.Context, clientID string, userIDs []string) error
}
