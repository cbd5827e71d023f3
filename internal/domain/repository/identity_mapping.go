package repository

import (
	"context"
	"time"

	"github.com/dropDatabas3/profilesync/internal/domain/types"
)

// IdentityMapping mapea (client, user, real_id) a un id opaco estable.
// Una vez creado es inmutable y se reusa mientras viva la relación
// client-usuario; EntityTypes lista los tipos para los que vale.
type IdentityMapping struct {
	ClientID    string
	UserID      string
	RealID      string
	OpaqueID    string
	EntityTypes []types.EntityType
	CreatedAt   time.Time
}

// IdentityMappingRepository define operaciones sobre identity mappings.
type IdentityMappingRepository interface {
	// Create persiste un mapping nuevo. Retorna ErrConflict si ya existe uno
	// para (client, user, real_id): el caller debe releer y reusar.
	Create(ctx context.Context, m *IdentityMapping) error

	// Get busca el mapping por clave real. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, clientID, userID, realID string) (*IdentityMapping, error)

	// GetByOpaque busca el mapping por id opaco dentro de (client, user).
	// Retorna ErrNotFound si no existe (revocado o forjado).
	GetByOpaque(ctx context.Context, clientID, userID, opaqueID string) (*IdentityMapping, error)

	// AddEntityType agrega un tipo al mapping existente (add-to-set).
	AddEntityType(ctx context.Context, clientID, userID, realID string, entityType types.EntityType) error

	// ListByRealID lista los mappings de una entidad concreta, system-wide.
	ListByRealID(ctx context.Context, realID string) ([]IdentityMapping, error)

	// DeleteByClientUsers borra todos los mappings de un client con cada
	// usuario indicado.
	DeleteByClientUsers(ctx context.Context, clientID string, userIDs []string) error

	// DeleteByRealID borra los mappings de una entidad concreta, system-wide.
	DeleteByRealID(ctx context.Context, realID string) error
}
