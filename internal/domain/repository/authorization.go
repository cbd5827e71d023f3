package repository

import (
	"context"
	"time"

	"github.com/dropDatabas3/profilesync/internal/domain/types"
)

// Authorization es una autorización token-bound: se crea una vez por
// authorization OAuth y su scope es inmutable desde la emisión.
type Authorization struct {
	ID       string
	ClientID string
	UserID   string
	Scopes   []string
	// EntityIDs lista, por tipo, las entidades ya mostradas a este client.
	EntityIDs map[types.EntityType][]string
	CreatedAt time.Time
	RevokedAt *time.Time
}

// Active retorna true si la autorización no fue revocada.
func (a *Authorization) Active() bool { return a.RevokedAt == nil }

// UserAuthorization es la autorización persistida a nivel usuario, usada para
// polling pasivo. A lo sumo una por (client, user).
type UserAuthorization struct {
	ID        string
	ClientID  string
	UserID    string
	Scopes    []string
	EntityIDs map[types.EntityType][]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AuthorizationRepository define operaciones sobre autorizaciones token-bound.
type AuthorizationRepository interface {
	// Create persiste una nueva autorización.
	Create(ctx context.Context, a *Authorization) error

	// GetByID busca una autorización. Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*Authorization, error)

	// ListActiveByUser lista las autorizaciones activas de un usuario.
	ListActiveByUser(ctx context.Context, userID string) ([]Authorization, error)

	// AddEntityID registra una entidad como mostrada al client (add-to-set).
	AddEntityID(ctx context.Context, authID string, entityType types.EntityType, entityID string) error

	// PullEntityID quita una entidad de toda autorización que la liste,
	// system-wide. Preserva el orden relativo de las restantes.
	PullEntityID(ctx context.Context, entityType types.EntityType, entityID string) error

	// DeleteByIDs borra autorizaciones por ID. IDs inexistentes se ignoran.
	DeleteByIDs(ctx context.Context, ids []string) error
}

// UserAuthorizationRepository define operaciones sobre autorizaciones
// persistidas a nivel usuario.
type UserAuthorizationRepository interface {
	// Get busca la autorización de un (client, user).
	// Retorna ErrNotFound si no existe.
	Get(ctx context.Context, clientID, userID string) (*UserAuthorization, error)

	// Upsert crea o actualiza la autorización, reemplazando scopes.
	Upsert(ctx context.Context, ua *UserAuthorization) error

	// ListByUser lista todas las autorizaciones persistidas de un usuario.
	ListByUser(ctx context.Context, userID string) ([]UserAuthorization, error)

	// AddEntityID registra una entidad como mostrada al client (add-to-set).
	AddEntityID(ctx context.Context, clientID, userID string, entityType types.EntityType, entityID string) error

	// PullEntityID quita una entidad de toda autorización que la liste,
	// system-wide. Preserva el orden relativo de las restantes.
	PullEntityID(ctx context.Context, entityType types.EntityType, entityID string) error

	// Delete borra las autorizaciones de un client con cada usuario indicado.
	Delete(ctx context.Context, clientID string, userIDs []string) error
}

// AccessToken es un access token emitido contra una autorización token-bound.
type AccessToken struct {
	ID              string
	AuthorizationID string
	TokenHash       string
	ExpiresAt       time.Time
}

// AccessTokenRepository define operaciones sobre access tokens.
type AccessTokenRepository interface {
	// Create persiste un access token.
	Create(ctx context.Context, t *AccessToken) error

	// DeleteByAuthorizationIDs borra los tokens de las autorizaciones dadas.
	DeleteByAuthorizationIDs(ctx context.Context, authIDs []string) error
}
