package repository

import (
	"context"
	"time"

	"github.com/dropDatabas3/profilesync/internal/domain/types"
)

// User representa el perfil real de un usuario.
type User struct {
	ID        string
	FirstName string
	LastName  string
	BirthDate *time.Time
	Language  string
	Gender    string
	// AuthorizedClientIDs lista los clients con autorización persistida.
	AuthorizedClientIDs []string
	CreatedAt           time.Time
}

// Email es una dirección de email del usuario.
type Email struct {
	ID       string
	UserID   string
	Address  string
	Verified bool
	Primary  bool
}

// PhoneNumber es un teléfono del usuario.
type PhoneNumber struct {
	ID     string
	UserID string
	Number string
	Type   string
	// OldType es un marcador sombra: el tipo que el teléfono tenía antes del
	// write actual. Lo setea el write path; el diff collector lo compara con
	// Type para no contar un cambio de tipo hacia un tipo ya asignado.
	OldType  string
	Verified bool
}

// Address es una dirección postal del usuario.
type Address struct {
	ID          string
	UserID      string
	Street      string
	HouseNumber string
	ZipCode     string
	City        string
	Country     string
	// Roles son los roles semánticos de la dirección ("shipping", "billing").
	Roles []string
}

// EntityID implementa types-agnostic identity para el pipeline.
func (u *User) EntityID() string        { return u.ID }
func (u *User) OwnerID() string         { return u.ID }
func (e *Email) EntityID() string       { return e.ID }
func (e *Email) OwnerID() string        { return e.UserID }
func (p *PhoneNumber) EntityID() string { return p.ID }
func (p *PhoneNumber) OwnerID() string  { return p.UserID }
func (a *Address) EntityID() string     { return a.ID }
func (a *Address) OwnerID() string      { return a.UserID }

// Entity es cualquier entidad de perfil que participa en la propagación.
type Entity interface {
	EntityID() string
	// OwnerID retorna el usuario dueño (para users, el propio id).
	OwnerID() string
}

// UserRepository define operaciones sobre usuarios y sus sub-entidades.
type UserRepository interface {
	// GetByID busca un usuario por ID.
	// Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, userID string) (*User, error)

	// Save persiste un usuario (upsert por ID).
	Save(ctx context.Context, u *User) error

	// AddAuthorizedClient agrega un client a la lista de autorizados (add-to-set).
	AddAuthorizedClient(ctx context.Context, userID, clientID string) error

	// PullAuthorizedClient quita un client de la lista de autorizados de cada
	// usuario indicado. Usuarios que no lo listan no son un error.
	PullAuthorizedClient(ctx context.Context, clientID string, userIDs []string) error

	// GetAddress busca una dirección por ID, validando pertenencia al usuario.
	// Retorna ErrNotFound si no existe o si pertenece a otro usuario.
	GetAddress(ctx context.Context, userID, addressID string) (*Address, error)

	// SaveAddress persiste una dirección (upsert por ID).
	SaveAddress(ctx context.Context, a *Address) error

	// RemoveAddress borra la dirección del usuario, preservando el orden
	// relativo de las restantes. Retorna ErrNotFound si no le pertenece.
	RemoveAddress(ctx context.Context, userID, addressID string) error

	// ListAddresses lista las direcciones del usuario en orden de alta.
	ListAddresses(ctx context.Context, userID string) ([]Address, error)
}

// ClientTypeTags retorna el nombre de tipo de entidad para un Entity concreto.
// Panic si la entidad no es de un tipo conocido: es un error de programación
// del write path, no una condición de runtime.
func ClientTypeTags(e Entity) types.EntityType {
	switch e.(type) {
	case *User:
		return types.EntityUsers
	case *Email:
		return types.EntityEmails
	case *PhoneNumber:
		return types.EntityPhoneNumbers
	case *Address:
		return types.EntityAddresses
	}
	panic("repository: unknown entity type")
}
