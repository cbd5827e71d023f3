package repository

import (
	"context"
	"time"
)

// Client es una aplicación OAuth consumidora del perfil.
type Client struct {
	ID   string
	Name string
	// PushEndpoint es el webhook registrado para notificaciones activas.
	// Vacío significa que el client solo hace polling pasivo.
	PushEndpoint string
	CreatedAt    time.Time
}

// PushCapable retorna true si el client registró un endpoint de push.
func (c *Client) PushCapable() bool { return c.PushEndpoint != "" }

// ClientRepository define operaciones sobre clients registrados.
type ClientRepository interface {
	// Save registra o actualiza un client (upsert por ID).
	Save(ctx context.Context, c *Client) error

	// GetByID busca un client. Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*Client, error)

	// ListByIDs retorna los clients existentes entre los IDs dados.
	// IDs inexistentes se omiten sin error.
	ListByIDs(ctx context.Context, ids []string) ([]Client, error)
}

// TestAccount marca que un (client, user) usa una cuenta de prueba.
type TestAccount struct {
	ClientID  string
	UserID    string
	CreatedAt time.Time
}

// TestAccountRepository define operaciones sobre test accounts.
type TestAccountRepository interface {
	// Create persiste una marca de test account (idempotente).
	Create(ctx context.Context, t *TestAccount) error

	// Delete borra las marcas de un client con cada usuario indicado.
	Delete(ctx context.Context, clientID string, userIDs []string) error
}
