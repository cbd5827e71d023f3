package repository

import (
	"context"
	"time"
)

// PendingNotification es un payload serializado esperando delivery.
// Los payloads se appendean, nunca se mutan in place; el delivery worker
// externo los remueve al confirmar la entrega.
type PendingNotification struct {
	Payload   []byte
	CreatedAt time.Time
}

// MailboxRepository define operaciones sobre el mailbox durable por
// (client, user).
type MailboxRepository interface {
	// Append agrega un payload al final del mailbox, creándolo si no existe.
	Append(ctx context.Context, clientID, userID string, payload []byte, createdAt time.Time) error

	// List retorna los payloads pendientes en orden de append.
	// Un mailbox inexistente retorna lista vacía, no error.
	List(ctx context.Context, clientID, userID string) ([]PendingNotification, error)

	// Consume remueve los primeros n payloads (ack del delivery worker).
	Consume(ctx context.Context, clientID, userID string, n int) error

	// ListUndelivered lista las claves (client, user) con payloads pendientes;
	// lo usa el barrido de reconciliación que re-deriva punteros de queue.
	ListUndelivered(ctx context.Context) ([]MailboxKey, error)
}

// MailboxKey identifica un mailbox.
type MailboxKey struct {
	ClientID string
	UserID   string
}
