// Package queue define el delivery queue externo de notificaciones.
//
// El pipeline publica punteros compactos {client_id, user_id}; un worker
// externo los consume, lee el payload completo del mailbox y hace el push
// HTTP. La publicación es at-least-once y best-effort desde la perspectiva
// de la mutación que la dispara.
package queue

import "context"

// Pointer es el puntero compacto que viaja por el queue.
type Pointer struct {
	ClientID string `json:"client_id"`
	UserID   string `json:"user_id"`
}

// DeliveryQueue publica punteros de delivery.
type DeliveryQueue interface {
	// Publish encola un puntero. Un error es retryable: el mailbox durable
	// ya tiene el payload y el barrido de reconciliación re-deriva punteros.
	Publish(ctx context.Context, p Pointer) error

	// Close libera recursos.
	Close() error
}
