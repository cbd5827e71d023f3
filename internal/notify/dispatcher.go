// Package notify construye payloads de notificación con ids virtualizados y
// los encola: append durable al mailbox más un puntero best-effort al queue.
// Solo participan los clients con push endpoint registrado; un client
// poll-only no tiene worker que consuma su mailbox y lee su sync status.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/profilesync/internal/domain/repository"
	"github.com/dropDatabas3/profilesync/internal/domain/types"
	"github.com/dropDatabas3/profilesync/internal/metrics"
	"github.com/dropDatabas3/profilesync/internal/observability/logger"
	"github.com/dropDatabas3/profilesync/internal/queue"
	"github.com/dropDatabas3/profilesync/internal/virtualid"
)

// EventProfileUpdate etiqueta todo payload de cambio de perfil.
const EventProfileUpdate = "profile_update"

// Item es la contribución de una mutación al payload de un (client, user).
// Los ids dentro de Diff son reales; el dispatcher los virtualiza.
type Item struct {
	Type types.EntityType
	Diff repository.EntityDiff
}

// entityPayload es la forma wire de un diff con id opaco.
type entityPayload struct {
	ID            string           `json:"id"`
	Status        types.DiffStatus `json:"status"`
	UpdatedFields []string         `json:"updated_fields,omitempty"`
}

// payload es la forma wire de una notificación.
type payload struct {
	EventType string                               `json:"event_type"`
	UserID    string                               `json:"user_id"`
	Entities  map[types.EntityType][]entityPayload `json:"entities,omitempty"`
	Fields    []string                             `json:"updated_fields,omitempty"`
}

// Dispatcher arma y encola notificaciones.
type Dispatcher struct {
	mailboxes   repository.MailboxRepository
	clients     repository.ClientRepository
	virtualizer virtualid.Service
	queue       queue.DeliveryQueue
	timeout     time.Duration
	now         func() time.Time
}

// Deps contains dependencies for the Dispatcher.
type Deps struct {
	Mailboxes   repository.MailboxRepository
	Clients     repository.ClientRepository
	Virtualizer virtualid.Service
	Queue       queue.DeliveryQueue
	// PublishTimeout acota el publish best-effort al queue.
	PublishTimeout time.Duration
	// Now permite inyectar el reloj en tests.
	Now func() time.Time
}

// New creates a Dispatcher.
func New(d Deps) *Dispatcher {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.PublishTimeout <= 0 {
		d.PublishTimeout = 2 * time.Second
	}
	return &Dispatcher{
		mailboxes:   d.Mailboxes,
		clients:     d.Clients,
		virtualizer: d.Virtualizer,
		queue:       d.Queue,
		timeout:     d.PublishTimeout,
		now:         d.Now,
	}
}

// Dispatch arma un payload por el lote de items de un (client, user), lo
// appendea al mailbox y publica el puntero de delivery. Los clients sin push
// endpoint se saltean por completo: su estado pendiente ya vive en sync
// status. El append durable manda: un fallo del queue se loguea y no corta
// nada.
func (d *Dispatcher) Dispatch(ctx context.Context, clientID, userID string, changedFields []string, items []Item) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("notify.Dispatch"),
		logger.ClientID(clientID), logger.UserID(userID))

	client, err := d.clients.GetByID(ctx, clientID)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Warn("client gone, dispatch skipped")
			return nil
		}
		return err
	}
	if !client.PushCapable() {
		return nil
	}

	opaqueUser, err := d.virtualizer.Virtualize(ctx, clientID, userID, userID, types.EntityUsers)
	if err != nil {
		return err
	}

	p := payload{
		EventType: EventProfileUpdate,
		UserID:    opaqueUser,
		Fields:    changedFields,
	}
	for _, it := range items {
		opaque, err := d.virtualizer.Virtualize(ctx, clientID, userID, it.Diff.EntityID, it.Type)
		if err != nil {
			return err
		}
		if p.Entities == nil {
			p.Entities = make(map[types.EntityType][]entityPayload)
		}
		p.Entities[it.Type] = append(p.Entities[it.Type], entityPayload{
			ID:            opaque,
			Status:        it.Diff.Status,
			UpdatedFields: it.Diff.UpdatedFields,
		})
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := d.mailboxes.Append(ctx, clientID, userID, raw, d.now().UTC()); err != nil {
		return err
	}
	metrics.NotificationsEnqueued.Inc()

	d.publishPointer(ctx, log, clientID, userID)
	return nil
}

// publishPointer publica el puntero de delivery. Best-effort: el barrido de
// reconciliación re-deriva punteros desde los mailboxes con payloads
// pendientes.
func (d *Dispatcher) publishPointer(ctx context.Context, log *zap.Logger, clientID, userID string) {
	pubCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.queue.Publish(pubCtx, queue.Pointer{ClientID: clientID, UserID: userID}); err != nil {
		metrics.QueuePublishFailures.Inc()
		log.Warn("queue publish failed, mailbox retains payload", logger.Err(err))
	}
}

// Reconcile re-publica punteros para todo mailbox con payloads sin entregar.
// Lo corre un ticker del server para cubrir publishes perdidos.
func (d *Dispatcher) Reconcile(ctx context.Context) error {
	keys, err := d.mailboxes.ListUndelivered(ctx)
	if err != nil {
		return err
	}
	metrics.MailboxBacklog.Set(float64(len(keys)))
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("notify.Reconcile"))
	for _, k := range keys {
		klog := log.With(logger.ClientID(k.ClientID), logger.UserID(k.UserID))
		// El endpoint pudo desaparecer desde el append; se rechequea.
		client, err := d.clients.GetByID(ctx, k.ClientID)
		if err != nil {
			if !repository.IsNotFound(err) {
				klog.Warn("client lookup failed, pointer skipped", logger.Err(err))
			}
			continue
		}
		if !client.PushCapable() {
			continue
		}
		d.publishPointer(ctx, klog, k.ClientID, k.UserID)
	}
	if len(keys) > 0 {
		log.Info("pointers re-derived from undelivered mailboxes", logger.Count(len(keys)))
	}
	return nil
}
