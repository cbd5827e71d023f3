// Package syncstatus mantiene la máquina de estados de sincronización por
// (client, user) y sus colas de diffs pendientes.
package syncstatus

import (
	"context"

	"github.com/dropDatabas3/profilesync/internal/diff"
	"github.com/dropDatabas3/profilesync/internal/domain/repository"
	"github.com/dropDatabas3/profilesync/internal/domain/types"
	"github.com/dropDatabas3/profilesync/internal/observability/logger"
)

// Service expone las transiciones del estado de sincronización.
type Service interface {
	// RecordMutation mergea una mutación relevante en la fila (client, user).
	// El guard de transición puede descartar el avance de estado en silencio
	// (new_user no se promueve por diffs); el resto del merge se aplica igual.
	RecordMutation(ctx context.Context, clientID string, m diff.Mutation, res diff.Result) error

	// MarkConsumed registra que el client consumió el perfil: vacía las colas
	// y deja el estado en existing_user (o after_test si usa cuenta de prueba).
	MarkConsumed(ctx context.Context, clientID, userID string) error

	// SetUseTestAccount activa o desactiva la cuenta de prueba para la
	// relación. Es un camino de replace: nunca lo bloquea el guard de merge.
	SetUseTestAccount(ctx context.Context, clientID, userID string, use bool) error

	// ResetForDeletedEntity purga de todas las filas pendientes los diffs que
	// referencian una entidad borrada, para cualquier client.
	ResetForDeletedEntity(ctx context.Context, userID string, entityType types.EntityType, entityID string) error
}

// Deps contains dependencies for the Service.
type Deps struct {
	Statuses repository.SyncStatusRepository
}

type service struct {
	statuses repository.SyncStatusRepository
}

// New creates a sync status Service.
func New(d Deps) Service {
	return &service{statuses: d.Statuses}
}

func (s *service) RecordMutation(ctx context.Context, clientID string, m diff.Mutation, res diff.Result) error {
	userID := m.Entity.OwnerID()
	merge := repository.SyncStatusMerge{ClientID: clientID, UserID: userID}

	if m.Type == types.EntityUsers {
		// El usuario raíz acumula nombres de campo, no registros de diff.
		merge.AddFields = res.ChangedFields
	} else {
		merge.AddFields = []string{string(m.Type)}
		merge.AppendDiffs = map[types.EntityType][]repository.EntityDiff{
			m.Type: {res.EntityDiff},
		}
	}

	if !(m.Type == types.EntityUsers && m.IsNew) {
		// La creación del usuario raíz solo asegura la fila: nace new_user y
		// su primer fetch entrega el perfil completo.
		target := types.StateExistingUserAfterUpdate
		merge.Status = &target
	}

	return s.statuses.Merge(ctx, merge)
}

func (s *service) MarkConsumed(ctx context.Context, clientID, userID string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("syncstatus.MarkConsumed"))

	cur, err := s.statuses.Get(ctx, clientID, userID)
	if err != nil && !repository.IsNotFound(err) {
		return err
	}

	next := &repository.SyncStatus{
		ClientID: clientID,
		UserID:   userID,
		Status:   types.StateExistingUser,
	}
	if cur != nil && cur.UseTestAccount {
		next.UseTestAccount = true
		next.Status = types.StateExistingUserAfterTest
	}
	if err := s.statuses.Replace(ctx, next); err != nil {
		return err
	}

	log.Debug("profile consumed",
		logger.ClientID(clientID), logger.UserID(userID),
		logger.SyncState(next.Status))
	return nil
}

func (s *service) SetUseTestAccount(ctx context.Context, clientID, userID string, use bool) error {
	next := &repository.SyncStatus{
		ClientID:       clientID,
		UserID:         userID,
		UseTestAccount: use,
	}
	if use {
		// Con cuenta de prueba los diffs del perfil real dejan de importar.
		next.Status = types.StateExistingUserAfterTest
	} else {
		// Al volver a la cuenta real el client re-onboardea desde cero.
		next.Status = types.StateNewUser
	}
	return s.statuses.Replace(ctx, next)
}

// ResetForDeletedEntity delega el trim al repositorio como operación atómica
// por fila: un merge concurrente de otra mutación del mismo usuario nunca se
// pierde contra el purge.
func (s *service) ResetForDeletedEntity(ctx context.Context, userID string, entityType types.EntityType, entityID string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("syncstatus.ResetForDeletedEntity"))

	n, err := s.statuses.PurgeEntity(ctx, userID, entityType, entityID)
	if err != nil {
		return err
	}

	log.Debug("pending diffs purged",
		logger.UserID(userID), logger.EntityType(entityType),
		logger.EntityID(entityID), logger.Count(n))
	return nil
}
