// Package cascade implementa las limpiezas en cascada: revocación de la
// relación client-usuario y scrub system-wide de entidades borradas.
package cascade

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/profilesync/internal/domain/repository"
	"github.com/dropDatabas3/profilesync/internal/domain/types"
	"github.com/dropDatabas3/profilesync/internal/metrics"
	"github.com/dropDatabas3/profilesync/internal/observability/logger"
	"github.com/dropDatabas3/profilesync/internal/syncstatus"
	"github.com/dropDatabas3/profilesync/internal/virtualid"
)

// Service expone las limpiezas en cascada.
type Service interface {
	// RemoveAuthorizations borra autorizaciones token-bound y sus access
	// tokens. Si además se pasan clientID y userIDs, borra todo rastro de la
	// relación client-usuario: autorización persistida, mappings, sync status,
	// test accounts y la entrada en la lista de clients autorizados del user.
	//
	// clientID y userIDs van juntos o no van: pasar solo uno es un error de
	// programación y hace panic. Cada colección se limpia de forma
	// independiente; un fallo en una no impide intentar las demás y los
	// errores se acumulan.
	RemoveAuthorizations(ctx context.Context, authIDs []string, clientID string, userIDs []string) error

	// RemoveAddress borra una dirección del usuario validando pertenencia,
	// la quita de toda autorización que la liste, borra sus mappings y purga
	// los diffs pendientes que la referencian. Retorna ErrNotFound si la
	// dirección no existe o pertenece a otro usuario.
	RemoveAddress(ctx context.Context, userID, addressID string) error

	// ScrubEntity quita una entidad borrada de toda autorización que la liste
	// y borra sus identity mappings, system-wide.
	ScrubEntity(ctx context.Context, entityType types.EntityType, entityID string) error
}

// Deps contains dependencies for the Service.
type Deps struct {
	Users              repository.UserRepository
	Authorizations     repository.AuthorizationRepository
	UserAuthorizations repository.UserAuthorizationRepository
	AccessTokens       repository.AccessTokenRepository
	IdentityMappings   repository.IdentityMappingRepository
	SyncStatuses       repository.SyncStatusRepository
	TestAccounts       repository.TestAccountRepository
	Statuses           syncstatus.Service
	Virtualizer        virtualid.Service
}

type service struct {
	deps Deps
}

// New creates a cascade Service.
func New(d Deps) Service {
	return &service{deps: d}
}

// collector acumula errores de pasos independientes corridos en paralelo.
type collector struct {
	g    errgroup.Group
	mu   sync.Mutex
	errs []error
}

func (c *collector) step(log func(name string, err error), name string, f func() error) {
	c.g.Go(func() error {
		if err := f(); err != nil {
			metrics.CascadeFailures.WithLabelValues(name).Inc()
			log(name, err)
			c.mu.Lock()
			c.errs = append(c.errs, err)
			c.mu.Unlock()
		}
		return nil
	})
}

func (c *collector) wait() error {
	_ = c.g.Wait()
	return multierr.Combine(c.errs...)
}

func (s *service) RemoveAuthorizations(ctx context.Context, authIDs []string, clientID string, userIDs []string) error {
	if (clientID == "") != (len(userIDs) == 0) {
		panic("cascade: clientID and userIDs must be supplied together")
	}

	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("cascade.RemoveAuthorizations"),
		logger.ClientID(clientID), logger.Count(len(authIDs)))
	logStep := func(name string, err error) {
		log.Error("cascade step failed", logger.String("collection", name), logger.Err(err))
	}

	var c collector
	if len(authIDs) > 0 {
		c.step(logStep, "authorizations", func() error {
			// Los tokens caen primero: un token sin autorización es inerte,
			// una autorización sin tokens no.
			if err := s.deps.AccessTokens.DeleteByAuthorizationIDs(ctx, authIDs); err != nil {
				return err
			}
			return s.deps.Authorizations.DeleteByIDs(ctx, authIDs)
		})
	}

	if clientID != "" {
		c.step(logStep, "user_authorizations", func() error {
			return s.deps.UserAuthorizations.Delete(ctx, clientID, userIDs)
		})
		c.step(logStep, "users", func() error {
			return s.deps.Users.PullAuthorizedClient(ctx, clientID, userIDs)
		})
		c.step(logStep, "identity_mappings", func() error {
			if err := s.deps.IdentityMappings.DeleteByClientUsers(ctx, clientID, userIDs); err != nil {
				return err
			}
			s.deps.Virtualizer.InvalidateClientUsers(clientID, userIDs)
			return nil
		})
		c.step(logStep, "sync_status", func() error {
			return s.deps.SyncStatuses.Delete(ctx, clientID, userIDs)
		})
		c.step(logStep, "test_accounts", func() error {
			return s.deps.TestAccounts.Delete(ctx, clientID, userIDs)
		})
	}

	if err := c.wait(); err != nil {
		return err
	}
	log.Info("authorizations removed")
	return nil
}

func (s *service) RemoveAddress(ctx context.Context, userID, addressID string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("cascade.RemoveAddress"),
		logger.UserID(userID), logger.EntityID(addressID))

	// Pertenencia primero: una dirección ajena es indistinguible de una
	// inexistente para el caller.
	if _, err := s.deps.Users.GetAddress(ctx, userID, addressID); err != nil {
		return err
	}
	if err := s.deps.Users.RemoveAddress(ctx, userID, addressID); err != nil {
		return err
	}

	if err := s.ScrubEntity(ctx, types.EntityAddresses, addressID); err != nil {
		return err
	}
	if err := s.deps.Statuses.ResetForDeletedEntity(ctx, userID, types.EntityAddresses, addressID); err != nil {
		return err
	}

	log.Info("address removed")
	return nil
}

func (s *service) ScrubEntity(ctx context.Context, entityType types.EntityType, entityID string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("cascade.ScrubEntity"),
		logger.EntityType(entityType), logger.EntityID(entityID))
	logStep := func(name string, err error) {
		log.Error("scrub step failed", logger.String("collection", name), logger.Err(err))
	}

	var c collector
	c.step(logStep, "authorizations", func() error {
		return s.deps.Authorizations.PullEntityID(ctx, entityType, entityID)
	})
	c.step(logStep, "user_authorizations", func() error {
		return s.deps.UserAuthorizations.PullEntityID(ctx, entityType, entityID)
	})
	c.step(logStep, "identity_mappings", func() error {
		// Los mappings afectados se leen antes del delete para poder vaciar
		// la cache de resolución: un id opaco revocado no puede seguir
		// resolviendo hasta que venza el TTL.
		ms, err := s.deps.IdentityMappings.ListByRealID(ctx, entityID)
		if err != nil {
			return err
		}
		if err := s.deps.IdentityMappings.DeleteByRealID(ctx, entityID); err != nil {
			return err
		}
		for _, m := range ms {
			s.deps.Virtualizer.InvalidateClientUsers(m.ClientID, []string{m.UserID})
		}
		return nil
	})
	return c.wait()
}
