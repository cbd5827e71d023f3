// Package virtualid contains the identity virtualizer: per-client opaque ids
// that stand in for real entity ids so clients cannot correlate a user across
// applications.
package virtualid

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/profilesync/internal/domain/repository"
	"github.com/dropDatabas3/profilesync/internal/domain/types"
	"github.com/dropDatabas3/profilesync/internal/metrics"
	"github.com/dropDatabas3/profilesync/internal/observability/logger"
)

// Service maps (client, user, real id) to stable opaque ids and back.
type Service interface {
	// Virtualize returns the opaque id for (client, user, realID), creating
	// the mapping on first touch. Idempotent under concurrent first calls:
	// the storage unique constraint decides the winner and the loser re-reads.
	Virtualize(ctx context.Context, clientID, userID, realID string, entityType types.EntityType) (string, error)

	// Resolve returns the real id behind an opaque id.
	// Returns repository.ErrNotFound for revoked or forged ids.
	Resolve(ctx context.Context, clientID, userID, opaqueID string) (string, error)

	// InvalidateClientUsers drops cached resolutions for a (client, users)
	// set. Called by the cascade cleanup after deleting mappings.
	InvalidateClientUsers(clientID string, userIDs []string)
}

// Deps contains dependencies for the virtualizer.
type Deps struct {
	Mappings repository.IdentityMappingRepository
	// CacheTTL bounds the resolve read-through cache.
	CacheTTL time.Duration
}

type service struct {
	mappings repository.IdentityMappingRepository
	cache    *gocache.Cache
}

// New creates a virtualizer Service.
func New(d Deps) Service {
	ttl := d.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &service{
		mappings: d.Mappings,
		cache:    gocache.New(ttl, 2*ttl),
	}
}

func cacheKey(clientID, userID, opaqueID string) string {
	return clientID + "|" + userID + "|" + opaqueID
}

func (s *service) Virtualize(ctx context.Context, clientID, userID, realID string, entityType types.EntityType) (string, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("virtualid.Virtualize"))

	if !entityType.IsValid() {
		panic("virtualid: invalid entity type " + string(entityType))
	}

	m, err := s.mappings.Get(ctx, clientID, userID, realID)
	if err == nil {
		return s.ensureType(ctx, m, entityType)
	}
	if !repository.IsNotFound(err) {
		return "", err
	}

	created := &repository.IdentityMapping{
		ClientID:    clientID,
		UserID:      userID,
		RealID:      realID,
		OpaqueID:    uuid.NewString(),
		EntityTypes: []types.EntityType{entityType},
	}
	err = s.mappings.Create(ctx, created)
	if err == nil {
		metrics.MappingsCreated.Inc()
		log.Debug("mapping created",
			logger.ClientID(clientID), logger.UserID(userID),
			logger.EntityID(realID), logger.OpaqueID(created.OpaqueID))
		return created.OpaqueID, nil
	}
	if !repository.IsConflict(err) {
		return "", err
	}

	// Perdimos la carrera de primer touch: releer y reusar el mapping ganador.
	m, err = s.mappings.Get(ctx, clientID, userID, realID)
	if err != nil {
		return "", err
	}
	return s.ensureType(ctx, m, entityType)
}

// ensureType agrega el tag de tipo si el mapping existente no lo tiene.
func (s *service) ensureType(ctx context.Context, m *repository.IdentityMapping, entityType types.EntityType) (string, error) {
	for _, t := range m.EntityTypes {
		if t == entityType {
			return m.OpaqueID, nil
		}
	}
	if err := s.mappings.AddEntityType(ctx, m.ClientID, m.UserID, m.RealID, entityType); err != nil {
		return "", err
	}
	return m.OpaqueID, nil
}

func (s *service) Resolve(ctx context.Context, clientID, userID, opaqueID string) (string, error) {
	key := cacheKey(clientID, userID, opaqueID)
	if v, ok := s.cache.Get(key); ok {
		return v.(string), nil
	}

	m, err := s.mappings.GetByOpaque(ctx, clientID, userID, opaqueID)
	if err != nil {
		return "", err
	}
	s.cache.SetDefault(key, m.RealID)
	return m.RealID, nil
}

func (s *service) InvalidateClientUsers(clientID string, userIDs []string) {
	for key := range s.cache.Items() {
		for _, uid := range userIDs {
			if strings.HasPrefix(key, clientID+"|"+uid+"|") {
				s.cache.Delete(key)
				break
			}
		}
	}
}
