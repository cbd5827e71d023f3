// Package grants resolves which client authorizations are interested in a
// given entity mutation.
package grants

import (
	"context"
	"sort"

	"github.com/dropDatabas3/profilesync/internal/config"
	"github.com/dropDatabas3/profilesync/internal/diff"
	"github.com/dropDatabas3/profilesync/internal/domain/repository"
	"github.com/dropDatabas3/profilesync/internal/domain/types"
	"github.com/dropDatabas3/profilesync/internal/observability/logger"
)

// Grant is the per-client view over a user: the union of the client's active
// token-bound authorizations and its persisted user-level authorization.
type Grant struct {
	ClientID string
	UserID   string
	// Scopes is the deduplicated union of field/entity-type names granted.
	Scopes []string
	// EntityIDs lists, per type, the entities already shown to this client.
	EntityIDs map[types.EntityType][]string
	// HasUserAuthorization marks that a persisted user-level authorization
	// exists, making the client eligible for passive polling.
	HasUserAuthorization bool
}

// ShownEntity reports whether the grant was previously shown the entity.
func (g *Grant) ShownEntity(t types.EntityType, id string) bool {
	for _, e := range g.EntityIDs[t] {
		if e == id {
			return true
		}
	}
	return false
}

// HasScope reports whether the grant's scope contains the name.
func (g *Grant) HasScope(name string) bool {
	for _, s := range g.Scopes {
		if s == name {
			return true
		}
	}
	return false
}

// Resolver computes the grant set relevant to a mutation.
type Resolver struct {
	auths     repository.AuthorizationRepository
	userAuths repository.UserAuthorizationRepository
	cfg       config.Propagation
}

// Deps contains dependencies for the Resolver.
type Deps struct {
	Authorizations     repository.AuthorizationRepository
	UserAuthorizations repository.UserAuthorizationRepository
	Config             config.Propagation
}

// New creates a Resolver.
func New(d Deps) *Resolver {
	return &Resolver{auths: d.Authorizations, userAuths: d.UserAuthorizations, cfg: d.Config}
}

// GrantsFor returns the distinct grants relevant to the mutation, one per
// client, in stable client order. An empty result is the expected no-op
// condition, not an error.
func (r *Resolver) GrantsFor(ctx context.Context, m diff.Mutation, res diff.Result) ([]Grant, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("grants.GrantsFor"))

	userID := m.Entity.OwnerID()
	merged, err := r.activeGrants(ctx, userID)
	if err != nil {
		return nil, err
	}

	var out []Grant
	for _, g := range merged {
		if r.interested(g, m, res) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })

	log.Debug("grants resolved",
		logger.UserID(userID), logger.EntityType(m.Type),
		logger.Event(m.Event), logger.Count(len(out)))
	return out, nil
}

// activeGrants merges token-bound and user-level authorizations per client.
func (r *Resolver) activeGrants(ctx context.Context, userID string) (map[string]Grant, error) {
	auths, err := r.auths.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	userAuths, err := r.userAuths.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]Grant)
	for _, a := range auths {
		g := merged[a.ClientID]
		g.ClientID = a.ClientID
		g.UserID = userID
		g.Scopes = unionStrings(g.Scopes, a.Scopes)
		g.EntityIDs = unionEntityIDs(g.EntityIDs, a.EntityIDs)
		merged[a.ClientID] = g
	}
	for _, ua := range userAuths {
		g := merged[ua.ClientID]
		g.ClientID = ua.ClientID
		g.UserID = userID
		g.Scopes = unionStrings(g.Scopes, ua.Scopes)
		g.EntityIDs = unionEntityIDs(g.EntityIDs, ua.EntityIDs)
		g.HasUserAuthorization = true
		merged[ua.ClientID] = g
	}
	return merged, nil
}

// interested decide si el grant debe enterarse de esta mutación.
func (r *Resolver) interested(g Grant, m diff.Mutation, res diff.Result) bool {
	if m.Type == types.EntityUsers {
		// Diff-driven: sin intersección de scope con campos cambiados no hay
		// evento, salvo creación de un tipo new-client-eligible.
		for _, f := range res.ChangedFields {
			if g.HasScope(f) {
				return true
			}
		}
		return m.IsNew && r.cfg.NewClientEligibleType(m.Type)
	}

	// Sub-entidades: solo grants que ya vieron esta entidad concreta. Esto
	// evita notificar a un client sobre una entidad que nunca le fue visible.
	// En remove aplica el mismo lookup con el último id conocido.
	if g.ShownEntity(m.Type, m.Entity.EntityID()) {
		return true
	}
	return m.IsNew && r.cfg.NewClientEligibleType(m.Type) && g.HasScope(string(m.Type))
}

func unionStrings(dst, src []string) []string {
	for _, s := range src {
		found := false
		for _, d := range dst {
			if d == s {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, s)
		}
	}
	return dst
}

func unionEntityIDs(dst, src map[types.EntityType][]string) map[types.EntityType][]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[types.EntityType][]string, len(src))
	}
	for t, ids := range src {
		dst[t] = unionStrings(dst[t], ids)
	}
	return dst
}
