// Package propagation orquesta el pipeline de cambios: diff, resolución de
// grants, notificación y sync status, en ese orden y con dependencias
// explícitas. El write path lo invoca de forma síncrona después del commit.
package propagation

import (
	"context"

	"github.com/dropDatabas3/profilesync/internal/cascade"
	"github.com/dropDatabas3/profilesync/internal/diff"
	"github.com/dropDatabas3/profilesync/internal/domain/repository"
	"github.com/dropDatabas3/profilesync/internal/domain/types"
	"github.com/dropDatabas3/profilesync/internal/grants"
	"github.com/dropDatabas3/profilesync/internal/metrics"
	"github.com/dropDatabas3/profilesync/internal/notify"
	"github.com/dropDatabas3/profilesync/internal/observability/logger"
	"github.com/dropDatabas3/profilesync/internal/syncstatus"
)

// Pipeline ata los componentes de propagación en orden fijo.
type Pipeline struct {
	collector  *diff.Collector
	resolver   *grants.Resolver
	statuses   syncstatus.Service
	dispatcher *notify.Dispatcher
	cascade    cascade.Service
	users      repository.UserRepository
}

// Deps contains dependencies for the Pipeline.
type Deps struct {
	Collector  *diff.Collector
	Resolver   *grants.Resolver
	Statuses   syncstatus.Service
	Dispatcher *notify.Dispatcher
	Cascade    cascade.Service
	Users      repository.UserRepository
}

// New creates a Pipeline.
func New(d Deps) *Pipeline {
	return &Pipeline{
		collector:  d.Collector,
		resolver:   d.Resolver,
		statuses:   d.Statuses,
		dispatcher: d.Dispatcher,
		cascade:    d.Cascade,
		users:      d.Users,
	}
}

// clientBatch acumula lo que un client debe recibir por un lote de mutaciones.
type clientBatch struct {
	userID        string
	changedFields []string
	items         []notify.Item
	records       []record
}

type record struct {
	m   diff.Mutation
	res diff.Result
}

// ProcessSave propaga un save individual. Equivale a un lote de una mutación.
func (p *Pipeline) ProcessSave(ctx context.Context, e repository.Entity, modifiedFields []string, isNew bool) error {
	return p.ProcessBatch(ctx, []diff.Mutation{{
		Entity:         e,
		Type:           repository.ClientTypeTags(e),
		Event:          types.EventSave,
		ModifiedFields: modifiedFields,
		IsNew:          isNew,
	}})
}

// ProcessBatch propaga una mutación lógica compuesta por varias sub-entidades
// del mismo usuario. Cada client interesado con push endpoint recibe
// exactamente un payload en su mailbox por el lote completo, no uno por
// sub-entidad; los poll-only solo acumulan sync status.
func (p *Pipeline) ProcessBatch(ctx context.Context, batch []diff.Mutation) error {
	log := logger.From(ctx).With(logger.Layer("pipeline"), logger.Op("propagation.ProcessBatch"))

	perClient := make(map[string]*clientBatch)
	var order []string

	for _, m := range batch {
		res := p.collector.Collect(m)
		metrics.MutationsProcessed.WithLabelValues(string(m.Type), string(m.Event)).Inc()
		if !res.Relevant {
			metrics.MutationsShortCircuited.Inc()
			continue
		}

		gs, err := p.resolver.GrantsFor(ctx, m, res)
		if err != nil {
			return err
		}
		if len(gs) == 0 {
			// Nadie mira: no se escribe nada.
			metrics.MutationsShortCircuited.Inc()
			continue
		}

		for _, g := range gs {
			cb := perClient[g.ClientID]
			if cb == nil {
				cb = &clientBatch{userID: m.Entity.OwnerID()}
				perClient[g.ClientID] = cb
				order = append(order, g.ClientID)
			}
			if m.Type == types.EntityUsers {
				cb.changedFields = appendNew(cb.changedFields, res.ChangedFields)
			} else {
				cb.items = append(cb.items, notify.Item{Type: m.Type, Diff: res.EntityDiff})
			}
			cb.records = append(cb.records, record{m: m, res: res})
		}
	}

	for _, clientID := range order {
		cb := perClient[clientID]
		if err := p.dispatcher.Dispatch(ctx, clientID, cb.userID, cb.changedFields, cb.items); err != nil {
			return err
		}
		for _, r := range cb.records {
			if err := p.statuses.RecordMutation(ctx, clientID, r.m, r.res); err != nil {
				return err
			}
		}
	}

	if len(order) > 0 {
		log.Debug("batch propagated", logger.Count(len(order)))
	}
	return nil
}

// RemoveAddress borra una dirección propagando el evento remove. El orden
// importa: la notificación se arma con los mappings todavía vivos, la
// limpieza purga los diffs pendientes viejos, y recién después se registra el
// diff deleted para que el purge no se lo lleve puesto.
func (p *Pipeline) RemoveAddress(ctx context.Context, userID, addressID string) error {
	addr, err := p.users.GetAddress(ctx, userID, addressID)
	if err != nil {
		return err
	}

	m := diff.Mutation{
		Entity: addr,
		Type:   types.EntityAddresses,
		Event:  types.EventRemove,
	}
	res := p.collector.Collect(m)
	metrics.MutationsProcessed.WithLabelValues(string(m.Type), string(m.Event)).Inc()

	gs, err := p.resolver.GrantsFor(ctx, m, res)
	if err != nil {
		return err
	}
	for _, g := range gs {
		item := notify.Item{Type: types.EntityAddresses, Diff: res.EntityDiff}
		if err := p.dispatcher.Dispatch(ctx, g.ClientID, userID, nil, []notify.Item{item}); err != nil {
			return err
		}
	}

	if err := p.cascade.RemoveAddress(ctx, userID, addressID); err != nil {
		return err
	}

	for _, g := range gs {
		if err := p.statuses.RecordMutation(ctx, g.ClientID, m, res); err != nil {
			return err
		}
	}
	return nil
}

// appendNew une src a dst descartando duplicados, preservando orden.
func appendNew(dst, src []string) []string {
	for _, s := range src {
		dup := false
		for _, d := range dst {
			if d == s {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, s)
		}
	}
	return dst
}
