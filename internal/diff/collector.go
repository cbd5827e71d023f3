// Package diff computes, for a single entity mutation, the set of changed
// observable fields and the normalized per-entity diff record.
package diff

import (
	"github.com/dropDatabas3/profilesync/internal/config"
	"github.com/dropDatabas3/profilesync/internal/domain/repository"
	"github.com/dropDatabas3/profilesync/internal/domain/types"
)

// Mutation describes one entity write as seen by the persistence hooks.
type Mutation struct {
	Entity repository.Entity
	Type   types.EntityType
	Event  types.EventName
	// ModifiedFields are the structurally modified field names, computed by
	// the write path comparing old and new versions.
	ModifiedFields []string
	// IsNew marks a save that created the entity.
	IsNew bool
}

// Result is the outcome of collecting one mutation.
type Result struct {
	// ChangedFields is the intersection of modified fields with the
	// statically configured observable table for the entity type.
	ChangedFields []string
	// EntityDiff is the normalized diff record for sync queues and payloads.
	EntityDiff repository.EntityDiff
	// Relevant is false when the mutation cannot interest any grant: a save
	// of an existing entity with no observable change. This is the common,
	// cheap short-circuit path.
	Relevant bool
}

// Collector applies the observable-field tables from config.
type Collector struct {
	cfg config.Propagation
}

// NewCollector creates a Collector over an immutable propagation config.
func NewCollector(cfg config.Propagation) *Collector {
	return &Collector{cfg: cfg}
}

// Collect computes the diff for one mutation.
func (c *Collector) Collect(m Mutation) Result {
	if !m.Type.IsValid() {
		panic("diff: invalid entity type " + string(m.Type))
	}
	if m.Entity == nil {
		panic("diff: nil entity")
	}

	id := m.Entity.EntityID()

	if m.Event == types.EventRemove {
		// Deletions carry no field diff: the removal itself is the change.
		return Result{
			EntityDiff: repository.EntityDiff{EntityID: id, Status: types.DiffDeleted},
			Relevant:   true,
		}
	}

	if m.IsNew {
		// New entities are described by their full payload, not a diff.
		return Result{
			EntityDiff: repository.EntityDiff{EntityID: id, Status: types.DiffNew},
			Relevant:   true,
		}
	}

	changed := c.observableIntersection(m)
	return Result{
		ChangedFields: changed,
		EntityDiff: repository.EntityDiff{
			EntityID:      id,
			Status:        types.DiffUpdated,
			UpdatedFields: changed,
		},
		Relevant: len(changed) > 0,
	}
}

// observableIntersection intersects modified fields with the observable table,
// preserving the order of the modified list.
func (c *Collector) observableIntersection(m Mutation) []string {
	observable := c.cfg.ObservableFor(m.Type)
	var out []string
	for _, f := range m.ModifiedFields {
		if f == "type" && phoneTypeUnchanged(m) {
			// El write path marca OldType antes de guardar; si coincide con el
			// tipo nuevo, el "cambio" es a un tipo ya asignado y no cuenta.
			continue
		}
		for _, o := range observable {
			if f == o {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

func phoneTypeUnchanged(m Mutation) bool {
	if m.Type != types.EntityPhoneNumbers {
		return false
	}
	p, ok := m.Entity.(*repository.PhoneNumber)
	return ok && p.OldType == p.Type
}
