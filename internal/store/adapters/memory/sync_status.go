package memory

import (
	"context"

	"github.com/dropDatabas3/profilesync/internal/domain/repository"
	"github.com/dropDatabas3/profilesync/internal/domain/types"
)

type syncRepo struct{ d *data }

func cloneDiffs(in map[types.EntityType][]repository.EntityDiff) map[types.EntityType][]repository.EntityDiff {
	if in == nil {
		return nil
	}
	out := make(map[types.EntityType][]repository.EntityDiff, len(in))
	for k, v := range in {
		list := make([]repository.EntityDiff, len(v))
		for i, d := range v {
			list[i] = d
			list[i].UpdatedFields = cloneStrings(d.UpdatedFields)
		}
		out[k] = list
	}
	return out
}

func cloneSync(s *repository.SyncStatus) *repository.SyncStatus {
	cp := *s
	cp.UpdatedFields = cloneStrings(s.UpdatedFields)
	cp.UpdatedEntities = cloneDiffs(s.UpdatedEntities)
	return &cp
}

func (r *syncRepo) Get(ctx context.Context, clientID, userID string) (*repository.SyncStatus, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()
	s, ok := r.d.syncs[pairKey(clientID, userID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneSync(s), nil
}

// Merge aplica el merge atómico. El guard de transición vive en
// types.SyncState.CanMergeTo; el adapter postgres codifica la misma tabla en
// un CASE de SQL.
func (r *syncRepo) Merge(ctx context.Context, m repository.SyncStatusMerge) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	key := pairKey(m.ClientID, m.UserID)
	s, ok := r.d.syncs[key]
	if !ok {
		s = &repository.SyncStatus{
			ClientID: m.ClientID,
			UserID:   m.UserID,
			Status:   types.StateNewUser,
		}
		r.d.syncs[key] = s
	}
	if m.Status != nil && s.Status.CanMergeTo(*m.Status) {
		s.Status = *m.Status
	}
	if m.UseTestAccount != nil {
		s.UseTestAccount = *m.UseTestAccount
	}
	for _, f := range m.AddFields {
		s.UpdatedFields = addToSet(s.UpdatedFields, f)
	}
	if len(m.AppendDiffs) > 0 && s.UpdatedEntities == nil {
		s.UpdatedEntities = map[types.EntityType][]repository.EntityDiff{}
	}
	for t, diffs := range m.AppendDiffs {
		for _, d := range diffs {
			cp := d
			cp.UpdatedFields = cloneStrings(d.UpdatedFields)
			s.UpdatedEntities[t] = append(s.UpdatedEntities[t], cp)
		}
	}
	return nil
}

func (r *syncRepo) Replace(ctx context.Context, s *repository.SyncStatus) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	r.d.syncs[pairKey(s.ClientID, s.UserID)] = cloneSync(s)
	return nil
}

// PurgeEntity corre entero bajo el lock de escritura: un Merge concurrente ve
// la fila antes o después del purge, nunca un estado intermedio.
func (r *syncRepo) PurgeEntity(ctx context.Context, userID string, entityType types.EntityType, entityID string) (int, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	n := 0
	for _, s := range r.d.syncs {
		if s.UserID != userID {
			continue
		}
		var kept []repository.EntityDiff
		found := false
		for _, d := range s.UpdatedEntities[entityType] {
			if d.EntityID == entityID {
				found = true
				continue
			}
			kept = append(kept, d)
		}
		if !found {
			continue
		}
		n++
		if len(kept) == 0 {
			delete(s.UpdatedEntities, entityType)
			var fields []string
			for _, f := range s.UpdatedFields {
				if f != string(entityType) {
					fields = append(fields, f)
				}
			}
			s.UpdatedFields = fields
		} else {
			s.UpdatedEntities[entityType] = kept
		}
		if s.Status == types.StateExistingUserAfterUpdate && drained(s) {
			s.Status = types.StateExistingUser
		}
	}
	return n, nil
}

// drained retorna true si la fila no tiene nada pendiente de consumir.
func drained(s *repository.SyncStatus) bool {
	if len(s.UpdatedFields) > 0 {
		return false
	}
	for _, diffs := range s.UpdatedEntities {
		if len(diffs) > 0 {
			return false
		}
	}
	return true
}

func (r *syncRepo) Delete(ctx context.Context, clientID string, userIDs []string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, uid := range userIDs {
		delete(r.d.syncs, pairKey(clientID, uid))
	}
	return nil
}
