package syncstatus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/profilesync/internal/diff"
	"github.com/dropDatabas3/profilesync/internal/domain/repository"
	"github.com/dropDatabas3/profilesync/internal/domain/types"
	"github.com/dropDatabas3/profilesync/internal/store/adapters/memory"
)

func emailMutation(id string, fields ...string) (diff.Mutation, diff.Result) {
	m := diff.Mutation{
		Entity:         &repository.Email{ID: id, UserID: "u1"},
		Type:           types.EntityEmails,
		Event:          types.EventSave,
		ModifiedFields: fields,
	}
	res := diff.Result{
		ChangedFields: fields,
		EntityDiff:    repository.EntityDiff{EntityID: id, Status: types.DiffUpdated, UpdatedFields: fields},
		Relevant:      true,
	}
	return m, res
}

func TestRecordMutation_NewUserRow_StaysNewUser(t *testing.T) {
	ctx := context.Background()
	conn := memory.NewConn()
	svc := New(Deps{Statuses: conn.SyncStatus()})

	m, res := emailMutation("e1", "address")
	require.NoError(t, svc.RecordMutation(ctx, "c1", m, res))

	s, err := conn.SyncStatus().Get(ctx, "c1", "u1")
	require.NoError(t, err)
	// El avance de estado se descarta en silencio, pero el diff se guarda.
	require.Equal(t, types.StateNewUser, s.Status)
	require.Equal(t, []string{"emails"}, s.UpdatedFields)
	require.Len(t, s.UpdatedEntities[types.EntityEmails], 1)
}

func TestRecordMutation_ExistingUser_Promotes(t *testing.T) {
	ctx := context.Background()
	conn := memory.NewConn()
	svc := New(Deps{Statuses: conn.SyncStatus()})
	require.NoError(t, conn.SyncStatus().Replace(ctx, &repository.SyncStatus{
		ClientID: "c1", UserID: "u1", Status: types.StateExistingUser,
	}))

	m, res := emailMutation("e1", "address")
	require.NoError(t, svc.RecordMutation(ctx, "c1", m, res))

	s, err := conn.SyncStatus().Get(ctx, "c1", "u1")
	require.NoError(t, err)
	require.Equal(t, types.StateExistingUserAfterUpdate, s.Status)
}

func TestRecordMutation_AfterTest_Sticky(t *testing.T) {
	ctx := context.Background()
	conn := memory.NewConn()
	svc := New(Deps{Statuses: conn.SyncStatus()})
	require.NoError(t, conn.SyncStatus().Replace(ctx, &repository.SyncStatus{
		ClientID: "c1", UserID: "u1", Status: types.StateExistingUserAfterTest, UseTestAccount: true,
	}))

	m, res := emailMutation("e1", "address")
	require.NoError(t, svc.RecordMutation(ctx, "c1", m, res))

	s, err := conn.SyncStatus().Get(ctx, "c1", "u1")
	require.NoError(t, err)
	require.Equal(t, types.StateExistingUserAfterTest, s.Status)
	require.Len(t, s.UpdatedEntities[types.EntityEmails], 1, "diff still recorded")
}

func TestRecordMutation_UserFieldsAccumulateAsSet(t *testing.T) {
	ctx := context.Background()
	conn := memory.NewConn()
	svc := New(Deps{Statuses: conn.SyncStatus()})
	require.NoError(t, conn.SyncStatus().Replace(ctx, &repository.SyncStatus{
		ClientID: "c1", UserID: "u1", Status: types.StateExistingUser,
	}))

	m := diff.Mutation{Entity: &repository.User{ID: "u1"}, Type: types.EntityUsers, Event: types.EventSave}
	res := diff.Result{ChangedFields: []string{"first_name", "language"}, Relevant: true}
	require.NoError(t, svc.RecordMutation(ctx, "c1", m, res))
	res2 := diff.Result{ChangedFields: []string{"language", "gender"}, Relevant: true}
	require.NoError(t, svc.RecordMutation(ctx, "c1", m, res2))

	s, err := conn.SyncStatus().Get(ctx, "c1", "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"first_name", "language", "gender"}, s.UpdatedFields)
	require.Empty(t, s.UpdatedEntities, "the root user accumulates field names, not diff records")
}

func TestMarkConsumed_ClearsQueues(t *testing.T) {
	ctx := context.Background()
	conn := memory.NewConn()
	svc := New(Deps{Statuses: conn.SyncStatus()})
	require.NoError(t, conn.SyncStatus().Replace(ctx, &repository.SyncStatus{
		ClientID: "c1", UserID: "u1", Status: types.StateExistingUserAfterUpdate,
		UpdatedFields: []string{"emails"},
		UpdatedEntities: map[types.EntityType][]repository.EntityDiff{
			types.EntityEmails: {{EntityID: "e1", Status: types.DiffUpdated}},
		},
	}))

	require.NoError(t, svc.MarkConsumed(ctx, "c1", "u1"))

	s, err := conn.SyncStatus().Get(ctx, "c1", "u1")
	require.NoError(t, err)
	require.Equal(t, types.StateExistingUser, s.Status)
	require.Empty(t, s.UpdatedFields)
	require.Empty(t, s.UpdatedEntities)
}

func TestMarkConsumed_TestAccountKeepsAfterTest(t *testing.T) {
	ctx := context.Background()
	conn := memory.NewConn()
	svc := New(Deps{Statuses: conn.SyncStatus()})
	require.NoError(t, svc.SetUseTestAccount(ctx, "c1", "u1", true))

	require.NoError(t, svc.MarkConsumed(ctx, "c1", "u1"))

	s, err := conn.SyncStatus().Get(ctx, "c1", "u1")
	require.NoError(t, err)
	require.Equal(t, types.StateExistingUserAfterTest, s.Status)
	require.True(t, s.UseTestAccount)
}

func TestResetForDeletedEntity_TrimsAndDemotes(t *testing.T) {
	ctx := context.Background()
	conn := memory.NewConn()
	svc := New(Deps{Statuses: conn.SyncStatus()})

	// c1 solo tiene pendiente la entidad borrada: debe quedar drenado y
	// volver a existing_user.
	require.NoError(t, conn.SyncStatus().Replace(ctx, &repository.SyncStatus{
		ClientID: "c1", UserID: "u1", Status: types.StateExistingUserAfterUpdate,
		UpdatedFields: []string{"addresses"},
		UpdatedEntities: map[types.EntityType][]repository.EntityDiff{
			types.EntityAddresses: {{EntityID: "ad1", Status: types.DiffUpdated}},
		},
	}))
	// c2 tiene además otra dirección pendiente: conserva tipo y estado.
	require.NoError(t, conn.SyncStatus().Replace(ctx, &repository.SyncStatus{
		ClientID: "c2", UserID: "u1", Status: types.StateExistingUserAfterUpdate,
		UpdatedFields: []string{"addresses"},
		UpdatedEntities: map[types.EntityType][]repository.EntityDiff{
			types.EntityAddresses: {
				{EntityID: "ad1", Status: types.DiffUpdated},
				{EntityID: "ad2", Status: types.DiffUpdated},
			},
		},
	}))

	require.NoError(t, svc.ResetForDeletedEntity(ctx, "u1", types.EntityAddresses, "ad1"))

	s1, err := conn.SyncStatus().Get(ctx, "c1", "u1")
	require.NoError(t, err)
	require.Equal(t, types.StateExistingUser, s1.Status)
	require.Empty(t, s1.UpdatedFields)
	require.Empty(t, s1.UpdatedEntities)

	s2, err := conn.SyncStatus().Get(ctx, "c2", "u1")
	require.NoError(t, err)
	require.Equal(t, types.StateExistingUserAfterUpdate, s2.Status)
	require.Equal(t, []string{"addresses"}, s2.UpdatedFields)
	require.Len(t, s2.UpdatedEntities[types.EntityAddresses], 1)
	require.Equal(t, "ad2", s2.UpdatedEntities[types.EntityAddresses][0].EntityID)
}

func TestResetForDeletedEntity_DoesNotDemoteWithOtherPendingFields(t *testing.T) {
	ctx := context.Background()
	conn := memory.NewConn()
	svc := New(Deps{Statuses: conn.SyncStatus()})
	require.NoError(t, conn.SyncStatus().Replace(ctx, &repository.SyncStatus{
		ClientID: "c1", UserID: "u1", Status: types.StateExistingUserAfterUpdate,
		UpdatedFields: []string{"first_name", "addresses"},
		UpdatedEntities: map[types.EntityType][]repository.EntityDiff{
			types.EntityAddresses: {{EntityID: "ad1", Status: types.DiffUpdated}},
		},
	}))

	require.NoError(t, svc.ResetForDeletedEntity(ctx, "u1", types.EntityAddresses, "ad1"))

	s, err := conn.SyncStatus().Get(ctx, "c1", "u1")
	require.NoError(t, err)
	require.Equal(t, types.StateExistingUserAfterUpdate, s.Status, "first_name still pending")
	require.Equal(t, []string{"first_name"}, s.UpdatedFields)
}

// racingStatuses cuela un merge de otra mutación justo antes del purge, la
// ventana donde un trim read-modify-write perdería el update.
type racingStatuses struct {
	repository.SyncStatusRepository
}

func (r *racingStatuses) PurgeEntity(ctx context.Context, userID string, entityType types.EntityType, entityID string) (int, error) {
	target := types.StateExistingUserAfterUpdate
	if err := r.SyncStatusRepository.Merge(ctx, repository.SyncStatusMerge{
		ClientID: "c1", UserID: userID,
		Status:    &target,
		AddFields: []string{"first_name"},
	}); err != nil {
		return 0, err
	}
	return r.SyncStatusRepository.PurgeEntity(ctx, userID, entityType, entityID)
}

func TestResetForDeletedEntity_ConcurrentMergeSurvives(t *testing.T) {
	ctx := context.Background()
	conn := memory.NewConn()
	svc := New(Deps{Statuses: &racingStatuses{conn.SyncStatus()}})
	require.NoError(t, conn.SyncStatus().Replace(ctx, &repository.SyncStatus{
		ClientID: "c1", UserID: "u1", Status: types.StateExistingUserAfterUpdate,
		UpdatedFields: []string{"addresses"},
		UpdatedEntities: map[types.EntityType][]repository.EntityDiff{
			types.EntityAddresses: {{EntityID: "ad1", Status: types.DiffUpdated}},
		},
	}))

	require.NoError(t, svc.ResetForDeletedEntity(ctx, "u1", types.EntityAddresses, "ad1"))

	s, err := conn.SyncStatus().Get(ctx, "c1", "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"first_name"}, s.UpdatedFields, "the racing merge must not be lost")
	require.Equal(t, types.StateExistingUserAfterUpdate, s.Status, "row is not drained, no demote")
	require.Empty(t, s.UpdatedEntities)
}

func TestMergeEmptySlices_NoOp(t *testing.T) {
	ctx := context.Background()
	conn := memory.NewConn()
	require.NoError(t, conn.SyncStatus().Replace(ctx, &repository.SyncStatus{
		ClientID: "c1", UserID: "u1", Status: types.StateExistingUserAfterUpdate,
		UpdatedFields: []string{"emails"},
		UpdatedEntities: map[types.EntityType][]repository.EntityDiff{
			types.EntityEmails: {{EntityID: "e1", Status: types.DiffUpdated}},
		},
	}))

	// Un merge con slices vacíos nunca borra historia previa.
	require.NoError(t, conn.SyncStatus().Merge(ctx, repository.SyncStatusMerge{
		ClientID: "c1", UserID: "u1",
	}))

	s, err := conn.SyncStatus().Get(ctx, "c1", "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"emails"}, s.UpdatedFields)
	require.Len(t, s.UpdatedEntities[types.EntityEmails], 1)
}
