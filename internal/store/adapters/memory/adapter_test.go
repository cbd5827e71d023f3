package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/profilesync/internal/domain/repository"
	"github.com/dropDatabas3/profilesync/internal/domain/types"
)

func TestMerge_StatusGuard(t *testing.T) {
	ctx := context.Background()
	repo := NewConn().SyncStatus()

	st := func(s types.SyncState) *types.SyncState { return &s }

	// Fila nueva nace new_user; el intento de avance se descarta en silencio.
	require.NoError(t, repo.Merge(ctx, repository.SyncStatusMerge{
		ClientID: "c1", UserID: "u1", Status: st(types.StateExistingUserAfterUpdate),
	}))
	s, err := repo.Get(ctx, "c1", "u1")
	require.NoError(t, err)
	require.Equal(t, types.StateNewUser, s.Status)

	// existing_user sí avanza a after_update.
	require.NoError(t, repo.Replace(ctx, &repository.SyncStatus{
		ClientID: "c1", UserID: "u1", Status: types.StateExistingUser,
	}))
	require.NoError(t, repo.Merge(ctx, repository.SyncStatusMerge{
		ClientID: "c1", UserID: "u1", Status: st(types.StateExistingUserAfterUpdate),
	}))
	s, err = repo.Get(ctx, "c1", "u1")
	require.NoError(t, err)
	require.Equal(t, types.StateExistingUserAfterUpdate, s.Status)

	// El merge nunca retrocede.
	require.NoError(t, repo.Merge(ctx, repository.SyncStatusMerge{
		ClientID: "c1", UserID: "u1", Status: st(types.StateExistingUser),
		AddFields: []string{"emails"},
	}))
	s, err = repo.Get(ctx, "c1", "u1")
	require.NoError(t, err)
	require.Equal(t, types.StateExistingUserAfterUpdate, s.Status)
	require.Equal(t, []string{"emails"}, s.UpdatedFields, "rest of the merge still applied")
}

func TestMerge_UseTestAccountNeverBlocked(t *testing.T) {
	ctx := context.Background()
	repo := NewConn().SyncStatus()
	use := true
	require.NoError(t, repo.Merge(ctx, repository.SyncStatusMerge{
		ClientID: "c1", UserID: "u1", UseTestAccount: &use,
	}))
	s, err := repo.Get(ctx, "c1", "u1")
	require.NoError(t, err)
	require.True(t, s.UseTestAccount)
}

func TestPurgeEntity_TouchesOnlyAffectedRows(t *testing.T) {
	ctx := context.Background()
	repo := NewConn().SyncStatus()

	require.NoError(t, repo.Replace(ctx, &repository.SyncStatus{
		ClientID: "c1", UserID: "u1", Status: types.StateExistingUserAfterUpdate,
		UpdatedFields: []string{"addresses"},
		UpdatedEntities: map[types.EntityType][]repository.EntityDiff{
			types.EntityAddresses: {{EntityID: "ad1", Status: types.DiffUpdated}},
		},
	}))
	// Mismo entity id pero de otro usuario: fuera del alcance del purge.
	require.NoError(t, repo.Replace(ctx, &repository.SyncStatus{
		ClientID: "c1", UserID: "u2", Status: types.StateExistingUserAfterUpdate,
		UpdatedFields: []string{"addresses"},
		UpdatedEntities: map[types.EntityType][]repository.EntityDiff{
			types.EntityAddresses: {{EntityID: "ad1", Status: types.DiffUpdated}},
		},
	}))

	n, err := repo.PurgeEntity(ctx, "u1", types.EntityAddresses, "ad1")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	s1, err := repo.Get(ctx, "c1", "u1")
	require.NoError(t, err)
	require.Equal(t, types.StateExistingUser, s1.Status)
	require.Empty(t, s1.UpdatedEntities)

	s2, err := repo.Get(ctx, "c1", "u2")
	require.NoError(t, err)
	require.Equal(t, types.StateExistingUserAfterUpdate, s2.Status)
	require.Len(t, s2.UpdatedEntities[types.EntityAddresses], 1)
}

func TestAddresses_OrderPreserved(t *testing.T) {
	ctx := context.Background()
	users := NewConn().Users()

	for _, id := range []string{"a1", "a2", "a3", "a4"} {
		require.NoError(t, users.SaveAddress(ctx, &repository.Address{ID: id, UserID: "u1"}))
	}
	require.NoError(t, users.RemoveAddress(ctx, "u1", "a2"))

	list, err := users.ListAddresses(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"a1", "a3", "a4"}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestPullEntityID_OrderPreserved(t *testing.T) {
	ctx := context.Background()
	conn := NewConn()
	require.NoError(t, conn.Authorizations().Create(ctx, &repository.Authorization{
		ID: "a1", ClientID: "c1", UserID: "u1",
		EntityIDs: map[types.EntityType][]string{types.EntityEmails: {"e1", "e2", "e3"}},
	}))

	require.NoError(t, conn.Authorizations().PullEntityID(ctx, types.EntityEmails, "e2"))

	a, err := conn.Authorizations().GetByID(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, []string{"e1", "e3"}, a.EntityIDs[types.EntityEmails])
}

func TestMailbox_AppendConsumeOrder(t *testing.T) {
	ctx := context.Background()
	mb := NewConn().Mailboxes()
	now := time.Now().UTC()

	require.NoError(t, mb.Append(ctx, "c1", "u1", []byte("p1"), now))
	require.NoError(t, mb.Append(ctx, "c1", "u1", []byte("p2"), now))
	require.NoError(t, mb.Append(ctx, "c1", "u1", []byte("p3"), now))

	require.NoError(t, mb.Consume(ctx, "c1", "u1", 2))

	pending, err := mb.List(ctx, "c1", "u1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, []byte("p3"), pending[0].Payload)

	keys, err := mb.ListUndelivered(ctx)
	require.NoError(t, err)
	require.Equal(t, []repository.MailboxKey{{ClientID: "c1", UserID: "u1"}}, keys)

	require.NoError(t, mb.Consume(ctx, "c1", "u1", 5))
	keys, err = mb.ListUndelivered(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestMapping_CreateConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewConn().IdentityMappings()

	require.NoError(t, repo.Create(ctx, &repository.IdentityMapping{
		ClientID: "c1", UserID: "u1", RealID: "e1", OpaqueID: "op1",
	}))
	err := repo.Create(ctx, &repository.IdentityMapping{
		ClientID: "c1", UserID: "u1", RealID: "e1", OpaqueID: "op2",
	})
	require.True(t, repository.IsConflict(err))
}
