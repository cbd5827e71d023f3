package cascade

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/profilesync/internal/domain/repository"
	"github.com/dropDatabas3/profilesync/internal/domain/types"
	"github.com/dropDatabas3/profilesync/internal/store/adapters/memory"
	"github.com/dropDatabas3/profilesync/internal/syncstatus"
	"github.com/dropDatabas3/profilesync/internal/virtualid"
)

func newService(conn *memory.Conn) Service {
	return newServiceWith(conn, conn.UserAuthorizations())
}

func newServiceWith(conn *memory.Conn, userAuths repository.UserAuthorizationRepository) Service {
	return New(Deps{
		Users:              conn.Users(),
		Authorizations:     conn.Authorizations(),
		UserAuthorizations: userAuths,
		AccessTokens:       conn.AccessTokens(),
		IdentityMappings:   conn.IdentityMappings(),
		SyncStatuses:       conn.SyncStatus(),
		TestAccounts:       conn.TestAccounts(),
		Statuses:           syncstatus.New(syncstatus.Deps{Statuses: conn.SyncStatus()}),
		Virtualizer:        virtualid.New(virtualid.Deps{Mappings: conn.IdentityMappings()}),
	})
}

func seedRelation(t *testing.T, conn *memory.Conn) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, conn.Users().Save(ctx, &repository.User{
		ID: "u1", AuthorizedClientIDs: []string{"c1", "c2"},
	}))
	require.NoError(t, conn.Authorizations().Create(ctx, &repository.Authorization{
		ID: "a1", ClientID: "c1", UserID: "u1", Scopes: []string{"first_name"},
	}))
	require.NoError(t, conn.AccessTokens().Create(ctx, &repository.AccessToken{
		ID: "t1", AuthorizationID: "a1",
	}))
	require.NoError(t, conn.UserAuthorizations().Upsert(ctx, &repository.UserAuthorization{
		ID: "ua1", ClientID: "c1", UserID: "u1", Scopes: []string{"first_name"},
	}))
	require.NoError(t, conn.IdentityMappings().Create(ctx, &repository.IdentityMapping{
		ClientID: "c1", UserID: "u1", RealID: "u1", OpaqueID: "op-u1",
	}))
	require.NoError(t, conn.SyncStatus().Replace(ctx, &repository.SyncStatus{
		ClientID: "c1", UserID: "u1", Status: types.StateExistingUser,
	}))
	require.NoError(t, conn.TestAccounts().Create(ctx, &repository.TestAccount{
		ClientID: "c1", UserID: "u1",
	}))
}

func TestRemoveAuthorizations_ZeroResidue(t *testing.T) {
	ctx := context.Background()
	conn := memory.NewConn()
	seedRelation(t, conn)
	svc := newService(conn)

	require.NoError(t, svc.RemoveAuthorizations(ctx, []string{"a1"}, "c1", []string{"u1"}))

	_, err := conn.Authorizations().GetByID(ctx, "a1")
	require.True(t, repository.IsNotFound(err))
	_, err = conn.UserAuthorizations().Get(ctx, "c1", "u1")
	require.True(t, repository.IsNotFound(err))
	_, err = conn.IdentityMappings().Get(ctx, "c1", "u1", "u1")
	require.True(t, repository.IsNotFound(err))
	_, err = conn.SyncStatus().Get(ctx, "c1", "u1")
	require.True(t, repository.IsNotFound(err))

	u, err := conn.Users().GetByID(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"c2"}, u.AuthorizedClientIDs, "other clients untouched")
}

func TestRemoveAuthorizations_TokensOnly(t *testing.T) {
	ctx := context.Background()
	conn := memory.NewConn()
	seedRelation(t, conn)
	svc := newService(conn)

	// Sin clientID/userIDs solo caen las autorizaciones token-bound.
	require.NoError(t, svc.RemoveAuthorizations(ctx, []string{"a1"}, "", nil))

	_, err := conn.Authorizations().GetByID(ctx, "a1")
	require.True(t, repository.IsNotFound(err))
	_, err = conn.UserAuthorizations().Get(ctx, "c1", "u1")
	require.NoError(t, err)
	_, err = conn.SyncStatus().Get(ctx, "c1", "u1")
	require.NoError(t, err)
}

func TestRemoveAuthorizations_HalfPair_Panics(t *testing.T) {
	conn := memory.NewConn()
	svc := newService(conn)
	require.Panics(t, func() {
		_ = svc.RemoveAuthorizations(context.Background(), nil, "c1", nil)
	})
	require.Panics(t, func() {
		_ = svc.RemoveAuthorizations(context.Background(), nil, "", []string{"u1"})
	})
}

// failingUserAuths falla el delete para probar independencia por colección.
type failingUserAuths struct {
	repository.UserAuthorizationRepository
}

func (f *failingUserAuths) Delete(ctx context.Context, clientID string, userIDs []string) error {
	return errors.New("user auth store down")
}

func TestRemoveAuthorizations_PartialFailure_OthersStillCleaned(t *testing.T) {
	ctx := context.Background()
	conn := memory.NewConn()
	seedRelation(t, conn)
	svc := newServiceWith(conn, &failingUserAuths{conn.UserAuthorizations()})

	err := svc.RemoveAuthorizations(ctx, []string{"a1"}, "c1", []string{"u1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "user auth store down")

	// Las demás colecciones se limpiaron igual.
	_, gerr := conn.Authorizations().GetByID(ctx, "a1")
	require.True(t, repository.IsNotFound(gerr))
	_, gerr = conn.SyncStatus().Get(ctx, "c1", "u1")
	require.True(t, repository.IsNotFound(gerr))
}

func TestScrubEntity_InvalidatesResolveCache(t *testing.T) {
	ctx := context.Background()
	conn := memory.NewConn()
	virt := virtualid.New(virtualid.Deps{Mappings: conn.IdentityMappings()})
	svc := New(Deps{
		Users:              conn.Users(),
		Authorizations:     conn.Authorizations(),
		UserAuthorizations: conn.UserAuthorizations(),
		AccessTokens:       conn.AccessTokens(),
		IdentityMappings:   conn.IdentityMappings(),
		SyncStatuses:       conn.SyncStatus(),
		TestAccounts:       conn.TestAccounts(),
		Statuses:           syncstatus.New(syncstatus.Deps{Statuses: conn.SyncStatus()}),
		Virtualizer:        virt,
	})

	opaque, err := virt.Virtualize(ctx, "c1", "u1", "ad1", types.EntityAddresses)
	require.NoError(t, err)
	real, err := virt.Resolve(ctx, "c1", "u1", opaque)
	require.NoError(t, err)
	require.Equal(t, "ad1", real)

	require.NoError(t, svc.ScrubEntity(ctx, types.EntityAddresses, "ad1"))

	// La cache de resolución quedó caliente por el Resolve previo; el scrub
	// tiene que vaciarla para que el id opaco revocado deje de resolver.
	_, err = virt.Resolve(ctx, "c1", "u1", opaque)
	require.True(t, repository.IsNotFound(err))
}

func TestRemoveAddress_OwnershipEnforced(t *testing.T) {
	ctx := context.Background()
	conn := memory.NewConn()
	require.NoError(t, conn.Users().SaveAddress(ctx, &repository.Address{ID: "ad1", UserID: "u1"}))
	svc := newService(conn)

	err := svc.RemoveAddress(ctx, "u2", "ad1")
	require.True(t, repository.IsNotFound(err))

	_, err = conn.Users().GetAddress(ctx, "u1", "ad1")
	require.NoError(t, err, "a foreign delete attempt must not remove anything")
}

func TestRemoveAddress_ScrubsEverywhere(t *testing.T) {
	ctx := context.Background()
	conn := memory.NewConn()
	require.NoError(t, conn.Users().SaveAddress(ctx, &repository.Address{ID: "ad1", UserID: "u1"}))
	require.NoError(t, conn.Users().SaveAddress(ctx, &repository.Address{ID: "ad2", UserID: "u1"}))
	require.NoError(t, conn.Users().SaveAddress(ctx, &repository.Address{ID: "ad3", UserID: "u1"}))
	require.NoError(t, conn.Authorizations().Create(ctx, &repository.Authorization{
		ID: "a1", ClientID: "c1", UserID: "u1",
		EntityIDs: map[types.EntityType][]string{types.EntityAddresses: {"ad1", "ad2"}},
	}))
	require.NoError(t, conn.IdentityMappings().Create(ctx, &repository.IdentityMapping{
		ClientID: "c1", UserID: "u1", RealID: "ad1", OpaqueID: "op-ad1",
	}))
	require.NoError(t, conn.SyncStatus().Replace(ctx, &repository.SyncStatus{
		ClientID: "c1", UserID: "u1", Status: types.StateExistingUserAfterUpdate,
		UpdatedFields: []string{"addresses"},
		UpdatedEntities: map[types.EntityType][]repository.EntityDiff{
			types.EntityAddresses: {{EntityID: "ad1", Status: types.DiffUpdated}},
		},
	}))
	svc := newService(conn)

	require.NoError(t, svc.RemoveAddress(ctx, "u1", "ad1"))

	// Orden relativo de las sobrevivientes preservado.
	list, err := conn.Users().ListAddresses(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "ad2", list[0].ID)
	require.Equal(t, "ad3", list[1].ID)

	a, err := conn.Authorizations().GetByID(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, []string{"ad2"}, a.EntityIDs[types.EntityAddresses])

	_, err = conn.IdentityMappings().Get(ctx, "c1", "u1", "ad1")
	require.True(t, repository.IsNotFound(err))

	s, err := conn.SyncStatus().Get(ctx, "c1", "u1")
	require.NoError(t, err)
	require.Equal(t, types.StateExistingUser, s.Status, "drained row demoted")
	require.Empty(t, s.UpdatedEntities)
}
