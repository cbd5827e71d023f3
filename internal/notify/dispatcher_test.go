package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/profilesync/internal/domain/repository"
	"github.com/dropDatabas3/profilesync/internal/domain/types"
	memqueue "github.com/dropDatabas3/profilesync/internal/queue/memory"
	"github.com/dropDatabas3/profilesync/internal/store/adapters/memory"
	"github.com/dropDatabas3/profilesync/internal/virtualid"
)

type fixture struct {
	conn       *memory.Conn
	queue      *memqueue.Queue
	virt       virtualid.Service
	dispatcher *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := memory.NewConn()
	q := memqueue.New()
	virt := virtualid.New(virtualid.Deps{Mappings: conn.IdentityMappings()})
	d := New(Deps{
		Mailboxes:   conn.Mailboxes(),
		Clients:     conn.Clients(),
		Virtualizer: virt,
		Queue:       q,
		Now:         func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) },
	})
	return &fixture{conn: conn, queue: q, virt: virt, dispatcher: d}
}

func TestDispatch_AppendsPayloadWithOpaqueIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.conn.SaveClient(&repository.Client{ID: "c1", PushEndpoint: "https://c1.example/hook"})

	items := []Item{
		{Type: types.EntityEmails, Diff: repository.EntityDiff{
			EntityID: "e1", Status: types.DiffUpdated, UpdatedFields: []string{"address"},
		}},
	}
	require.NoError(t, f.dispatcher.Dispatch(ctx, "c1", "u1", []string{"first_name"}, items))

	pending, err := f.conn.Mailboxes().List(ctx, "c1", "u1")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	var p payload
	require.NoError(t, json.Unmarshal(pending[0].Payload, &p))
	require.Equal(t, EventProfileUpdate, p.EventType)
	require.NotEqual(t, "u1", p.UserID, "real user id must never leave the system")
	require.Equal(t, []string{"first_name"}, p.Fields)
	require.Len(t, p.Entities[types.EntityEmails], 1)
	require.NotEqual(t, "e1", p.Entities[types.EntityEmails][0].ID)

	// El id opaco del payload debe resolver de vuelta al real.
	real, err := f.virt.Resolve(ctx, "c1", "u1", p.Entities[types.EntityEmails][0].ID)
	require.NoError(t, err)
	require.Equal(t, "e1", real)
}

func TestDispatch_PushCapable_PublishesPointer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.conn.SaveClient(&repository.Client{ID: "c1", PushEndpoint: "https://c1.example/hook"})

	require.NoError(t, f.dispatcher.Dispatch(ctx, "c1", "u1", nil, nil))

	ptrs := f.queue.Drain()
	require.Len(t, ptrs, 1)
	require.Equal(t, "c1", ptrs[0].ClientID)
	require.Equal(t, "u1", ptrs[0].UserID)
}

func TestDispatch_PollOnlyClient_Skipped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.conn.SaveClient(&repository.Client{ID: "c1"})

	require.NoError(t, f.dispatcher.Dispatch(ctx, "c1", "u1", nil, nil))

	// Sin push endpoint no hay worker que consuma un mailbox: no se escribe
	// payload ni puntero, y el barrido no acumula backlog fantasma.
	require.Empty(t, f.queue.Drain())
	pending, err := f.conn.Mailboxes().List(ctx, "c1", "u1")
	require.NoError(t, err)
	require.Empty(t, pending)
	keys, err := f.conn.Mailboxes().ListUndelivered(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestDispatch_UnknownClient_Skipped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.dispatcher.Dispatch(ctx, "ghost", "u1", nil, nil))

	pending, err := f.conn.Mailboxes().List(ctx, "ghost", "u1")
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestDispatch_QueueFailure_DoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.conn.SaveClient(&repository.Client{ID: "c1", PushEndpoint: "https://c1.example/hook"})
	f.queue.FailNext(nil)

	require.NoError(t, f.dispatcher.Dispatch(ctx, "c1", "u1", nil, nil))

	pending, err := f.conn.Mailboxes().List(ctx, "c1", "u1")
	require.NoError(t, err)
	require.Len(t, pending, 1, "durable append survives the lost pointer")
}

func TestReconcile_RepublishesUndelivered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.conn.SaveClient(&repository.Client{ID: "c1", PushEndpoint: "https://c1.example/hook"})
	f.queue.FailNext(nil)

	require.NoError(t, f.dispatcher.Dispatch(ctx, "c1", "u1", nil, nil))
	require.Empty(t, f.queue.Drain())

	require.NoError(t, f.dispatcher.Reconcile(ctx))
	ptrs := f.queue.Drain()
	require.Len(t, ptrs, 1)
	require.Equal(t, "c1", ptrs[0].ClientID)
}
