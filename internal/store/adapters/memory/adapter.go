// Package memory implementa el adapter en memoria.
//
// Se usa en tests y en modo dev. Implementa la misma semántica atómica que
// el adapter postgres: merges add-to-set/append bajo un mutex por store, sin
// read-modify-write visible para el caller.
package memory

import (
	"context"
	"sync"

	"github.com/dropDatabas3/profilesync/internal/domain/repository"
	store "github.com/dropDatabas3/profilesync/internal/store"
)

func init() {
	store.RegisterAdapter(&memoryAdapter{})
}

type memoryAdapter struct{}

func (a *memoryAdapter) Name() string { return "memory" }

func (a *memoryAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	return NewConn(), nil
}

// data es el estado compartido entre los sub-repositorios de una conexión.
type data struct {
	mu sync.RWMutex

	users     map[string]*repository.User
	emails    map[string]*repository.Email
	phones    map[string]*repository.PhoneNumber
	addresses map[string][]repository.Address // por userID, en orden de alta

	clients      map[string]*repository.Client
	auths        map[string]*repository.Authorization
	userAuths    map[string]*repository.UserAuthorization // key: clientID+"|"+userID
	accessTokens map[string]*repository.AccessToken

	mappings     map[string]*repository.IdentityMapping // key: clientID|userID|realID
	syncs        map[string]*repository.SyncStatus      // key: clientID|userID
	mailboxes    map[string][]repository.PendingNotification
	testAccounts map[string]*repository.TestAccount
}

// Conn es una conexión al store en memoria.
type Conn struct {
	d *data
}

// NewConn crea una conexión vacía. Cada Conn tiene su propio estado: dos
// conexiones no comparten datos (a diferencia de una DB real).
func NewConn() *Conn {
	return &Conn{d: &data{
		users:        map[string]*repository.User{},
		emails:       map[string]*repository.Email{},
		phones:       map[string]*repository.PhoneNumber{},
		addresses:    map[string][]repository.Address{},
		clients:      map[string]*repository.Client{},
		auths:        map[string]*repository.Authorization{},
		userAuths:    map[string]*repository.UserAuthorization{},
		accessTokens: map[string]*repository.AccessToken{},
		mappings:     map[string]*repository.IdentityMapping{},
		syncs:        map[string]*repository.SyncStatus{},
		mailboxes:    map[string][]repository.PendingNotification{},
		testAccounts: map[string]*repository.TestAccount{},
	}}
}

func (c *Conn) Name() string                   { return "memory" }
func (c *Conn) Ping(ctx context.Context) error { return nil }
func (c *Conn) Close() error                   { return nil }

func (c *Conn) Users() repository.UserRepository                       { return &userRepo{c.d} }
func (c *Conn) Clients() repository.ClientRepository                   { return &clientRepo{c.d} }
func (c *Conn) Authorizations() repository.AuthorizationRepository     { return &authRepo{c.d} }
func (c *Conn) UserAuthorizations() repository.UserAuthorizationRepository {
	return &userAuthRepo{c.d}
}
func (c *Conn) AccessTokens() repository.AccessTokenRepository         { return &accessTokenRepo{c.d} }
func (c *Conn) IdentityMappings() repository.IdentityMappingRepository { return &mappingRepo{c.d} }
func (c *Conn) SyncStatus() repository.SyncStatusRepository            { return &syncRepo{c.d} }
func (c *Conn) Mailboxes() repository.MailboxRepository                { return &mailboxRepo{c.d} }
func (c *Conn) TestAccounts() repository.TestAccountRepository         { return &testAccountRepo{c.d} }

// pairKey arma la clave compuesta (client, user).
func pairKey(clientID, userID string) string { return clientID + "|" + userID }

// mappingKey arma la clave compuesta (client, user, real_id).
func mappingKey(clientID, userID, realID string) string {
	return clientID + "|" + userID + "|" + realID
}

// addToSet agrega v al slice si no está, preservando el orden.
func addToSet(dst []string, v string) []string {
	for _, s := range dst {
		if s == v {
			return dst
		}
	}
	return append(dst, v)
}

// pull remueve todas las ocurrencias de v preservando el orden relativo.
func pull(dst []string, v string) []string {
	out := dst[:0]
	for _, s := range dst {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
