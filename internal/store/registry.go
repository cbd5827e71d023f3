// Package store provee el registry de adaptadores de almacenamiento.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/dropDatabas3/profilesync/internal/domain/repository"
)

// Adapter representa un adaptador de almacenamiento capaz de crear repositorios.
type Adapter interface {
	// Name retorna el nombre del adapter (ej: "postgres", "memory").
	Name() string

	// Connect establece conexión con el almacenamiento.
	Connect(ctx context.Context, cfg AdapterConfig) (AdapterConnection, error)
}

// AdapterConnection representa una conexión activa.
// Provee acceso a los repositorios implementados por el adapter.
type AdapterConnection interface {
	// Name retorna el nombre del adapter.
	Name() string

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error

	// ─── Repositorios ───

	Users() repository.UserRepository
	Clients() repository.ClientRepository
	Authorizations() repository.AuthorizationRepository
	UserAuthorizations() repository.UserAuthorizationRepository
	AccessTokens() repository.AccessTokenRepository
	IdentityMappings() repository.IdentityMappingRepository
	SyncStatus() repository.SyncStatusRepository
	Mailboxes() repository.MailboxRepository
	TestAccounts() repository.TestAccountRepository
}

// AdapterConfig configuración para conectar a un almacenamiento.
type AdapterConfig struct {
	// Name del adapter: "postgres", "memory"
	Name string

	// DSN connection string (para DBs)
	DSN string

	// MaxConns tamaño del pool (para DBs)
	MaxConns int
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Adapter{}
)

// RegisterAdapter registra un adapter. Se llama desde init() de cada adapter;
// el binario elige cuáles compila con imports blank.
func RegisterAdapter(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[a.Name()] = a
}

// Connect busca el adapter por nombre y abre la conexión.
func Connect(ctx context.Context, cfg AdapterConfig) (AdapterConnection, error) {
	registryMu.RLock()
	a, ok := registry[cfg.Name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store: unknown adapter %q", cfg.Name)
	}
	return a.Connect(ctx, cfg)
}
