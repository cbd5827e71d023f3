// Package pg implementa el adapter PostgreSQL.
// Usa pgxpool directamente. Todos los merges (add-to-set, append, pull) se
// expresan como updates atómicos de SQL, nunca read-modify-write en Go.
package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/profilesync/internal/domain/repository"
	store "github.com/dropDatabas3/profilesync/internal/store"
)

func init() {
	store.RegisterAdapter(&postgresAdapter{})
}

// postgresAdapter implementa store.Adapter para PostgreSQL.
type postgresAdapter struct{}

func (a *postgresAdapter) Name() string { return "postgres" }

func (a *postgresAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse DSN: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	} else {
		poolCfg.MaxConns = 10
	}
	poolCfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping failed: %w", err)
	}

	return &pgConnection{pool: pool}, nil
}

// pgConnection representa una conexión activa a PostgreSQL.
type pgConnection struct {
	pool *pgxpool.Pool
}

func (c *pgConnection) Name() string                   { return "postgres" }
func (c *pgConnection) Ping(ctx context.Context) error { return c.pool.Ping(ctx) }
func (c *pgConnection) Close() error {
	c.pool.Close()
	return nil
}

func (c *pgConnection) Users() repository.UserRepository { return &userRepo{pool: c.pool} }
func (c *pgConnection) Clients() repository.ClientRepository {
	return &clientRepo{pool: c.pool}
}
func (c *pgConnection) Authorizations() repository.AuthorizationRepository {
	return &authRepo{pool: c.pool}
}
func (c *pgConnection) UserAuthorizations() repository.UserAuthorizationRepository {
	return &userAuthRepo{pool: c.pool}
}
func (c *pgConnection) AccessTokens() repository.AccessTokenRepository {
	return &accessTokenRepo{pool: c.pool}
}
func (c *pgConnection) IdentityMappings() repository.IdentityMappingRepository {
	return &mappingRepo{pool: c.pool}
}
func (c *pgConnection) SyncStatus() repository.SyncStatusRepository {
	return &syncRepo{pool: c.pool}
}
func (c *pgConnection) Mailboxes() repository.MailboxRepository {
	return &mailboxRepo{pool: c.pool}
}
func (c *pgConnection) TestAccounts() repository.TestAccountRepository {
	return &testAccountRepo{pool: c.pool}
}

// Pool expone el pool subyacente para las migraciones.
func (c *pgConnection) Pool() *pgxpool.Pool { return c.pool }

// mapErr traduce errores de pgx a errores de dominio.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return repository.ErrConflict
	}
	return err
}
