package main

import (
	"context"
	"embed"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/profilesync/internal/cascade"
	"github.com/dropDatabas3/profilesync/internal/config"
	"github.com/dropDatabas3/profilesync/internal/diff"
	"github.com/dropDatabas3/profilesync/internal/domain/repository"
	"github.com/dropDatabas3/profilesync/internal/domain/types"
	"github.com/dropDatabas3/profilesync/internal/grants"
	httpx "github.com/dropDatabas3/profilesync/internal/http"
	"github.com/dropDatabas3/profilesync/internal/metrics"
	"github.com/dropDatabas3/profilesync/internal/notify"
	"github.com/dropDatabas3/profilesync/internal/observability/logger"
	"github.com/dropDatabas3/profilesync/internal/propagation"
	"github.com/dropDatabas3/profilesync/internal/queue"
	memqueue "github.com/dropDatabas3/profilesync/internal/queue/memory"
	redisqueue "github.com/dropDatabas3/profilesync/internal/queue/redis"
	"github.com/dropDatabas3/profilesync/internal/store"
	"github.com/dropDatabas3/profilesync/internal/syncstatus"
	"github.com/dropDatabas3/profilesync/internal/virtualid"
	pgmigrations "github.com/dropDatabas3/profilesync/migrations/postgres"

	// Los adapters se registran vía init(); el binario elige cuáles compila.
	_ "github.com/dropDatabas3/profilesync/internal/store/adapters/memory"
	_ "github.com/dropDatabas3/profilesync/internal/store/adapters/pg"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file, using system environment")
	}

	var cfgPath string

	root := &cobra.Command{
		Use:   "profilesync",
		Short: "Núcleo de propagación de cambios y virtualización de identidades",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path al YAML de configuración (opcional)")

	root.AddCommand(serveCmd(&cfgPath))
	root.AddCommand(migrateCmd(&cfgPath))
	root.AddCommand(seedCmd(&cfgPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, nil
	}
	return config.Load(path)
}

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servicio y la superficie operacional",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}

			logger.Init(logger.Config{Level: cfg.Log.Level, Env: cfg.App.Env})
			defer logger.Sync()
			log := logger.With(logger.Component("main"))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			conn, err := store.Connect(ctx, store.AdapterConfig{
				Name:     cfg.Storage.Driver,
				DSN:      cfg.Storage.DSN,
				MaxConns: cfg.Storage.Postgres.MaxConns,
			})
			if err != nil {
				return err
			}
			defer conn.Close()
			log.Info("storage connected", logger.String("driver", conn.Name()))

			q := buildQueue(cfg)
			defer q.Close()

			registry := prometheus.NewRegistry()
			registry.MustRegister(collectors.NewGoCollector())
			registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			if err := metrics.Register(registry); err != nil {
				return err
			}

			c := wire(cfg, conn, q)

			// Barrido de reconciliación: re-deriva punteros de mailboxes con
			// payloads sin entregar.
			go func() {
				t := time.NewTicker(time.Minute)
				defer t.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-t.C:
						if err := c.dispatcher.Reconcile(logger.ToContext(ctx, log)); err != nil {
							log.Warn("reconcile sweep failed", logger.Err(err))
						}
					}
				}
			}()

			router := httpx.NewRouter(httpx.ServerDeps{Registry: registry, Storage: conn})
			log.Info("ops server listening", logger.String("addr", cfg.Server.Addr))
			return httpx.Start(ctx, cfg.Server.Addr, router)
		},
	}
}

func buildQueue(cfg *config.Config) queue.DeliveryQueue {
	if cfg.Queue.Kind == "redis" {
		return redisqueue.New(cfg.Queue.Redis.Addr, cfg.Queue.Redis.DB, cfg.Queue.Redis.Key)
	}
	return memqueue.New()
}

// components agrupa lo que arma wire: el pipeline que invoca el write path y
// el dispatcher que además corre el barrido de reconciliación.
type components struct {
	pipeline   *propagation.Pipeline
	dispatcher *notify.Dispatcher
}

// wire arma el pipeline con dependencias explícitas, en orden fijo.
func wire(cfg *config.Config, conn store.AdapterConnection, q queue.DeliveryQueue) components {
	virtualizer := virtualid.New(virtualid.Deps{
		Mappings: conn.IdentityMappings(),
		CacheTTL: cfg.Propagation.ResolveCacheTTL,
	})
	statuses := syncstatus.New(syncstatus.Deps{Statuses: conn.SyncStatus()})
	dispatcher := notify.New(notify.Deps{
		Mailboxes:      conn.Mailboxes(),
		Clients:        conn.Clients(),
		Virtualizer:    virtualizer,
		Queue:          q,
		PublishTimeout: cfg.Propagation.QueuePublishTimeout,
	})
	casc := cascade.New(cascade.Deps{
		Users:              conn.Users(),
		Authorizations:     conn.Authorizations(),
		UserAuthorizations: conn.UserAuthorizations(),
		AccessTokens:       conn.AccessTokens(),
		IdentityMappings:   conn.IdentityMappings(),
		SyncStatuses:       conn.SyncStatus(),
		TestAccounts:       conn.TestAccounts(),
		Statuses:           statuses,
		Virtualizer:        virtualizer,
	})
	pipeline := propagation.New(propagation.Deps{
		Collector: diff.NewCollector(cfg.Propagation),
		Resolver: grants.New(grants.Deps{
			Authorizations:     conn.Authorizations(),
			UserAuthorizations: conn.UserAuthorizations(),
			Config:             cfg.Propagation,
		}),
		Statuses:   statuses,
		Dispatcher: dispatcher,
		Cascade:    casc,
		Users:      conn.Users(),
	})
	return components{pipeline: pipeline, dispatcher: dispatcher}
}

// seedCmd carga un perfil de demostración y corre la propagación inicial
// contra el storage configurado. Sirve para probar el wiring completo en un
// entorno nuevo sin levantar el write path real.
func seedCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Carga un perfil demo y corre la propagación inicial",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}

			logger.Init(logger.Config{Level: cfg.Log.Level, Env: cfg.App.Env})
			defer logger.Sync()
			log := logger.With(logger.Component("seed"))
			ctx, cancel := context.WithTimeout(logger.ToContext(context.Background(), log), time.Minute)
			defer cancel()

			conn, err := store.Connect(ctx, store.AdapterConfig{
				Name:     cfg.Storage.Driver,
				DSN:      cfg.Storage.DSN,
				MaxConns: 2,
			})
			if err != nil {
				return err
			}
			defer conn.Close()

			q := buildQueue(cfg)
			defer q.Close()
			c := wire(cfg, conn, q)

			user := &repository.User{ID: "demo-user", FirstName: "Ana", LastName: "García", Language: "es"}
			if err := conn.Users().Save(ctx, user); err != nil {
				return err
			}
			email := &repository.Email{ID: "demo-email", UserID: user.ID, Address: "ana@example.com", Primary: true}

			if err := conn.Clients().Save(ctx, &repository.Client{
				ID: "demo-client", Name: "Demo Client", PushEndpoint: "https://demo-client.example/hook",
			}); err != nil {
				return err
			}
			err = conn.Authorizations().Create(ctx, &repository.Authorization{
				ID: "demo-auth", ClientID: "demo-client", UserID: user.ID,
				Scopes: []string{"first_name", "last_name", "language", "emails"},
			})
			if err != nil && !repository.IsConflict(err) {
				return err
			}

			// Alta inicial del perfil como un solo lote lógico.
			if err := c.pipeline.ProcessBatch(ctx, []diff.Mutation{
				{
					Entity: user, Type: types.EntityUsers, Event: types.EventSave,
					ModifiedFields: []string{"first_name", "last_name", "language"}, IsNew: true,
				},
				{
					Entity: email, Type: types.EntityEmails, Event: types.EventSave,
					ModifiedFields: []string{"address", "primary"}, IsNew: true,
				},
			}); err != nil {
				return err
			}

			pending, err := conn.Mailboxes().List(ctx, "demo-client", user.ID)
			if err != nil {
				return err
			}
			log.Info("demo profile propagated",
				logger.ClientID("demo-client"), logger.UserID(user.ID),
				logger.Count(len(pending)))
			return nil
		},
	}
}

func migrateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones de esquema (solo postgres)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != "postgres" {
				return fmt.Errorf("migrate requires storage.driver=postgres, got %q", cfg.Storage.Driver)
			}

			logger.Init(logger.Config{Level: cfg.Log.Level, Env: cfg.App.Env})
			defer logger.Sync()
			log := logger.With(logger.Component("migrate"))

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			conn, err := store.Connect(ctx, store.AdapterConfig{
				Name:     cfg.Storage.Driver,
				DSN:      cfg.Storage.DSN,
				MaxConns: 2,
			})
			if err != nil {
				return err
			}
			defer conn.Close()

			migrator, ok := conn.(interface {
				Migrate(ctx context.Context, migFS embed.FS, dir string) error
			})
			if !ok {
				return fmt.Errorf("store adapter %q does not support migrations", conn.Name())
			}
			if err := migrator.Migrate(ctx, pgmigrations.FS, pgmigrations.Dir); err != nil {
				return err
			}
			log.Info("migrations applied")
			return nil
		},
	}
}
