// Package config carga la configuración del servicio desde YAML con
// overrides por variables de entorno. El struct resultante es inmutable:
// se carga una vez en main y se inyecta por valor en cada componente.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/profilesync/internal/domain/types"
	"github.com/dropDatabas3/profilesync/internal/validation"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		// Addr del servidor de operaciones (health, metrics).
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Storage struct {
		// Driver: postgres | memory
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Queue struct {
		// Kind: redis | memory
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr string `yaml:"addr"`
			DB   int    `yaml:"db"`
			// Key de la lista de punteros de delivery.
			Key string `yaml:"key"`
		} `yaml:"redis"`
	} `yaml:"queue"`

	JWT struct {
		// Issuer esperado en access tokens entrantes (tokeninfo).
		Issuer string `yaml:"issuer"`
	} `yaml:"jwt"`

	Propagation Propagation `yaml:"propagation"`
}

// Propagation agrupa las tablas de campos observables y los umbrales del
// pipeline. Reemplaza a la config global mutable del diseño original.
type Propagation struct {
	// ObservableFields lista, por tipo de entidad, los campos que los clients
	// pueden observar. Cambios fuera de estas tablas no se propagan.
	ObservableFields map[types.EntityType][]string `yaml:"observable_fields"`

	// NewClientEligible lista los tipos cuya creación se propaga aunque no
	// haya campos cambiados relevantes.
	NewClientEligible []types.EntityType `yaml:"new_client_eligible"`

	// ResolveCacheTTL acota la cache de resolución de ids opacos.
	ResolveCacheTTL time.Duration `yaml:"resolve_cache_ttl"`

	// QueuePublishTimeout acota el publish best-effort al delivery queue.
	QueuePublishTimeout time.Duration `yaml:"queue_publish_timeout"`
}

// ObservableFor retorna la tabla de campos observables de un tipo.
func (p Propagation) ObservableFor(t types.EntityType) []string {
	return p.ObservableFields[t]
}

// NewClientEligibleType retorna true si la creación del tipo se propaga
// sin exigir campos cambiados.
func (p Propagation) NewClientEligibleType(t types.EntityType) bool {
	for _, e := range p.NewClientEligible {
		if e == t {
			return true
		}
	}
	return false
}

// Default retorna la configuración por defecto (driver memory, sin redis).
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// Load lee el YAML del path dado y aplica overrides de entorno.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyEnvOverrides()
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8085"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Postgres.MaxConns == 0 {
		c.Storage.Postgres.MaxConns = 10
	}
	if c.Storage.Postgres.ConnMaxLifetime == "" {
		c.Storage.Postgres.ConnMaxLifetime = "30m"
	}
	if c.Queue.Kind == "" {
		c.Queue.Kind = "memory"
	}
	if c.Queue.Redis.Key == "" {
		c.Queue.Redis.Key = "profilesync:delivery"
	}
	if c.Propagation.ResolveCacheTTL == 0 {
		c.Propagation.ResolveCacheTTL = 5 * time.Minute
	}
	if c.Propagation.QueuePublishTimeout == 0 {
		c.Propagation.QueuePublishTimeout = 2 * time.Second
	}
	if c.Propagation.ObservableFields == nil {
		c.Propagation.ObservableFields = DefaultObservableFields()
	}
	if c.Propagation.NewClientEligible == nil {
		c.Propagation.NewClientEligible = []types.EntityType{
			types.EntityEmails, types.EntityPhoneNumbers, types.EntityAddresses,
		}
	}
}

// DefaultObservableFields retorna las tablas de campos observables de fábrica.
func DefaultObservableFields() map[types.EntityType][]string {
	return map[types.EntityType][]string{
		types.EntityUsers:        {"first_name", "last_name", "birth_date", "language", "gender"},
		types.EntityEmails:       {"address", "verified", "primary"},
		types.EntityPhoneNumbers: {"number", "type", "verified"},
		types.EntityAddresses:    {"street", "house_number", "zip_code", "city", "country", "roles"},
	}
}

// applyEnvOverrides pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("STORAGE_PG_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = v
	}
	if v, ok := getEnvStr("QUEUE_KIND"); ok {
		c.Queue.Kind = v
	}
	if v, ok := getEnvStr("QUEUE_REDIS_ADDR"); ok {
		c.Queue.Redis.Addr = v
	}
	if v, ok := getEnvInt("QUEUE_REDIS_DB"); ok {
		c.Queue.Redis.DB = v
	}
	if v, ok := getEnvStr("QUEUE_REDIS_KEY"); ok {
		c.Queue.Redis.Key = v
	}
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvDur("PROPAGATION_RESOLVE_CACHE_TTL"); ok {
		c.Propagation.ResolveCacheTTL = v
	}
}

// Validate chequea combinaciones inválidas.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("config: storage.dsn is required for postgres")
	}
	switch c.Queue.Kind {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown queue kind %q", c.Queue.Kind)
	}
	if c.Queue.Kind == "redis" && c.Queue.Redis.Addr == "" {
		return fmt.Errorf("config: queue.redis.addr is required for redis")
	}
	for t, fields := range c.Propagation.ObservableFields {
		if !t.IsValid() {
			return fmt.Errorf("config: unknown entity type %q in observable_fields", t)
		}
		for _, f := range fields {
			if !validation.ValidFieldName(f) {
				return fmt.Errorf("config: invalid field name %q in observable_fields.%s", f, t)
			}
		}
	}
	return nil
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
