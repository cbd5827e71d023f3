package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/profilesync/internal/domain/types"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	require.Equal(t, "memory", c.Storage.Driver)
	require.Equal(t, "memory", c.Queue.Kind)
	require.Equal(t, 5*time.Minute, c.Propagation.ResolveCacheTTL)
	require.NotEmpty(t, c.Propagation.ObservableFor(types.EntityUsers))
	require.True(t, c.Propagation.NewClientEligibleType(types.EntityAddresses))
	require.False(t, c.Propagation.NewClientEligibleType(types.EntityUsers))
}

func TestLoad_YAMLAndDefaults(t *testing.T) {
	path := writeYAML(t, `
app:
  env: prod
log:
  level: warn
storage:
  driver: postgres
  dsn: postgres://localhost/profilesync
propagation:
  observable_fields:
    users: [first_name]
  resolve_cache_ttl: 90s
`)
	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "prod", c.App.Env)
	require.Equal(t, "warn", c.Log.Level)
	require.Equal(t, []string{"first_name"}, c.Propagation.ObservableFor(types.EntityUsers))
	require.Equal(t, 90*time.Second, c.Propagation.ResolveCacheTTL)
	// Lo no seteado cae a defaults.
	require.Equal(t, ":8085", c.Server.Addr)
	require.Equal(t, "profilesync:delivery", c.Queue.Redis.Key)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeYAML(t, `
storage:
  driver: memory
`)
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("STORAGE_DSN", "postgres://override/db")
	t.Setenv("LOG_LEVEL", "debug")

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "postgres", c.Storage.Driver)
	require.Equal(t, "postgres://override/db", c.Storage.DSN)
	require.Equal(t, "debug", c.Log.Level)
}

func TestValidate_Rejections(t *testing.T) {
	path := writeYAML(t, `
storage:
  driver: mongodb
`)
	_, err := Load(path)
	require.Error(t, err)

	path = writeYAML(t, `
storage:
  driver: postgres
`)
	_, err = Load(path)
	require.Error(t, err, "postgres without dsn must fail")

	path = writeYAML(t, `
propagation:
  observable_fields:
    accounts: [name]
`)
	_, err = Load(path)
	require.Error(t, err, "unknown entity type in observable tables must fail")
}
