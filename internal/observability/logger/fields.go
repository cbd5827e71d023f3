package logger

import (
	"go.uber.org/zap"

	"github.com/dropDatabas3/profilesync/internal/domain/types"
)

// =================================================================================
// CAMPOS ESTÁNDAR - NEGOCIO
// =================================================================================

// ClientID crea un campo para el ID del client OAuth.
func ClientID(v string) zap.Field {
	return zap.String("client_id", v)
}

// UserID crea un campo para el ID del usuario.
func UserID(v string) zap.Field {
	return zap.String("user_id", v)
}

// EntityID crea un campo para el ID real de una entidad.
func EntityID(v string) zap.Field {
	return zap.String("entity_id", v)
}

// OpaqueID crea un campo para un ID virtualizado.
// El ID opaco no correlaciona entre clients, es seguro loguearlo.
func OpaqueID(v string) zap.Field {
	return zap.String("opaque_id", v)
}

// EntityType crea un campo para el tipo de entidad.
func EntityType(v types.EntityType) zap.Field {
	return zap.String("entity_type", string(v))
}

// Event crea un campo para el evento de persistencia (save, remove).
func Event(v types.EventName) zap.Field {
	return zap.String("event", string(v))
}

// SyncState crea un campo para el estado de sincronización.
func SyncState(v types.SyncState) zap.Field {
	return zap.String("sync_state", string(v))
}

// Fields crea un campo para una lista de nombres de campo cambiados.
func Fields(v []string) zap.Field {
	return zap.Strings("fields", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer crea un campo para la capa (service, repository, pipeline).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// =================================================================================
// CAMPOS ESTÁNDAR - DATOS
// =================================================================================

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// Key crea un campo genérico para una clave.
func Key(v string) zap.Field {
	return zap.String("key", v)
}

// Any crea un campo genérico para cualquier tipo.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}
