// Package types define tipos de dominio compartidos entre paquetes.
package types

// EntityType identifica el tipo de entidad de perfil observable por clients.
type EntityType string

const (
	// EntityUsers es el usuario raíz del perfil.
	EntityUsers EntityType = "users"
	// EntityEmails son las direcciones de email del usuario.
	EntityEmails EntityType = "emails"
	// EntityPhoneNumbers son los teléfonos del usuario.
	EntityPhoneNumbers EntityType = "phone_numbers"
	// EntityAddresses son las direcciones postales del usuario.
	EntityAddresses EntityType = "addresses"
)

// AllEntityTypes lista los tipos conocidos, en orden estable.
func AllEntityTypes() []EntityType {
	return []EntityType{EntityUsers, EntityEmails, EntityPhoneNumbers, EntityAddresses}
}

// IsValid retorna true si el tipo es conocido.
func (t EntityType) IsValid() bool {
	switch t {
	case EntityUsers, EntityEmails, EntityPhoneNumbers, EntityAddresses:
		return true
	}
	return false
}

// EventName identifica el evento de persistencia que dispara la propagación.
type EventName string

const (
	// EventSave cubre create y update.
	EventSave EventName = "save"
	// EventRemove cubre borrado permanente.
	EventRemove EventName = "remove"
)

// DiffStatus describe el estado de una entidad dentro de un diff.
type DiffStatus string

const (
	DiffNew     DiffStatus = "new"
	DiffUpdated DiffStatus = "updated"
	DiffDeleted DiffStatus = "deleted"
)

// SyncState es el estado de sincronización de un (client, user).
type SyncState string

const (
	// StateNewUser: el client todavía no consumió el perfil inicial.
	StateNewUser SyncState = "new_user"
	// StateExistingUser: perfil consumido, sin cambios pendientes.
	StateExistingUser SyncState = "existing_user"
	// StateExistingUserAfterUpdate: hay cambios pendientes de consumir.
	StateExistingUserAfterUpdate SyncState = "existing_user_after_update"
	// StateExistingUserAfterTest: como existing_user, pero la relación usa
	// una cuenta de prueba (use_test_account).
	StateExistingUserAfterTest SyncState = "existing_user_after_test"
)

// IsValid retorna true si el estado es conocido.
func (s SyncState) IsValid() bool {
	switch s {
	case StateNewUser, StateExistingUser, StateExistingUserAfterUpdate, StateExistingUserAfterTest:
		return true
	}
	return false
}

// CanMergeTo decide si un merge ordinario puede mover el estado s hacia to.
// Un client en new_user no avanza por diffs: recibirá el perfil completo en
// su primer fetch, así que promoverlo a after_update saltearía su onboarding.
// existing_user_after_test es pegajoso bajo merge; solo el camino de
// replace/reset lo cambia. El merge nunca retrocede un estado.
func (s SyncState) CanMergeTo(to SyncState) bool {
	if to == s {
		return true
	}
	switch s {
	case StateExistingUser:
		return to == StateExistingUserAfterUpdate
	}
	return false
}
