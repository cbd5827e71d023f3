package propagation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/profilesync/internal/domain/repository"
)

func TestPrepare_NewEntity(t *testing.T) {
	fields, isNew := Prepare(nil, &repository.Email{ID: "e1"})
	require.True(t, isNew)
	require.Empty(t, fields)
}

func TestPrepare_UserFieldDiff(t *testing.T) {
	d := time.Date(1990, 3, 1, 0, 0, 0, 0, time.UTC)
	old := &repository.User{ID: "u1", FirstName: "Ana", Language: "es", BirthDate: &d}
	next := &repository.User{ID: "u1", FirstName: "Ana María", Language: "es", BirthDate: &d, Gender: "f"}

	fields, isNew := Prepare(old, next)
	require.False(t, isNew)
	require.Equal(t, []string{"first_name", "gender"}, fields)
}

func TestPrepare_PhoneSetsOldType(t *testing.T) {
	old := &repository.PhoneNumber{ID: "p1", Type: "mobile", Number: "123"}
	next := &repository.PhoneNumber{ID: "p1", Type: "work", Number: "123"}

	fields, isNew := Prepare(old, next)
	require.False(t, isNew)
	require.Equal(t, []string{"type"}, fields)
	require.Equal(t, "mobile", next.OldType)
}

func TestPrepare_NewPhone_OldTypeMirrorsType(t *testing.T) {
	next := &repository.PhoneNumber{ID: "p1", Type: "mobile"}
	_, isNew := Prepare(nil, next)
	require.True(t, isNew)
	require.Equal(t, "mobile", next.OldType)
}

func TestPrepare_AddressRoles(t *testing.T) {
	old := &repository.Address{ID: "a1", City: "Córdoba", Roles: []string{"shipping"}}
	next := &repository.Address{ID: "a1", City: "Córdoba", Roles: []string{"shipping", "billing"}}

	fields, _ := Prepare(old, next)
	require.Equal(t, []string{"roles"}, fields)
}

func TestPrepare_TypeMismatch_Panics(t *testing.T) {
	require.Panics(t, func() {
		Prepare(&repository.User{ID: "u1"}, &repository.Email{ID: "e1"})
	})
}
