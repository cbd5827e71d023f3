package propagation

import (
	"time"

	"github.com/dropDatabas3/profilesync/internal/domain/repository"
)

// Prepare compara la versión persistida con la entrante antes del save:
// retorna los campos estructuralmente modificados y si la entidad es nueva.
// Para teléfonos setea además el marcador sombra OldType, que el diff
// collector usa para descartar cambios de tipo hacia el tipo ya asignado.
// Panic si old y next son de tipos distintos: error de programación del
// write path.
func Prepare(old, next repository.Entity) (modified []string, isNew bool) {
	if next == nil {
		panic("propagation: nil entity")
	}
	if old == nil {
		if p, ok := next.(*repository.PhoneNumber); ok {
			p.OldType = p.Type
		}
		return nil, true
	}

	switch n := next.(type) {
	case *repository.User:
		o, ok := old.(*repository.User)
		if !ok {
			panic("propagation: entity type mismatch")
		}
		return compareUsers(o, n), false
	case *repository.Email:
		o, ok := old.(*repository.Email)
		if !ok {
			panic("propagation: entity type mismatch")
		}
		return compareEmails(o, n), false
	case *repository.PhoneNumber:
		o, ok := old.(*repository.PhoneNumber)
		if !ok {
			panic("propagation: entity type mismatch")
		}
		n.OldType = o.Type
		return comparePhones(o, n), false
	case *repository.Address:
		o, ok := old.(*repository.Address)
		if !ok {
			panic("propagation: entity type mismatch")
		}
		return compareAddresses(o, n), false
	}
	panic("propagation: unknown entity type")
}

func compareUsers(o, n *repository.User) []string {
	var out []string
	if o.FirstName != n.FirstName {
		out = append(out, "first_name")
	}
	if o.LastName != n.LastName {
		out = append(out, "last_name")
	}
	if !equalTimePtr(o.BirthDate, n.BirthDate) {
		out = append(out, "birth_date")
	}
	if o.Language != n.Language {
		out = append(out, "language")
	}
	if o.Gender != n.Gender {
		out = append(out, "gender")
	}
	return out
}

func compareEmails(o, n *repository.Email) []string {
	var out []string
	if o.Address != n.Address {
		out = append(out, "address")
	}
	if o.Verified != n.Verified {
		out = append(out, "verified")
	}
	if o.Primary != n.Primary {
		out = append(out, "primary")
	}
	return out
}

func comparePhones(o, n *repository.PhoneNumber) []string {
	var out []string
	if o.Number != n.Number {
		out = append(out, "number")
	}
	if o.Type != n.Type {
		out = append(out, "type")
	}
	if o.Verified != n.Verified {
		out = append(out, "verified")
	}
	return out
}

func compareAddresses(o, n *repository.Address) []string {
	var out []string
	if o.Street != n.Street {
		out = append(out, "street")
	}
	if o.HouseNumber != n.HouseNumber {
		out = append(out, "house_number")
	}
	if o.ZipCode != n.ZipCode {
		out = append(out, "zip_code")
	}
	if o.City != n.City {
		out = append(out, "city")
	}
	if o.Country != n.Country {
		out = append(out, "country")
	}
	if !equalStrings(o.Roles, n.Roles) {
		out = append(out, "roles")
	}
	return out
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
