// Package tokeninfo resuelve la identidad detrás de un access token emitido
// por la capa OAuth: client, usuario y scopes. Es la única vista que este
// subsistema tiene de esa capa.
package tokeninfo

import (
	"crypto/ed25519"
	"errors"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken cubre firma inválida, expiración y claims malformados.
	ErrInvalidToken = errors.New("tokeninfo: invalid token")
	// ErrInvalidIssuer indica un iss que no coincide con el esperado.
	ErrInvalidIssuer = errors.New("tokeninfo: invalid issuer")
)

// Info es la identidad resuelta de un access token.
type Info struct {
	ClientID string
	UserID   string
	Scopes   []string
	// AuthorizationID referencia la autorización token-bound que respalda el
	// token, si la capa OAuth la incluyó.
	AuthorizationID string
	ExpiresAt       time.Time
}

// Verifier valida access tokens EdDSA contra las claves públicas del issuer.
type Verifier struct {
	iss  string
	keys map[string]ed25519.PublicKey
}

// NewVerifier crea un Verifier con las claves públicas indexadas por kid.
func NewVerifier(iss string, keys map[string]ed25519.PublicKey) *Verifier {
	return &Verifier{iss: iss, keys: keys}
}

// Parse valida firma, iss y exp/nbf, y extrae la identidad del token.
func (v *Verifier) Parse(token string) (*Info, error) {
	keyfunc := func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		pub, ok := v.keys[kid]
		if !ok {
			return nil, errors.New("kid_unknown")
		}
		return pub, nil
	}

	tok, err := jwtv5.Parse(token, keyfunc,
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithLeeway(30*time.Second))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	if v.iss != "" {
		if iss, _ := claims["iss"].(string); iss != v.iss {
			return nil, ErrInvalidIssuer
		}
	}

	info := &Info{}
	info.UserID, _ = claims["sub"].(string)
	info.ClientID, _ = claims["aud"].(string)
	info.AuthorizationID, _ = claims["auth_id"].(string)
	if scope, _ := claims["scope"].(string); scope != "" {
		info.Scopes = strings.Fields(scope)
	}
	if expf, ok := claims["exp"].(float64); ok {
		info.ExpiresAt = time.Unix(int64(expf), 0)
	}
	if info.UserID == "" || info.ClientID == "" {
		return nil, ErrInvalidToken
	}
	return info, nil
}

// FromAuthorizationHeader extrae el token de un header "Bearer <token>".
func FromAuthorizationHeader(h string) (string, bool) {
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}
