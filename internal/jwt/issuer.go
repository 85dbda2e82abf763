package jwt

import (
	"context"
	"crypto/ed25519"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Issuer firma tokens usando la clave vigente del keystore.
type Issuer struct {
	Iss       string    // "iss"
	Keys      *Keystore // rotation set
	AccessTTL time.Duration
}

// NewIssuer crea un Issuer con TTL por defecto de 15 minutos.
func NewIssuer(iss string, ks *Keystore) *Issuer {
	return &Issuer{
		Iss:       iss,
		Keys:      ks,
		AccessTTL: 15 * time.Minute,
	}
}

// SignRaw firma un MapClaims arbitrario; setea header kid/typ.
func (i *Issuer) SignRaw(ctx context.Context, claims jwtv5.MapClaims) (string, string, error) {
	key, err := i.Keys.Current(ctx)
	if err != nil {
		return "", "", err
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = key.KID
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(ed25519.PrivateKey(key.PrivateKey))
	if err != nil {
		return "", "", err
	}
	return signed, key.KID, nil
}

// IssueAccess emite un Access Token con claims estándar + extras.
func (i *Issuer) IssueAccess(ctx context.Context, sub, aud string, extra map[string]any) (string, time.Time, error) {
	return i.issue(ctx, sub, aud, extra)
}

// IssueIDToken emite un ID Token OIDC con claims estándar + extras
// (nonce, email, profile según scopes).
func (i *Issuer) IssueIDToken(ctx context.Context, sub, aud string, extra map[string]any) (string, time.Time, error) {
	return i.issue(ctx, sub, aud, extra)
}

func (i *Issuer) issue(ctx context.Context, sub, aud string, extra map[string]any) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(i.AccessTTL)

	claims := jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": sub,
		"aud": aud,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	signed, _, err := i.SignRaw(ctx, claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Keyfunc devuelve un jwt.Keyfunc que resuelve la pubkey por 'kid' del header.
// Claves no-revocadas viejas siguen verificando (rotation overlap); revocadas
// fallan con ErrKeyRevoked.
func (i *Issuer) Keyfunc(ctx context.Context) jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid != "" {
			return i.Keys.PublicKeyByKID(ctx, kid)
		}
		// Fallback: la vigente
		key, err := i.Keys.Current(ctx)
		if err != nil {
			return nil, err
		}
		return ed25519.PublicKey(key.PublicKey), nil
	}
}

// Parse valida firma EdDSA, iss (si expectedIss != "") y exp/nbf; devuelve claims.
func (i *Issuer) Parse(ctx context.Context, token string) (jwtv5.MapClaims, error) {
	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithLeeway(30 * time.Second),
	}
	if i.Iss != "" {
		opts = append(opts, jwtv5.WithIssuer(i.Iss))
	}
	tok, err := jwtv5.Parse(token, i.Keyfunc(ctx), opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, jwtv5.ErrTokenInvalidClaims
	}
	return claims, nil
}
