package jwt

import (
	"encoding/base64"
	"encoding/json"

	"github.com/authrim/authrim/internal/domain/repository"
)

// JWK es una clave pública en formato JWK (RFC 7517, OKP/Ed25519).
type JWK struct {
	Kty string `json:"kty"` // "OKP"
	Crv string `json:"crv"` // "Ed25519"
	KID string `json:"kid"`
	Alg string `json:"alg"` // "EdDSA"
	Use string `json:"use"` // "sig"
	X   string `json:"x"`   // base64url(pub)
}

// JWKS es el documento de claves públicas.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// buildJWKS serializa la vista pública del rotation set.
func buildJWKS(keys []repository.SigningKey) []byte {
	doc := JWKS{Keys: make([]JWK, 0, len(keys))}
	for _, k := range keys {
		if len(k.PublicKey) == 0 {
			continue
		}
		doc.Keys = append(doc.Keys, JWK{
			Kty: "OKP",
			Crv: "Ed25519",
			KID: k.KID,
			Alg: "EdDSA",
			Use: "sig",
			X:   base64.RawURLEncoding.EncodeToString(k.PublicKey),
		})
	}
	b, _ := json.Marshal(doc)
	return b
}
