package auth

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/go-jose/go-jose/v3"
)

// verificationKeys expands one key registry row into the JWKs to attempt
// signature verification with. The stored material may be:
//
//   - a JWK-set JSON object: every entry is a candidate, except entries
//     whose own kid conflicts with the token's kid;
//   - a single JWK JSON object;
//   - PEM text (PKIX public key or certificate).
//
// Unparseable material yields no candidates; the caller just moves on to the
// next row.
func verificationKeys(material, tokenKid string) []jose.JSONWebKey {
	trimmed := strings.TrimSpace(material)

	if strings.HasPrefix(trimmed, "{") {
		var set jose.JSONWebKeySet
		if err := json.Unmarshal([]byte(trimmed), &set); err == nil && len(set.Keys) > 0 {
			keys := make([]jose.JSONWebKey, 0, len(set.Keys))
			for _, k := range set.Keys {
				if tokenKid != "" && k.KeyID != "" && k.KeyID != tokenKid {
					continue
				}
				if k.Valid() {
					keys = append(keys, k)
				}
			}
			return keys
		}

		var k jose.JSONWebKey
		if err := k.UnmarshalJSON([]byte(trimmed)); err == nil && k.Valid() {
			return []jose.JSONWebKey{k}
		}
		return nil
	}

	key, err := publicKeyFromPEM([]byte(trimmed))
	if err != nil {
		return nil
	}
	alg, err := signatureAlgorithmForKey(key)
	if err != nil {
		return nil
	}
	return []jose.JSONWebKey{{Key: key, Use: "sig", Algorithm: string(alg)}}
}

func publicKeyFromPEM(data []byte) (any, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM encoded data")
	}

	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		return key, nil
	}
	if cert, err := x509.ParseCertificate(block.Bytes); err == nil {
		return cert.PublicKey, nil
	}

	return nil, errors.New("unsupported public key encoding")
}

// signatureAlgorithmForKey picks the JOSE signature algorithm implied by the
// key type, for PEM material that carries no algorithm of its own.
func signatureAlgorithmForKey(key any) (jose.SignatureAlgorithm, error) {
	switch key.(type) {
	case *ecdsa.PublicKey:
		return jose.ES256, nil
	case *rsa.PublicKey:
		return jose.RS256, nil
	case ed25519.PublicKey:
		return jose.EdDSA, nil
	default:
		return "", fmt.Errorf("unsupported key type for verification: %T", key)
	}
}
