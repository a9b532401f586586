package models

import "time"

// SigningKey is one row of the asymmetric key registry. Rows are immutable:
// rotation inserts a new row and old rows stay queryable until every token
// signed with them has expired.
type SigningKey struct {
	ID string
	// PublicKey is the verification material: PEM text, a single JWK JSON
	// object, or a JWK-set JSON object ({"keys": [...]}).
	PublicKey string
	// PrivateKey is the signing side. The verifier never reads it.
	PrivateKey string
	CreatedAt  time.Time
}
