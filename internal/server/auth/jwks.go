package auth

import (
	"context"
	"fmt"

	"github.com/go-jose/go-jose/v3"

	"github.com/todovault/todovault/internal/common"
)

// PublicKeySet assembles the publishable JWK set from the key registry.
// Only public halves go out; rows whose material cannot be parsed are
// skipped. Entries without an embedded kid inherit the registry row id so
// remote verifiers can do kid-first lookups.
func PublicKeySet(ctx context.Context, source KeySource) (*jose.JSONWebKeySet, error) {
	records, err := source.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: key registry: %v", common.ErrorUpstreamUnavailable, err)
	}

	set := &jose.JSONWebKeySet{Keys: []jose.JSONWebKey{}}
	for _, rec := range records {
		for _, k := range verificationKeys(rec.PublicKey, "") {
			pub := k.Public()
			if !pub.Valid() {
				continue
			}
			if pub.KeyID == "" {
				pub.KeyID = rec.ID
			}
			set.Keys = append(set.Keys, pub)
		}
	}
	return set, nil
}
