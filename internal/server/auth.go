package server

import (
	"context"
	"strings"

	"github.com/gridbase/gridbase/pkg/errors"
)

// IdentityResolver turns a bearer token into a caller identity. Session
// issuance lives outside the engine; the server only consumes the resolved
// user id.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (int64, error)
}

// StaticResolver resolves identities from a fixed token-to-user map, the
// stand-in used when no external session service is wired.
type StaticResolver struct {
	tokens map[string]int64
}

// NewStaticResolver creates a resolver over the given token map
func NewStaticResolver(tokens map[string]int64) *StaticResolver {
	return &StaticResolver{tokens: tokens}
}

// Resolve implements IdentityResolver
func (r *StaticResolver) Resolve(_ context.Context, token string) (int64, error) {
	if userID, ok := r.tokens[token]; ok {
		return userID, nil
	}
	return 0, errors.New(errors.ErrorTypeUnauthorized, "unknown token")
}

// bearerToken extracts the token from an Authorization header
func bearerToken(header string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
