// Package auth resolves bearer tokens to actors. Tokens are opaque strings
// stored server-side only as peppered SHA-256 digests.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"weekplan/internal/config"
	"weekplan/internal/types"
)

// TokenAuthenticator looks up the hashed bearer token in the user store.
type TokenAuthenticator struct {
	users  types.UserRepository
	pepper string
}

// NewTokenAuthenticator creates a TokenAuthenticator from config.
func NewTokenAuthenticator(users types.UserRepository, cfg config.AuthConfig) *TokenAuthenticator {
	return &TokenAuthenticator{users: users, pepper: cfg.TokenPepper.Unmask()}
}

// HashToken produces the stored digest for a raw token.
func (a *TokenAuthenticator) HashToken(token string) string {
	sum := sha256.Sum256([]byte(token + a.pepper))
	return hex.EncodeToString(sum[:])
}

// ResolveToken maps a bearer token to its actor. Unknown tokens return
// ErrCodeAuthTokenInvalid.
func (a *TokenAuthenticator) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	if token == "" {
		return nil, types.NewAppError(types.ErrCodeAuthTokenMissing, "authorization token required", nil)
	}
	user, err := a.users.GetByTokenHash(ctx, a.HashToken(token))
	if err != nil {
		return nil, err
	}
	return &types.Actor{ID: user.ID, Type: types.ActorTypeUser, Tier: user.Tier}, nil
}
