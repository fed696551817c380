package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// TokenTTL is the lifetime of every access token.
const TokenTTL = time.Hour

// Verification failure codes.
const (
	CodeTokenMalformed        = "TOKEN_MALFORMED"
	CodeTokenSignatureInvalid = "TOKEN_SIGNATURE_INVALID"
	CodeTokenExpired          = "TOKEN_EXPIRED"
)

// Claims is the payload of an access token.
type Claims struct {
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username"`
	// LegacyID carries the subject in tokens that use the older "id" key.
	LegacyID string `json:"id,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 access tokens.
type TokenManager struct {
	secret []byte
	now    func() time.Time
}

// NewTokenManager creates a TokenManager. A nil now uses the wall clock.
func NewTokenManager(secret string, now func() time.Time) *TokenManager {
	if now == nil {
		now = time.Now
	}
	return &TokenManager{secret: []byte(secret), now: now}
}

// Issue signs a token for the user that expires TokenTTL from now.
func (m *TokenManager) Issue(userID, username string) (string, time.Time, error) {
	issuedAt := m.now()
	expiresAt := issuedAt.Add(TokenTTL)

	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks the signature and then the expiry of token. It does not
// consult any revocation store.
func (m *TokenManager) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
		// Revocation keys on the exact token string, so only the canonical
		// encoding of each segment may verify.
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		return nil, classify(err)
	}

	if claims.UserID == "" {
		claims.UserID = claims.LegacyID
	}
	if claims.UserID == "" {
		return nil, oops.Code(CodeTokenMalformed).Errorf("token has no subject")
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return oops.Code(CodeTokenExpired).Wrap(err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return oops.Code(CodeTokenSignatureInvalid).Wrap(err)
	default:
		return oops.Code(CodeTokenMalformed).Wrap(err)
	}
}
