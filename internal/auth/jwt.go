package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Identity is the authenticated caller as asserted by the auth provider.
type Identity struct {
	Subject   string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	Token     string    `json:"-"`
}

// Claims represents the provider's JWT payload.
type Claims struct {
	Email        string         `json:"email,omitempty"`
	Role         string         `json:"role,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// VerifierConfig selects how provider tokens are checked. A JWKS URL takes
// precedence over the shared secret.
type VerifierConfig struct {
	Secret   string
	Issuer   string
	Audience string
	JWKSURL  string
}

// Verifier validates bearer tokens issued by the auth provider.
type Verifier struct {
	keyfunc  jwt.Keyfunc
	methods  []string
	issuer   string
	audience string
	jwks     *keyfunc.JWKS
}

// NewVerifier builds a verifier. With a JWKS URL the key set is fetched now
// and refreshed in the background until Close.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	v := &Verifier{issuer: cfg.Issuer, audience: cfg.Audience}
	switch {
	case cfg.JWKSURL != "":
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			RefreshInterval:   time.Hour,
			RefreshUnknownKID: true,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch jwks: %w", err)
		}
		v.jwks = jwks
		v.keyfunc = jwks.Keyfunc
		v.methods = []string{"RS256", "ES256"}
	case cfg.Secret != "":
		key := []byte(cfg.Secret)
		v.keyfunc = func(*jwt.Token) (interface{}, error) { return key, nil }
		v.methods = []string{jwt.SigningMethodHS256.Alg()}
	default:
		return nil, errors.New("auth: no verification key configured")
	}
	return v, nil
}

// Close stops the background JWKS refresh.
func (v *Verifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

// Verify validates a token and returns the identity it asserts.
func (v *Verifier) Verify(tokenStr string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, v.keyfunc, opts...)
	if err != nil {
		return Identity{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, errors.New("invalid token")
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return Identity{}, fmt.Errorf("subject %q is not a uuid", claims.Subject)
	}

	id := Identity{
		Subject:  claims.Subject,
		Email:    claims.Email,
		FullName: metadataName(claims.UserMetadata),
		Role:     claims.Role,
		Token:    tokenStr,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

func metadataName(meta map[string]any) string {
	for _, key := range []string{"full_name", "name"} {
		if v, ok := meta[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// DevSubject derives a stable subject for an email, used by dev logins.
func DevSubject(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+strings.ToLower(strings.TrimSpace(email)))).String()
}

// Issue signs an HS256 token in the provider's claim layout. Production
// tokens come from the provider; this serves dev logins and tests.
func Issue(id Identity, issuer, key string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := Claims{
		Email:        id.Email,
		Role:         "authenticated",
		UserMetadata: map[string]any{"full_name": id.FullName},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.Subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}
