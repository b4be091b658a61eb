// Package identity verifies caller identity against an Auth0 tenant.
//
// Verification is optional: when no tenant is configured every request
// resolves to anonymous claims, and configured deployments still accept
// unauthenticated requests (the pipeline personalises but never gates).
package identity

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized reports a token that was presented but failed
// verification. Absent tokens are not an error.
var ErrUnauthorized = errors.New("identity: token verification failed")

// Claims is the identity attached to a planning run. BudgetSensitive
// comes from the tenant's app_metadata.preferences custom claim.
type Claims struct {
	Subject         string `json:"sub"`
	Email           string `json:"email,omitempty"`
	BudgetSensitive bool   `json:"budget_sensitive,omitempty"`
}

// Anonymous is the zero identity used when no token is presented.
var Anonymous = Claims{}

// Verifier validates bearer tokens and extracts claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// NullVerifier accepts everything as anonymous. Used when no Auth0
// tenant is configured.
type NullVerifier struct{}

func (NullVerifier) Verify(ctx context.Context, token string) (Claims, error) {
	return Anonymous, nil
}

// Auth0Verifier validates RS256 tokens against a tenant's JWKS.
type Auth0Verifier struct {
	issuer   string
	audience string
	jwksURL  string
	client   *http.Client

	mu   sync.Mutex
	keys map[string]*rsa.PublicKey
}

// NewAuth0 builds a verifier for the given tenant domain and API
// audience. The JWKS document is fetched lazily on first use and cached
// for the process lifetime; a failed fetch is retried on the next
// request rather than cached.
func NewAuth0(domain, audience string) *Auth0Verifier {
	issuer := "https://" + domain + "/"
	return &Auth0Verifier{
		issuer:   issuer,
		audience: audience,
		jwksURL:  issuer + ".well-known/jwks.json",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type jwksDocument struct {
	Keys []struct {
		Kid string `json:"kid"`
		Kty string `json:"kty"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

// loadKeys returns the cached JWKS, fetching it when no successful fetch
// has happened yet. Only success is memoized; a transient failure leaves
// the cache empty so the next request tries again.
func (v *Auth0Verifier) loadKeys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.keys != nil {
		return v.keys, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity: jwks fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity: jwks fetch returned %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("identity: jwks decode failed: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAKey(k.N, k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	v.keys = keys
	return v.keys, nil
}

func parseRSAKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, err
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nb),
		E: int(new(big.Int).SetBytes(eb).Int64()),
	}, nil
}

// Verify implements Verifier. An empty token resolves to Anonymous; a
// present token must verify or the call fails with ErrUnauthorized.
func (v *Auth0Verifier) Verify(ctx context.Context, token string) (Claims, error) {
	if token == "" {
		return Anonymous, nil
	}

	keys, err := v.loadKeys(ctx)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	type tokenClaims struct {
		Email       string `json:"email"`
		AppMetadata struct {
			Preferences struct {
				BudgetSensitive bool `json:"budget_sensitive"`
			} `json:"preferences"`
		} `json:"app_metadata"`
		jwt.RegisteredClaims
	}

	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, ok := keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown signing key %q", kid)
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	return Claims{
		Subject:         claims.Subject,
		Email:           claims.Email,
		BudgetSensitive: claims.AppMetadata.Preferences.BudgetSensitive,
	}, nil
}
