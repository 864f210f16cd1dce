package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// DefaultJWKSRefresh is the minimum interval between key set downloads
// triggered by unknown key ids.
const DefaultJWKSRefresh = 5 * time.Minute

const jwksFetchTimeout = 10 * time.Second

// JWKS verifies RS256 tokens against the identity provider's published key
// set. Keys are looked up by the token's kid; an unknown kid triggers a
// refresh, at most once per refresh interval.
type JWKS struct {
	url     string
	client  *http.Client
	refresh time.Duration
	now     func() time.Time

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	attempted time.Time

	group singleflight.Group
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwkDoc struct {
	Keys []jwk `json:"keys"`
}

func NewJWKS(url string, client *http.Client) *JWKS {
	if client == nil {
		client = &http.Client{Timeout: jwksFetchTimeout}
	}
	return &JWKS{
		url:     url,
		client:  client,
		refresh: DefaultJWKSRefresh,
		now:     time.Now,
		keys:    map[string]*rsa.PublicKey{},
	}
}

// Refresh downloads the key set and replaces the cached keys.
func (k *JWKS) Refresh(ctx context.Context) error {
	_, err, _ := k.group.Do("refresh", func() (any, error) {
		k.mu.Lock()
		k.attempted = k.now()
		k.mu.Unlock()

		keys, err := k.fetch(ctx)
		if err != nil {
			return nil, err
		}
		k.mu.Lock()
		k.keys = keys
		k.mu.Unlock()
		slog.InfoContext(ctx, "Token key set loaded", "keys", len(keys))
		return nil, nil
	})
	return err
}

// Len returns the number of cached keys.
func (k *JWKS) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys)
}

func (k *JWKS) KeyFunc() jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("missing kid in header")
		}
		if key, stale := k.lookup(kid); key != nil {
			return key, nil
		} else if stale {
			ctx, cancel := context.WithTimeout(context.Background(), jwksFetchTimeout)
			defer cancel()
			if err := k.Refresh(ctx); err != nil {
				return nil, fmt.Errorf("refresh key set: %w", err)
			}
			if key, _ := k.lookup(kid); key != nil {
				return key, nil
			}
		}
		return nil, fmt.Errorf("key not found: %s", kid)
	}
}

// lookup returns the key for kid, or whether a refresh is allowed. Failed
// downloads count against the refresh interval too.
func (k *JWKS) lookup(kid string) (*rsa.PublicKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if key, ok := k.keys[kid]; ok {
		return key, false
	}
	return nil, k.attempted.IsZero() || k.now().Sub(k.attempted) >= k.refresh
}

func (k *JWKS) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("key set download failed: %d", resp.StatusCode)
	}

	var doc jwkDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode key set: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, entry := range doc.Keys {
		if entry.Kty != "RSA" || entry.Kid == "" || (entry.Use != "" && entry.Use != "sig") {
			continue
		}
		key, err := rsaKey(entry.N, entry.E)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", entry.Kid, err)
		}
		keys[entry.Kid] = key
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("key set has no usable RSA signing keys")
	}
	return keys, nil
}

func rsaKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("exponent: %w", err)
	}
	exp := new(big.Int).SetBytes(eb)
	if !exp.IsInt64() || exp.Int64() < 3 || exp.Int64() > 1<<31-1 {
		return nil, fmt.Errorf("exponent out of range")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(exp.Int64())}, nil
}
