package keyset

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"deskhub/pkg/logging"

	"golang.org/x/sync/singleflight"
)

// ErrKeyResolutionFailed is returned when a key identifier cannot be
// resolved from any configured key-set source. Verification treats this as
// an invalid token; the gate fails closed.
var ErrKeyResolutionFailed = errors.New("key resolution failed")

// defaultFetchTimeout bounds a single key-set fetch.
const defaultFetchTimeout = 15 * time.Second

// Entry is a cached signing key together with the source it came from.
type Entry struct {
	KeyID  string
	Key    *rsa.PublicKey
	Source string
}

// Resolver resolves token signing keys by key identifier against an ordered
// list of remote key-set endpoints. The first source is the primary; later
// sources are legacy fallbacks tried only when earlier ones fail or do not
// carry the identifier.
//
// Keys are fetched lazily on first reference and cached. A cache miss for a
// previously unseen identifier triggers a re-fetch, which also picks up
// rotated key sets. Redundant concurrent fetches of the same identifier are
// collapsed with singleflight, but correctness does not depend on that.
type Resolver struct {
	sources []string
	client  *http.Client

	mu    sync.RWMutex
	cache map[string]Entry

	group singleflight.Group
}

// NewResolver creates a resolver over the given ordered key-set sources.
// A nil client gets a default with a bounded timeout.
func NewResolver(sources []string, client *http.Client) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &Resolver{
		sources: sources,
		client:  client,
		cache:   make(map[string]Entry),
	}
}

// ResolveKey returns the public key for the given key identifier.
//
// The identifier comes from an unverified token header and is trusted for
// nothing beyond key selection. On a cache miss the sources are queried in
// order; when every source fails or lacks the identifier the resolution
// fails with ErrKeyResolutionFailed.
func (r *Resolver) ResolveKey(ctx context.Context, keyID string) (*rsa.PublicKey, error) {
	if keyID == "" {
		return nil, fmt.Errorf("%w: empty key identifier", ErrKeyResolutionFailed)
	}

	r.mu.RLock()
	entry, ok := r.cache[keyID]
	r.mu.RUnlock()
	if ok {
		return entry.Key, nil
	}

	v, err, _ := r.group.Do(keyID, func() (interface{}, error) {
		return r.fetchKey(ctx, keyID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*rsa.PublicKey), nil
}

// fetchKey walks the sources in order until one of them carries the key.
func (r *Resolver) fetchKey(ctx context.Context, keyID string) (*rsa.PublicKey, error) {
	var errs []error

	for _, source := range r.sources {
		keys, err := r.fetchKeySet(ctx, source)
		if err != nil {
			logging.Warn("KeyResolver", "Key-set fetch from %s failed: %v", source, err)
			errs = append(errs, fmt.Errorf("%s: %w", source, err))
			continue
		}

		r.mu.Lock()
		for kid, key := range keys {
			r.cache[kid] = Entry{KeyID: kid, Key: key, Source: source}
		}
		entry, found := r.cache[keyID]
		r.mu.Unlock()

		if found {
			logging.Debug("KeyResolver", "Resolved key %s from %s", keyID, source)
			return entry.Key, nil
		}

		errs = append(errs, fmt.Errorf("%s: key %q not in key set", source, keyID))
	}

	return nil, fmt.Errorf("%w: %s", ErrKeyResolutionFailed, errors.Join(errs...))
}

func (r *Resolver) fetchKeySet(ctx context.Context, source string) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch key set: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var set jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode key set: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, jwk := range set.Keys {
		if jwk.Kty != "RSA" || jwk.Kid == "" {
			continue
		}
		key, err := jwk.rsaPublicKey()
		if err != nil {
			// A single malformed key must not poison the set.
			logging.Debug("KeyResolver", "Skipping unparseable key %s from %s: %v", jwk.Kid, source, err)
			continue
		}
		keys[jwk.Kid] = key
	}

	return keys, nil
}

// CachedEntry returns the cached entry for a key identifier, if present.
// Exposed for diagnostics; resolution goes through ResolveKey.
func (r *Resolver) CachedEntry(keyID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[keyID]
	return entry, ok
}
