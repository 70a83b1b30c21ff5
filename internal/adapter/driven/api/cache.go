package api

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sync"

	"github.com/gregjones/httpcache"
)

// ResponseCache holds cached backend responses for exactly one credential.
// A request carrying a different Authorization header than the one the
// entries were stored under empties the cache first, so a response is only
// ever replayed to the session that fetched it.
type ResponseCache struct {
	mu      sync.Mutex
	owner   string
	entries *httpcache.MemoryCache
}

// NewResponseCache returns an empty cache.
func NewResponseCache() *ResponseCache {
	return &ResponseCache{entries: httpcache.NewMemoryCache()}
}

// Purge drops every stored response.
func (c *ResponseCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owner = ""
	c.entries = httpcache.NewMemoryCache()
}

// storeFor returns the entries owned by credential, replacing the store when
// the credential changed. Requests still in flight under the old credential
// write into the orphaned store.
func (c *ResponseCache) storeFor(credential string) httpcache.Cache {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owner != credential {
		c.owner = credential
		c.entries = httpcache.NewMemoryCache()
	}
	return c.entries
}

func (c *ResponseCache) current() httpcache.Cache {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries
}

// cacheTransport runs each request through httpcache. Reads use the store of
// the request's credential. Other methods only invalidate entries in the
// current store and never change its owner, so the unauthenticated refresh
// call leaves the cache alone.
type cacheTransport struct {
	base  http.RoundTripper
	cache *ResponseCache
}

func (t *cacheTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	store := t.cache.current()
	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		store = t.cache.storeFor(credentialKey(req))
	}

	ct := &httpcache.Transport{
		Transport:           t.base,
		Cache:               store,
		MarkCachedResponses: true,
	}
	return ct.RoundTrip(req)
}

func credentialKey(req *http.Request) string {
	auth := req.Header.Get("Authorization")
	if auth == "" {
		return "anonymous"
	}
	sum := sha256.Sum256([]byte(auth))
	return hex.EncodeToString(sum[:])
}
