package quality

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache memoizes scoring results keyed by a content fingerprint, with
// time-based expiry. Only successful evaluations are stored so a transient
// inference failure never poisons future retries.
type Cache struct {
	c *gocache.Cache
}

// NewCache creates a cache whose entries expire after ttl.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{c: gocache.New(ttl, 2*ttl)}
}

// Get returns the cached result for a fingerprint, if present and fresh.
func (c *Cache) Get(fingerprint string) (*Result, bool) {
	v, ok := c.c.Get(fingerprint)
	if !ok {
		return nil, false
	}
	return v.(*Result), true
}

// Put stores a result under a fingerprint.
func (c *Cache) Put(fingerprint string, r *Result) {
	c.c.Set(fingerprint, r, gocache.DefaultExpiration)
}

// Fingerprint hashes the normalized update content. The state label is
// part of the key because it changes which criteria apply.
func Fingerprint(stateLabel *string, text string) string {
	label := ""
	if stateLabel != nil {
		label = strings.ToLower(strings.TrimSpace(*stateLabel))
	}
	normalized := label + "\x00" + normalizeText(text)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func normalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
