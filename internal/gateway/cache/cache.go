// Package cache deduplicates identical requests per account. The fingerprint
// is a deterministic hash over the routed model and the ordered message
// sequence; entries never cross tenant boundaries.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sashabaranov/go-openai"
)

// Store is the TTL key-value collaborator, backed by Redis in production.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type Cache struct {
	store Store
	ttl   time.Duration
}

func New(store Store, ttl time.Duration) *Cache {
	return &Cache{store: store, ttl: ttl}
}

// Fingerprint hashes the routed model and message sequence. Any change to the
// model, message order, role, or content yields a different fingerprint.
func Fingerprint(model string, messages []openai.ChatCompletionMessage) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	for _, m := range messages {
		h.Write([]byte(m.Role))
		h.Write([]byte{0x1f})
		h.Write([]byte(m.Content))
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func key(ownerID, fingerprint string) string {
	return fmt.Sprintf("cache:%s:%s", ownerID, fingerprint)
}

// Get returns the stored response body for (owner, fingerprint), or false on
// a miss. Store errors are treated as misses; a flaky cache must not fail the
// request.
func (c *Cache) Get(ctx context.Context, ownerID, fingerprint string) ([]byte, bool) {
	val, err := c.store.Get(ctx, key(ownerID, fingerprint))
	if err != nil {
		return nil, false
	}
	return []byte(val), true
}

// Set stores a response body under the configured TTL. Failures are logged
// and swallowed; writes never surface to the caller.
func (c *Cache) Set(ctx context.Context, ownerID, fingerprint string, body []byte) {
	if err := c.store.Set(ctx, key(ownerID, fingerprint), string(body), c.ttl); err != nil {
		log.Warn("cache write failed", "owner", ownerID, "err", err)
	}
}
