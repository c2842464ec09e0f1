package redis

import (
	"strconv"
	"strings"
)

const namespace = "storefront"

// Keys builds the namespaced key layout shared by every storefront binary.
// Blank segments are dropped.
type Keys struct{}

func (Keys) build(parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			b.WriteByte(':')
			b.WriteString(p)
		}
	}
	return b.String()
}

// SessionBasketKey binds a session to its basket id.
func (k Keys) SessionBasketKey(sessionKey string) string {
	return k.build("session", sessionKey, "basket")
}

func (k Keys) IdempotencyKey(scope, id string) string {
	return k.build("idempotency", scope, id)
}

// LockKey guards an exclusive background run.
func (k Keys) LockKey(name string) string {
	return k.build("lock", name)
}

// OrderRefCounterKey is the per-year order number counter.
func (k Keys) OrderRefCounterKey(year int) string {
	return k.build("counter", "order_ref", strconv.Itoa(year))
}
