package eventlog

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// dedupeLRU suppresses duplicate events keyed by (month, content hash,
// sorted related ids). Scope is the log, not per avatar: a mutual action
// emitting once per side collapses to a single entry.
type dedupeLRU struct {
	capacity int
	order    *list.List // front = most recent
	keys     map[string]*list.Element
}

func newDedupeLRU(capacity int) *dedupeLRU {
	if capacity < 1 {
		capacity = 1
	}
	return &dedupeLRU{
		capacity: capacity,
		order:    list.New(),
		keys:     make(map[string]*list.Element, capacity),
	}
}

func dedupeKey(e Event) string {
	sum := sha256.Sum256([]byte(e.Content))
	return fmt.Sprintf("%d|%s|%s", e.Month, hex.EncodeToString(sum[:8]), strings.Join(e.RelatedIDs, ","))
}

// seen records the key and reports whether it was already present.
func (d *dedupeLRU) seen(key string) bool {
	if el, ok := d.keys[key]; ok {
		d.order.MoveToFront(el)
		return true
	}
	d.keys[key] = d.order.PushFront(key)
	if d.order.Len() > d.capacity {
		oldest := d.order.Back()
		d.order.Remove(oldest)
		delete(d.keys, oldest.Value.(string))
	}
	return false
}
