package mqttbridge

import (
	"sync"
	"time"
)

// deduper remembers message IDs for ttl so QoS 1 redeliveries run once
type deduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	now  func() time.Time
	seen map[string]time.Time
}

func newDeduper(ttl time.Duration, max int) *deduper {
	return &deduper{ttl: ttl, max: max, now: time.Now, seen: make(map[string]time.Time)}
}

func (d *deduper) shouldProcess(id string) bool {
	if id == "" {
		return true
	}
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if exp, ok := d.seen[id]; ok && now.Before(exp) {
		return false
	}
	d.seen[id] = now.Add(d.ttl)
	if len(d.seen) > d.max {
		for k, exp := range d.seen {
			if now.After(exp) {
				delete(d.seen, k)
			}
		}
	}
	return true
}
