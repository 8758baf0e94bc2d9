package policy

import (
	"fmt"
	"sync"
	"time"
)

const (
	freshnessWindow = 5 * time.Minute
	maxSeen         = 10000
	pruneCount      = 1000
)

type seenKey struct {
	peerID int64
	cmid   int64
}

// Policy screens command-bearing messages against a peer allowlist, a
// freshness window, and duplicate suppression keyed by peer and
// conversation message ID.
type Policy struct {
	mu        sync.Mutex
	allowed   map[int64]bool
	seen      map[seenKey]bool
	seenOrder []seenKey
	now       func() time.Time
}

// New creates a Policy. An empty peer list allows all peers.
func New(peerIDs []int64) *Policy {
	allowed := make(map[int64]bool, len(peerIDs))
	for _, id := range peerIDs {
		allowed[id] = true
	}
	return &Policy{
		allowed: allowed,
		seen:    make(map[seenKey]bool),
		now:     time.Now,
	}
}

// Authorize checks whether a message should be processed. cmid zero skips
// duplicate suppression; not every event carries one.
func (p *Policy) Authorize(peerID, cmid int64, sent time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.allowed) > 0 && !p.allowed[peerID] {
		return fmt.Errorf("peer not allowed: %d", peerID)
	}

	if age := p.now().Sub(sent); age > freshnessWindow {
		return fmt.Errorf("stale message: %v old", age.Truncate(time.Second))
	}

	if cmid == 0 {
		return nil
	}

	key := seenKey{peerID: peerID, cmid: cmid}
	if p.seen[key] {
		return fmt.Errorf("duplicate message: peer %d cmid %d", peerID, cmid)
	}

	if len(p.seen) >= maxSeen {
		for i := 0; i < pruneCount && i < len(p.seenOrder); i++ {
			delete(p.seen, p.seenOrder[i])
		}
		p.seenOrder = p.seenOrder[pruneCount:]
	}

	p.seen[key] = true
	p.seenOrder = append(p.seenOrder, key)
	return nil
}
