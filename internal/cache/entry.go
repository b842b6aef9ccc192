package cache

import (
	"time"

	"github.com/dnsscience/resolvcore/internal/packet"
)

// entry is one cached resource record, present in exactly two indexes
// at once (spec §3 invariants): the owning domain's slice in
// Cache.domains, and the expiration-ordered min-heap Cache.order. Both
// indexes hold a pointer to the same entry so an in-place TTL refresh
// (duplicate-merge) is visible from both sides without a second lookup.
type entry struct {
	record    packet.ResourceRecord
	domain    string // NormalizeName(record.Name), cached to avoid recomputation
	expiresAt time.Time
	seq       uint64 // uniqueness tiebreaker, see ttlKey
	heapIndex int     // maintained by container/heap, -1 when not in the heap
}

// ttlKey is the 128-bit composite ordering key spec §3 describes:
// (absolute expiration, a monotonic counter) so two entries expiring in
// the same millisecond still sort deterministically and stay unique.
// It is never stored on its own — entry.expiresAt/entry.seq together
// are the ttl-key — but the type documents the comparison spec §3
// requires of the expiration-ordered index.
type ttlKey struct {
	expiresAt time.Time
	seq       uint64
}

func (e *entry) key() ttlKey {
	return ttlKey{expiresAt: e.expiresAt, seq: e.seq}
}

func (k ttlKey) less(other ttlKey) bool {
	if !k.expiresAt.Equal(other.expiresAt) {
		return k.expiresAt.Before(other.expiresAt)
	}
	return k.seq < other.seq
}
