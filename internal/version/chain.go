package version

import (
	"sync"
	"sync/atomic"
)

// Chain holds the chronologically ordered versions of one logical record,
// keyed by version key. Alongside the ordinary versions it owns a sentinel
// entry at SentinelKey whose beginTS/endTS fields point at the newest and
// oldest retained version keys.
//
// The version-key map is safe for concurrent insert, lookup, and removal of
// distinct keys without blocking. The sentinel's pointer pair and the
// capacity-eviction decision are mutually dependent, so uploads update them
// under a single sentinel-scoped lock; list walks take the same lock briefly
// to observe a consistent newest pointer before walking.
type Chain[P Recyclable[P]] struct {
	key      Key
	entries  sync.Map // Timestamp -> *Record[P]
	sentinel *Record[P]

	sentinelMu sync.Mutex
	// size counts entries excluding the sentinel, placeholders included.
	size atomic.Int64
}

func newChain[P Recyclable[P]](key Key) *Chain[P] {
	c := &Chain[P]{
		key: append(Key(nil), key...),
	}
	c.sentinel = c.makeSentinel()
	return c
}

func (c *Chain[P]) makeSentinel() *Record[P] {
	s := &Record[P]{
		key:        c.key,
		versionKey: SentinelKey,
		beginTS:    NoTimestamp,
		endTS:      NoTimestamp,
		txID:       NoTransaction,
	}
	c.entries.Store(SentinelKey, s)
	return s
}

// Key returns the identity of the logical record this chain belongs to.
func (c *Chain[P]) Key() Key {
	return c.key
}

// Len reports the number of versions the chain retains, excluding the sentinel.
func (c *Chain[P]) Len() int {
	return int(c.size.Load())
}

func (c *Chain[P]) lookup(versionKey Timestamp) (*Record[P], bool) {
	v, ok := c.entries.Load(versionKey)
	if !ok {
		return nil, false
	}
	return v.(*Record[P]), true
}

// insert installs the record at its version key unless that slot is already
// occupied, in which case it returns the occupant.
func (c *Chain[P]) insert(r *Record[P]) (occupant *Record[P], installed bool) {
	v, loaded := c.entries.LoadOrStore(r.versionKey, r)
	if loaded {
		return v.(*Record[P]), false
	}
	c.size.Add(1)
	return r, true
}

// remove detaches and returns the record at the given version key, if any.
func (c *Chain[P]) remove(versionKey Timestamp) (*Record[P], bool) {
	if versionKey == SentinelKey {
		return nil, false
	}
	v, loaded := c.entries.LoadAndDelete(versionKey)
	if !loaded {
		return nil, false
	}
	c.size.Add(-1)
	return v.(*Record[P]), true
}
