package main

import (
	"sync"

	"github.com/tidwall/btree"
)

// keyIndex is an ordered index of the record keys this server has created or
// uploaded to, backing the record-listing endpoint. The core store keeps its
// chains in an unordered table, so ordering is this layer's concern.
type keyIndex struct {
	lock sync.RWMutex
	tree *btree.BTreeG[string]
}

func newKeyIndex() *keyIndex {
	return &keyIndex{
		tree: btree.NewBTreeG[string](func(a, b string) bool {
			return a < b
		}),
	}
}

func (ix *keyIndex) add(key string) {
	ix.lock.Lock()
	defer ix.lock.Unlock()
	ix.tree.Set(key)
}

// ascend visits every indexed key in ascending order until the visitor
// reports false.
func (ix *keyIndex) ascend(visit func(key string) bool) {
	ix.lock.RLock()
	defer ix.lock.RUnlock()
	ix.tree.Scan(visit)
}
