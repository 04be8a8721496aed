package version

import (
	"errors"
	"sync"
)

type storeOptions struct {
	chainCapacity int
	recycleLimit  int
}

// StoreOption is a potential customization of a Store's behavior.
type StoreOption func(*storeOptions) error

// WithChainCapacity establishes the positive number of versions each chain
// retains before uploads start evicting the oldest retained version.
func WithChainCapacity(n int) StoreOption {
	return func(o *storeOptions) error {
		if n < 1 {
			return errors.New("chain capacity must be positive")
		}
		o.chainCapacity = n
		return nil
	}
}

// WithRecycleLimit establishes the maximum number of released payloads the
// store's recycle pool retains. Zero disables recycling entirely, in which
// case every payload request allocates fresh.
func WithRecycleLimit(n int) StoreOption {
	return func(o *storeOptions) error {
		if n < 0 {
			return errors.New("recycle limit must be nonnegative")
		}
		o.recycleLimit = n
		return nil
	}
}

// Store is a multi-version record store: a shared table relating each record
// key to the chain of that record's versions. All reading and mutation of
// chains goes through the dispatch surface (Handle), which is safe for
// arbitrarily many concurrent callers against the same or different keys.
//
// A Store is an explicitly constructed dependency; callers own its lifetime
// and pass it where needed.
type Store[P Recyclable[P]] struct {
	chains        sync.Map // string(Key) -> *Chain[P]
	chainCapacity int
	pool          *RecyclePool[P]
}

const (
	defaultChainCapacity = 32
	defaultRecycleLimit  = 256
)

// MakeStore creates an empty Store ready to accept versions.
func MakeStore[P Recyclable[P]](opts ...StoreOption) (*Store[P], error) {
	options := storeOptions{
		chainCapacity: defaultChainCapacity,
		recycleLimit:  defaultRecycleLimit,
	}
	for _, o := range opts {
		if err := o(&options); err != nil {
			return nil, err
		}
	}
	return &Store[P]{
		chainCapacity: options.chainCapacity,
		pool:          NewRecyclePool[P](options.recycleLimit),
	}, nil
}

// ChainCapacity returns the number of versions each chain retains before
// uploads evict the oldest.
func (s *Store[P]) ChainCapacity() int {
	return s.chainCapacity
}

// Pool returns the store's payload recycle pool.
func (s *Store[P]) Pool() *RecyclePool[P] {
	return s.pool
}

// GetChain looks up the chain for the given record key without blocking.
func (s *Store[P]) GetChain(key Key) (*Chain[P], bool) {
	v, ok := s.chains.Load(string(key))
	if !ok {
		return nil, false
	}
	return v.(*Chain[P]), true
}

// CreateChainIfAbsent builds a chain containing only the sentinel entry and
// attempts to install it for the given record key. If a concurrent creation
// wins the race, the freshly built chain is discarded and the installed chain
// is returned with created=false; exactly one caller for a given key ever
// observes created=true.
func (s *Store[P]) CreateChainIfAbsent(key Key) (chain *Chain[P], created bool) {
	fresh := newChain[P](key)
	v, loaded := s.chains.LoadOrStore(string(key), fresh)
	return v.(*Chain[P]), !loaded
}
