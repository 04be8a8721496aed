package version

import "sync/atomic"

// completion is the flag every request carries so that the layer above can
// poll for the request having been fully served.
type completion struct {
	done atomic.Bool
}

// Done reports whether the dispatcher has finished serving this request and
// set all of its outputs.
func (c *completion) Done() bool {
	return c.done.Load()
}

func (c *completion) finish() {
	c.done.Store(true)
}

// Request is the contract between the transaction layer and the dispatcher:
// the caller constructs one of the concrete request types below, submits it
// via Store.Handle, and reads the outputs once the completion flag is set.
// Handle is synchronous, so outputs are readable as soon as it returns.
type Request[P Recyclable[P]] interface {
	run(s *Store[P]) error
	finish()
}

// InitChainRequest ensures a chain exists for a record key. Exactly one of any
// set of concurrent callers for an unused key observes Created=true along with
// the chain handle; the rest observe Created=false and a nil handle, and are
// expected to re-fetch the chain via Store.GetChain.
type InitChainRequest[P Recyclable[P]] struct {
	completion
	Key Key

	// Outputs.
	Chain   *Chain[P]
	Created bool
}

// UploadRequest appends a new version to a record's chain. The new version
// becomes the chain's newest; if the chain then exceeds its capacity, the
// oldest retained version is evicted and its payload recycled.
//
// A slot collision with a concurrent uploader is an expected race, not an
// error: OK is false, Existing carries the occupant's payload, and the caller
// must pick a different version key or retry.
type UploadRequest[P Recyclable[P]] struct {
	completion
	Key        Key
	VersionKey Timestamp
	Record     *Record[P]
	// ChainHint, when non-nil, skips the table lookup.
	ChainHint *Chain[P]

	// Outputs.
	OK bool
	// Existing is the colliding occupant's payload when OK is false. It remains
	// owned by the occupant and must be treated as read-only.
	Existing P
	// Evicted is the version displaced by the capacity bound, detached from the
	// chain with its payload already handed to the recycle pool, or a fresh
	// placeholder when nothing was evicted.
	Evicted *Record[P]
}

// ReadRequest copies one version's field group, as a consistent snapshot,
// into the caller's scratch buffer. A missing record or version is benign:
// Found is simply false.
type ReadRequest[P Recyclable[P]] struct {
	completion
	Key        Key
	VersionKey Timestamp
	// EntryHint, when non-nil, skips both the table and the chain lookup.
	EntryHint *Record[P]
	Scratch   *Fields[P]

	// Outputs. Scratch holds the copied fields when Found is true.
	Found bool
}

// ReplaceRequest overwrites a version's field group, but only when the
// version's current owning transaction and end timestamp still equal the
// expected values; on a mismatch the request is a silent no-op. Scratch always
// receives the version's (possibly unchanged) post-call fields, so callers
// detect the no-op by comparing Scratch against what they requested.
//
// The target version must exist; asking to replace an absent one is a caller
// logic error.
type ReplaceRequest[P Recyclable[P]] struct {
	completion
	Key        Key
	VersionKey Timestamp
	NewBeginTS Timestamp
	NewEndTS   Timestamp
	NewTxID    TxID
	NewPayload P

	ExpectedTxID  TxID
	ExpectedEndTS Timestamp

	EntryHint *Record[P]
	Scratch   *Fields[P]
}

// UpdateMaxCommitTSRequest raises a version's max-seen commit timestamp to the
// candidate value if the candidate is larger; the field never decreases.
// Scratch receives the version's post-call fields.
//
// The target version must exist, as with ReplaceRequest.
type UpdateMaxCommitTSRequest[P Recyclable[P]] struct {
	completion
	Key         Key
	VersionKey  Timestamp
	CandidateTS Timestamp

	EntryHint *Record[P]
	Scratch   *Fields[P]
}

// ListRequest fetches the newest versions of a record, newest first, by
// walking backward from the sentinel's newest pointer. At most two versions
// are returned: sufficient for the serializability protocol this store backs.
// The caller supplies the output slots; Refs receives references to the same
// versions for callers that only need identity.
type ListRequest[P Recyclable[P]] struct {
	completion
	Key   Key
	Slots [2]*Fields[P]

	// Outputs.
	Count int
	Refs  []*Record[P]
	Chain *Chain[P]
}

// DeleteRequest retires one version, recycling its payload. A wholly missing
// record is benign (trivial success); a missing version under an existing
// record reports OK=false.
type DeleteRequest[P Recyclable[P]] struct {
	completion
	Key        Key
	VersionKey Timestamp
	ChainHint  *Chain[P]

	// Outputs.
	OK bool
}
