package version

import "sync"

// Record is a single timestamped version of one logical record. Its mutable
// field group (visibility interval, owning transaction, max-seen commit
// timestamp, payload) is guarded by a per-entry latch so that concurrent
// readers and writers always observe the group as a consistent unit.
type Record[P Recyclable[P]] struct {
	key        Key
	versionKey Timestamp

	latch       sync.Mutex
	beginTS     Timestamp
	endTS       Timestamp
	txID        TxID
	maxCommitTS Timestamp
	payload     P
	// recyclable reports whether the payload was supplied by a caller and may be
	// handed to the recycle pool when the record dies. Sentinel and placeholder
	// entries carry no reusable payload.
	recyclable bool
}

// NewRecord creates a version carrying a caller-supplied payload, ready to be
// uploaded into a chain.
func NewRecord[P Recyclable[P]](key Key, versionKey, beginTS, endTS Timestamp, txID TxID, payload P) *Record[P] {
	return &Record[P]{
		key:        key,
		versionKey: versionKey,
		beginTS:    beginTS,
		endTS:      endTS,
		txID:       txID,
		payload:    payload,
		recyclable: true,
	}
}

func newPlaceholder[P Recyclable[P]](key Key, versionKey Timestamp) *Record[P] {
	return &Record[P]{
		key:        key,
		versionKey: versionKey,
		beginTS:    NoTimestamp,
		endTS:      NoTimestamp,
		txID:       NoTransaction,
	}
}

// Key returns the identity of the logical record this version belongs to.
func (r *Record[P]) Key() Key {
	return r.key
}

// VersionKey returns this version's identifier within its chain.
func (r *Record[P]) VersionKey() Timestamp {
	return r.versionKey
}

// Payload returns the record's payload. The caller owns the record (it was
// evicted or never installed); live records must be read through the
// dispatcher instead.
func (r *Record[P]) Payload() P {
	return r.payload
}

// Fields is a caller-supplied scratch buffer receiving a latch-consistent copy
// of one record's field group. The Payload field must be initialized to a
// usable payload before the buffer is handed to the dispatcher.
type Fields[P Recyclable[P]] struct {
	Key         Key
	VersionKey  Timestamp
	BeginTS     Timestamp
	EndTS       Timestamp
	TxID        TxID
	MaxCommitTS Timestamp
	Payload     P
}

// snapshotInto copies the record's field group into the scratch buffer under
// the entry latch.
func (r *Record[P]) snapshotInto(f *Fields[P]) {
	r.latch.Lock()
	r.copyFieldsLocked(f)
	r.latch.Unlock()
}

func (r *Record[P]) copyFieldsLocked(f *Fields[P]) {
	f.Key = append(f.Key[:0], r.key...)
	f.VersionKey = r.versionKey
	f.BeginTS = r.beginTS
	f.EndTS = r.endTS
	f.TxID = r.txID
	f.MaxCommitTS = r.maxCommitTS
	f.Payload.CopyFrom(r.payload)
}
