package version

type (
	// Key is the identity of a logical record in the store.
	//
	// The store keeps as many as one version chain for each unique key.
	Key []byte
	// Timestamp is the signed, timestamp-like identifier domain shared by version
	// keys and the visibility interval fields of a version. An ordinary version's
	// key equals the timestamp at which the version became visible.
	Timestamp int64
	// TxID identifies the transaction that owns or produced a version.
	TxID uint64
)

const (
	// SentinelKey is the reserved version key of each chain's tail entry, whose
	// begin/end fields serve as the newest/oldest retained-version pointers.
	SentinelKey Timestamp = -1
	// NoTimestamp is the empty value for the sentinel's pointers, marking a chain
	// that retains no versions.
	NoTimestamp Timestamp = -1
	// NoTransaction marks a version with no owning transaction. Walkers treat such
	// an entry as the beginning of meaningful history and stop there.
	//
	// NB: The first valid transaction ID is one.
	NoTransaction TxID = 0
)

// Recyclable constrains the payload types the store can hold and recycle.
//
// CopyFrom must overwrite the payload with the template's contents and report
// whether the payload could absorb the template's shape; on a false report the
// payload must be left unchanged. Implementations must tolerate the zero value
// of P as a template, treating it as empty content. Clone must return a fresh
// deep copy of the payload.
type Recyclable[P any] interface {
	CopyFrom(template P) bool
	Clone() P
}

// Row is a byte-vector payload. It can absorb any other Row, so a recycled Row
// always satisfies the pool's compatibility check.
type Row struct {
	data []byte
}

// NewRow creates a Row holding a copy of the given content.
func NewRow(content []byte) *Row {
	r := &Row{}
	copyInto(&r.data, content)
	return r
}

// Bytes returns the Row's content. The returned slice aliases the Row's
// storage and must not be retained across store operations.
func (r *Row) Bytes() []byte {
	return r.data
}

// CopyFrom copies the content from the given template into this Row. A nil
// template leaves the Row empty.
func (r *Row) CopyFrom(template *Row) bool {
	if template == nil {
		r.data = r.data[:0]
		return true
	}
	copyInto(&r.data, template.data)
	return true
}

// Clone returns a fresh Row holding a copy of this Row's content.
func (r *Row) Clone() *Row {
	return NewRow(r.data)
}

func copyInto[V ~[]byte, U ~[]byte](dst *V, v U) int {
	length := len(v)
	if cap(*dst) < length {
		*dst = make([]byte, length)
	} else if len(*dst) != length {
		*dst = (*dst)[:length]
	}
	return copy(*dst, v)
}
