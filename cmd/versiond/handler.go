package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"sehlabs.com/versionstore/internal/version"
)

type server struct {
	store dispatcher
	index *keyIndex
	// nextVersionKey feeds the auto-allocating upload endpoint. Version keys
	// only need to grow monotonically within a chain, so one shared sequence
	// serves every record.
	nextVersionKey atomic.Int64
}

func speakPlainTextTo(w http.ResponseWriter) {
	w.Header().Add("Content-Type", "text/plain")
}

func respondWithError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	if errors.Is(err, version.ErrRecordDoesNotExist) || errors.Is(err, version.ErrVersionDoesNotExist) {
		statusCode = http.StatusNotFound
	}
	speakPlainTextTo(w)
	w.WriteHeader(statusCode)
	fmt.Fprintln(w, err)
}

func respondWithBadRequest(w http.ResponseWriter, format string, a ...interface{}) {
	speakPlainTextTo(w)
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(w, format, a...)
	fmt.Fprintln(w)
}

func makeScratch() *version.Fields[*row] {
	return &version.Fields[*row]{Payload: version.NewRow(nil)}
}

func writeFields(w http.ResponseWriter, f *version.Fields[*row]) {
	fmt.Fprintf(w, "version=%d begin=%d end=%d tx=%d max_commit=%d value=%q\n",
		f.VersionKey, f.BeginTS, f.EndTS, f.TxID, f.MaxCommitTS, f.Payload.Bytes())
}

func formTimestamp(req *http.Request, name string, absent version.Timestamp) (version.Timestamp, error) {
	v := req.FormValue(name)
	if len(v) == 0 {
		return absent, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("HTTP form key %q must hold an integer: %w", name, err)
	}
	return version.Timestamp(n), nil
}

func formTxID(req *http.Request, name string) (version.TxID, error) {
	v := req.FormValue(name)
	if len(v) == 0 {
		return version.NoTransaction, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("HTTP form key %q must hold an unsigned integer: %w", name, err)
	}
	return version.TxID(n), nil
}

func (s *server) handleCreateChain(w http.ResponseWriter, key version.Key) {
	req := version.InitChainRequest[*row]{Key: key}
	if err := s.store.Handle(&req); err != nil {
		respondWithError(w, err)
		return
	}
	if !req.Created {
		// Lost the creation race; re-fetch through the plain lookup path so the
		// index still learns about the key.
		if _, ok := s.store.GetChain(key); ok {
			s.index.add(string(key))
		}
		w.WriteHeader(http.StatusConflict)
		return
	}
	s.index.add(string(key))
	w.WriteHeader(http.StatusCreated)
}

func (s *server) handleListVersions(w http.ResponseWriter, key version.Key) {
	req := version.ListRequest[*row]{
		Key:   key,
		Slots: [2]*version.Fields[*row]{makeScratch(), makeScratch()},
	}
	if err := s.store.Handle(&req); err != nil {
		respondWithError(w, err)
		return
	}
	if req.Chain == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	speakPlainTextTo(w)
	for i := 0; i < req.Count; i++ {
		writeFields(w, req.Slots[i])
	}
}

var errVersionSlotTaken = errors.New("version slot already occupied")

// uploadNext uploads a version under a server-allocated key. Losing the slot
// to a concurrent uploader is an expected race; the caller-visible remedy is
// to pick a fresh key and try again, so that is what this does, with backoff.
func (s *server) uploadNext(ctx context.Context, key version.Key, txID version.TxID, value []byte) (version.Timestamp, error) {
	var allocated version.Timestamp
	backoff := retry.NewFibonacci(time.Millisecond)
	err := retry.Do(ctx, retry.WithMaxRetries(8, backoff), func(ctx context.Context) error {
		versionKey := version.Timestamp(s.nextVersionKey.Add(1))
		req := version.UploadRequest[*row]{
			Key:        key,
			VersionKey: versionKey,
			Record:     version.NewRecord(key, versionKey, versionKey, version.NoTimestamp, txID, version.NewRow(value)),
		}
		if err := s.store.Handle(&req); err != nil {
			return err
		}
		if !req.OK {
			return retry.RetryableError(errVersionSlotTaken)
		}
		allocated = versionKey
		return nil
	})
	return allocated, err
}

func (s *server) handleUploadAllocated(ctx context.Context, w http.ResponseWriter, req *http.Request, key version.Key) {
	txID, err := formTxID(req, "txid")
	if err != nil {
		respondWithBadRequest(w, "%v", err)
		return
	}
	versionKey, err := s.uploadNext(ctx, key, txID, []byte(req.FormValue("value")))
	if err != nil {
		respondWithError(w, err)
		return
	}
	s.index.add(string(key))
	speakPlainTextTo(w)
	w.WriteHeader(http.StatusCreated)
	fmt.Fprintf(w, "version=%d\n", versionKey)
}

func (s *server) handleUpload(w http.ResponseWriter, req *http.Request, key version.Key, versionKey version.Timestamp) {
	txID, err := formTxID(req, "txid")
	if err != nil {
		respondWithBadRequest(w, "%v", err)
		return
	}
	beginTS, err := formTimestamp(req, "begin", versionKey)
	if err != nil {
		respondWithBadRequest(w, "%v", err)
		return
	}
	endTS, err := formTimestamp(req, "end", version.NoTimestamp)
	if err != nil {
		respondWithBadRequest(w, "%v", err)
		return
	}
	upload := version.UploadRequest[*row]{
		Key:        key,
		VersionKey: versionKey,
		Record:     version.NewRecord(key, versionKey, beginTS, endTS, txID, version.NewRow([]byte(req.FormValue("value")))),
	}
	if err := s.store.Handle(&upload); err != nil {
		respondWithError(w, err)
		return
	}
	if !upload.OK {
		w.WriteHeader(http.StatusConflict)
		return
	}
	s.index.add(string(key))
	w.WriteHeader(http.StatusCreated)
}

func (s *server) handleRead(w http.ResponseWriter, key version.Key, versionKey version.Timestamp) {
	req := version.ReadRequest[*row]{
		Key:        key,
		VersionKey: versionKey,
		Scratch:    makeScratch(),
	}
	if err := s.store.Handle(&req); err != nil {
		respondWithError(w, err)
		return
	}
	if !req.Found {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	speakPlainTextTo(w)
	writeFields(w, req.Scratch)
}

func (s *server) handleReplace(w http.ResponseWriter, req *http.Request, key version.Key, versionKey version.Timestamp) {
	beginTS, err := formTimestamp(req, "begin", versionKey)
	if err != nil {
		respondWithBadRequest(w, "%v", err)
		return
	}
	endTS, err := formTimestamp(req, "end", version.NoTimestamp)
	if err != nil {
		respondWithBadRequest(w, "%v", err)
		return
	}
	txID, err := formTxID(req, "txid")
	if err != nil {
		respondWithBadRequest(w, "%v", err)
		return
	}
	expectedTxID, err := formTxID(req, "expected-txid")
	if err != nil {
		respondWithBadRequest(w, "%v", err)
		return
	}
	expectedEndTS, err := formTimestamp(req, "expected-end", version.NoTimestamp)
	if err != nil {
		respondWithBadRequest(w, "%v", err)
		return
	}
	replace := version.ReplaceRequest[*row]{
		Key:           key,
		VersionKey:    versionKey,
		NewBeginTS:    beginTS,
		NewEndTS:      endTS,
		NewTxID:       txID,
		NewPayload:    version.NewRow([]byte(req.FormValue("value"))),
		ExpectedTxID:  expectedTxID,
		ExpectedEndTS: expectedEndTS,
		Scratch:       makeScratch(),
	}
	if err := s.store.Handle(&replace); err != nil {
		respondWithError(w, err)
		return
	}
	// The caller compares the returned fields against what it requested to
	// detect the no-op case.
	speakPlainTextTo(w)
	writeFields(w, replace.Scratch)
}

func (s *server) handleStampMaxCommitTS(w http.ResponseWriter, req *http.Request, key version.Key, versionKey version.Timestamp) {
	candidate, err := formTimestamp(req, "ts", version.NoTimestamp)
	if err != nil {
		respondWithBadRequest(w, "%v", err)
		return
	}
	stamp := version.UpdateMaxCommitTSRequest[*row]{
		Key:         key,
		VersionKey:  versionKey,
		CandidateTS: candidate,
		Scratch:     makeScratch(),
	}
	if err := s.store.Handle(&stamp); err != nil {
		respondWithError(w, err)
		return
	}
	speakPlainTextTo(w)
	writeFields(w, stamp.Scratch)
}

func (s *server) handleDelete(w http.ResponseWriter, key version.Key, versionKey version.Timestamp) {
	req := version.DeleteRequest[*row]{Key: key, VersionKey: versionKey}
	if err := s.store.Handle(&req); err != nil {
		respondWithError(w, err)
		return
	}
	if !req.OK {
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *server) handleListRecords(w http.ResponseWriter) {
	speakPlainTextTo(w)
	s.index.ascend(func(key string) bool {
		fmt.Fprintln(w, key)
		return true
	})
}

const recordPathPrefix = "/record/"

// handleRecordPath serves /record/{key}, /record/{key}/versions, and
// /record/{key}/version/{versionKey}. Record keys in this scheme must not
// contain a slash.
func (s *server) handleRecordPath(w http.ResponseWriter, req *http.Request) {
	rest, ok := strings.CutPrefix(req.URL.Path, recordPathPrefix)
	if !ok || len(rest) == 0 {
		respondWithBadRequest(w, "URL path must contain a nonempty key")
		return
	}
	if err := req.ParseForm(); err != nil {
		respondWithBadRequest(w, "Failed to parse HTTP form: %v", err)
		return
	}
	segments := strings.Split(rest, "/")
	key := version.Key(segments[0])
	if len(key) == 0 {
		respondWithBadRequest(w, "URL path must contain a nonempty key")
		return
	}
	switch {
	case len(segments) == 1:
		switch req.Method {
		case http.MethodPost:
			s.handleCreateChain(w, key)
		case http.MethodGet:
			s.handleListVersions(w, key)
		default:
			respondWithBadRequest(w, "Request uses disallowed HTTP method %q", req.Method)
		}
	case len(segments) == 2 && segments[1] == "versions":
		if req.Method != http.MethodPost {
			respondWithBadRequest(w, "Request uses disallowed HTTP method %q", req.Method)
			return
		}
		s.handleUploadAllocated(req.Context(), w, req, key)
	case len(segments) == 3 && segments[1] == "version":
		n, err := strconv.ParseInt(segments[2], 10, 64)
		if err != nil {
			respondWithBadRequest(w, "URL path version key must be an integer: %v", err)
			return
		}
		versionKey := version.Timestamp(n)
		switch req.Method {
		case http.MethodGet:
			s.handleRead(w, key, versionKey)
		case http.MethodPost:
			s.handleUpload(w, req, key, versionKey)
		case http.MethodPut:
			s.handleReplace(w, req, key, versionKey)
		case http.MethodPatch:
			s.handleStampMaxCommitTS(w, req, key, versionKey)
		case http.MethodDelete:
			s.handleDelete(w, key, versionKey)
		default:
			respondWithBadRequest(w, "Request uses disallowed HTTP method %q", req.Method)
		}
	default:
		respondWithBadRequest(w, "Unrecognized URL path %q", req.URL.Path)
	}
}

// withRequestLogging tags each request with a correlation ID and logs its
// outcome at debug level.
func withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requestID := uuid.NewString()
		start := time.Now()
		next.ServeHTTP(w, req)
		slog.Debug("served request",
			"request_id", requestID,
			"method", req.Method,
			"path", req.URL.Path,
			"duration", time.Since(start))
	})
}

func makeHandler(store dispatcher) http.Handler {
	s := &server{
		store: store,
		index: newKeyIndex(),
	}
	var mux http.ServeMux
	mux.HandleFunc(recordPathPrefix, s.handleRecordPath)
	mux.HandleFunc("/records", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			respondWithBadRequest(w, "Request uses disallowed HTTP method %q", req.Method)
			return
		}
		s.handleListRecords(w)
	})
	return withRequestLogging(&mux)
}
