package version

// Handle executes the given request against the store. The request's outputs
// and completion flag are set before Handle returns.
//
// Expected concurrency outcomes (an upload key collision, a replace field
// mismatch, an init call finding the chain already present) surface through
// the request's result fields. The returned error is reserved for the fatal
// class: a caller asking to mutate a record or version that genuinely has no
// entry.
func (s *Store[P]) Handle(req Request[P]) error {
	defer req.finish()
	return req.run(s)
}

func (s *Store[P]) resolveChain(key Key, hint *Chain[P]) (*Chain[P], bool) {
	if hint != nil {
		return hint, true
	}
	return s.GetChain(key)
}

func (s *Store[P]) resolveEntry(key Key, versionKey Timestamp, hint *Record[P]) (*Record[P], error) {
	if hint != nil {
		return hint, nil
	}
	chain, ok := s.GetChain(key)
	if !ok {
		return nil, recordDoesNotExistError(key)
	}
	entry, ok := chain.lookup(versionKey)
	if !ok {
		return nil, versionDoesNotExistError{key: string(key), versionKey: versionKey}
	}
	return entry, nil
}

func (r *InitChainRequest[P]) run(s *Store[P]) error {
	chain, created := s.CreateChainIfAbsent(r.Key)
	if !created {
		// Lost the creation race (or the chain predates this call). The caller
		// re-fetches through the plain lookup path.
		return nil
	}
	r.Chain = chain
	r.Created = true
	return nil
}

func (r *UploadRequest[P]) run(s *Store[P]) error {
	chain, ok := s.resolveChain(r.Key, r.ChainHint)
	if !ok {
		return recordDoesNotExistError(r.Key)
	}
	r.Record.key = chain.key
	r.Record.versionKey = r.VersionKey
	occupant, installed := chain.insert(r.Record)
	if !installed {
		// Lost the slot to a concurrent uploader, or the caller reused a key.
		r.Existing = occupant.payload
		return nil
	}
	// The newest/oldest pointers and the eviction decision form one consistent
	// unit: a reader must never observe the new newest pointer alongside a
	// stale oldest pointer mid-eviction.
	chain.sentinelMu.Lock()
	sentinel := chain.sentinel
	sentinel.beginTS = r.VersionKey
	if sentinel.endTS == NoTimestamp {
		sentinel.endTS = sentinel.beginTS
	}
	if chain.Len() > s.chainCapacity {
		oldest := sentinel.endTS
		if victim, ok := chain.remove(oldest); ok {
			if victim.recyclable {
				s.pool.Cache(victim.payload)
			}
			r.Evicted = victim
		}
		sentinel.endTS = oldest + 1
	}
	chain.sentinelMu.Unlock()
	if r.Evicted == nil {
		r.Evicted = newPlaceholder[P](chain.key, NoTimestamp)
	}
	r.OK = true
	return nil
}

func (r *ReadRequest[P]) run(s *Store[P]) error {
	entry := r.EntryHint
	if entry == nil {
		chain, ok := s.GetChain(r.Key)
		if !ok {
			return nil
		}
		if entry, ok = chain.lookup(r.VersionKey); !ok {
			return nil
		}
	}
	entry.snapshotInto(r.Scratch)
	r.Found = true
	return nil
}

func (r *ReplaceRequest[P]) run(s *Store[P]) error {
	entry, err := s.resolveEntry(r.Key, r.VersionKey, r.EntryHint)
	if err != nil {
		return err
	}
	entry.latch.Lock()
	if entry.txID == r.ExpectedTxID && entry.endTS == r.ExpectedEndTS {
		entry.beginTS = r.NewBeginTS
		entry.endTS = r.NewEndTS
		entry.txID = r.NewTxID
		entry.payload = r.NewPayload
		entry.recyclable = true
	}
	entry.copyFieldsLocked(r.Scratch)
	entry.latch.Unlock()
	return nil
}

func (r *UpdateMaxCommitTSRequest[P]) run(s *Store[P]) error {
	entry, err := s.resolveEntry(r.Key, r.VersionKey, r.EntryHint)
	if err != nil {
		return err
	}
	entry.latch.Lock()
	if r.CandidateTS > entry.maxCommitTS {
		entry.maxCommitTS = r.CandidateTS
	}
	entry.copyFieldsLocked(r.Scratch)
	entry.latch.Unlock()
	return nil
}

func (r *ListRequest[P]) run(s *Store[P]) error {
	chain, ok := s.GetChain(r.Key)
	if !ok {
		return nil
	}
	r.Chain = chain
	chain.sentinelMu.Lock()
	newest := chain.sentinel.beginTS
	chain.sentinelMu.Unlock()
	for key := newest; r.Count < len(r.Slots) && key >= 0; key-- {
		entry, ok := chain.lookup(key)
		if !ok {
			// A gap left behind by an earlier eviction.
			continue
		}
		slot := r.Slots[r.Count]
		entry.snapshotInto(slot)
		if slot.TxID == NoTransaction {
			// Beginning of meaningful history.
			break
		}
		r.Refs = append(r.Refs, entry)
		r.Count++
	}
	return nil
}

func (r *DeleteRequest[P]) run(s *Store[P]) error {
	chain, ok := s.resolveChain(r.Key, r.ChainHint)
	if !ok {
		// Nothing to delete.
		r.OK = true
		return nil
	}
	// TODO: These sentinel edits run without the sentinel lock that uploads
	// take, and the newest pointer is stepped back by one rather than
	// recomputed from the surviving entries. Concurrent uploads or deletes on
	// the same chain can leave the pointer pair drifting from the true newest
	// remaining key.
	sentinel := chain.sentinel
	if sentinel.beginTS == sentinel.endTS {
		// Sole retained version: the chain returns to its empty state.
		sentinel.beginTS = NoTimestamp
		sentinel.endTS = NoTimestamp
	} else {
		sentinel.beginTS--
	}
	if oldest := sentinel.endTS; oldest > 0 {
		// Keep the oldest pointer backed by a live slot for the next eviction.
		chain.insert(newPlaceholder[P](chain.key, oldest-1))
		sentinel.endTS = oldest - 1
	}
	victim, ok := chain.remove(r.VersionKey)
	if !ok {
		return nil
	}
	if victim.recyclable {
		s.pool.Cache(victim.payload)
	}
	r.OK = true
	return nil
}
