package main

import (
	"sehlabs.com/versionstore/internal/version"
)

// row is the payload type this server stores.
type row = version.Row

// dispatcher is the slice of the version store this server consumes: the
// request surface plus the plain chain lookup used after losing a creation
// race.
type dispatcher interface {
	// Handle executes one request against the store, setting the request's
	// outputs and completion flag before returning. Errors mark caller logic
	// mistakes (mutating a record or version that has no entry); expected
	// concurrency outcomes surface through the request's result fields.
	Handle(req version.Request[*row]) error
	// GetChain looks up the chain for the given record key without blocking.
	GetChain(key version.Key) (*version.Chain[*row], bool)
}

var _ dispatcher = (*version.Store[*row])(nil)
