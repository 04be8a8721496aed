package version

import (
	"errors"
	"fmt"
)

// ErrRecordDoesNotExist is the error returned for attempts to mutate versions
// of a record for which no chain exists. This is a caller logic error: the
// transaction layer should never ask to mutate a record it didn't previously
// observe. This may be wrapped in another error, and should normally be tested
// using errors.Is(err, ErrRecordDoesNotExist).
var ErrRecordDoesNotExist = errors.New("record does not exist")

type recordDoesNotExistError string

func (e recordDoesNotExistError) Error() string {
	return fmt.Sprintf("record with key %q does not exist", string(e))
}

func (e recordDoesNotExistError) Is(err error) bool {
	if err == ErrRecordDoesNotExist {
		return true
	}
	downcasted, ok := err.(*recordDoesNotExistError)
	return ok && *downcasted == e
}

// ErrVersionDoesNotExist is the error returned for attempts to replace or
// stamp a version that is not present in its record's chain. Like
// ErrRecordDoesNotExist this marks a caller logic error, not an expected
// concurrency outcome. This may be wrapped in another error, and should
// normally be tested using errors.Is(err, ErrVersionDoesNotExist).
var ErrVersionDoesNotExist = errors.New("version does not exist")

type versionDoesNotExistError struct {
	key        string
	versionKey Timestamp
}

func (e versionDoesNotExistError) Error() string {
	return fmt.Sprintf("record with key %q has no version %d", e.key, e.versionKey)
}

func (e versionDoesNotExistError) Is(err error) bool {
	if err == ErrVersionDoesNotExist {
		return true
	}
	downcasted, ok := err.(*versionDoesNotExistError)
	return ok && *downcasted == e
}
