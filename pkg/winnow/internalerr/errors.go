package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrMalformedToken   = errors.New("malformed token record")
	ErrInvalidRule      = errors.New("invalid filter rule")
	ErrEmptyCorpus      = errors.New("empty corpus")
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)
