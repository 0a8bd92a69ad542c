package depth

import "errors"

// Input errors: the book rejects the call before any mutation.
var (
	ErrNilQuote         = errors.New("quote is nil")
	ErrInvalidPrice     = errors.New("price must be positive")
	ErrNegativeVolume   = errors.New("volume must not be negative")
	ErrSecurityMismatch = errors.New("quote belongs to another security")
	ErrInvalidSide      = errors.New("invalid side")
)

// Range errors.
var (
	ErrInvalidDepth  = errors.New("depth must be at least 1")
	ErrDepthTooLarge = errors.New("requested depth exceeds current depth")
	ErrVolumeTooBig  = errors.New("volume to remove exceeds quote volume")
)

// ErrPriceNotFound is returned by removals and lookups addressing a price
// level that is not in the book.
var ErrPriceNotFound = errors.New("no quote at the given price")

// Consistency errors. ErrBookInconsistent rejects a snapshot that fails
// verification; ErrDepthExceeded signals a post-mutation invariant
// violation and indicates a bug rather than bad input.
var (
	ErrBookInconsistent = errors.New("order book is inconsistent")
	ErrDepthExceeded    = errors.New("side length exceeds configured max depth")
)
