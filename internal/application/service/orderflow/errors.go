package orderflow

import "errors"

var (
	ErrNilMessage       = errors.New("nil market data message")
	ErrInvalidTrade     = errors.New("invalid trade")
	ErrInvalidOrder     = errors.New("invalid order message")
	ErrSecurityMismatch = errors.New("message security does not match converter")
)
