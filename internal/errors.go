package ipscope

import "errors"

// Sentinel errors for the lookup domain.
var (
	ErrQuotaExceeded = errors.New("request quota exceeded")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotFound      = errors.New("not found")
	ErrBadRequest    = errors.New("bad request")
	ErrUpstream      = errors.New("upstream error")
	ErrUnsupported   = errors.New("unsupported")
)
