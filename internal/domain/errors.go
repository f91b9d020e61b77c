package domain

import "errors"

var (
	ErrNotConvertible = errors.New("no rate available for conversion")
	ErrFetchFailed    = errors.New("rates fetch failed")
	ErrRefreshFailed  = errors.New("rates refresh failed and no cached rates available")
	ErrInvalidAmount  = errors.New("invalid amount")
)
