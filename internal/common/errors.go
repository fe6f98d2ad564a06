package common

import "errors"

var (
	ErrRecordNotFound     = errors.New("record not found")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrAlreadyLiked       = errors.New("blog already liked")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrUpstreamTimeout    = errors.New("upstream timeout")
)
