package handle

import "errors"

var (
	ErrInvalidToken = errors.New("handle: invalid or unknown token")
	ErrReleased     = errors.New("handle: handle already released")
	ErrNilContext   = errors.New("handle: refusing to register a nil context")
)
