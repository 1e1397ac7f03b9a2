package grid

import "errors"

// Common errors.
var (
	ErrInvalidConfig = errors.New("invalid grid config")
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrUnknownKind   = errors.New("unknown grid kind")
)
