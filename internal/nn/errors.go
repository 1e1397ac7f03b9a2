package nn

import "errors"

// Checkpoint errors.
var (
	ErrOffsetsMismatch   = errors.New("stored level offsets do not match the configuration")
	ErrNotGridCheckpoint = errors.New("file is not a grid encoder checkpoint")
)
