package difficulty

import "errors"

var (
	// ErrUnknownLevel is returned when a label does not name a known level.
	ErrUnknownLevel = errors.New("unknown difficulty level")

	// ErrInvalidProfile is returned when a profile's budget is out of range.
	ErrInvalidProfile = errors.New("invalid difficulty profile")
)
