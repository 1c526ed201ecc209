package types

import "errors"

// Domain errors for row validation at the deserialization boundary
var (
	ErrMissingCode        = errors.New("code is required")
	ErrMissingDescription = errors.New("description is required")
	ErrMissingPrimaryCode = errors.New("primary code is required")
)
